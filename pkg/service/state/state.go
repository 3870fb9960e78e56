// Companion Core
// Copyright (c) 2026 The Companion Core Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Companion Core.
//
// Companion Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Companion Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Companion Core.  If not, see <http://www.gnu.org/licenses/>.

package state

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/api/notifications"
	"github.com/refugium/companion-core/pkg/entitlement"
	"github.com/refugium/companion-core/pkg/helpers/syncutil"
	"github.com/refugium/companion-core/pkg/identity"
)

type Options struct {
	Clock    clockwork.Clock
	Identity identity.Identity
	Memories []string
	Profile  entitlement.Profile
	Gate     entitlement.Gate
}

// State holds the session of the signed-in user: identity, profile, app
// mode and long-term memories. It is created once per session and torn
// down by StopService.
//
// LOCKING RULES: mu protects all mutable fields. Never send notifications
// while holding the lock. Pattern: lock → modify → copy payload → unlock →
// send.
type State struct {
	clock         clockwork.Clock
	ctx           context.Context
	ctxCancelFunc context.CancelFunc
	Notifications chan<- models.Notification
	ident         identity.Identity
	mode          string
	memories      []string
	profile       entitlement.Profile
	gate          entitlement.Gate
	mu            syncutil.RWMutex
	stopService   bool
}

func NewState(opts Options) (state *State, notificationCh <-chan models.Notification) {
	ns := make(chan models.Notification, 500)
	ctx, ctxCancelFunc := context.WithCancel(context.Background())
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &State{
		clock:         clock,
		ctx:           ctx,
		ctxCancelFunc: ctxCancelFunc,
		Notifications: ns,
		ident:         opts.Identity,
		mode:          models.ModeChat,
		memories:      slices.Clone(opts.Memories),
		profile:       opts.Profile,
		gate:          opts.Gate,
	}, ns
}

func (s *State) UserID() string {
	return s.ident.UserID
}

func (s *State) Anonymous() bool {
	return s.ident.Anonymous
}

func (s *State) Gate() entitlement.Gate {
	return s.gate
}

func (s *State) Clock() clockwork.Clock {
	return s.clock
}

func (s *State) Profile() entitlement.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// ApplyProfile replaces the current profile and emits profile.updated.
func (s *State) ApplyProfile(p entitlement.Profile) {
	s.MutateProfile(func(entitlement.Profile) entitlement.Profile {
		return p
	})
}

// MutateProfile runs fn on the current profile under the state lock and
// stores the result, so concurrent read-modify-write cycles serialize.
func (s *State) MutateProfile(fn func(entitlement.Profile) entitlement.Profile) entitlement.Profile {
	s.mu.Lock()
	s.profile = fn(s.profile)
	payload := s.profileResponseLocked()
	p := s.profile
	s.mu.Unlock()

	notifications.ProfileUpdated(s.Notifications, payload)
	return p
}

// ProfileResponse is the profile as reported to clients.
func (s *State) ProfileResponse() models.ProfileResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profileResponseLocked()
}

func (s *State) profileResponseLocked() models.ProfileResponse {
	now := s.clock.Now()
	trial := s.gate.TrialStatus(s.profile, now)
	var started *time.Time
	if s.profile.TrialStartedAt != nil {
		t := *s.profile.TrialStartedAt
		started = &t
	}
	return models.ProfileResponse{
		TrialStartedAt:       started,
		UserID:               s.ident.UserID,
		Name:                 s.profile.Name,
		Trait:                s.profile.Trait,
		Mode:                 s.mode,
		Trial:                models.TrialResponse{Active: trial.Active, DaysRemaining: trial.DaysRemaining},
		TokenBalance:         s.profile.TokenBalance,
		ImageGenerationCount: s.profile.ImageGenerationCount,
		IsPremium:            s.profile.IsPremium,
		Anonymous:            s.ident.Anonymous,
		CanPerformAction:     s.gate.CanPerformGatedAction(s.profile, now),
	}
}

func (s *State) Mode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func validMode(mode string) bool {
	switch mode {
	case models.ModeChat, models.ModeImage, models.ModeUpgrade:
		return true
	default:
		return false
	}
}

// SetMode switches the app mode. Setting the current mode is a no-op.
func (s *State) SetMode(mode string) error {
	if !validMode(mode) {
		return fmt.Errorf("invalid mode: %q", mode)
	}

	s.mu.Lock()
	if s.mode == mode {
		s.mu.Unlock()
		return nil
	}
	s.mode = mode
	s.mu.Unlock()

	notifications.ModeChanged(s.Notifications, models.ModeResponse{Mode: mode})
	return nil
}

func (s *State) Memories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.memories)
}

func (s *State) SetMemories(memories []string) {
	s.mu.Lock()
	s.memories = slices.Clone(memories)
	s.mu.Unlock()
}

// Deny reports a refused gated action and moves the app to the upsell.
func (s *State) Deny(action entitlement.Action, reason entitlement.Reason) {
	notifications.EntitlementDenied(s.Notifications, models.EntitlementDeniedResponse{
		Action:        string(action),
		Reason:        string(reason),
		SuggestedMode: models.ModeUpgrade,
	})
	_ = s.SetMode(models.ModeUpgrade)
}

func (s *State) GetContext() context.Context {
	return s.ctx
}

func (s *State) ShouldStopService() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopService
}

func (s *State) StopService() {
	s.mu.Lock()
	s.stopService = true
	s.mu.Unlock()
	s.ctxCancelFunc()
}
