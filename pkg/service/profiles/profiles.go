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

// Package profiles is the boundary to durable profile storage. It loads a
// user's profile (creating it on first access), persists partial updates
// and pushes every persisted change to observers.
package profiles

import (
	"context"
	"time"

	"github.com/refugium/companion-core/pkg/database"
	"github.com/refugium/companion-core/pkg/entitlement"
	"github.com/refugium/companion-core/pkg/helpers/syncutil"
)

type Store interface {
	// Load returns the user's profile, creating it with defaults on first
	// access. On a storage error the defaults are returned with the error.
	Load(ctx context.Context, userID string) (entitlement.Profile, error)
	// Persist applies a partial update and returns the stored result.
	// Observers see the results of concurrent calls in the order the
	// store applied them.
	Persist(ctx context.Context, userID string, patch database.ProfilePatch) (entitlement.Profile, error)
	// Observe registers fn for every persisted change to userID's profile.
	Observe(userID string, fn func(entitlement.Profile)) (cancel func())
	History(ctx context.Context, userID string) ([]database.ChatMessage, error)
	SaveHistory(ctx context.Context, userID string, msgs []database.ChatMessage) error
	ClearHistory(ctx context.Context, userID string) error
}

// Defaults seed new profiles.
type Defaults struct {
	Name   string
	Trait  string
	Tokens int
}

func (d Defaults) profile() entitlement.Profile {
	return entitlement.NewProfile(d.Name, d.Trait, d.Tokens)
}

func toEntitlement(p *database.Profile) entitlement.Profile {
	var trial *time.Time
	if p.TrialStartedAt != nil {
		t := *p.TrialStartedAt
		trial = &t
	}
	return entitlement.Profile{
		TrialStartedAt:       trial,
		Name:                 p.Name,
		Trait:                p.Trait,
		TokenBalance:         p.TokenBalance,
		ImageGenerationCount: p.ImageGenerationCount,
		IsPremium:            p.IsPremium,
	}
}

// applyPatch is the in-memory equivalent of the SQL update.
func applyPatch(p entitlement.Profile, patch database.ProfilePatch) entitlement.Profile {
	if patch.IsPremium != nil {
		p.IsPremium = *patch.IsPremium
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Trait != nil {
		p.Trait = *patch.Trait
	}
	if patch.TrialStartedAt != nil {
		t := *patch.TrialStartedAt
		p.TrialStartedAt = &t
	}
	p.TokenBalance = max(0, p.TokenBalance+patch.TokenDelta)
	p.ImageGenerationCount = max(0, p.ImageGenerationCount+patch.ImageCountDelta)
	return p
}

type observers struct {
	subs   map[string]map[int]func(entitlement.Profile)
	mu     syncutil.Mutex
	nextID int
}

func (o *observers) add(userID string, fn func(entitlement.Profile)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs == nil {
		o.subs = make(map[string]map[int]func(entitlement.Profile))
	}
	if o.subs[userID] == nil {
		o.subs[userID] = make(map[int]func(entitlement.Profile))
	}
	id := o.nextID
	o.nextID++
	o.subs[userID][id] = fn

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs[userID], id)
		if len(o.subs[userID]) == 0 {
			delete(o.subs, userID)
		}
	}
}

// notify calls every observer of userID outside the lock.
func (o *observers) notify(userID string, p entitlement.Profile) {
	o.mu.Lock()
	fns := make([]func(entitlement.Profile), 0, len(o.subs[userID]))
	for _, fn := range o.subs[userID] {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}
