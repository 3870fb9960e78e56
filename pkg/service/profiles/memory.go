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

package profiles

import (
	"context"
	"slices"

	"github.com/refugium/companion-core/pkg/database"
	"github.com/refugium/companion-core/pkg/entitlement"
	"github.com/refugium/companion-core/pkg/helpers/syncutil"
)

// MemoryStore keeps everything in process. Its profiles never have a trial
// start, so the trial stays fully open for the life of the process.
type MemoryStore struct {
	profiles map[string]entitlement.Profile
	history  map[string][]database.ChatMessage
	obs      observers
	defaults Defaults
	mu       syncutil.Mutex
	// writeMu spans a profile update and its notification
	writeMu syncutil.Mutex
}

func NewMemoryStore(defaults Defaults) *MemoryStore {
	return &MemoryStore{
		defaults: defaults,
		profiles: make(map[string]entitlement.Profile),
		history:  make(map[string][]database.ChatMessage),
	}
}

func (s *MemoryStore) Load(_ context.Context, userID string) (entitlement.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = s.defaults.profile()
		s.profiles[userID] = p
	}
	return p, nil
}

func (s *MemoryStore) Persist(
	_ context.Context,
	userID string,
	patch database.ProfilePatch,
) (entitlement.Profile, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	p, ok := s.profiles[userID]
	if !ok {
		p = s.defaults.profile()
	}
	p = applyPatch(p, patch)
	s.profiles[userID] = p
	s.mu.Unlock()

	s.obs.notify(userID, p)
	return p, nil
}

func (s *MemoryStore) Observe(userID string, fn func(entitlement.Profile)) func() {
	return s.obs.add(userID, fn)
}

func (s *MemoryStore) History(_ context.Context, userID string) ([]database.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history[userID]), nil
}

func (s *MemoryStore) SaveHistory(_ context.Context, userID string, msgs []database.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[userID] = slices.Clone(msgs)
	return nil
}

func (s *MemoryStore) ClearHistory(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, userID)
	return nil
}
