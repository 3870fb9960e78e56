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
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/refugium/companion-core/pkg/database"
	"github.com/refugium/companion-core/pkg/entitlement"
	"github.com/refugium/companion-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// SQLStore keeps profiles in the user database. New profiles get their
// trial stamped at creation time.
type SQLStore struct {
	db       database.UserDBI
	clock    clockwork.Clock
	obs      observers
	defaults Defaults
	// writeMu keeps notifications in commit order
	writeMu syncutil.Mutex
}

func NewSQLStore(db database.UserDBI, defaults Defaults, clock clockwork.Clock) *SQLStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SQLStore{db: db, defaults: defaults, clock: clock}
}

func (s *SQLStore) Load(_ context.Context, userID string) (entitlement.Profile, error) {
	p, err := s.db.GetProfile(userID)
	if err == nil {
		return toEntitlement(&p), nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return s.defaults.profile(), fmt.Errorf("failed to load profile: %w", err)
	}

	now := s.clock.Now()
	created := database.Profile{
		UserID:         userID,
		Name:           s.defaults.Name,
		Trait:          s.defaults.Trait,
		TokenBalance:   max(0, s.defaults.Tokens),
		TrialStartedAt: &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.db.CreateProfile(&created); err != nil {
		return toEntitlement(&created), fmt.Errorf("failed to create profile: %w", err)
	}
	log.Info().Str("user", userID).Msg("profiles: created new profile")
	return toEntitlement(&created), nil
}

func (s *SQLStore) Persist(
	_ context.Context,
	userID string,
	patch database.ProfilePatch,
) (entitlement.Profile, error) {
	if patch.Empty() {
		p, err := s.db.GetProfile(userID)
		if err != nil {
			return entitlement.Profile{}, fmt.Errorf("failed to load profile: %w", err)
		}
		return toEntitlement(&p), nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	p, err := s.db.UpdateProfile(userID, patch)
	if err != nil {
		return entitlement.Profile{}, fmt.Errorf("failed to persist profile: %w", err)
	}
	updated := toEntitlement(&p)
	s.obs.notify(userID, updated)
	return updated, nil
}

func (s *SQLStore) Observe(userID string, fn func(entitlement.Profile)) func() {
	return s.obs.add(userID, fn)
}

func (s *SQLStore) History(_ context.Context, userID string) ([]database.ChatMessage, error) {
	msgs, err := s.db.GetChatHistory(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	return msgs, nil
}

func (s *SQLStore) SaveHistory(_ context.Context, userID string, msgs []database.ChatMessage) error {
	if err := s.db.ReplaceChatHistory(userID, msgs); err != nil {
		return fmt.Errorf("failed to save chat history: %w", err)
	}
	return nil
}

func (s *SQLStore) ClearHistory(_ context.Context, userID string) error {
	if err := s.db.ClearChatHistory(userID); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}
