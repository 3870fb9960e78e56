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

package database

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

/*
 * Structs for SQL records
 */

type Profile struct {
	CreatedAt            time.Time
	UpdatedAt            time.Time
	TrialStartedAt       *time.Time
	UserID               string
	Name                 string
	Trait                string
	TokenBalance         int
	ImageGenerationCount int
	IsPremium            bool
}

// ProfilePatch is a partial profile update. Nil fields are left alone.
// Deltas are added in the database and the result clamped at zero, so
// concurrent increments and decrements commute.
type ProfilePatch struct {
	IsPremium       *bool
	Name            *string
	Trait           *string
	TrialStartedAt  *time.Time
	TokenDelta      int
	ImageCountDelta int
}

func (p ProfilePatch) Empty() bool {
	return p.IsPremium == nil && p.Name == nil && p.Trait == nil &&
		p.TrialStartedAt == nil && p.TokenDelta == 0 && p.ImageCountDelta == 0
}

type ChatMessage struct {
	Time    time.Time `json:"time"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Emotion string    `json:"emotion,omitempty"`
	Sensory string    `json:"sensory,omitempty"`
	DBID    int64     `json:"-"`
}

/*
 * Interfaces for external deps
 */

type GenericDBI interface {
	Open() error
	GetDBPath() string
	Truncate() error
	Allocate() error
	MigrateUp() error
	Vacuum() error
	Close() error
}

type UserDBI interface {
	GenericDBI
	GetProfile(userID string) (Profile, error)
	CreateProfile(p *Profile) error
	UpdateProfile(userID string, patch ProfilePatch) (Profile, error)
	GetChatHistory(userID string) ([]ChatMessage, error)
	ReplaceChatHistory(userID string, msgs []ChatMessage) error
	ClearChatHistory(userID string) error
}
