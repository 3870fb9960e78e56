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

// Package helpers provides testing utilities shared across packages.
//
// Example usage:
//
//	func TestProfileLoad(t *testing.T) {
//		userDB := helpers.NewMockUserDBI()
//		userDB.On("GetProfile", "mock-user-123").Return(database.Profile{}, database.ErrNotFound)
//
//		err := MyFunction(userDB)
//
//		require.NoError(t, err)
//		userDB.AssertExpectations(t)
//	}
package helpers

import (
	"fmt"

	"github.com/refugium/companion-core/pkg/database"
	"github.com/stretchr/testify/mock"
)

// MockUserDBI is a mock implementation of the UserDBI interface using testify/mock
type MockUserDBI struct {
	mock.Mock
}

func NewMockUserDBI() *MockUserDBI {
	return &MockUserDBI{}
}

// GenericDBI methods
func (m *MockUserDBI) Open() error {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock UserDBI open failed: %w", err)
	}
	return nil
}

func (m *MockUserDBI) Truncate() error {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock UserDBI truncate failed: %w", err)
	}
	return nil
}

func (m *MockUserDBI) Allocate() error {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock UserDBI allocate failed: %w", err)
	}
	return nil
}

func (m *MockUserDBI) MigrateUp() error {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock UserDBI migrate up failed: %w", err)
	}
	return nil
}

func (m *MockUserDBI) Vacuum() error {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock UserDBI vacuum failed: %w", err)
	}
	return nil
}

func (m *MockUserDBI) Close() error {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock UserDBI close failed: %w", err)
	}
	return nil
}

func (m *MockUserDBI) GetDBPath() string {
	args := m.Called()
	return args.String(0)
}

// UserDBI methods. Errors pass through unwrapped so callers can match
// database.ErrNotFound.
func (m *MockUserDBI) GetProfile(userID string) (database.Profile, error) {
	args := m.Called(userID)
	if p, ok := args.Get(0).(database.Profile); ok {
		return p, args.Error(1) //nolint:wrapcheck // mock passthrough
	}
	return database.Profile{}, args.Error(1) //nolint:wrapcheck // mock passthrough
}

func (m *MockUserDBI) CreateProfile(p *database.Profile) error {
	args := m.Called(p)
	return args.Error(0) //nolint:wrapcheck // mock passthrough
}

func (m *MockUserDBI) UpdateProfile(userID string, patch database.ProfilePatch) (database.Profile, error) {
	args := m.Called(userID, patch)
	if p, ok := args.Get(0).(database.Profile); ok {
		return p, args.Error(1) //nolint:wrapcheck // mock passthrough
	}
	return database.Profile{}, args.Error(1) //nolint:wrapcheck // mock passthrough
}

func (m *MockUserDBI) GetChatHistory(userID string) ([]database.ChatMessage, error) {
	args := m.Called(userID)
	if msgs, ok := args.Get(0).([]database.ChatMessage); ok {
		return msgs, args.Error(1) //nolint:wrapcheck // mock passthrough
	}
	return nil, args.Error(1) //nolint:wrapcheck // mock passthrough
}

func (m *MockUserDBI) ReplaceChatHistory(userID string, msgs []database.ChatMessage) error {
	args := m.Called(userID, msgs)
	return args.Error(0) //nolint:wrapcheck // mock passthrough
}

func (m *MockUserDBI) ClearChatHistory(userID string) error {
	args := m.Called(userID)
	return args.Error(0) //nolint:wrapcheck // mock passthrough
}
