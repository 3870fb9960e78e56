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

package helpers

import (
	"testing"
	"time"

	"github.com/refugium/companion-core/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestProfile(userID string, tokens int) *database.Profile {
	now := time.Unix(1_760_000_000, 0)
	return &database.Profile{
		UserID:         userID,
		Name:           "Marina",
		Trait:          "sanft",
		TokenBalance:   tokens,
		TrialStartedAt: &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

//nolint:paralleltest // Cannot use t.Parallel() due to goose global state race condition
func TestNewInMemoryUserDB_ProfileRoundTrip(t *testing.T) {
	userDB, cleanup := NewInMemoryUserDB(t)
	defer cleanup()

	_, err := userDB.GetProfile("nobody")
	require.ErrorIs(t, err, database.ErrNotFound)

	want := createTestProfile("user-1", 5)
	require.NoError(t, userDB.CreateProfile(want))

	got, err := userDB.GetProfile("user-1")
	require.NoError(t, err)
	assert.Equal(t, "Marina", got.Name)
	assert.Equal(t, 5, got.TokenBalance)
	require.NotNil(t, got.TrialStartedAt)
	assert.Equal(t, want.TrialStartedAt.Unix(), got.TrialStartedAt.Unix())
	assert.False(t, got.IsPremium)
}

//nolint:paralleltest // Cannot use t.Parallel() due to goose global state race condition
func TestNewInMemoryUserDB_UpdateClampsTokens(t *testing.T) {
	userDB, cleanup := NewInMemoryUserDB(t)
	defer cleanup()

	require.NoError(t, userDB.CreateProfile(createTestProfile("user-1", 2)))

	premium := true
	got, err := userDB.UpdateProfile("user-1", database.ProfilePatch{
		TokenDelta:      -5,
		ImageCountDelta: 1,
		IsPremium:       &premium,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, got.TokenBalance)
	assert.Equal(t, 1, got.ImageGenerationCount)
	assert.True(t, got.IsPremium)

	got, err = userDB.UpdateProfile("user-1", database.ProfilePatch{TokenDelta: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, got.TokenBalance)
	assert.True(t, got.IsPremium, "nil fields must be left alone")

	_, err = userDB.UpdateProfile("missing", database.ProfilePatch{TokenDelta: 1})
	require.ErrorIs(t, err, database.ErrNotFound)
}

//nolint:paralleltest // Cannot use t.Parallel() due to goose global state race condition
func TestNewInMemoryUserDB_ChatHistory(t *testing.T) {
	userDB, cleanup := NewInMemoryUserDB(t)
	defer cleanup()

	msgs := []database.ChatMessage{
		{Role: "user", Content: "Hallo"},
		{Role: "model", Content: "Hallo zurück", Emotion: "warm", Sensory: "lächelt"},
	}
	require.NoError(t, userDB.ReplaceChatHistory("user-1", msgs))
	require.NoError(t, userDB.ReplaceChatHistory("user-2", msgs[:1]))

	history, err := userDB.GetChatHistory("user-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Hallo", history[0].Content)
	assert.Equal(t, "lächelt", history[1].Sensory)

	require.NoError(t, userDB.ReplaceChatHistory("user-1", msgs[1:]))
	history, err = userDB.GetChatHistory("user-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "model", history[0].Role)

	require.NoError(t, userDB.ClearChatHistory("user-1"))
	history, err = userDB.GetChatHistory("user-1")
	require.NoError(t, err)
	assert.Empty(t, history)

	other, err := userDB.GetChatHistory("user-2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
