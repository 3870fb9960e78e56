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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int {
	return &i
}

func TestStartingTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tokens *int
		name   string
		want   int
	}{
		{name: "nil uses default", tokens: nil, want: 5},
		{name: "zero is allowed", tokens: intPtr(0), want: 0},
		{name: "custom value", tokens: intPtr(20), want: 20},
		{name: "negative uses default", tokens: intPtr(-3), want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			inst := &Instance{
				vals: Values{
					Entitlements: Entitlements{StartingTokens: tt.tokens},
				},
			}
			assert.Equal(t, tt.want, inst.StartingTokens())
		})
	}
}

func TestTrialDuration(t *testing.T) {
	t.Parallel()

	inst := &Instance{}
	assert.Equal(t, 72*time.Hour, inst.TrialDuration())

	inst.vals.Entitlements.TrialDays = intPtr(7)
	assert.Equal(t, 7*24*time.Hour, inst.TrialDuration())

	inst.vals.Entitlements.TrialDays = intPtr(0)
	assert.Equal(t, 72*time.Hour, inst.TrialDuration())
}

func TestTokenPacks(t *testing.T) {
	t.Parallel()

	inst := &Instance{}
	assert.Equal(t, []int{10, 50}, inst.TokenPacks())

	inst.vals.Entitlements.TokenPacks = []int{5, -1, 0, 100}
	assert.Equal(t, []int{5, 100}, inst.TokenPacks())
}

func TestSetStartingTokens(t *testing.T) {
	t.Parallel()

	inst := &Instance{}
	require.Error(t, inst.SetStartingTokens(-1))
	require.NoError(t, inst.SetStartingTokens(8))
	assert.Equal(t, 8, inst.StartingTokens())
}

func TestVoice(t *testing.T) {
	t.Parallel()

	inst := &Instance{}
	assert.Equal(t, DefaultGeminiVoice, inst.Voice())

	require.Error(t, inst.SetVoice("Alloy"))
	require.NoError(t, inst.SetVoice("Fenrir"))
	assert.Equal(t, "Fenrir", inst.Voice())

	inst.vals.Generation.Provider = ProviderOpenAI
	assert.Equal(t, "Fenrir", inst.Voice())
	inst.vals.Generation.Voice = ""
	assert.Equal(t, DefaultOpenAIVoice, inst.Voice())
	assert.Equal(t, DefaultOpenAITextModel, inst.TextModel())
}
