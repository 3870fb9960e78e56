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

package identity

import (
	"strings"
	"testing"

	"github.com/refugium/companion-core/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDevice_Stable(t *testing.T) {
	t.Parallel()
	a, err := FromDevice("abc")
	require.NoError(t, err)
	b, err := FromDevice(" abc ")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a.UserID, "device-"))
	assert.True(t, a.Anonymous)
	assert.False(t, a.Local)

	c, err := FromDevice("abd")
	require.NoError(t, err)
	assert.NotEqual(t, a.UserID, c.UserID)
}

func TestFromDevice_Empty(t *testing.T) {
	t.Parallel()
	_, err := FromDevice("  ")
	require.ErrorIs(t, err, ErrNoDeviceID)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		vals      config.Values
		wantLocal bool
	}{
		{name: "default device", vals: config.BaseDefaults, wantLocal: false},
		{
			name:      "memory store forces local",
			vals:      config.Values{Store: config.Store{Backend: config.StoreMemory}},
			wantLocal: true,
		},
		{
			name:      "explicit local",
			vals:      config.Values{Store: config.Store{Identity: config.IdentityLocal}},
			wantLocal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := config.NewConfig(t.TempDir(), tt.vals)
			require.NoError(t, err)

			id, err := Resolve(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLocal, id.Local)
			if tt.wantLocal {
				assert.Equal(t, LocalUserID, id.UserID)
			}
		})
	}
}
