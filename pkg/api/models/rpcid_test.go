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

package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCID_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "string", raw: `"abc"`},
		{name: "number", raw: `12345`},
		{name: "uuid", raw: `"` + uuid.New().String() + `"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var req RequestObject
			err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":`+tt.raw+`,"method":"version"}`), &req)
			require.NoError(t, err)
			require.False(t, req.ID.IsAbsent())
			assert.Equal(t, tt.raw, req.ID.String())

			out, err := json.Marshal(ResponseObject{JSONRPC: "2.0", ID: *req.ID, Result: true})
			require.NoError(t, err)
			assert.Contains(t, string(out), `"id":`+tt.raw)
		})
	}
}

func TestRPCID_RejectsObjectAndArray(t *testing.T) {
	t.Parallel()
	var id RPCID
	require.ErrorIs(t, json.Unmarshal([]byte(`{"a":1}`), &id), ErrInvalidRPCID)
	require.ErrorIs(t, json.Unmarshal([]byte(` [1]`), &id), ErrInvalidRPCID)
}

func TestRPCID_Absent(t *testing.T) {
	t.Parallel()
	var req RequestObject
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"version"}`), &req))
	assert.True(t, req.ID.IsAbsent())
	assert.Equal(t, "null", req.ID.String())

	out, err := json.Marshal(RPCID{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestNewStringID(t *testing.T) {
	t.Parallel()
	id := NewStringID("x")
	assert.Equal(t, `"x"`, id.String())
}
