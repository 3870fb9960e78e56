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

package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginFilter_IsAllowed(t *testing.T) {
	t.Parallel()

	f := NewOriginFilter(append(DefaultOrigins, "https://App.Example.org", "  ", "https://*.trusted.net"))

	tests := []struct {
		origin  string
		allowed bool
	}{
		{origin: "http://localhost", allowed: true},
		{origin: "http://localhost:8080", allowed: true},
		{origin: "http://127.0.0.1:7497", allowed: true},
		{origin: "capacitor://localhost", allowed: true},
		{origin: "https://app.example.org", allowed: true},
		{origin: "https://eu.trusted.net", allowed: true},
		{origin: "https://trusted.net.evil.com", allowed: false},
		{origin: "http://localhost.evil.com", allowed: false},
		{origin: "https://example.org", allowed: false},
		{origin: "", allowed: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, f.IsAllowed(tt.origin), tt.origin)
	}
}

func TestOriginFilter_CheckWebSocketOrigin(t *testing.T) {
	t.Parallel()

	f := NewOriginFilter(DefaultOrigins)

	r := httptest.NewRequest("GET", "/api", nil)
	assert.True(t, f.CheckWebSocketOrigin(r), "non-browser clients send no origin")

	r.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, f.CheckWebSocketOrigin(r))

	r.Header.Set("Origin", "https://attacker.example")
	assert.False(t, f.CheckWebSocketOrigin(r))
}
