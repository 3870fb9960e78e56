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
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultOrigins are the local app origins that may always call the API.
var DefaultOrigins = []string{
	"http://localhost",
	"http://localhost:*",
	"http://127.0.0.1",
	"http://127.0.0.1:*",
	"capacitor://*",
}

// OriginFilter matches browser origins against a list of exact origins
// or patterns with a single "*".
type OriginFilter struct {
	exact    map[string]struct{}
	patterns [][2]string
}

func NewOriginFilter(allowed []string) *OriginFilter {
	f := &OriginFilter{exact: make(map[string]struct{}, len(allowed))}
	for _, origin := range allowed {
		origin = strings.ToLower(strings.TrimSpace(origin))
		if origin == "" {
			continue
		}
		if prefix, suffix, ok := strings.Cut(origin, "*"); ok {
			f.patterns = append(f.patterns, [2]string{prefix, suffix})
			continue
		}
		f.exact[origin] = struct{}{}
	}
	return f
}

// IsAllowed reports whether a non-empty origin is on the list.
func (f *OriginFilter) IsAllowed(origin string) bool {
	origin = strings.ToLower(origin)
	if origin == "" {
		return false
	}
	if _, ok := f.exact[origin]; ok {
		return true
	}
	for _, p := range f.patterns {
		if len(origin) >= len(p[0])+len(p[1]) &&
			strings.HasPrefix(origin, p[0]) && strings.HasSuffix(origin, p[1]) {
			return true
		}
	}
	return false
}

// AllowOriginFunc adapts the filter to the CORS middleware.
func (f *OriginFilter) AllowOriginFunc(_ *http.Request, origin string) bool {
	return f.IsAllowed(origin)
}

// CheckWebSocketOrigin is used as the upgrader's origin check. Requests
// without an Origin header come from non-browser clients and pass.
func (f *OriginFilter) CheckWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if f.IsAllowed(origin) {
		return true
	}
	log.Warn().Str("origin", origin).Str("remote", r.RemoteAddr).Msg("rejected websocket from foreign origin")
	return false
}
