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

package generation

import (
	"context"

	"github.com/refugium/companion-core/pkg/audio"
)

// Offline is used when no backend is configured. Every call degrades the
// same way a failing backend would.
type Offline struct{}

func (Offline) Dialogue(context.Context, []Message, []string, Persona) (Reply, error) {
	return FallbackReply, ErrNoAPIKey
}

func (Offline) Speech(context.Context, string) (*audio.Buffer, error) {
	return nil, ErrNoAPIKey
}

func (Offline) EditImage(context.Context, []byte, string, string) (string, error) {
	return "", ErrNoAPIKey
}

func (Offline) Suggestions(context.Context, []Message) ([]string, error) {
	return FallbackSuggestions(), ErrNoAPIKey
}
