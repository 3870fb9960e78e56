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

package requests

import (
	"context"
	"encoding/json"

	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/config"
	"github.com/refugium/companion-core/pkg/playback"
	"github.com/refugium/companion-core/pkg/service/chat"
	"github.com/refugium/companion-core/pkg/service/images"
	"github.com/refugium/companion-core/pkg/service/profiles"
	"github.com/refugium/companion-core/pkg/service/state"
)

// RequestEnv is everything a method handler may touch. One is built per
// request by copying the server's Env and filling in the request fields.
type RequestEnv struct {
	Context context.Context
	Config  *config.Instance
	State   *state.State
	Store   profiles.Store
	Chat    *chat.Service
	Images  *images.Service
	Player  *playback.Tracker
	// OnSettingsChanged applies runtime settings after an update or reload.
	OnSettingsChanged func()
	Params            json.RawMessage
	ID                models.RPCID
	IsLocal           bool
}
