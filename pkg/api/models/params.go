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

type AddTokensParams struct {
	Amount int `json:"amount" validate:"gt=0,max=100000"`
}

type UpdateProfileParams struct {
	Name  *string `json:"name" validate:"omitempty,notblank,max=64,persona"`
	Trait *string `json:"trait" validate:"omitempty,notblank,max=128,persona"`
}

type SetModeParams struct {
	Mode string `json:"mode" validate:"required,oneof=chat image upgrade"`
}

type ChatSendParams struct {
	Text string `json:"text" validate:"required,notblank,max=4000"`
}

type PlaybackPlayParams struct {
	Index int `json:"index" validate:"gte=0"`
}

type PlaybackKeyParams struct {
	Index int `json:"index" validate:"gte=0"`
}

type PlaybackSeekParams struct {
	Position float64 `json:"position" validate:"gte=0"`
}

type ImagesEditParams struct {
	// Image is base64 encoded, optionally as a data URI.
	Image    string `json:"image" validate:"required,imagedata"`
	MimeType string `json:"mimeType" validate:"omitempty,oneof=image/jpeg image/png image/webp"`
	Prompt   string `json:"prompt" validate:"required,notblank,max=1000"`
}

type UpdateSettingsParams struct {
	DebugLogging         *bool   `json:"debugLogging"`
	ErrorReporting       *bool   `json:"errorReporting"`
	PlaybackPollInterval *string `json:"playbackPollInterval" validate:"omitempty,posduration"`
	Voice                *string `json:"voice" validate:"omitempty,min=1"`
	StartingTokens       *int    `json:"startingTokens" validate:"omitempty,gte=0"`
}
