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

import "encoding/json"

const (
	MethodVersion          = "version"
	MethodProfile          = "profile"
	MethodProfileUpgrade   = "profile.upgrade"
	MethodProfileTokensAdd = "profile.tokens.add"
	MethodProfileUpdate    = "profile.update"
	MethodMode             = "mode"
	MethodModeSet          = "mode.set"
	MethodChatSend         = "chat.send"
	MethodChatHistory      = "chat.history"
	MethodChatSuggestions  = "chat.suggestions"
	MethodChatReset        = "chat.reset"
	MethodPlaybackPlay     = "playback.play"
	MethodPlaybackToggle   = "playback.toggle"
	MethodPlaybackPause    = "playback.pause"
	MethodPlaybackResume   = "playback.resume"
	MethodPlaybackSeek     = "playback.seek"
	MethodPlaybackStop     = "playback.stop"
	MethodPlaybackStatus   = "playback.status"
	MethodPlaybackSuspend  = "playback.suspend"
	MethodPlaybackWake     = "playback.wake"
	MethodImagesEdit       = "images.edit"
	MethodImagesGallery    = "images.gallery"
	MethodSettings         = "settings"
	MethodSettingsUpdate   = "settings.update"
	MethodSettingsReload   = "settings.reload"
)

const (
	NotificationProfileUpdated    = "profile.updated"
	NotificationEntitlementDenied = "entitlement.denied"
	NotificationPlaybackState     = "playback.state"
	NotificationPlaybackProgress  = "playback.progress"
	NotificationChatMessage       = "chat.message"
	NotificationModeChanged       = "mode.changed"
)

const (
	ModeChat    = "chat"
	ModeImage   = "image"
	ModeUpgrade = "upgrade"
)

type Notification struct {
	Method string
	Params json.RawMessage
}

type RequestObject struct {
	ID      *RPCID          `json:"id,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type ErrorObject struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type ResponseObject struct {
	Result  any          `json:"result"`
	Error   *ErrorObject `json:"error,omitempty"`
	JSONRPC string       `json:"jsonrpc"`
	ID      RPCID        `json:"id"`
}

// ResponseErrorObject exists for sending errors, so we can omit result from
// the response, but so nil responses are still returned when using the main
// ResponseObject.
type ResponseErrorObject struct {
	Error   *ErrorObject `json:"error"`
	JSONRPC string       `json:"jsonrpc"`
	ID      RPCID        `json:"id"`
}
