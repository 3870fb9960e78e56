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

package notifications

import (
	"encoding/json"

	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/rs/zerolog/log"
)

// sendNotification marshals the payload and sends without blocking. A full
// channel drops the notification rather than stalling the caller.
func sendNotification(ns chan<- models.Notification, method string, payload any) {
	var params json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("method", method).Msg("error marshalling notification params")
			return
		}
		params = data
	}

	select {
	case ns <- models.Notification{Method: method, Params: params}:
	default:
		log.Warn().Str("method", method).Msg("notification channel full, dropping notification")
	}
}

func ProfileUpdated(ns chan<- models.Notification, payload models.ProfileResponse) {
	sendNotification(ns, models.NotificationProfileUpdated, payload)
}

func EntitlementDenied(ns chan<- models.Notification, payload models.EntitlementDeniedResponse) {
	sendNotification(ns, models.NotificationEntitlementDenied, payload)
}

func ModeChanged(ns chan<- models.Notification, payload models.ModeResponse) {
	sendNotification(ns, models.NotificationModeChanged, payload)
}

func PlaybackState(ns chan<- models.Notification, payload models.PlaybackStatusResponse) {
	sendNotification(ns, models.NotificationPlaybackState, payload)
}

func PlaybackProgress(ns chan<- models.Notification, payload models.PlaybackStatusResponse) {
	sendNotification(ns, models.NotificationPlaybackProgress, payload)
}

func ChatMessage(ns chan<- models.Notification, payload models.ChatMessage) {
	sendNotification(ns, models.NotificationChatMessage, payload)
}
