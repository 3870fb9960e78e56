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

// Package identity resolves the user id the service acts on behalf of.
package identity

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/refugium/companion-core/pkg/config"
)

// LocalUserID is the fixed user of the in-memory store.
const LocalUserID = "mock-user-123"

var ErrNoDeviceID = errors.New("device id is not set")

// namespace scopes device-derived ids so they never collide with the raw
// device id published elsewhere.
var namespace = uuid.MustParse("6f1c7a4e-2b8d-4c59-9a77-3e0d5c1b8f42")

type Identity struct {
	UserID    string `json:"userId"`
	Anonymous bool   `json:"anonymous"`
	Local     bool   `json:"local"`
}

// FromDevice derives a stable anonymous identity from the device id.
func FromDevice(deviceID string) (Identity, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return Identity{}, ErrNoDeviceID
	}
	id := uuid.NewSHA1(namespace, []byte(deviceID))
	return Identity{
		UserID:    "device-" + id.String(),
		Anonymous: true,
	}, nil
}

func Local() Identity {
	return Identity{
		UserID:    LocalUserID,
		Anonymous: true,
		Local:     true,
	}
}

// Resolve picks the identity for the configured mode. A device identity
// that can't be derived falls back to the local user.
func Resolve(cfg *config.Instance) (Identity, error) {
	if cfg.IdentityMode() == config.IdentityLocal {
		return Local(), nil
	}
	id, err := FromDevice(cfg.DeviceID())
	if err != nil {
		return Local(), err
	}
	return id, nil
}
