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

package config

const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"

	IdentityDevice = "device"
	IdentityLocal  = "local"
)

// Store selects where profiles and chat history are persisted.
type Store struct {
	Backend  string `toml:"backend,omitempty"`
	Identity string `toml:"identity,omitempty"`
}

// StoreBackend returns the profile store backend. Anything other than
// "memory" uses the SQLite user database.
func (c *Instance) StoreBackend() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Store.Backend == StoreMemory {
		return StoreMemory
	}
	return StoreSQLite
}

// IdentityMode returns how the user id is derived. The in-memory store
// always runs with a local identity.
func (c *Instance) IdentityMode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Store.Backend == StoreMemory || c.vals.Store.Identity == IdentityLocal {
		return IdentityLocal
	}
	return IdentityDevice
}
