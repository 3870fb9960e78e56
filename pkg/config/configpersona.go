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
	DefaultPersonaName  = "Marina"
	DefaultPersonaTrait = "kultiviert & verlockend"
	// NewProfileTrait is stamped on profiles created in a durable store.
	NewProfileTrait = "sanft"
)

// DefaultMemories are the long-term memories fed to dialogue generation
// when none are configured.
var DefaultMemories = []string{
	"Der Nutzer schätzt tiefgründige, intellektuelle Gespräche.",
	"Der Nutzer liebt das Gefühl von Exklusivität und Nähe.",
}

// Persona configures the companion character.
type Persona struct {
	Name     string   `toml:"name,omitempty"`
	Trait    string   `toml:"trait,omitempty"`
	Memories []string `toml:"memories,omitempty,multiline"`
}

func (c *Instance) PersonaName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Persona.Name == "" {
		return DefaultPersonaName
	}
	return c.vals.Persona.Name
}

func (c *Instance) PersonaTrait() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Persona.Trait == "" {
		return DefaultPersonaTrait
	}
	return c.vals.Persona.Trait
}

// Memories returns a copy of the configured long-term memories.
func (c *Instance) Memories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.vals.Persona.Memories
	if len(src) == 0 {
		src = DefaultMemories
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
