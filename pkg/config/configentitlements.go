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

import (
	"fmt"
	"time"
)

const (
	DefaultStartingTokens = 5
	DefaultTrialDays      = 3
)

// Entitlements configures the free allowance given to new profiles.
type Entitlements struct {
	StartingTokens *int `toml:"starting_tokens,omitempty"`
	TrialDays      *int `toml:"trial_days,omitempty"`
	// TokenPacks lists the token amounts offered by the upgrade screen.
	TokenPacks []int `toml:"token_packs,omitempty"`
}

// StartingTokens returns the token balance given to a brand new profile.
func (c *Instance) StartingTokens() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Entitlements.StartingTokens == nil || *c.vals.Entitlements.StartingTokens < 0 {
		return DefaultStartingTokens
	}
	return *c.vals.Entitlements.StartingTokens
}

// TrialDuration returns the length of the free trial window. Defaults to
// 3 days.
func (c *Instance) TrialDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	days := DefaultTrialDays
	if c.vals.Entitlements.TrialDays != nil && *c.vals.Entitlements.TrialDays > 0 {
		days = *c.vals.Entitlements.TrialDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// TokenPacks returns the purchasable token amounts, 10 and 50 by default.
func (c *Instance) TokenPacks() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.vals.Entitlements.TokenPacks) == 0 {
		return []int{10, 50}
	}
	packs := make([]int, 0, len(c.vals.Entitlements.TokenPacks))
	for _, p := range c.vals.Entitlements.TokenPacks {
		if p > 0 {
			packs = append(packs, p)
		}
	}
	return packs
}

func (c *Instance) SetStartingTokens(n int) error {
	if n < 0 {
		return fmt.Errorf("starting tokens must not be negative: %d", n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Entitlements.StartingTokens = &n
	return nil
}
