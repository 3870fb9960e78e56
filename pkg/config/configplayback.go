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
	OutputMalgo = "malgo"
	OutputNull  = "null"

	DefaultPollInterval        = 100 * time.Millisecond
	DefaultCompletionTolerance = 100 * time.Millisecond
)

// Playback configures the speech playback tracker.
type Playback struct {
	PollInterval        string `toml:"poll_interval,omitempty"`
	CompletionTolerance string `toml:"completion_tolerance,omitempty"`
	Output              string `toml:"output,omitempty"`
}

// PlaybackPollInterval returns how often progress is recomputed while
// playing. Falls back to 100ms if unset or invalid.
func (c *Instance) PlaybackPollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parsePositiveDuration(c.vals.Playback.PollInterval, DefaultPollInterval)
}

// PlaybackCompletionTolerance returns how close to the end of a buffer the
// elapsed time must be for playback to count as finished.
func (c *Instance) PlaybackCompletionTolerance() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parsePositiveDuration(c.vals.Playback.CompletionTolerance, DefaultCompletionTolerance)
}

// PlaybackOutput returns the audio output backend name.
func (c *Instance) PlaybackOutput() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.vals.Playback.Output {
	case OutputNull:
		return OutputNull
	default:
		return OutputMalgo
	}
}

// SetPlaybackPollInterval sets the progress poll interval from a duration
// string such as "100ms".
func (c *Instance) SetPlaybackPollInterval(interval string) error {
	d, err := time.ParseDuration(interval)
	if err != nil {
		return fmt.Errorf("invalid poll interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("poll interval must be positive: %s", interval)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Playback.PollInterval = interval
	return nil
}

func (c *Instance) SetPlaybackOutput(output string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Playback.Output = output
}

func parsePositiveDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
