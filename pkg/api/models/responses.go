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

import "time"

type VersionResponse struct {
	Version string `json:"version"`
}

type TrialResponse struct {
	Active        bool `json:"active"`
	DaysRemaining int  `json:"daysRemaining"`
}

type ProfileResponse struct {
	TrialStartedAt       *time.Time    `json:"trialStartedAt,omitempty"`
	UserID               string        `json:"userId"`
	Name                 string        `json:"name"`
	Trait                string        `json:"trait"`
	Mode                 string        `json:"mode"`
	Trial                TrialResponse `json:"trial"`
	TokenBalance         int           `json:"tokenBalance"`
	ImageGenerationCount int           `json:"imageGenerationCount"`
	IsPremium            bool          `json:"isPremium"`
	Anonymous            bool          `json:"anonymous"`
	CanPerformAction     bool          `json:"canPerformAction"`
}

type ModeResponse struct {
	Mode string `json:"mode"`
}

type EntitlementDeniedResponse struct {
	Action        string `json:"action"`
	Reason        string `json:"reason"`
	SuggestedMode string `json:"suggestedMode"`
}

type ChatMessage struct {
	Time    time.Time `json:"time"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Emotion string    `json:"emotion,omitempty"`
	Sensory string    `json:"sensory,omitempty"`
	Index   int       `json:"index"`
}

type ChatSendResponse struct {
	Message *ChatMessage `json:"message,omitempty"`
	// Denied is set when the turn was refused for lack of tokens.
	Denied bool `json:"denied"`
	// Stale is set when a newer message superseded this one.
	Stale bool `json:"stale"`
}

type ChatHistoryResponse struct {
	Messages []ChatMessage `json:"messages"`
}

type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

type PlaybackStatusResponse struct {
	State    string  `json:"state"`
	Index    *int    `json:"index,omitempty"`
	Progress float64 `json:"progress"`
	Duration float64 `json:"duration"`
}

type ImagesEditResponse struct {
	DataURI string `json:"dataUri,omitempty"`
	Path    string `json:"path,omitempty"`
	Denied  bool   `json:"denied"`
}

type ImagesGalleryResponse struct {
	Images []string `json:"images"`
}

type SettingsResponse struct {
	PlaybackPollInterval string `json:"playbackPollInterval"`
	PlaybackOutput       string `json:"playbackOutput"`
	Provider             string `json:"provider"`
	Voice                string `json:"voice"`
	StoreBackend         string `json:"storeBackend"`
	TokenPacks           []int  `json:"tokenPacks"`
	StartingTokens       int    `json:"startingTokens"`
	DebugLogging         bool   `json:"debugLogging"`
	ErrorReporting       bool   `json:"errorReporting"`
}
