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

// Package generation talks to the generative AI backends that write the
// companion's replies, voice her lines and transform images.
//
// Every backend degrades instead of failing: a broken dialogue call yields
// FallbackReply, broken suggestions yield FallbackSuggestions, and speech or
// image failures yield a nil result alongside the error.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/refugium/companion-core/pkg/audio"
	"github.com/refugium/companion-core/pkg/config"
)

var (
	ErrUnsupported = errors.New("operation not supported by generation backend")
	ErrEmptyResult = errors.New("generation returned no result")
	ErrNoAPIKey    = errors.New("generation api key is not set")
)

const (
	RoleUser      = "user"
	RoleCompanion = "companion"
	RoleSystem    = "system"

	// suggestionContext is how many recent messages the flirt coach sees.
	suggestionContext = 5
	suggestionCount   = 3
)

type Message struct {
	Role    string
	Content string
}

type Persona struct {
	Name  string
	Trait string
}

// Reply is one structured companion turn.
type Reply struct {
	Emotion  string `json:"emotion"`
	Sensory  string `json:"sensory"`
	Dialogue string `json:"dialogue"`
}

func (r Reply) valid() bool {
	return strings.TrimSpace(r.Dialogue) != ""
}

var FallbackReply = Reply{
	Emotion:  "Ich bin etwas verwirrt.",
	Sensory:  "Ich blinzle kurz.",
	Dialogue: "Entschuldige, ich habe den Faden verloren. Kannst du das wiederholen?",
}

// FallbackSuggestions returns a fresh copy of the canned suggestions.
func FallbackSuggestions() []string {
	return []string{"Erzähl mir mehr...", "Du bist süß.", "Was fühlst du?"}
}

type Generator interface {
	// Dialogue always returns a usable reply. The error reports why the
	// fallback was used.
	Dialogue(ctx context.Context, history []Message, memories []string, persona Persona) (Reply, error)
	Speech(ctx context.Context, text string) (*audio.Buffer, error)
	// EditImage returns the transformed image as a data URI.
	EditImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
	Suggestions(ctx context.Context, history []Message) ([]string, error)
}

// New builds the generator for the configured provider.
func New(ctx context.Context, cfg *config.Instance) (Generator, error) {
	key := cfg.GenerationAPIKey()
	if key == "" {
		return nil, ErrNoAPIKey
	}
	switch cfg.GenerationProvider() {
	case config.ProviderOpenAI:
		return NewOpenAI(key, OpenAIOptions{
			TextModel:   cfg.TextModel(),
			SpeechModel: cfg.SpeechModel(),
			Voice:       cfg.Voice(),
		}), nil
	default:
		return NewGemini(ctx, key, GeminiOptions{
			TextModel:   cfg.TextModel(),
			SpeechModel: cfg.SpeechModel(),
			ImageModel:  cfg.ImageModel(),
			Voice:       cfg.Voice(),
		})
	}
}

// cleanJSON strips a markdown code fence models sometimes wrap JSON in.
func cleanJSON(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func parseReply(text string) (Reply, error) {
	var r Reply
	if err := json.Unmarshal([]byte(cleanJSON(text)), &r); err != nil {
		return FallbackReply, fmt.Errorf("failed to parse reply: %w", err)
	}
	if !r.valid() {
		return FallbackReply, ErrEmptyResult
	}
	return r, nil
}

func parseSuggestions(text string) ([]string, error) {
	var payload struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &payload); err != nil {
		return FallbackSuggestions(), fmt.Errorf("failed to parse suggestions: %w", err)
	}
	out := make([]string, 0, len(payload.Suggestions))
	for _, s := range payload.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > suggestionCount {
		out = out[:suggestionCount]
	}
	return out, nil
}
