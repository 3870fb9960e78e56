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
	"os"
	"slices"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	GeminiKeyEnv = "GEMINI_API_KEY"
	OpenAIKeyEnv = "OPENAI_API_KEY"

	DefaultGeminiTextModel   = "gemini-3-flash-preview"
	DefaultGeminiSpeechModel = "gemini-2.5-flash-preview-tts"
	DefaultGeminiImageModel  = "gemini-2.5-flash-image"
	DefaultGeminiVoice       = "Kore"

	DefaultOpenAITextModel   = "gpt-4o"
	DefaultOpenAISpeechModel = "tts-1"
	DefaultOpenAIVoice       = "nova"
)

// GeminiVoices are the prebuilt voices accepted for speech generation.
var GeminiVoices = []string{"Puck", "Charon", "Kore", "Fenrir", "Zephyr"}

// Generation configures the generative AI backend.
type Generation struct {
	Provider    string `toml:"provider,omitempty"`
	APIKey      string `toml:"api_key,omitempty"`
	TextModel   string `toml:"text_model,omitempty"`
	SpeechModel string `toml:"speech_model,omitempty"`
	ImageModel  string `toml:"image_model,omitempty"`
	Voice       string `toml:"voice,omitempty"`
}

func (c *Instance) GenerationProvider() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Generation.Provider == ProviderOpenAI {
		return ProviderOpenAI
	}
	return ProviderGemini
}

// GenerationAPIKey returns the API key for the active provider. The
// provider's env var takes priority over the config file.
func (c *Instance) GenerationAPIKey() string {
	env := GeminiKeyEnv
	if c.GenerationProvider() == ProviderOpenAI {
		env = OpenAIKeyEnv
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Generation.APIKey
}

func (c *Instance) TextModel() string {
	provider := c.GenerationProvider()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Generation.TextModel != "" {
		return c.vals.Generation.TextModel
	}
	if provider == ProviderOpenAI {
		return DefaultOpenAITextModel
	}
	return DefaultGeminiTextModel
}

func (c *Instance) SpeechModel() string {
	provider := c.GenerationProvider()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Generation.SpeechModel != "" {
		return c.vals.Generation.SpeechModel
	}
	if provider == ProviderOpenAI {
		return DefaultOpenAISpeechModel
	}
	return DefaultGeminiSpeechModel
}

func (c *Instance) ImageModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Generation.ImageModel != "" {
		return c.vals.Generation.ImageModel
	}
	return DefaultGeminiImageModel
}

// Voice returns the configured speech voice. Unknown Gemini voices fall
// back to Kore.
func (c *Instance) Voice() string {
	provider := c.GenerationProvider()
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := c.vals.Generation.Voice
	if provider == ProviderOpenAI {
		if v == "" {
			return DefaultOpenAIVoice
		}
		return v
	}
	if !slices.Contains(GeminiVoices, v) {
		return DefaultGeminiVoice
	}
	return v
}

// SetVoice sets the speech voice, rejecting names the Gemini backend
// doesn't know about.
func (c *Instance) SetVoice(voice string) error {
	if c.GenerationProvider() == ProviderGemini && !slices.Contains(GeminiVoices, voice) {
		return fmt.Errorf("unknown voice: %s", voice)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Generation.Voice = voice
	return nil
}
