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

package generation

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/refugium/companion-core/pkg/audio"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// SpeechSampleRate is the rate of the raw PCM returned by Gemini TTS.
const SpeechSampleRate = 24000

// contentGenerator is the part of the genai client used here.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

type GeminiOptions struct {
	TextModel   string
	SpeechModel string
	ImageModel  string
	Voice       string
}

type Gemini struct {
	models contentGenerator
	opts   GeminiOptions
}

func NewGemini(ctx context.Context, apiKey string, opts GeminiOptions) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newGemini(client.Models, opts), nil
}

func newGemini(models contentGenerator, opts GeminiOptions) *Gemini {
	return &Gemini{models: models, opts: opts}
}

func userText(text string) []*genai.Content {
	return []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: text}},
	}}
}

var replySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"emotion":  {Type: genai.TypeString},
		"sensory":  {Type: genai.TypeString},
		"dialogue": {Type: genai.TypeString},
	},
	Required: []string{"emotion", "sensory", "dialogue"},
}

var suggestionsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"suggestions": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
}

func (g *Gemini) Dialogue(
	ctx context.Context,
	history []Message,
	memories []string,
	persona Persona,
) (Reply, error) {
	resp, err := g.models.GenerateContent(ctx, g.opts.TextModel, userText(dialoguePrompt(history)),
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: systemInstruction(memories, persona)}},
			},
			ResponseMIMEType: "application/json",
			ResponseSchema:   replySchema,
		})
	if err != nil {
		log.Error().Err(err).Msg("generation: dialogue request failed")
		return FallbackReply, fmt.Errorf("dialogue request failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		log.Warn().Msg("generation: dialogue returned no text")
		return FallbackReply, ErrEmptyResult
	}

	reply, err := parseReply(text)
	if err != nil {
		log.Error().Err(err).Msg("generation: invalid dialogue response")
	}
	return reply, err
}

func (g *Gemini) Speech(ctx context.Context, text string) (*audio.Buffer, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResult
	}

	resp, err := g.models.GenerateContent(ctx, g.opts.SpeechModel, userText(speechPrompt(text)),
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
						VoiceName: g.opts.Voice,
					},
				},
			},
		})
	if err != nil {
		log.Error().Err(err).Msg("generation: speech request failed")
		return nil, fmt.Errorf("speech request failed: %w", err)
	}

	blob := firstInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, ErrEmptyResult
	}

	buf, err := audio.DecodePCM16(blob.Data, SpeechSampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to decode speech: %w", err)
	}
	log.Debug().Dur("duration", buf.Duration()).Msg("generation: speech ready")
	return buf, nil
}

func (g *Gemini) EditImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyResult
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: imagePrompt(prompt)},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		},
	}}
	resp, err := g.models.GenerateContent(ctx, g.opts.ImageModel, contents, nil)
	if err != nil {
		log.Error().Err(err).Msg("generation: image request failed")
		return "", fmt.Errorf("image request failed: %w", err)
	}

	blob := firstInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return "", ErrEmptyResult
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(blob.Data), nil
}

func (g *Gemini) Suggestions(ctx context.Context, history []Message) ([]string, error) {
	resp, err := g.models.GenerateContent(ctx, g.opts.TextModel, userText(suggestionsPrompt(history)),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   suggestionsSchema,
		})
	if err != nil {
		log.Error().Err(err).Msg("generation: suggestions request failed")
		return FallbackSuggestions(), fmt.Errorf("suggestions request failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}
	out, err := parseSuggestions(text)
	if err != nil {
		log.Error().Err(err).Msg("generation: invalid suggestions response")
	}
	return out, err
}

func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return nil
	}
	for _, p := range c.Content.Parts {
		if p != nil && p.InlineData != nil {
			return p.InlineData
		}
	}
	return nil
}
