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
	"fmt"
	"strings"
	"time"

	"github.com/refugium/companion-core/pkg/audio"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/sethvargo/go-retry"
)

const (
	openAIMaxRetries = 2
	openAIRetryDelay = 500 * time.Millisecond
)

// openAIClient is the part of the go-openai client used here.
type openAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

type OpenAIOptions struct {
	TextModel   string
	SpeechModel string
	Voice       string
	// RetryDelay overrides the constant backoff between attempts.
	RetryDelay time.Duration
}

// OpenAI generates dialogue and speech through the OpenAI API. It cannot
// edit images.
type OpenAI struct {
	client openAIClient
	opts   OpenAIOptions
}

func NewOpenAI(apiKey string, opts OpenAIOptions) *OpenAI {
	return newOpenAI(openai.NewClient(apiKey), opts)
}

func newOpenAI(client openAIClient, opts OpenAIOptions) *OpenAI {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = openAIRetryDelay
	}
	return &OpenAI{client: client, opts: opts}
}

// complete runs a JSON-mode chat completion, retrying transport errors and
// empty choices.
func (o *OpenAI) complete(ctx context.Context, msgs []openai.ChatCompletionMessage) (string, error) {
	var content string
	backoff := retry.WithMaxRetries(openAIMaxRetries, retry.NewConstant(o.opts.RetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    o.opts.TextModel,
			Messages: msgs,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Temperature: 0.9,
		})
		if err != nil {
			log.Debug().Err(err).Msg("generation: chat completion attempt failed")
			return retry.RetryableError(err)
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return retry.RetryableError(ErrEmptyResult)
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	return content, nil
}

func (o *OpenAI) Dialogue(
	ctx context.Context,
	history []Message,
	memories []string,
	persona Persona,
) (Reply, error) {
	text, err := o.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemInstruction(memories, persona)},
		{Role: openai.ChatMessageRoleUser, Content: dialoguePrompt(history)},
	})
	if err != nil {
		log.Error().Err(err).Msg("generation: dialogue request failed")
		return FallbackReply, err
	}
	reply, err := parseReply(text)
	if err != nil {
		log.Error().Err(err).Msg("generation: invalid dialogue response")
	}
	return reply, err
}

func (o *OpenAI) Suggestions(ctx context.Context, history []Message) ([]string, error) {
	text, err := o.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: suggestionsPrompt(history)},
	})
	if err != nil {
		log.Error().Err(err).Msg("generation: suggestions request failed")
		return FallbackSuggestions(), err
	}
	out, err := parseSuggestions(text)
	if err != nil {
		log.Error().Err(err).Msg("generation: invalid suggestions response")
	}
	return out, err
}

func (o *OpenAI) Speech(ctx context.Context, text string) (*audio.Buffer, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResult
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.opts.SpeechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(o.opts.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		log.Error().Err(err).Msg("generation: speech request failed")
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("generation: failed to close speech response")
		}
	}()

	buf, err := audio.Decode(resp, "mp3")
	if err != nil {
		return nil, fmt.Errorf("failed to decode speech: %w", err)
	}
	return buf, nil
}

func (*OpenAI) EditImage(context.Context, []byte, string, string) (string, error) {
	return "", ErrUnsupported
}
