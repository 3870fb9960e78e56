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
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpenAI struct {
	speechErr error
	lastReq   openai.ChatCompletionRequest
	speechReq openai.CreateSpeechRequest
	results   []chatResult
	calls     int
}

type chatResult struct {
	err     error
	content string
}

func (f *fakeOpenAI) CreateChatCompletion(
	_ context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	i := min(f.calls, len(f.results)-1)
	f.calls++
	r := f.results[i]
	if r.err != nil {
		return openai.ChatCompletionResponse{}, r.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: r.content},
		}},
	}, nil
}

func (f *fakeOpenAI) CreateSpeech(_ context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error) {
	f.speechReq = req
	if f.speechErr != nil {
		return openai.RawResponse{}, f.speechErr
	}
	return openai.RawResponse{ReadCloser: io.NopCloser(strings.NewReader("not an mp3"))}, nil
}

var testOpenAIOpts = OpenAIOptions{
	TextModel:   "gpt-test",
	SpeechModel: "tts-1",
	Voice:       "nova",
	RetryDelay:  time.Millisecond,
}

func TestOpenAI_DialogueRetries(t *testing.T) {
	t.Parallel()
	f := &fakeOpenAI{results: []chatResult{
		{err: errors.New("502")},
		{content: ""},
		{content: `{"emotion":"e","sensory":"s","dialogue":"d"}`},
	}}
	o := newOpenAI(f, testOpenAIOpts)

	r, err := o.Dialogue(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, Persona{})
	require.NoError(t, err)
	assert.Equal(t, "d", r.Dialogue)
	assert.Equal(t, 3, f.calls)
	assert.Equal(t, "gpt-test", f.lastReq.Model)
	require.NotNil(t, f.lastReq.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, f.lastReq.ResponseFormat.Type)
	assert.Equal(t, openai.ChatMessageRoleSystem, f.lastReq.Messages[0].Role)
}

func TestOpenAI_DialogueGivesUp(t *testing.T) {
	t.Parallel()
	f := &fakeOpenAI{results: []chatResult{{err: errors.New("down")}}}
	o := newOpenAI(f, testOpenAIOpts)

	r, err := o.Dialogue(context.Background(), nil, nil, Persona{})
	require.Error(t, err)
	assert.Equal(t, FallbackReply, r)
	assert.Equal(t, openAIMaxRetries+1, f.calls)
}

func TestOpenAI_Suggestions(t *testing.T) {
	t.Parallel()
	f := &fakeOpenAI{results: []chatResult{{content: `{"suggestions":["a","b"]}`}}}
	out, err := newOpenAI(f, testOpenAIOpts).Suggestions(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)

	f = &fakeOpenAI{results: []chatResult{{err: errors.New("down")}}}
	out, err = newOpenAI(f, testOpenAIOpts).Suggestions(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, FallbackSuggestions(), out)
}

func TestOpenAI_Speech(t *testing.T) {
	t.Parallel()

	f := &fakeOpenAI{speechErr: errors.New("denied")}
	buf, err := newOpenAI(f, testOpenAIOpts).Speech(context.Background(), "Hallo")
	require.Error(t, err)
	assert.Nil(t, buf)
	assert.Equal(t, openai.SpeechVoice("nova"), f.speechReq.Voice)
	assert.Equal(t, openai.SpeechResponseFormatMp3, f.speechReq.ResponseFormat)

	f = &fakeOpenAI{}
	buf, err = newOpenAI(f, testOpenAIOpts).Speech(context.Background(), "Hallo")
	require.Error(t, err, "garbage must not decode")
	assert.Nil(t, buf)

	_, err = newOpenAI(f, testOpenAIOpts).Speech(context.Background(), " ")
	require.ErrorIs(t, err, ErrEmptyResult)
}

func TestOpenAI_EditImageUnsupported(t *testing.T) {
	t.Parallel()
	_, err := newOpenAI(&fakeOpenAI{}, testOpenAIOpts).EditImage(context.Background(), []byte{1}, "image/png", "x")
	require.ErrorIs(t, err, ErrUnsupported)
}
