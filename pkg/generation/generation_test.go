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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: ` {"a":1} `, want: `{"a":1}`},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "unterminated fence", in: "```json {\"a\":1}", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestParseReply(t *testing.T) {
	t.Parallel()

	r, err := parseReply("```json\n{\"emotion\":\"froh\",\"sensory\":\"warm\",\"dialogue\":\"Hallo\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, Reply{Emotion: "froh", Sensory: "warm", Dialogue: "Hallo"}, r)

	r, err = parseReply("not json")
	require.Error(t, err)
	assert.Equal(t, FallbackReply, r)

	r, err = parseReply(`{"emotion":"x","sensory":"y","dialogue":"  "}`)
	require.ErrorIs(t, err, ErrEmptyResult)
	assert.Equal(t, FallbackReply, r)
}

func TestParseSuggestions(t *testing.T) {
	t.Parallel()

	out, err := parseSuggestions(`{"suggestions":["a"," ","b","c","d"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, out)

	out, err = parseSuggestions(`{"suggestions":`)
	require.Error(t, err)
	assert.Equal(t, FallbackSuggestions(), out)
}

func TestFallbackSuggestions_IsCopy(t *testing.T) {
	t.Parallel()
	a := FallbackSuggestions()
	a[0] = "changed"
	assert.Equal(t, "Erzähl mir mehr...", FallbackSuggestions()[0])
}

func TestSuggestionsPrompt_LastFive(t *testing.T) {
	t.Parallel()

	history := make([]Message, 0, 7)
	for i := range 7 {
		role := RoleUser
		if i%2 == 1 {
			role = RoleCompanion
		}
		history = append(history, Message{Role: role, Content: string(rune('a' + i))})
	}

	p := suggestionsPrompt(history)
	assert.NotContains(t, p, "User: a\n")
	assert.NotContains(t, p, "Marina: b\n")
	assert.Contains(t, p, "User: c\n")
	assert.Contains(t, p, "User: g")
	assert.Equal(t, 5, strings.Count(p, ": "))
}

func TestSystemInstruction(t *testing.T) {
	t.Parallel()
	s := systemInstruction([]string{"mag Jazz"}, Persona{Name: "Lena", Trait: "verspielt"})
	assert.Contains(t, s, "Du bist Lena, eine sanfte, verspielt,")
	assert.Contains(t, s, "- mag Jazz\n")
}

func TestConversation(t *testing.T) {
	t.Parallel()
	got := conversation([]Message{
		{Role: RoleUser, Content: "Hallo"},
		{Role: RoleCompanion, Content: "Hi"},
	})
	assert.Equal(t, "USER: Hallo\nCOMPANION: Hi", got)
}

func TestOffline_Degrades(t *testing.T) {
	t.Parallel()

	var g Generator = Offline{}
	ctx := context.Background()

	reply, err := g.Dialogue(ctx, nil, nil, Persona{})
	require.ErrorIs(t, err, ErrNoAPIKey)
	assert.Equal(t, FallbackReply, reply)

	buf, err := g.Speech(ctx, "hallo")
	require.ErrorIs(t, err, ErrNoAPIKey)
	assert.Nil(t, buf)

	uri, err := g.EditImage(ctx, []byte("x"), "image/png", "p")
	require.ErrorIs(t, err, ErrNoAPIKey)
	assert.Empty(t, uri)

	out, err := g.Suggestions(ctx, nil)
	require.ErrorIs(t, err, ErrNoAPIKey)
	assert.Equal(t, FallbackSuggestions(), out)
}
