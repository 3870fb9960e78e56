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

package mocks

import (
	"context"

	"github.com/refugium/companion-core/pkg/audio"
	"github.com/refugium/companion-core/pkg/generation"
	"github.com/stretchr/testify/mock"
)

// MockGenerator is a testify mock of generation.Generator.
type MockGenerator struct {
	mock.Mock
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (m *MockGenerator) Dialogue(
	ctx context.Context,
	history []generation.Message,
	memories []string,
	persona generation.Persona,
) (generation.Reply, error) {
	args := m.Called(ctx, history, memories, persona)
	reply, _ := args.Get(0).(generation.Reply)
	return reply, args.Error(1) //nolint:wrapcheck // mock passthrough
}

func (m *MockGenerator) Speech(ctx context.Context, text string) (*audio.Buffer, error) {
	args := m.Called(ctx, text)
	buf, _ := args.Get(0).(*audio.Buffer)
	return buf, args.Error(1) //nolint:wrapcheck // mock passthrough
}

func (m *MockGenerator) EditImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	args := m.Called(ctx, image, mimeType, prompt)
	return args.String(0), args.Error(1) //nolint:wrapcheck // mock passthrough
}

func (m *MockGenerator) Suggestions(ctx context.Context, history []generation.Message) ([]string, error) {
	args := m.Called(ctx, history)
	out, _ := args.Get(0).([]string)
	return out, args.Error(1) //nolint:wrapcheck // mock passthrough
}

// SetupReply makes every Dialogue call return reply.
func (m *MockGenerator) SetupReply(reply generation.Reply) *mock.Call {
	return m.On("Dialogue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(reply, nil)
}

// SpeechBuffer is a one second silent clip at the speech sample rate.
func SpeechBuffer() *audio.Buffer {
	return &audio.Buffer{
		Samples:    make([]float32, generation.SpeechSampleRate),
		SampleRate: generation.SpeechSampleRate,
	}
}
