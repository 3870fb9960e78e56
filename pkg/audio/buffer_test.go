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

package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePCM16(t *testing.T) {
	t.Parallel()

	// 0, max, min, -1
	data := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80, 0xFF, 0xFF}
	buf, err := DecodePCM16(data, 24000)
	require.NoError(t, err)

	require.Len(t, buf.Samples, 4)
	assert.Equal(t, 24000, buf.SampleRate)
	assert.InDelta(t, 0.0, buf.Samples[0], 1e-6)
	assert.InDelta(t, 1.0, buf.Samples[1], 1e-6)
	assert.InDelta(t, -1.0, buf.Samples[2], 1e-4)
	assert.Less(t, buf.Samples[3], float32(0))
}

func TestDecodePCM16_Invalid(t *testing.T) {
	t.Parallel()

	_, err := DecodePCM16(nil, 24000)
	require.ErrorIs(t, err, ErrEmptyBuffer)

	_, err = DecodePCM16([]byte{0x01, 0x02, 0x03}, 24000)
	require.ErrorIs(t, err, ErrOddPCM)

	_, err = DecodePCM16([]byte{0x01, 0x02}, 0)
	require.Error(t, err)
}

func TestBufferDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		buf  *Buffer
		name string
		want time.Duration
	}{
		{name: "nil buffer", buf: nil, want: 0},
		{name: "zero rate", buf: &Buffer{Samples: make([]float32, 10)}, want: 0},
		{name: "two seconds", buf: &Buffer{Samples: make([]float32, 48000), SampleRate: 24000}, want: 2 * time.Second},
		{name: "partial second", buf: &Buffer{Samples: make([]float32, 12000), SampleRate: 24000}, want: 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.buf.Duration())
		})
	}
}

func TestBufferFrameAt(t *testing.T) {
	t.Parallel()

	buf := &Buffer{Samples: make([]float32, 1000), SampleRate: 100}

	assert.Equal(t, 0, buf.FrameAt(-time.Second))
	assert.Equal(t, 0, buf.FrameAt(0))
	assert.Equal(t, 350, buf.FrameAt(3500*time.Millisecond))
	assert.Equal(t, 1000, buf.FrameAt(time.Minute))
}

func TestBufferStreamer(t *testing.T) {
	t.Parallel()

	buf := &Buffer{Samples: []float32{0.1, 0.2, 0.3, 0.4}, SampleRate: 2}
	s := buf.Streamer(time.Second)

	out := make([][2]float64, 8)
	n, ok := s.Stream(out)
	require.True(t, ok)
	require.Equal(t, 2, n)
	assert.InDelta(t, 0.3, out[0][0], 1e-6)
	assert.InDelta(t, 0.3, out[0][1], 1e-6)
	assert.InDelta(t, 0.4, out[1][1], 1e-6)

	n, ok = s.Stream(out)
	assert.False(t, ok)
	assert.Equal(t, 0, n)
	assert.NoError(t, s.Err())
}

func TestEncodeWAVThenDecode(t *testing.T) {
	t.Parallel()

	src := &Buffer{SampleRate: 8000, Samples: make([]float32, 800)}
	for i := range src.Samples {
		src.Samples[i] = float32(i%100)/100 - 0.5
	}

	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, EncodeWAV(f, src))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	got, err := Decode(bytes.NewReader(data), ".wav")
	require.NoError(t, err)
	assert.Equal(t, src.SampleRate, got.SampleRate)
	require.Len(t, got.Samples, len(src.Samples))
	assert.InDelta(t, src.Samples[42], got.Samples[42], 1e-3)
	assert.Equal(t, src.Duration(), got.Duration())
}

func TestEncodeWAV_Empty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	require.ErrorIs(t, EncodeWAV(f, &Buffer{SampleRate: 8000}), ErrEmptyBuffer)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	_, err := Decode(bytes.NewReader([]byte("data")), ".aac")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported audio format")

	_, err = Decode(bytes.NewReader([]byte("not a wav file")), "wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode audio stream")
}
