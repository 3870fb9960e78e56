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

// Package audio holds decoded speech buffers and the device outputs that
// render them.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyBuffer = errors.New("audio buffer is empty")
	ErrOddPCM      = errors.New("pcm16 data has an odd number of bytes")
)

// Buffer is an immutable decoded mono clip.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration is the playing time of the whole buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// FrameAt converts an offset into a sample index, clamped to the buffer.
func (b *Buffer) FrameAt(offset time.Duration) int {
	if b == nil || offset <= 0 {
		return 0
	}
	frame := int(offset * time.Duration(b.SampleRate) / time.Second)
	if frame > len(b.Samples) {
		return len(b.Samples)
	}
	return frame
}

// Streamer returns a beep streamer over the buffer starting at offset. The
// mono signal is copied to both channels.
func (b *Buffer) Streamer(offset time.Duration) beep.Streamer {
	return &bufferStreamer{buf: b, pos: b.FrameAt(offset)}
}

func (b *Buffer) format() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(b.SampleRate),
		NumChannels: 1,
		Precision:   2,
	}
}

type bufferStreamer struct {
	buf *Buffer
	pos int
}

func (s *bufferStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= len(s.buf.Samples) {
		return 0, false
	}
	n := copy2(samples, s.buf.Samples[s.pos:])
	s.pos += n
	return n, true
}

func (*bufferStreamer) Err() error {
	return nil
}

func copy2(dst [][2]float64, src []float32) int {
	n := min(len(dst), len(src))
	for i := range n {
		v := float64(src[i])
		dst[i][0] = v
		dst[i][1] = v
	}
	return n
}

// DecodePCM16 reads raw signed 16-bit little-endian mono PCM.
func DecodePCM16(data []byte, sampleRate int) (*Buffer, error) {
	if len(data) == 0 {
		return nil, ErrEmptyBuffer
	}
	if len(data)%2 != 0 {
		return nil, ErrOddPCM
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / math.MaxInt16
	}

	return &Buffer{Samples: samples, SampleRate: sampleRate}, nil
}

// Decode reads a complete WAV, MP3, OGG (Vorbis) or FLAC stream and mixes
// it down to mono.
func Decode(r io.Reader, ext string) (*Buffer, error) {
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)

	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "wav":
		streamer, format, err = wav.Decode(r)
	case "mp3":
		streamer, format, err = mp3.Decode(io.NopCloser(r))
	case "ogg":
		streamer, format, err = vorbis.Decode(io.NopCloser(r))
	case "flac":
		streamer, format, err = flac.Decode(r)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .wav, .mp3, .ogg, .flac)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio stream: %w", err)
	}
	defer func() {
		if closeErr := streamer.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close audio streamer")
		}
	}()

	buf := &Buffer{SampleRate: int(format.SampleRate)}
	if n := streamer.Len(); n > 0 {
		buf.Samples = make([]float32, 0, n)
	}

	chunk := make([][2]float64, 512)
	for {
		n, ok := streamer.Stream(chunk)
		for i := range n {
			buf.Samples = append(buf.Samples, float32((chunk[i][0]+chunk[i][1])/2))
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("failed to stream audio: %w", err)
	}
	if len(buf.Samples) == 0 {
		return nil, ErrEmptyBuffer
	}

	return buf, nil
}

// EncodeWAV writes the buffer as a 16-bit mono WAV file.
func EncodeWAV(w io.WriteSeeker, b *Buffer) error {
	if b == nil || len(b.Samples) == 0 {
		return ErrEmptyBuffer
	}
	if err := wav.Encode(w, b.Streamer(0), b.format()); err != nil {
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	return nil
}
