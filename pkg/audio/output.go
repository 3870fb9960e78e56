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
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/gopxl/beep/v2"
	"github.com/refugium/companion-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

const outputSampleRate = 48000

// Render is one running playback started by an output. Stop must not
// block. Done closes once the render has released its device.
type Render interface {
	Stop()
	Done() <-chan struct{}
}

// Positioner is implemented by renders that can report how far into the
// buffer they have played.
type Positioner interface {
	Position() time.Duration
}

// MalgoOutput renders buffers on the default audio device. Starting a new
// render cancels the previous one.
type MalgoOutput struct {
	currentCancel context.CancelFunc
	playbackGen   uint64
	mu            syncutil.Mutex
}

func NewMalgoOutput() *MalgoOutput {
	return &MalgoOutput{}
}

// Start plays buf from offset asynchronously.
func (o *MalgoOutput) Start(buf *Buffer, offset time.Duration) (Render, error) {
	if buf == nil || len(buf.Samples) == 0 {
		return nil, ErrEmptyBuffer
	}

	// resample to 48000 Hz for HDMI audio compatibility
	var streamer beep.Streamer = buf.Streamer(offset)
	if buf.SampleRate != outputSampleRate {
		streamer = beep.Resample(
			4,
			beep.SampleRate(buf.SampleRate),
			beep.SampleRate(outputSampleRate),
			streamer,
		)
	}

	o.mu.Lock()
	if o.currentCancel != nil {
		o.currentCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	o.currentCancel = cancel
	o.playbackGen++
	thisGen := o.playbackGen
	o.mu.Unlock()

	r := &malgoRender{
		cancel: cancel,
		done:   make(chan struct{}),
		offset: offset,
	}

	go func() {
		defer func() {
			o.mu.Lock()
			if o.playbackGen == thisGen {
				o.currentCancel = nil
			}
			o.mu.Unlock()
			close(r.done)
		}()

		if err := playWithMalgo(ctx, streamer, &r.frames); err != nil {
			if !errors.Is(ctx.Err(), context.Canceled) {
				log.Warn().Err(err).Msg("failed to play audio")
			}
			return
		}

		log.Debug().Msg("completed audio playback")
	}()

	return r, nil
}

// Close stops whatever is currently playing.
func (o *MalgoOutput) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.currentCancel != nil {
		o.currentCancel()
		o.currentCancel = nil
	}
}

type malgoRender struct {
	cancel context.CancelFunc
	done   chan struct{}
	frames atomic.Int64
	offset time.Duration
}

func (r *malgoRender) Stop() {
	r.cancel()
}

func (r *malgoRender) Done() <-chan struct{} {
	return r.done
}

// Position is the offset the render started at plus the frames the device
// has consumed so far.
func (r *malgoRender) Position() time.Duration {
	return r.offset + time.Duration(r.frames.Load())*time.Second/outputSampleRate
}

// playWithMalgo plays samples through malgo, blocking until the streamer
// is drained or ctx is cancelled.
func playWithMalgo(ctx context.Context, streamer beep.Streamer, frames *atomic.Int64) error {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	if malgoCtx == nil {
		return errors.New("malgo context is nil after initialization")
	}
	defer func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}()

	// F32 avoids the S16->S32 conversion bug in miniaudio on PulseAudio
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 2
	deviceConfig.SampleRate = outputSampleRate
	deviceConfig.Alsa.NoMMap = 1

	done := make(chan struct{})

	var (
		mu       syncutil.Mutex
		finished bool
		samples  [][2]float64
	)

	onSamples := func(pOutputSample, _ []byte, frameCount uint32) {
		mu.Lock()
		defer mu.Unlock()

		if finished {
			return
		}

		select {
		case <-ctx.Done():
			finished = true
			close(done)
			return
		default:
		}

		if len(samples) < int(frameCount) {
			samples = make([][2]float64, frameCount)
		}

		n, ok := streamer.Stream(samples[:frameCount])
		if !ok || n == 0 {
			finished = true
			close(done)
			return
		}
		frames.Add(int64(n))

		offset := 0
		for i := range n {
			binary.LittleEndian.PutUint32(pOutputSample[offset:], math.Float32bits(float32(samples[i][0])))
			offset += 4
			binary.LittleEndian.PutUint32(pOutputSample[offset:], math.Float32bits(float32(samples[i][1])))
			offset += 4
		}

		for i := offset; i < len(pOutputSample); i++ {
			pOutputSample[i] = 0
		}
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start audio device: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		mu.Lock()
		finished = true
		mu.Unlock()
	}

	if err := device.Stop(); err != nil {
		log.Warn().Err(err).Msg("failed to stop audio device")
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}

	return nil
}

// NullOutput accepts renders without touching any device. Renders only end
// when stopped, leaving completion to the caller's clock.
type NullOutput struct{}

func (NullOutput) Start(buf *Buffer, _ time.Duration) (Render, error) {
	if buf == nil || len(buf.Samples) == 0 {
		return nil, ErrEmptyBuffer
	}
	return &nullRender{done: make(chan struct{})}, nil
}

type nullRender struct {
	done chan struct{}
	once sync.Once
}

func (r *nullRender) Stop() {
	r.once.Do(func() { close(r.done) })
}

func (r *nullRender) Done() <-chan struct{} {
	return r.done
}
