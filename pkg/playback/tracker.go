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

// Package playback tracks the single active speech playback session:
// loading, play, pause, seek, natural completion and teardown, with
// progress reported from a clock.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/refugium/companion-core/pkg/audio"
	"github.com/refugium/companion-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultTolerance    = 100 * time.Millisecond
)

var (
	ErrNoSession      = errors.New("no playback session")
	ErrUnknownSession = errors.New("playback session does not match")
	ErrSuperseded     = errors.New("playback request superseded")
	ErrClosed         = errors.New("playback tracker closed")
)

// Loader produces the buffer for a session. It runs without the tracker
// lock held and its context is cancelled when the request is superseded.
type Loader func(ctx context.Context) (*audio.Buffer, error)

// Output starts renders. Implementations must cancel nothing on their own
// except what Render.Stop asks for.
type Output interface {
	Start(buf *audio.Buffer, offset time.Duration) (audio.Render, error)
}

// Status is a snapshot of the tracker.
type Status struct {
	State    State
	Key      string
	Progress time.Duration
	Duration time.Duration
	version  uint64
}

type Options struct {
	Clock        clockwork.Clock
	OnChange     func(Status)
	PollInterval time.Duration
	Tolerance    time.Duration
	// PreferWallClock ignores positions reported by the output.
	PreferWallClock bool
}

// Tracker owns at most one render and one progress ticker at a time.
type Tracker struct {
	startedAt  time.Time
	clock      clockwork.Clock
	output     Output
	render     audio.Render
	buf        *audio.Buffer
	onChange   func(Status)
	pollStop   chan struct{}
	pollDone   chan struct{}
	loadCancel context.CancelFunc
	state      State
	key        string
	seq        uint64
	offset     time.Duration
	progress   time.Duration
	interval   time.Duration
	tolerance  time.Duration
	version    uint64
	notified   uint64
	pollers    atomic.Int32
	mu         syncutil.Mutex
	notifyMu   syncutil.Mutex
	suspended  bool
	// resumeOnWake is set when Suspend interrupted playback, or a load
	// finished while suspended
	resumeOnWake bool
	closed       bool
	wallClock    bool
}

func NewTracker(output Output, opts Options) *Tracker {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	return &Tracker{
		clock:     opts.Clock,
		output:    output,
		onChange:  opts.OnChange,
		interval:  opts.PollInterval,
		tolerance: opts.Tolerance,
		wallClock: opts.PreferWallClock,
		state:     StateIdle,
	}
}

// Play tears down any current session, loads a new buffer for key and
// starts it from the beginning. A request overtaken by a newer one before
// its loader returns is discarded with ErrSuperseded.
func (t *Tracker) Play(ctx context.Context, key string, loader Loader) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.seq++
	seq := t.seq
	wait := t.teardownLocked()
	t.buf = nil
	t.key = key
	t.offset = 0
	t.progress = 0
	t.resumeOnWake = false
	t.state = StateLoading
	loadCtx, cancel := context.WithCancel(ctx)
	t.loadCancel = cancel
	st := t.statusLocked()
	t.mu.Unlock()

	waitFor(wait)
	t.notify(st)

	buf, err := loader(loadCtx)

	t.mu.Lock()
	if t.seq != seq {
		t.mu.Unlock()
		cancel()
		log.Debug().Str("key", key).Msg("playback: discarding stale load")
		return ErrSuperseded
	}
	t.loadCancel = nil
	cancel()

	if err == nil && buf.Duration() <= 0 {
		err = audio.ErrEmptyBuffer
	}
	if err != nil {
		t.resetLocked()
		st = t.statusLocked()
		t.mu.Unlock()
		t.notify(st)
		log.Warn().Err(err).Str("key", key).Msg("playback: failed to load audio")
		return fmt.Errorf("failed to load audio: %w", err)
	}

	t.buf = buf
	if t.suspended {
		// loaded while backgrounded, hold at the start until woken
		t.state = StatePaused
		t.resumeOnWake = true
		st = t.statusLocked()
		t.mu.Unlock()
		t.notify(st)
		return nil
	}

	if err := t.startLocked(0); err != nil {
		t.resetLocked()
		st = t.statusLocked()
		t.mu.Unlock()
		t.notify(st)
		log.Warn().Err(err).Str("key", key).Msg("playback: failed to start output")
		return fmt.Errorf("failed to start output: %w", err)
	}
	st = t.statusLocked()
	t.mu.Unlock()
	t.notify(st)

	log.Debug().Str("key", key).Dur("duration", buf.Duration()).Msg("playback: started")
	return nil
}

// Toggle pauses key if it is playing or resumes it if it is paused.
func (t *Tracker) Toggle(key string) error {
	t.mu.Lock()
	if t.key != key || (t.state != StatePlaying && t.state != StatePaused) {
		t.mu.Unlock()
		return ErrUnknownSession
	}
	if t.state == StatePlaying {
		t.resumeOnWake = false
		return t.pauseAndUnlock()
	}
	t.suspended = false
	t.resumeOnWake = false
	return t.resumeAndUnlock()
}

// Pause stops the render of key and keeps its position.
func (t *Tracker) Pause(key string) error {
	t.mu.Lock()
	if t.state != StatePlaying {
		t.mu.Unlock()
		return ErrNoSession
	}
	if t.key != key {
		t.mu.Unlock()
		return ErrUnknownSession
	}
	return t.pauseAndUnlock()
}

// Resume restarts a paused key from where it was paused.
func (t *Tracker) Resume(key string) error {
	t.mu.Lock()
	if t.state != StatePaused {
		t.mu.Unlock()
		return ErrNoSession
	}
	if t.key != key {
		t.mu.Unlock()
		return ErrUnknownSession
	}
	t.suspended = false
	t.resumeOnWake = false
	return t.resumeAndUnlock()
}

// Seek restarts the current session at position, playing or paused.
func (t *Tracker) Seek(position time.Duration) error {
	t.mu.Lock()
	if t.buf == nil || (t.state != StatePlaying && t.state != StatePaused) {
		t.mu.Unlock()
		return ErrNoSession
	}

	position = max(0, min(position, t.buf.Duration()))
	wait := t.teardownLocked()
	t.suspended = false
	t.resumeOnWake = false
	t.progress = position
	if err := t.startLocked(position); err != nil {
		t.resetLocked()
		st := t.statusLocked()
		t.mu.Unlock()
		waitFor(wait)
		t.notify(st)
		return fmt.Errorf("failed to start output: %w", err)
	}
	st := t.statusLocked()
	t.mu.Unlock()

	waitFor(wait)
	t.notify(st)
	return nil
}

// Stop tears down the session and cancels any pending load.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.seq++
	wasIdle := t.state == StateIdle
	wait := t.teardownLocked()
	t.resetLocked()
	st := t.statusLocked()
	t.mu.Unlock()

	waitFor(wait)
	if !wasIdle {
		t.notify(st)
	}
}

// Suspend pauses a playing session while the client is backgrounded so
// that suspended time never turns into progress. A session the user had
// already paused stays paused across Wake.
func (t *Tracker) Suspend() {
	t.mu.Lock()
	if t.suspended {
		t.mu.Unlock()
		return
	}
	t.suspended = true
	switch t.state {
	case StatePlaying:
		t.resumeOnWake = true
		_ = t.pauseAndUnlock()
	case StateLoading:
		// Play holds the buffer paused and marks it for Wake
		t.mu.Unlock()
	default:
		t.resumeOnWake = false
		t.mu.Unlock()
	}
}

// Wake resumes a session that Suspend interrupted.
func (t *Tracker) Wake() {
	t.mu.Lock()
	if !t.suspended {
		t.mu.Unlock()
		return
	}
	t.suspended = false
	resume := t.resumeOnWake
	t.resumeOnWake = false
	if !resume || t.state != StatePaused {
		t.mu.Unlock()
		return
	}
	_ = t.resumeAndUnlock()
}

// Close stops the session and rejects further play requests.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.seq++
	wasIdle := t.state == StateIdle
	wait := t.teardownLocked()
	t.resetLocked()
	st := t.statusLocked()
	t.mu.Unlock()

	waitFor(wait)
	if !wasIdle {
		t.notify(st)
	}
}

func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StatePlaying {
		t.progress = max(t.progress, t.elapsedLocked())
	}
	return t.statusLocked()
}

// ActivePollers reports how many progress goroutines are running.
func (t *Tracker) ActivePollers() int {
	return int(t.pollers.Load())
}

func (t *Tracker) pauseAndUnlock() error {
	t.offset = t.elapsedLocked()
	t.progress = max(t.progress, t.offset)
	wait := t.teardownLocked()
	t.state = StatePaused
	st := t.statusLocked()
	t.mu.Unlock()

	waitFor(wait)
	t.notify(st)
	return nil
}

func (t *Tracker) resumeAndUnlock() error {
	if err := t.startLocked(t.offset); err != nil {
		t.resetLocked()
		st := t.statusLocked()
		t.mu.Unlock()
		t.notify(st)
		return fmt.Errorf("failed to start output: %w", err)
	}
	st := t.statusLocked()
	t.mu.Unlock()
	t.notify(st)
	return nil
}

// startLocked begins a render at offset and its progress poller. The
// ticker is created here so it exists before the caller returns.
func (t *Tracker) startLocked(offset time.Duration) error {
	r, err := t.output.Start(t.buf, offset)
	if err != nil {
		return err //nolint:wrapcheck // wrapped by callers
	}

	t.render = r
	t.offset = offset
	t.startedAt = t.clock.Now()
	t.state = StatePlaying

	stop := make(chan struct{})
	done := make(chan struct{})
	t.pollStop = stop
	t.pollDone = done
	ticker := t.clock.NewTicker(t.interval)
	t.pollers.Add(1)
	go t.poll(ticker, r.Done(), stop, done)
	return nil
}

func (t *Tracker) poll(ticker clockwork.Ticker, rendered <-chan struct{}, stop, done chan struct{}) {
	defer close(done)
	defer t.pollers.Add(-1)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if !t.tick(stop, false) {
				return
			}
		case <-rendered:
			rendered = nil
			if !t.tick(stop, true) {
				return
			}
		}
	}
}

// tick updates progress and detects completion. It returns false once the
// poller should exit.
func (t *Tracker) tick(stop chan struct{}, renderEnded bool) bool {
	t.mu.Lock()
	if t.pollStop != stop || t.state != StatePlaying {
		t.mu.Unlock()
		return false
	}

	elapsed := t.elapsedLocked()
	if renderEnded || elapsed >= t.buf.Duration()-t.tolerance {
		key := t.key
		if t.render != nil {
			t.render.Stop()
			t.render = nil
		}
		// this goroutine is the poller, nothing to wait on
		t.pollStop = nil
		t.pollDone = nil
		t.resetLocked()
		st := t.statusLocked()
		t.mu.Unlock()

		t.notify(st)
		log.Debug().Str("key", key).Msg("playback: completed")
		return false
	}

	if elapsed <= t.progress {
		t.mu.Unlock()
		return true
	}
	t.progress = elapsed
	st := t.statusLocked()
	t.mu.Unlock()

	t.notify(st)
	return true
}

// elapsedLocked is the position in the buffer, clamped to its duration.
func (t *Tracker) elapsedLocked() time.Duration {
	if t.state != StatePlaying {
		return t.offset
	}

	var elapsed time.Duration
	if p, ok := t.render.(audio.Positioner); ok && !t.wallClock {
		elapsed = p.Position()
	} else {
		elapsed = t.clock.Since(t.startedAt) + t.offset
	}

	return max(0, min(elapsed, t.buf.Duration()))
}

// teardownLocked stops the render, signals the poller and cancels any
// pending load. The returned channel closes once the poller has exited and
// must be waited on after unlocking.
func (t *Tracker) teardownLocked() <-chan struct{} {
	if t.render != nil {
		t.render.Stop()
		t.render = nil
	}
	var wait chan struct{}
	if t.pollStop != nil {
		close(t.pollStop)
		wait = t.pollDone
		t.pollStop = nil
		t.pollDone = nil
	}
	if t.loadCancel != nil {
		t.loadCancel()
		t.loadCancel = nil
	}
	return wait
}

func (t *Tracker) resetLocked() {
	t.state = StateIdle
	t.key = ""
	t.buf = nil
	t.offset = 0
	t.progress = 0
	t.resumeOnWake = false
}

// statusLocked snapshots the tracker. Snapshots are numbered in lock order
// so notify can drop one that lost the race to a newer one.
func (t *Tracker) statusLocked() Status {
	t.version++
	return Status{
		State:    t.state,
		Key:      t.key,
		Progress: t.progress,
		Duration: t.buf.Duration(),
		version:  t.version,
	}
}

// notify delivers st unless a newer snapshot was already delivered.
// onChange must not call back into the tracker.
func (t *Tracker) notify(st Status) {
	if t.onChange == nil {
		return
	}
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()
	if st.version <= t.notified {
		log.Debug().Str("state", string(st.State)).Msg("playback: dropping stale status")
		return
	}
	t.notified = st.version
	t.onChange(st)
}

func waitFor(ch <-chan struct{}) {
	if ch != nil {
		<-ch
	}
}
