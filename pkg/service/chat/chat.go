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

// Package chat runs the conversation with the companion: gating each turn,
// generating replies, keeping history and voicing messages on request.
package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/api/notifications"
	"github.com/refugium/companion-core/pkg/audio"
	"github.com/refugium/companion-core/pkg/database"
	"github.com/refugium/companion-core/pkg/entitlement"
	"github.com/refugium/companion-core/pkg/generation"
	"github.com/refugium/companion-core/pkg/helpers/syncutil"
	"github.com/refugium/companion-core/pkg/playback"
	"github.com/refugium/companion-core/pkg/service/profiles"
	"github.com/refugium/companion-core/pkg/service/state"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"
)

const (
	NoTokensMessage = "Du benötigst mehr Tokens für weitere Nachrichten."
	SilenceMessage  = "Marina genießt gerade die Stille..."
	// MaxMessageLength is measured in runes after normalization.
	MaxMessageLength = 4000
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message is too long")
	ErrNoMessage      = errors.New("no such message")
	ErrNotSpeakable   = errors.New("message cannot be voiced")
)

// Result is the outcome of one Send.
type Result struct {
	// Message is the companion reply, or the system notice on denial or
	// failure. Nil when Stale.
	Message *database.ChatMessage
	Index   int
	Denied  bool
	Stale   bool
}

type Options struct {
	State     *state.State
	Store     profiles.Store
	Generator generation.Generator
	Player    *playback.Tracker
	// Fs caches voiced messages as WAV under CacheDir. Nil disables the
	// disk cache.
	Fs       afero.Fs
	CacheDir string
}

type Service struct {
	state   *state.State
	store   profiles.Store
	gen     generation.Generator
	player  *playback.Tracker
	fs      afero.Fs
	speech  singleflight.Group
	cache   string
	history []database.ChatMessage
	mu      syncutil.RWMutex
	seq     atomic.Uint64
}

func NewService(opts Options) *Service {
	return &Service{
		state:  opts.State,
		store:  opts.Store,
		gen:    opts.Generator,
		player: opts.Player,
		fs:     opts.Fs,
		cache:  opts.CacheDir,
	}
}

// Load restores the stored history for the session's user.
func (s *Service) Load(ctx context.Context) error {
	msgs, err := s.store.History(ctx, s.state.UserID())
	if err != nil {
		return fmt.Errorf("failed to load chat history: %w", err)
	}
	s.mu.Lock()
	s.history = msgs
	s.mu.Unlock()
	log.Info().Int("messages", len(msgs)).Msg("chat: history loaded")
	return nil
}

// Normalize applies NFC and trims surrounding whitespace.
func Normalize(text string) (string, error) {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return "", ErrEmptyMessage
	}
	if len([]rune(text)) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return text, nil
}

// Send runs one chat turn. A turn overtaken by a newer Send is reported
// Stale and its reply dropped.
func (s *Service) Send(ctx context.Context, text string) (Result, error) {
	text, err := Normalize(text)
	if err != nil {
		return Result{}, err
	}
	seq := s.seq.Add(1)
	now := s.state.Clock().Now()

	var decision entitlement.Decision
	s.state.MutateProfile(func(p entitlement.Profile) entitlement.Profile {
		decision = s.state.Gate().Authorize(p, now, entitlement.ActionChat)
		return decision.Profile
	})

	s.append(database.ChatMessage{Time: now, Role: generation.RoleUser, Content: text})
	s.saveHistory(ctx)

	if !decision.Allowed {
		log.Info().Str("reason", string(decision.Reason)).Msg("chat: message denied")
		s.state.Deny(entitlement.ActionChat, decision.Reason)
		idx, msg := s.append(database.ChatMessage{
			Time:    now,
			Role:    generation.RoleSystem,
			Content: NoTokensMessage,
		})
		s.saveHistory(ctx)
		return Result{Message: &msg, Index: idx, Denied: true}, nil
	}

	if decision.Consumed {
		s.persist(ctx, database.ProfilePatch{TokenDelta: -1})
	}

	profile := s.state.Profile()
	reply, err := s.gen.Dialogue(ctx, conversation(s.History()), s.state.Memories(),
		generation.Persona{Name: profile.Name, Trait: profile.Trait})
	if err != nil {
		log.Warn().Err(err).Msg("chat: dialogue degraded")
	}

	if s.seq.Load() != seq {
		log.Debug().Uint64("seq", seq).Msg("chat: discarding stale reply")
		return Result{Stale: true}, nil
	}

	msg := database.ChatMessage{
		Time:    s.state.Clock().Now(),
		Role:    generation.RoleCompanion,
		Content: reply.Dialogue,
		Emotion: reply.Emotion,
		Sensory: reply.Sensory,
	}
	if strings.TrimSpace(reply.Dialogue) == "" {
		msg = database.ChatMessage{
			Time:    msg.Time,
			Role:    generation.RoleSystem,
			Content: SilenceMessage,
		}
	}
	idx, msg := s.append(msg)
	s.saveHistory(ctx)
	return Result{Message: &msg, Index: idx}, nil
}

// append adds a message to the history and announces it.
func (s *Service) append(msg database.ChatMessage) (int, database.ChatMessage) {
	s.mu.Lock()
	s.history = append(s.history, msg)
	idx := len(s.history) - 1
	s.mu.Unlock()

	notifications.ChatMessage(s.state.Notifications, ToResponse(idx, msg))
	return idx, msg
}

func (s *Service) saveHistory(ctx context.Context) {
	msgs := s.History()
	if err := s.store.SaveHistory(ctx, s.state.UserID(), msgs); err != nil {
		log.Error().Err(err).Msg("chat: failed to persist history")
	}
}

func (s *Service) persist(ctx context.Context, patch database.ProfilePatch) {
	if _, err := s.store.Persist(ctx, s.state.UserID(), patch); err != nil {
		log.Error().Err(err).Msg("chat: failed to persist profile")
	}
}

func (s *Service) History() []database.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

// Suggestions never fails: any generation problem yields the canned list.
func (s *Service) Suggestions(ctx context.Context) []string {
	out, err := s.gen.Suggestions(ctx, conversation(s.History()))
	if err != nil {
		log.Warn().Err(err).Msg("chat: suggestions degraded")
		return generation.FallbackSuggestions()
	}
	return out
}

// Reset clears the conversation. In-flight replies become stale.
func (s *Service) Reset(ctx context.Context) error {
	s.seq.Add(1)
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()

	if s.player != nil {
		s.player.Stop()
	}
	if err := s.store.ClearHistory(ctx, s.state.UserID()); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}

// Key is the playback key of the message at index.
func Key(index int) string {
	return strconv.Itoa(index)
}

// IndexOf reverses Key.
func IndexOf(key string) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

func (s *Service) message(index int) (database.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.history) {
		return database.ChatMessage{}, ErrNoMessage
	}
	return s.history[index], nil
}

// PlayMessage voices the companion message at index through the tracker.
func (s *Service) PlayMessage(ctx context.Context, index int) error {
	msg, err := s.message(index)
	if err != nil {
		return err
	}
	if msg.Role != generation.RoleCompanion || strings.TrimSpace(msg.Content) == "" {
		return ErrNotSpeakable
	}
	if s.player == nil {
		return fmt.Errorf("no audio player: %w", ErrNotSpeakable)
	}

	err = s.player.Play(ctx, Key(index), func(ctx context.Context) (*audio.Buffer, error) {
		return s.voice(ctx, msg.Content)
	})
	if err != nil {
		return fmt.Errorf("failed to play message %d: %w", index, err)
	}
	return nil
}

// ToResponse converts a stored message for the API.
func ToResponse(index int, msg database.ChatMessage) models.ChatMessage {
	return models.ChatMessage{
		Time:    msg.Time,
		Role:    msg.Role,
		Content: msg.Content,
		Emotion: msg.Emotion,
		Sensory: msg.Sensory,
		Index:   index,
	}
}
