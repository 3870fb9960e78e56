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

package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/refugium/companion-core/pkg/audio"
	"github.com/refugium/companion-core/pkg/database"
	"github.com/refugium/companion-core/pkg/generation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
)

var speechNamespace = uuid.MustParse("0b7e4f6a-93c2-4d1e-8a55-2f4c6d9e1a07")

const speechTimeout = 2 * time.Minute

// conversation is the history the generator sees. System notices are the
// app talking to the user, not part of the dialogue.
func conversation(msgs []database.ChatMessage) []generation.Message {
	out := make([]generation.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == generation.RoleSystem {
			continue
		}
		out = append(out, generation.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func (s *Service) cachePath(text string) string {
	return filepath.Join(s.cache, uuid.NewSHA1(speechNamespace, []byte(text)).String()+".wav")
}

// voice returns the speech for text. Concurrent requests for the same text
// share one generation call, and results are kept on disk when a cache
// filesystem is configured. The shared call runs detached from its
// callers: one caller giving up never fails the others.
func (s *Service) voice(ctx context.Context, text string) (*audio.Buffer, error) {
	path := s.cachePath(text)
	results := s.speech.DoChan(path, func() (any, error) {
		if buf, ok := s.readCache(path); ok {
			return buf, nil
		}
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), speechTimeout)
		defer cancel()
		buf, err := s.gen.Speech(genCtx, text)
		if err != nil {
			return nil, fmt.Errorf("speech generation failed: %w", err)
		}
		if buf == nil {
			return nil, generation.ErrEmptyResult
		}
		s.writeCache(path, buf)
		return buf, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for speech: %w", ctx.Err())
	case res = <-results:
	}
	if res.Err != nil {
		return nil, res.Err //nolint:wrapcheck // wrapped inside the group
	}
	if res.Shared {
		log.Debug().Str("path", path).Msg("chat: shared speech result")
	}
	buf, ok := res.Val.(*audio.Buffer)
	if !ok {
		return nil, errors.New("unexpected speech result type")
	}
	return buf, nil
}

func (s *Service) readCache(path string) (*audio.Buffer, bool) {
	if s.fs == nil {
		return nil, false
	}
	f, err := s.fs.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false
	} else if err != nil {
		log.Warn().Err(err).Msg("chat: failed to open speech cache")
		return nil, false
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Msg("chat: failed to close speech cache")
		}
	}()

	buf, err := audio.Decode(f, "wav")
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("chat: discarding unreadable speech cache")
		return nil, false
	}
	return buf, true
}

func (s *Service) writeCache(path string, buf *audio.Buffer) {
	if s.fs == nil {
		return
	}
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		log.Warn().Err(err).Msg("chat: failed to create speech cache dir")
		return
	}
	f, err := s.fs.Create(path)
	if err != nil {
		log.Warn().Err(err).Msg("chat: failed to create speech cache file")
		return
	}
	err = audio.EncodeWAV(f, buf)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		log.Warn().Err(err).Msg("chat: failed to write speech cache")
		_ = s.fs.Remove(path)
	}
}

// speechCached reports whether text has been voiced to disk.
func (s *Service) speechCached(text string) bool {
	if s.fs == nil {
		return false
	}
	ok, err := afero.Exists(s.fs, s.cachePath(text))
	return err == nil && ok
}
