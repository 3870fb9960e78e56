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

// Package images runs gated image transformations and keeps the results
// in a gallery directory.
package images

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/refugium/companion-core/pkg/database"
	"github.com/refugium/companion-core/pkg/entitlement"
	"github.com/refugium/companion-core/pkg/generation"
	"github.com/refugium/companion-core/pkg/service/profiles"
	"github.com/refugium/companion-core/pkg/service/state"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrNoImage     = errors.New("no image given")
	ErrEmptyPrompt = errors.New("prompt is empty")
	ErrBadDataURI  = errors.New("malformed image data uri")
)

type Result struct {
	DataURI string
	// Path is where the result was saved, empty if saving failed.
	Path   string
	Denied bool
}

type Options struct {
	State     *state.State
	Store     profiles.Store
	Generator generation.Generator
	Fs        afero.Fs
	Dir       string
}

type Service struct {
	state *state.State
	store profiles.Store
	gen   generation.Generator
	fs    afero.Fs
	dir   string
}

func NewService(opts Options) *Service {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Service{
		state: opts.State,
		store: opts.Store,
		gen:   opts.Generator,
		fs:    fs,
		dir:   opts.Dir,
	}
}

// Edit transforms image according to prompt. The image count and any token
// are only charged once the transformation succeeded.
func (s *Service) Edit(ctx context.Context, image []byte, mimeType, prompt string) (Result, error) {
	if len(image) == 0 {
		return Result{}, ErrNoImage
	}
	prompt = strings.TrimSpace(norm.NFC.String(prompt))
	if prompt == "" {
		return Result{}, ErrEmptyPrompt
	}

	decision := s.state.Gate().Authorize(s.state.Profile(), s.state.Clock().Now(), entitlement.ActionImage)
	if !decision.Allowed {
		log.Info().Str("reason", string(decision.Reason)).Msg("images: edit denied")
		s.state.Deny(entitlement.ActionImage, decision.Reason)
		return Result{Denied: true}, nil
	}

	uri, err := s.gen.EditImage(ctx, image, mimeType, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("image edit failed: %w", err)
	}

	patch := database.ProfilePatch{ImageCountDelta: 1}
	s.state.MutateProfile(func(p entitlement.Profile) entitlement.Profile {
		p.ImageGenerationCount++
		if decision.Consumed {
			var ok bool
			if ok, p = entitlement.TryConsume(p); ok {
				patch.TokenDelta = -1
			}
		}
		return p
	})
	if _, err := s.store.Persist(ctx, s.state.UserID(), patch); err != nil {
		log.Error().Err(err).Msg("images: failed to persist profile")
	}

	res := Result{DataURI: uri}
	path, err := s.save(uri)
	if err != nil {
		log.Warn().Err(err).Msg("images: failed to save to gallery")
	} else {
		res.Path = path
	}
	return res, nil
}

func (s *Service) save(uri string) (string, error) {
	ext, data, err := decodeDataURI(uri)
	if err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create gallery dir: %w", err)
	}
	path := filepath.Join(s.dir, uuid.New().String()+ext)
	if err := afero.WriteFile(s.fs, path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write gallery image: %w", err)
	}
	log.Info().Str("path", path).Msg("images: saved to gallery")
	return path, nil
}

// Gallery lists saved images, oldest name first.
func (s *Service) Gallery() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if ok, _ := afero.DirExists(s.fs, s.dir); !ok {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read gallery: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, filepath.Join(s.dir, e.Name()))
	}
	slices.Sort(out)
	return out, nil
}

// decodeDataURI splits a base64 data URI into a file extension and bytes.
func decodeDataURI(uri string) (ext string, data []byte, err error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return "", nil, ErrBadDataURI
	}
	mime := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	switch mime {
	case "image/png":
		ext = ".png"
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	default:
		return "", nil, fmt.Errorf("%w: unsupported type %q", ErrBadDataURI, mime)
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBadDataURI, err)
	}
	return ext, data, nil
}
