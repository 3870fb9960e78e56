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

package methods

import (
	"fmt"
	"time"

	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/api/models/requests"
	"github.com/refugium/companion-core/pkg/api/validation"
	"github.com/refugium/companion-core/pkg/playback"
	"github.com/refugium/companion-core/pkg/service/chat"
	"github.com/rs/zerolog/log"
)

// PlaybackStatus converts a tracker snapshot for the API. Times are in
// seconds and the session key is reported as the message index.
func PlaybackStatus(st playback.Status) models.PlaybackStatusResponse {
	resp := models.PlaybackStatusResponse{
		State:    string(st.State),
		Progress: st.Progress.Seconds(),
		Duration: st.Duration.Seconds(),
	}
	if st.State != playback.StateIdle {
		if idx, ok := chat.IndexOf(st.Key); ok {
			resp.Index = &idx
		}
	}
	return resp
}

func playbackKey(env *requests.RequestEnv) (string, error) {
	if env.Player == nil {
		return "", ErrUnavailable
	}
	var params models.PlaybackKeyParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return "", err //nolint:wrapcheck // validation errors are mapped to invalid params
	}
	return chat.Key(params.Index), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandlePlaybackPlay(env requests.RequestEnv) (any, error) {
	if env.Chat == nil || env.Player == nil {
		return nil, ErrUnavailable
	}
	var params models.PlaybackPlayParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err //nolint:wrapcheck // validation errors are mapped to invalid params
	}
	log.Info().Int("index", params.Index).Msg("received playback play request")

	if err := env.Chat.PlayMessage(env.Context, params.Index); err != nil {
		return nil, fmt.Errorf("failed to play message: %w", err)
	}
	return PlaybackStatus(env.Player.Status()), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandlePlaybackToggle(env requests.RequestEnv) (any, error) {
	key, err := playbackKey(&env)
	if err != nil {
		return nil, err
	}
	if err := env.Player.Toggle(key); err != nil {
		return nil, fmt.Errorf("failed to toggle playback: %w", err)
	}
	return PlaybackStatus(env.Player.Status()), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandlePlaybackPause(env requests.RequestEnv) (any, error) {
	key, err := playbackKey(&env)
	if err != nil {
		return nil, err
	}
	if err := env.Player.Pause(key); err != nil {
		return nil, fmt.Errorf("failed to pause playback: %w", err)
	}
	return PlaybackStatus(env.Player.Status()), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandlePlaybackResume(env requests.RequestEnv) (any, error) {
	key, err := playbackKey(&env)
	if err != nil {
		return nil, err
	}
	if err := env.Player.Resume(key); err != nil {
		return nil, fmt.Errorf("failed to resume playback: %w", err)
	}
	return PlaybackStatus(env.Player.Status()), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandlePlaybackSeek(env requests.RequestEnv) (any, error) {
	if env.Player == nil {
		return nil, ErrUnavailable
	}
	var params models.PlaybackSeekParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err //nolint:wrapcheck // validation errors are mapped to invalid params
	}
	log.Info().Float64("position", params.Position).Msg("received playback seek request")

	pos := time.Duration(params.Position * float64(time.Second))
	if err := env.Player.Seek(pos); err != nil {
		return nil, fmt.Errorf("failed to seek: %w", err)
	}
	return PlaybackStatus(env.Player.Status()), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandlePlaybackStop(env requests.RequestEnv) (any, error) {
	if env.Player == nil {
		return nil, ErrUnavailable
	}
	log.Info().Msg("received playback stop request")
	env.Player.Stop()
	return NoContent{}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandlePlaybackStatus(env requests.RequestEnv) (any, error) {
	if env.Player == nil {
		return nil, ErrUnavailable
	}
	return PlaybackStatus(env.Player.Status()), nil
}

// HandlePlaybackSuspend is sent by clients going to the background. A
// playing session is paused until HandlePlaybackWake.
//
//nolint:gocritic // single-use parameter in API handler
func HandlePlaybackSuspend(env requests.RequestEnv) (any, error) {
	if env.Player == nil {
		return nil, ErrUnavailable
	}
	log.Info().Msg("received playback suspend request")
	env.Player.Suspend()
	return PlaybackStatus(env.Player.Status()), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandlePlaybackWake(env requests.RequestEnv) (any, error) {
	if env.Player == nil {
		return nil, ErrUnavailable
	}
	log.Info().Msg("received playback wake request")
	env.Player.Wake()
	return PlaybackStatus(env.Player.Status()), nil
}
