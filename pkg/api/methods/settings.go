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
	"errors"
	"fmt"

	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/api/models/requests"
	"github.com/refugium/companion-core/pkg/api/validation"
	"github.com/rs/zerolog/log"
)

func HandleSettings(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received settings request")

	return models.SettingsResponse{
		DebugLogging:         env.Config.DebugLogging(),
		ErrorReporting:       env.Config.ErrorReporting(),
		PlaybackPollInterval: env.Config.PlaybackPollInterval().String(),
		PlaybackOutput:       env.Config.PlaybackOutput(),
		Provider:             env.Config.GenerationProvider(),
		Voice:                env.Config.Voice(),
		StoreBackend:         env.Config.StoreBackend(),
		StartingTokens:       env.Config.StartingTokens(),
		TokenPacks:           env.Config.TokenPacks(),
	}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleSettingsReload(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received settings reload request")

	if err := env.Config.Load(); err != nil {
		log.Error().Err(err).Msg("error loading settings")
		return nil, errors.New("error loading settings")
	}
	if env.OnSettingsChanged != nil {
		env.OnSettingsChanged()
	}
	return NoContent{}, nil
}

// HandleSettingsUpdate applies and saves settings. The poll interval is
// picked up by the next tracker, which is created on service start.
//
//nolint:gocritic // single-use parameter in API handler
func HandleSettingsUpdate(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received settings update request")

	var params models.UpdateSettingsParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err //nolint:wrapcheck // validation errors are mapped to invalid params
	}

	if params.DebugLogging != nil {
		log.Info().Bool("debugLogging", *params.DebugLogging).Msg("update")
		env.Config.SetDebugLogging(*params.DebugLogging)
	}

	if params.ErrorReporting != nil {
		log.Info().Bool("errorReporting", *params.ErrorReporting).Msg("update")
		env.Config.SetErrorReporting(*params.ErrorReporting)
	}

	if params.PlaybackPollInterval != nil {
		log.Info().Str("playbackPollInterval", *params.PlaybackPollInterval).Msg("update")
		if err := env.Config.SetPlaybackPollInterval(*params.PlaybackPollInterval); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
	}

	if params.Voice != nil {
		log.Info().Str("voice", *params.Voice).Msg("update")
		if err := env.Config.SetVoice(*params.Voice); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
	}

	if params.StartingTokens != nil {
		log.Info().Int("startingTokens", *params.StartingTokens).Msg("update")
		if err := env.Config.SetStartingTokens(*params.StartingTokens); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
	}

	if err := env.Config.Save(); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}
	if env.OnSettingsChanged != nil {
		env.OnSettingsChanged()
	}
	return NoContent{}, nil
}
