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
	"strings"

	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/api/models/requests"
	"github.com/refugium/companion-core/pkg/api/validation"
	"github.com/refugium/companion-core/pkg/database"
	"github.com/refugium/companion-core/pkg/entitlement"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"
)

// persist writes a patch through the profile store. The local profile has
// already been updated, so a failure is only logged.
func persist(env *requests.RequestEnv, patch database.ProfilePatch) {
	if env.Store == nil || patch.Empty() {
		return
	}
	if _, err := env.Store.Persist(env.Context, env.State.UserID(), patch); err != nil {
		log.Error().Err(err).Msg("failed to persist profile")
	}
}

func HandleProfile(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received profile request")
	return env.State.ProfileResponse(), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleProfileUpgrade(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received profile upgrade request")

	env.State.MutateProfile(entitlement.GrantPremium)
	premium := true
	persist(&env, database.ProfilePatch{IsPremium: &premium})

	if env.State.Mode() == models.ModeUpgrade {
		if err := env.State.SetMode(models.ModeChat); err != nil {
			return nil, fmt.Errorf("failed to leave upgrade mode: %w", err)
		}
	}
	return env.State.ProfileResponse(), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleProfileTokensAdd(env requests.RequestEnv) (any, error) {
	var params models.AddTokensParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err //nolint:wrapcheck // validation errors are mapped to invalid params
	}
	log.Info().Int("amount", params.Amount).Msg("received add tokens request")

	var addErr error
	env.State.MutateProfile(func(p entitlement.Profile) entitlement.Profile {
		updated, err := entitlement.AddTokens(p, params.Amount)
		if err != nil {
			addErr = err
			return p
		}
		return updated
	})
	if addErr != nil {
		return nil, fmt.Errorf("failed to add tokens: %w", addErr)
	}
	persist(&env, database.ProfilePatch{TokenDelta: params.Amount})

	return env.State.ProfileResponse(), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleProfileUpdate(env requests.RequestEnv) (any, error) {
	var params models.UpdateProfileParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err //nolint:wrapcheck // validation errors are mapped to invalid params
	}
	log.Info().Msg("received profile update request")

	var patch database.ProfilePatch
	if params.Name != nil {
		name := strings.TrimSpace(norm.NFC.String(*params.Name))
		patch.Name = &name
	}
	if params.Trait != nil {
		trait := strings.TrimSpace(norm.NFC.String(*params.Trait))
		patch.Trait = &trait
	}
	if patch.Empty() {
		return env.State.ProfileResponse(), nil
	}

	env.State.MutateProfile(func(p entitlement.Profile) entitlement.Profile {
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Trait != nil {
			p.Trait = *patch.Trait
		}
		return p
	})
	persist(&env, patch)

	return env.State.ProfileResponse(), nil
}

func HandleMode(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	return models.ModeResponse{Mode: env.State.Mode()}, nil
}

func HandleModeSet(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var params models.SetModeParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err //nolint:wrapcheck // validation errors are mapped to invalid params
	}
	log.Info().Str("mode", params.Mode).Msg("received mode set request")

	if err := env.State.SetMode(params.Mode); err != nil {
		return nil, fmt.Errorf("failed to set mode: %w", err)
	}
	return models.ModeResponse{Mode: env.State.Mode()}, nil
}
