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

// Package methods implements the JSON-RPC method handlers. Every handler
// has the same shape and receives its dependencies through RequestEnv.
package methods

import (
	"errors"

	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/api/models/requests"
	"github.com/refugium/companion-core/pkg/config"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingParams = errors.New("missing params")
	ErrInvalidParams = errors.New("invalid params")
	ErrUnavailable   = errors.New("service not available")
)

// NoContent is returned by handlers that have nothing to report. The server
// sends it as a null result.
type NoContent struct{}

func HandleVersion(_ requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received version request")
	return models.VersionResponse{Version: config.AppVersion}, nil
}
