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

	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/api/models/requests"
	"github.com/refugium/companion-core/pkg/api/validation"
	"github.com/rs/zerolog/log"
)

const defaultImageMimeType = "image/jpeg"

//nolint:gocritic // single-use parameter in API handler
func HandleImagesEdit(env requests.RequestEnv) (any, error) {
	if env.Images == nil {
		return nil, ErrUnavailable
	}
	var params models.ImagesEditParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err //nolint:wrapcheck // validation errors are mapped to invalid params
	}

	data, uriMime, err := validation.DecodeImage(params.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	mimeType := params.MimeType
	if mimeType == "" {
		mimeType = uriMime
	}
	if mimeType == "" {
		mimeType = defaultImageMimeType
	}
	log.Info().Int("bytes", len(data)).Str("mime", mimeType).Msg("received image edit request")

	res, err := env.Images.Edit(env.Context, data, mimeType, params.Prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to edit image: %w", err)
	}
	return models.ImagesEditResponse{DataURI: res.DataURI, Path: res.Path, Denied: res.Denied}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleImagesGallery(env requests.RequestEnv) (any, error) {
	if env.Images == nil {
		return nil, ErrUnavailable
	}
	paths, err := env.Images.Gallery()
	if err != nil {
		return nil, fmt.Errorf("failed to list gallery: %w", err)
	}
	return models.ImagesGalleryResponse{Images: paths}, nil
}
