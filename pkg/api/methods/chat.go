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
	"github.com/refugium/companion-core/pkg/service/chat"
	"github.com/rs/zerolog/log"
)

func HandleChatSend(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	if env.Chat == nil {
		return nil, ErrUnavailable
	}
	var params models.ChatSendParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err //nolint:wrapcheck // validation errors are mapped to invalid params
	}
	log.Info().Int("length", len(params.Text)).Msg("received chat send request")

	res, err := env.Chat.Send(env.Context, params.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	resp := models.ChatSendResponse{Denied: res.Denied, Stale: res.Stale}
	if res.Message != nil {
		msg := chat.ToResponse(res.Index, *res.Message)
		resp.Message = &msg
	}
	return resp, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleChatHistory(env requests.RequestEnv) (any, error) {
	if env.Chat == nil {
		return nil, ErrUnavailable
	}
	history := env.Chat.History()
	resp := models.ChatHistoryResponse{Messages: make([]models.ChatMessage, 0, len(history))}
	for i := range history {
		resp.Messages = append(resp.Messages, chat.ToResponse(i, history[i]))
	}
	return resp, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleChatSuggestions(env requests.RequestEnv) (any, error) {
	if env.Chat == nil {
		return nil, ErrUnavailable
	}
	log.Info().Msg("received chat suggestions request")
	return models.SuggestionsResponse{Suggestions: env.Chat.Suggestions(env.Context)}, nil
}

func HandleChatReset(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	if env.Chat == nil {
		return nil, ErrUnavailable
	}
	log.Info().Msg("received chat reset request")
	if err := env.Chat.Reset(env.Context); err != nil {
		return nil, fmt.Errorf("failed to reset chat: %w", err)
	}
	return NoContent{}, nil
}
