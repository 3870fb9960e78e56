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

// Package client talks to a running service over the local WebSocket API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/config"
	"github.com/rs/zerolog/log"
)

var (
	ErrRequestTimeout   = errors.New("request timed out")
	ErrInvalidParams    = errors.New("invalid params")
	ErrRequestCancelled = errors.New("request cancelled")
)

// RPCError is an error object returned by the service.
type RPCError struct {
	Message string
	Code    int
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

const APIPath = "/api"

func localURL(cfg *config.Instance) string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort("localhost", strconv.Itoa(cfg.APIPort())),
		Path:   APIPath,
	}
	return u.String()
}

func dial(ctx context.Context, cfg *config.Instance) (*websocket.Conn, error) {
	c, resp, err := websocket.DefaultDialer.DialContext(ctx, localURL(cfg), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to service: %w", err)
	}
	return c, nil
}

func closeConn(c *websocket.Conn) {
	if err := c.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing websocket")
	}
}

// await reads messages until match returns true, the timeout passes or
// ctx is done. A zero timeout uses the default request timeout and a
// negative one waits forever.
func await(
	ctx context.Context,
	c *websocket.Conn,
	timeout time.Duration,
	match func([]byte) bool,
) error {
	done := make(chan error, 1)
	go func() {
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				done <- fmt.Errorf("error reading message: %w", err)
				return
			}
			if match(message) {
				done <- nil
				return
			}
		}
	}()

	var timerChan <-chan time.Time
	switch {
	case timeout == 0:
		timer := time.NewTimer(config.APIRequestTimeout)
		defer timer.Stop()
		timerChan = timer.C
	case timeout > 0:
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerChan = timer.C
	}

	select {
	case err := <-done:
		return err
	case <-timerChan:
		closeConn(c)
		return ErrRequestTimeout
	case <-ctx.Done():
		closeConn(c)
		return ErrRequestCancelled
	}
}

// LocalClient sends a single method with params to the local running
// service, waits for the response and disconnects. The result is returned
// as raw JSON.
func LocalClient(
	ctx context.Context,
	cfg *config.Instance,
	method string,
	params string,
) (string, error) {
	id := models.NewStringID(uuid.NewString())
	req := models.RequestObject{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  method,
	}
	if params != "" {
		if !json.Valid([]byte(params)) {
			return "", ErrInvalidParams
		}
		req.Params = json.RawMessage(params)
	}

	c, err := dial(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer closeConn(c)

	if err := c.WriteJSON(req); err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	type response struct {
		Error   *models.ErrorObject `json:"error"`
		JSONRPC string              `json:"jsonrpc"`
		Result  json.RawMessage     `json:"result"`
		ID      models.RPCID        `json:"id"`
	}
	var resp response
	err = await(ctx, c, 0, func(message []byte) bool {
		var r response
		if err := json.Unmarshal(message, &r); err != nil || r.JSONRPC != "2.0" {
			return false
		}
		if string(r.ID.RawMessage) != string(id.RawMessage) {
			return false
		}
		resp = r
		return true
	})
	if err != nil {
		return "", err
	}

	if resp.Error != nil {
		return "", &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if len(resp.Result) == 0 {
		return "null", nil
	}
	return string(resp.Result), nil
}

// WaitNotification blocks until a notification with the given method is
// broadcast and returns its params.
func WaitNotification(
	ctx context.Context,
	timeout time.Duration,
	cfg *config.Instance,
	method string,
) (string, error) {
	c, err := dial(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer closeConn(c)

	var params json.RawMessage
	err = await(ctx, c, timeout, func(message []byte) bool {
		var notif models.RequestObject
		if err := json.Unmarshal(message, &notif); err != nil || notif.JSONRPC != "2.0" {
			return false
		}
		if !notif.ID.IsAbsent() || notif.Method != method {
			return false
		}
		params = notif.Params
		return true
	})
	if err != nil {
		return "", err
	}
	return string(params), nil
}
