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

package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/olahol/melody"
	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/config"
	"github.com/refugium/companion-core/pkg/helpers/syncutil"
	"github.com/stretchr/testify/require"
)

// WebSocketTestServer serves the API path with a custom message handler
// and records everything it receives.
type WebSocketTestServer struct {
	Server   *httptest.Server
	Melody   *melody.Melody
	messages [][]byte
	mu       syncutil.RWMutex
}

// JSONRPCResponse represents a JSON-RPC response for testing
type JSONRPCResponse struct {
	Result json.RawMessage     `json:"result,omitempty"`
	Error  *models.ErrorObject `json:"error,omitempty"`
	ID     models.RPCID        `json:"id"`
}

// NewWebSocketTestServer creates a new WebSocket test server. It is closed
// when the test ends.
func NewWebSocketTestServer(t *testing.T, handler func(*melody.Session, []byte)) *WebSocketTestServer {
	t.Helper()

	m := melody.New()
	wsts := &WebSocketTestServer{Melody: m}

	m.HandleMessage(func(session *melody.Session, msg []byte) {
		wsts.mu.Lock()
		wsts.messages = append(wsts.messages, msg)
		wsts.mu.Unlock()
		if handler != nil {
			handler(session, msg)
		}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		_ = m.HandleRequest(w, r)
	})
	wsts.Server = httptest.NewServer(mux)
	t.Cleanup(wsts.Close)

	return wsts
}

func (wsts *WebSocketTestServer) Close() {
	_ = wsts.Melody.Close()
	wsts.Server.Close()
}

// Messages returns a copy of every message received so far.
func (wsts *WebSocketTestServer) Messages() [][]byte {
	wsts.mu.RLock()
	defer wsts.mu.RUnlock()
	out := make([][]byte, len(wsts.messages))
	copy(out, wsts.messages)
	return out
}

// Port is the port the test server listens on.
func (wsts *WebSocketTestServer) Port(t *testing.T) int {
	t.Helper()
	u, err := url.Parse(wsts.Server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}

// CreateWebSocketClient creates a WebSocket client connected to the test server
func (wsts *WebSocketTestServer) CreateWebSocketClient() (*websocket.Conn, error) {
	u, err := url.Parse(wsts.Server.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server URL: %w", err)
	}
	u.Scheme = "ws"
	u.Path = "/api"

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial WebSocket: %w", err)
	}
	return conn, nil
}

// SendJSONRPCRequest sends a JSON-RPC request and reads the next message
// as its response.
func SendJSONRPCRequest(conn *websocket.Conn, method string, params any) (*JSONRPCResponse, error) {
	id := models.NewStringID(uuid.NewString())
	request := struct {
		Params  any           `json:"params,omitempty"`
		ID      *models.RPCID `json:"id"`
		JSONRPC string        `json:"jsonrpc"`
		Method  string        `json:"method"`
	}{Params: params, ID: &id, JSONRPC: "2.0", Method: method}

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}
	if err := conn.WriteJSON(request); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var response JSONRPCResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &response, nil
}

// AssertJSONRPCSuccess verifies a JSON-RPC response was successful
func AssertJSONRPCSuccess(t *testing.T, response *JSONRPCResponse) {
	t.Helper()
	require.NotNil(t, response, "response should not be nil")
	require.Nil(t, response.Error, "response should not contain an error")
}

// AssertJSONRPCError verifies a JSON-RPC response contains an error
func AssertJSONRPCError(t *testing.T, response *JSONRPCResponse, expectedCode int) {
	t.Helper()
	require.NotNil(t, response, "response should not be nil")
	require.NotNil(t, response.Error, "response should contain an error")
	require.Equal(t, expectedCode, response.Error.Code, "error code should match")
}

// NewTestConfig writes a default config to a temp dir and points its API
// port at port.
func NewTestConfig(t *testing.T, port int) *config.Instance {
	t.Helper()
	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	cfg.SetAPIPort(port)
	return cfg
}
