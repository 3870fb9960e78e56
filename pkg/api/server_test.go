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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/olahol/melody"
	apimiddleware "github.com/refugium/companion-core/pkg/api/middleware"
	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/api/models/requests"
	"github.com/refugium/companion-core/pkg/api/validation"
	"github.com/refugium/companion-core/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Instance {
	t.Helper()
	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	cfg.SetAPIPort(0)
	return cfg
}

func createTestPostHandler(t *testing.T) http.HandlerFunc {
	t.Helper()

	methodMap := NewMethodMap()
	require.NoError(t, methodMap.AddMethod("test.echo", func(env requests.RequestEnv) (any, error) {
		return map[string]any{"echo": "success", "local": env.IsLocal}, nil
	}))
	require.NoError(t, methodMap.AddMethod("test.error", func(_ requests.RequestEnv) (any, error) {
		return nil, errors.New("test error")
	}))
	require.NoError(t, methodMap.AddMethod("test.params", func(env requests.RequestEnv) (any, error) {
		var params models.AddTokensParams
		if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
			return nil, err //nolint:wrapcheck // test passthrough
		}
		return params.Amount, nil
	}))

	return handlePostRequest(methodMap, requests.RequestEnv{Config: testConfig(t)})
}

func post(t *testing.T, handler http.HandlerFunc, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) int {
	t.Helper()
	var resp models.ResponseErrorObject
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error, "should contain error object")
	return resp.Error.Code
}

func TestHandlePostRequest_ValidRequest(t *testing.T) {
	t.Parallel()

	rr := post(t, createTestPostHandler(t), "application/json",
		`{"jsonrpc":"2.0","id":"abc","method":"test.echo"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "2.0", resp["jsonrpc"])
	assert.Equal(t, "abc", resp["id"])
	assert.Equal(t, map[string]any{"echo": "success", "local": true}, resp["result"])
}

func TestHandlePostRequest_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid json", `{invalid json`, -32700},
		{"empty body", ``, -32700},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"nonexistent.method"}`, -32601},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"test.echo"}`, -32600},
		{"object id", `{"jsonrpc":"2.0","id":{"a":1},"method":"test.echo"}`, -32600},
		{"method error", `{"jsonrpc":"2.0","id":1,"method":"test.error"}`, -32000},
		{"missing params", `{"jsonrpc":"2.0","id":1,"method":"test.params"}`, -32602},
		{"invalid params", `{"jsonrpc":"2.0","id":1,"method":"test.params","params":{"amount":0}}`, -32602},
	}

	handler := createTestPostHandler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := post(t, handler, "application/json", tt.body)
			require.Equal(t, http.StatusOK, rr.Code, "JSON-RPC errors are sent with HTTP 200")
			assert.Equal(t, tt.code, errorCode(t, rr))
		})
	}
}

func TestHandlePostRequest_MethodErrorMessage(t *testing.T) {
	t.Parallel()

	rr := post(t, createTestPostHandler(t), "application/json",
		`{"jsonrpc":"2.0","id":7,"method":"test.params","params":{"amount":-1}}`)

	var resp models.ResponseErrorObject
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "amount must be greater than 0", resp.Error.Message)
	assert.JSONEq(t, `7`, string(resp.ID.RawMessage))
}

func TestHandlePostRequest_ContentType(t *testing.T) {
	t.Parallel()

	handler := createTestPostHandler(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"test.echo"}`

	assert.Equal(t, http.StatusUnsupportedMediaType, post(t, handler, "text/plain", body).Code)
	assert.Equal(t, http.StatusOK, post(t, handler, "application/json; charset=utf-8", body).Code)
}

func TestHandlePostRequest_Notification(t *testing.T) {
	t.Parallel()

	handler := createTestPostHandler(t)

	rr := post(t, handler, "application/json", `{"jsonrpc":"2.0","method":"test.echo"}`)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = post(t, handler, "application/json", `{"jsonrpc":"2.0","id":null,"method":"test.echo"}`)
	assert.Equal(t, http.StatusNoContent, rr.Code, "a null id is handled like a missing one")
}

func TestHandlePostRequest_OversizedBody(t *testing.T) {
	t.Parallel()

	body := `{"jsonrpc":"2.0","id":1,"method":"test.echo","params":"` +
		strings.Repeat("a", maxRequestSize) + `"}`
	rr := post(t, createTestPostHandler(t), "application/json", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestHandlePostRequest_NoContentIsNull(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	rr := post(t, handlePostRequest(NewMethodMap(), requests.RequestEnv{Config: cfg}), "application/json",
		`{"jsonrpc":"2.0","id":"r","method":"settings.reload"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"r","result":null}`, rr.Body.String())
}

func TestMethodMap(t *testing.T) {
	t.Parallel()

	m := NewMethodMap()
	for _, name := range []string{
		models.MethodVersion, models.MethodProfile, models.MethodProfileUpgrade,
		models.MethodProfileTokensAdd, models.MethodProfileUpdate, models.MethodMode,
		models.MethodModeSet, models.MethodChatSend, models.MethodChatHistory,
		models.MethodChatSuggestions, models.MethodChatReset, models.MethodPlaybackPlay,
		models.MethodPlaybackToggle, models.MethodPlaybackPause, models.MethodPlaybackResume,
		models.MethodPlaybackSeek, models.MethodPlaybackStop, models.MethodPlaybackStatus,
		models.MethodPlaybackSuspend, models.MethodPlaybackWake, models.MethodImagesEdit,
		models.MethodImagesGallery,
		models.MethodSettings, models.MethodSettingsUpdate, models.MethodSettingsReload,
	} {
		_, ok := m.GetMethod(name)
		assert.True(t, ok, name)
	}

	_, ok := m.GetMethod("CHAT.SEND")
	assert.True(t, ok, "lookup is case insensitive")

	err := m.AddMethod(models.MethodVersion, func(requests.RequestEnv) (any, error) { return nil, nil })
	require.ErrorIs(t, err, ErrDuplicateMethod)
	require.Error(t, m.AddMethod("", nil))
}

func startTestServer(t *testing.T) (*Server, chan models.Notification) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	notifications := make(chan models.Notification, 10)
	srv, err := Start(ctx, requests.RequestEnv{Config: testConfig(t)}, notifications)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, srv.Wait())
	})
	return srv, notifications
}

func hostPort(srv *Server) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(srv.Addr().(*net.TCPAddr).Port))
}

func dial(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	url := "ws://" + hostPort(srv) + Path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestStart_ListenerReadyOnReturn(t *testing.T) {
	t.Parallel()

	srv, _ := startTestServer(t)

	resp, err := http.Post("http://"+hostPort(srv)+Path, "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"version"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out models.ResponseObject
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Nil(t, out.Error)
	assert.Equal(t, map[string]any{"version": config.AppVersion}, out.Result)
}

func TestWebSocket_RequestAndBroadcast(t *testing.T) {
	t.Parallel()

	srv, notifications := startTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(msg))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","id":"v","method":"version"}`)))
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"v","result":{"version":"`+config.AppVersion+`"}}`, string(msg))

	notifications <- models.Notification{
		Method: models.NotificationModeChanged,
		Params: json.RawMessage(`{"mode":"upgrade"}`),
	}
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)

	var notif models.RequestObject
	require.NoError(t, json.Unmarshal(msg, &notif))
	assert.Equal(t, models.NotificationModeChanged, notif.Method)
	assert.True(t, notif.ID.IsAbsent())
	assert.JSONEq(t, `{"mode":"upgrade"}`, string(notif.Params))
}

func TestBroadcaster_EnqueueNeverBlocks(t *testing.T) {
	t.Parallel()

	b := &broadcaster{queue: make(chan []byte, 1)}
	done := make(chan struct{})
	go func() {
		for range 10 {
			b.enqueue(models.Notification{Method: models.NotificationPlaybackProgress})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}
	assert.Len(t, b.queue, 1)
}

func startRouter(t *testing.T, cfg *config.Instance, methodMap *MethodMap) *httptest.Server {
	t.Helper()
	m := melody.New()
	limiter := apimiddleware.NewIPRateLimiter(apimiddleware.DefaultLimits, nil)
	ts := httptest.NewServer(newRouter(methodMap, requests.RequestEnv{
		Config:  cfg,
		Context: context.Background(),
	}, m, limiter))
	t.Cleanup(func() {
		_ = m.Close()
		ts.Close()
	})
	return ts
}

func dialURL(t *testing.T, ts *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + Path
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err //nolint:wrapcheck // test helper
}

func TestWebSocket_SlowMethodDoesNotBlockConnection(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	methodMap := &MethodMap{methods: make(map[string]MethodFunc)}
	require.NoError(t, methodMap.AddMethod("slow.play", func(requests.RequestEnv) (any, error) {
		<-release
		return "played", nil
	}))
	require.NoError(t, methodMap.AddMethod("fast.stop", func(requests.RequestEnv) (any, error) {
		return "stopped", nil
	}))

	ts := startRouter(t, testConfig(t), methodMap)
	conn, _, err := dialURL(t, ts, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"slow.play"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","id":2,"method":"fast.stop"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err, "stop must be answered while play is pending")
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"result":"stopped"}`, string(msg))

	close(release)
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"played"}`, string(msg))
}

func TestWebSocket_OriginCheck(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.SetAllowedOrigins([]string{"https://app.example.org"})
	ts := startRouter(t, cfg, NewMethodMap())

	tests := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{name: "no origin", origin: "", allowed: true},
		{name: "local dev server", origin: "http://localhost:5173", allowed: true},
		{name: "capacitor app", origin: "capacitor://localhost", allowed: true},
		{name: "configured origin", origin: "https://app.example.org", allowed: true},
		{name: "foreign page", origin: "https://evil.example.com", allowed: false},
		{name: "localhost lookalike", origin: "http://localhost.evil.com", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			_, resp, err := dialURL(t, ts, header)
			if tt.allowed {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}
