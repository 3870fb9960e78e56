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

// Package api serves the JSON-RPC 2.0 API over WebSocket at /api, with a
// plain HTTP POST fallback on the same path for one-shot calls.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/olahol/melody"
	"github.com/refugium/companion-core/pkg/api/methods"
	apimiddleware "github.com/refugium/companion-core/pkg/api/middleware"
	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/api/models/requests"
	"github.com/refugium/companion-core/pkg/api/validation"
	"github.com/refugium/companion-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

const (
	Path = "/api"

	maxRequestSize     = 10 << 20
	broadcastQueueSize = 256
	shutdownTimeout    = 5 * time.Second
)

var (
	JSONRPCErrorParseError = models.ErrorObject{
		Code:    -32700,
		Message: "Parse error",
	}
	JSONRPCErrorInvalidRequest = models.ErrorObject{
		Code:    -32600,
		Message: "Invalid Request",
	}
	JSONRPCErrorMethodNotFound = models.ErrorObject{
		Code:    -32601,
		Message: "Method not found",
	}
	JSONRPCErrorInvalidParams = models.ErrorObject{
		Code:    -32602,
		Message: "Invalid params",
	}
	JSONRPCErrorInternalError = models.ErrorObject{
		Code:    -32603,
		Message: "Internal error",
	}
	JSONRPCErrorServerError = models.ErrorObject{
		Code:    -32000,
		Message: "Server error",
	}
)

var ErrDuplicateMethod = errors.New("method already registered")

type MethodFunc func(requests.RequestEnv) (any, error)

// MethodMap is the registry of callable methods. Names are case
// insensitive.
type MethodMap struct {
	methods map[string]MethodFunc
	mu      syncutil.RWMutex
}

// NewMethodMap returns a map holding every built-in method.
func NewMethodMap() *MethodMap {
	m := &MethodMap{methods: make(map[string]MethodFunc)}
	for name, fn := range map[string]MethodFunc{
		models.MethodVersion: methods.HandleVersion,
		// profile
		models.MethodProfile:          methods.HandleProfile,
		models.MethodProfileUpgrade:   methods.HandleProfileUpgrade,
		models.MethodProfileTokensAdd: methods.HandleProfileTokensAdd,
		models.MethodProfileUpdate:    methods.HandleProfileUpdate,
		models.MethodMode:             methods.HandleMode,
		models.MethodModeSet:          methods.HandleModeSet,
		// chat
		models.MethodChatSend:        methods.HandleChatSend,
		models.MethodChatHistory:     methods.HandleChatHistory,
		models.MethodChatSuggestions: methods.HandleChatSuggestions,
		models.MethodChatReset:       methods.HandleChatReset,
		// playback
		models.MethodPlaybackPlay:    methods.HandlePlaybackPlay,
		models.MethodPlaybackToggle:  methods.HandlePlaybackToggle,
		models.MethodPlaybackPause:   methods.HandlePlaybackPause,
		models.MethodPlaybackResume:  methods.HandlePlaybackResume,
		models.MethodPlaybackSeek:    methods.HandlePlaybackSeek,
		models.MethodPlaybackStop:    methods.HandlePlaybackStop,
		models.MethodPlaybackStatus:  methods.HandlePlaybackStatus,
		models.MethodPlaybackSuspend: methods.HandlePlaybackSuspend,
		models.MethodPlaybackWake:    methods.HandlePlaybackWake,
		// images
		models.MethodImagesEdit:    methods.HandleImagesEdit,
		models.MethodImagesGallery: methods.HandleImagesGallery,
		// settings
		models.MethodSettings:       methods.HandleSettings,
		models.MethodSettingsUpdate: methods.HandleSettingsUpdate,
		models.MethodSettingsReload: methods.HandleSettingsReload,
	} {
		m.methods[name] = fn
	}
	return m
}

func (m *MethodMap) AddMethod(name string, fn MethodFunc) error {
	name = strings.ToLower(name)
	if name == "" || fn == nil {
		return errors.New("method name and handler are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.methods[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMethod, name)
	}
	m.methods[name] = fn
	return nil
}

func (m *MethodMap) GetMethod(name string) (MethodFunc, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.methods[strings.ToLower(name)]
	return fn, ok
}

// errorObject maps a handler error to a JSON-RPC error.
func errorObject(err error) models.ErrorObject {
	var valErr *validation.Error
	switch {
	case errors.As(err, &valErr):
		return models.ErrorObject{Code: JSONRPCErrorInvalidParams.Code, Message: valErr.Error()}
	case errors.Is(err, validation.ErrMissingParams),
		errors.Is(err, validation.ErrInvalidParams),
		errors.Is(err, methods.ErrMissingParams),
		errors.Is(err, methods.ErrInvalidParams):
		return models.ErrorObject{Code: JSONRPCErrorInvalidParams.Code, Message: err.Error()}
	default:
		return models.ErrorObject{Code: JSONRPCErrorServerError.Code, Message: err.Error()}
	}
}

func marshalError(id models.RPCID, errObj models.ErrorObject) []byte {
	data, err := json.Marshal(models.ResponseErrorObject{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &errObj,
	})
	if err != nil {
		log.Error().Err(err).Msg("error marshalling error response")
		return nil
	}
	return data
}

func marshalResult(id models.RPCID, result any) []byte {
	if _, ok := result.(methods.NoContent); ok {
		result = nil
	}
	data, err := json.Marshal(models.ResponseObject{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
	if err != nil {
		log.Error().Err(err).Msg("error marshalling response")
		return marshalError(id, JSONRPCErrorInternalError)
	}
	return data
}

// processRequest handles one raw JSON-RPC message and returns the encoded
// reply. A nil reply means nothing should be sent back.
func processRequest(methodMap *MethodMap, env requests.RequestEnv, msg []byte) []byte {
	if !json.Valid(msg) {
		log.Warn().Msg("api: data not valid json")
		return marshalError(models.NullRPCID, JSONRPCErrorParseError)
	}

	var req models.RequestObject
	if err := json.Unmarshal(msg, &req); err != nil {
		log.Warn().Err(err).Msg("api: invalid request object")
		return marshalError(models.NullRPCID, JSONRPCErrorInvalidRequest)
	}

	id := models.NullRPCID
	if !req.ID.IsAbsent() {
		id = *req.ID
	}

	if req.JSONRPC != "2.0" {
		log.Warn().Str("jsonrpc", req.JSONRPC).Msg("api: unsupported payload version")
		return marshalError(id, JSONRPCErrorInvalidRequest)
	}

	if req.Method == "" {
		if !req.ID.IsAbsent() {
			// a response from the client, nothing to answer
			log.Debug().Str("id", req.ID.String()).Msg("api: received response")
			return nil
		}
		return marshalError(id, JSONRPCErrorInvalidRequest)
	}

	if req.ID.IsAbsent() {
		log.Debug().Str("method", req.Method).Msg("api: received notification, ignoring")
		return nil
	}

	fn, ok := methodMap.GetMethod(req.Method)
	if !ok {
		log.Warn().Str("method", req.Method).Msg("api: unknown method")
		return marshalError(id, JSONRPCErrorMethodNotFound)
	}

	env.ID = id
	env.Params = req.Params
	result, err := fn(env)
	if err != nil {
		log.Warn().Err(err).Str("method", req.Method).Msg("api: method failed")
		return marshalError(id, errorObject(err))
	}
	return marshalResult(id, result)
}

func handleWSMessage(methodMap *MethodMap, base requests.RequestEnv) func(*melody.Session, []byte) {
	return func(session *melody.Session, msg []byte) {
		// heartbeat
		if string(msg) == "ping" {
			if err := session.Write([]byte("pong")); err != nil {
				log.Error().Err(err).Msg("api: sending pong")
			}
			return
		}

		env := base
		env.IsLocal = apimiddleware.IsLoopbackAddr(session.Request.RemoteAddr)
		// melody reads the next message only after this returns; a slow
		// method must not hold up a stop or pause on the same connection
		go func() {
			reply := processRequest(methodMap, env, msg)
			if reply == nil {
				return
			}
			if err := session.Write(reply); err != nil {
				log.Error().Err(err).Msg("api: sending response")
			}
		}()
	}
}

func handlePostRequest(methodMap *MethodMap, base requests.RequestEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		env := base
		env.Context = r.Context()
		env.IsLocal = apimiddleware.IsLoopbackAddr(r.RemoteAddr)
		reply := processRequest(methodMap, env, body)
		if reply == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(reply); err != nil {
			log.Error().Err(err).Msg("api: writing POST response")
		}
	}
}

// broadcaster forwards notifications to every WebSocket session in order.
// The consumer side never blocks: when the queue is full the notification
// is dropped.
type broadcaster struct {
	m     *melody.Melody
	queue chan []byte
}

func newBroadcaster(m *melody.Melody) *broadcaster {
	return &broadcaster{m: m, queue: make(chan []byte, broadcastQueueSize)}
}

func (b *broadcaster) enqueue(notif models.Notification) {
	data, err := json.Marshal(models.RequestObject{
		JSONRPC: "2.0",
		Method:  notif.Method,
		Params:  notif.Params,
	})
	if err != nil {
		log.Error().Err(err).Msg("api: marshalling notification")
		return
	}
	select {
	case b.queue <- data:
	default:
		log.Warn().Str("method", notif.Method).Msg("api: broadcast queue full, dropping notification")
	}
}

func (b *broadcaster) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-b.queue:
			if b.m.IsClosed() {
				continue
			}
			if err := b.m.Broadcast(data); err != nil {
				log.Error().Err(err).Msg("api: broadcasting notification")
			}
		}
	}
}

func (b *broadcaster) consume(ctx context.Context, notifications <-chan models.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-notifications:
			if !ok {
				return
			}
			b.enqueue(notif)
		}
	}
}

func newRouter(
	methodMap *MethodMap,
	base requests.RequestEnv,
	m *melody.Melody,
	limiter *apimiddleware.IPRateLimiter,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(apimiddleware.HTTPIPFilterMiddleware(apimiddleware.NewIPFilter(base.Config.AllowedIPs())))
	r.Use(apimiddleware.HTTPRateLimitMiddleware(limiter))

	origins := apimiddleware.NewOriginFilter(
		append(slices.Clone(apimiddleware.DefaultOrigins), base.Config.AllowedOrigins()...))
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: origins.AllowOriginFunc,
		AllowedMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:  []string{"Accept", "Content-Type"},
	}))

	m.Upgrader.CheckOrigin = origins.CheckWebSocketOrigin
	m.Config.MaxMessageSize = maxRequestSize
	m.HandleMessage(apimiddleware.WebSocketRateLimitHandler(limiter, handleWSMessage(methodMap, base)))

	r.Get(Path, func(w http.ResponseWriter, r *http.Request) {
		if err := m.HandleRequest(w, r); err != nil {
			log.Error().Err(err).Msg("api: handling websocket request")
		}
	})
	r.Post(Path, handlePostRequest(methodMap, base))

	return r
}

// Server is a running API server.
type Server struct {
	http *http.Server
	ln   net.Listener
	done chan struct{}
	err  error
}

// Start binds the listener before returning, so callers can connect
// immediately, then serves until ctx is cancelled. base supplies the
// dependencies copied into every RequestEnv.
func Start(
	ctx context.Context,
	base requests.RequestEnv,
	notifications <-chan models.Notification,
) (*Server, error) {
	if base.Config == nil {
		return nil, errors.New("api: config is required")
	}
	if base.Context == nil {
		base.Context = ctx
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", base.Config.APIListen())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", base.Config.APIListen(), err)
	}

	limiter := apimiddleware.NewIPRateLimiter(apimiddleware.DefaultLimits, nil)
	limiter.StartCleanup(ctx)

	m := melody.New()
	b := newBroadcaster(m)
	go b.run(ctx)
	if notifications != nil {
		go b.consume(ctx, notifications)
	}

	s := &Server{
		http: &http.Server{
			Handler:           newRouter(NewMethodMap(), base, m, limiter),
			ReadHeaderTimeout: 10 * time.Second,
		},
		ln:   ln,
		done: make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		log.Info().Str("addr", ln.Addr().String()).Msg("api: server listening")
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.err = fmt.Errorf("api server failed: %w", err)
		}
	}()

	go func() {
		<-ctx.Done()
		if err := m.Close(); err != nil {
			log.Debug().Err(err).Msg("api: closing websocket sessions")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("api: server shutdown")
		}
	}()

	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Wait blocks until the server has stopped.
func (s *Server) Wait() error {
	<-s.done
	return s.err
}
