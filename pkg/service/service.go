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

// Package service wires the companion session together: profile store,
// session state, generation, playback, chat and image flows, and the API.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/refugium/companion-core/pkg/api"
	"github.com/refugium/companion-core/pkg/api/methods"
	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/api/models/requests"
	"github.com/refugium/companion-core/pkg/api/notifications"
	"github.com/refugium/companion-core/pkg/audio"
	"github.com/refugium/companion-core/pkg/config"
	"github.com/refugium/companion-core/pkg/database/userdb"
	"github.com/refugium/companion-core/pkg/entitlement"
	"github.com/refugium/companion-core/pkg/generation"
	"github.com/refugium/companion-core/pkg/helpers"
	"github.com/refugium/companion-core/pkg/helpers/syncutil"
	"github.com/refugium/companion-core/pkg/identity"
	"github.com/refugium/companion-core/pkg/playback"
	"github.com/refugium/companion-core/pkg/service/broker"
	"github.com/refugium/companion-core/pkg/service/chat"
	"github.com/refugium/companion-core/pkg/service/discovery"
	"github.com/refugium/companion-core/pkg/service/images"
	"github.com/refugium/companion-core/pkg/service/profiles"
	"github.com/refugium/companion-core/pkg/service/publishers"
	"github.com/refugium/companion-core/pkg/service/state"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const apiSubscriberBuffer = 100

// Options replaces parts of the service for tests. Zero values pick the
// configured implementations.
type Options struct {
	Clock     clockwork.Clock
	Generator generation.Generator
	Output    playback.Output
	Fs        afero.Fs
	Discovery discovery.Options
}

// ApplyLogLevel sets the global log level from the config.
func ApplyLogLevel(cfg *config.Instance) {
	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// openStore picks the profile store for the identity. The returned close
// func is never nil.
func openStore(
	ctx context.Context,
	cfg *config.Instance,
	paths helpers.Paths,
	ident identity.Identity,
	clock clockwork.Clock,
) (profiles.Store, func(), error) {
	defaults := profiles.Defaults{
		Name:   cfg.PersonaName(),
		Trait:  cfg.PersonaTrait(),
		Tokens: cfg.StartingTokens(),
	}

	if cfg.StoreBackend() == config.StoreMemory || ident.Local {
		log.Info().Msg("using in-memory profile store")
		return profiles.NewMemoryStore(defaults), func() {}, nil
	}

	log.Debug().Msg("opening user database")
	db, err := userdb.OpenUserDB(ctx, paths.UserDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open user database: %w", err)
	}

	log.Debug().Msg("running user database migrations")
	if err := db.MigrateUp(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("error migrating userdb: %w", err)
	}

	defaults.Trait = config.NewProfileTrait
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing user database")
		}
	}
	return profiles.NewSQLStore(db, defaults, clock), closeDB, nil
}

func newGenerator(ctx context.Context, cfg *config.Instance) generation.Generator {
	gen, err := generation.New(ctx, cfg)
	if err != nil {
		if errors.Is(err, generation.ErrNoAPIKey) {
			log.Warn().Msg("no generation api key set, running offline")
		} else {
			log.Error().Err(err).Msg("error creating generator, running offline")
		}
		return generation.Offline{}
	}
	log.Info().Str("provider", cfg.GenerationProvider()).Msg("generation service ready")
	return gen
}

func newOutput(cfg *config.Instance) playback.Output {
	if cfg.PlaybackOutput() == config.OutputNull {
		log.Info().Msg("playback output disabled")
		return audio.NullOutput{}
	}
	return audio.NewMalgoOutput()
}

// playbackNotifier turns tracker changes into notifications. Transitions
// are sent as playback.state, position updates as playback.progress.
func playbackNotifier(ns chan<- models.Notification) func(playback.Status) {
	var (
		mu   syncutil.Mutex
		last = playback.StateIdle
	)
	return func(st playback.Status) {
		mu.Lock()
		changed := st.State != last
		last = st.State
		mu.Unlock()

		payload := methods.PlaybackStatus(st)
		if changed {
			notifications.PlaybackState(ns, payload)
		} else {
			notifications.PlaybackProgress(ns, payload)
		}
	}
}

func Start(
	cfg *config.Instance,
	paths helpers.Paths,
	opts Options,
) (stop func() error, done <-chan struct{}, err error) {
	log.Info().Msgf("version: %s", config.AppVersion)

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	ident, err := identity.Resolve(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("could not derive device identity, using local user")
	}
	log.Info().Bool("anonymous", ident.Anonymous).Msg("resolved identity")

	// the user database keeps this context for every query
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg, paths, ident, clock)
	if err != nil {
		log.Error().Err(err).Msg("error opening profile store")
		return nil, nil, err
	}

	profile, err := store.Load(ctx, ident.UserID)
	if err != nil {
		log.Error().Err(err).Msg("error loading profile, using defaults")
	}

	st, ns := state.NewState(state.Options{
		Clock:    clock,
		Identity: ident,
		Memories: cfg.Memories(),
		Profile:  profile,
		Gate:     entitlement.NewGate(cfg.TrialDuration()),
	})
	cancelObserve := store.Observe(ident.UserID, st.ApplyProfile)

	notifBroker := broker.NewBroker(st.GetContext(), ns)
	notifBroker.Start()

	gen := opts.Generator
	if gen == nil {
		gen = newGenerator(st.GetContext(), cfg)
	}

	output := opts.Output
	if output == nil {
		output = newOutput(cfg)
	}
	tracker := playback.NewTracker(output, playback.Options{
		Clock:        clock,
		OnChange:     playbackNotifier(st.Notifications),
		PollInterval: cfg.PlaybackPollInterval(),
		Tolerance:    cfg.PlaybackCompletionTolerance(),
	})

	chatSvc := chat.NewService(chat.Options{
		State:     st,
		Store:     store,
		Generator: gen,
		Player:    tracker,
		Fs:        fs,
		CacheDir:  paths.SpeechCacheDir(),
	})
	if err := chatSvc.Load(st.GetContext()); err != nil {
		log.Error().Err(err).Msg("error loading chat history")
	}

	imagesSvc := images.NewService(images.Options{
		State:     st,
		Store:     store,
		Generator: gen,
		Fs:        fs,
		Dir:       paths.GalleryDir(),
	})

	teardown := func() {
		tracker.Close()
		if closer, ok := output.(interface{ Close() }); ok {
			closer.Close()
		}
		cancelObserve()
		closeStore()
	}

	log.Info().Msg("starting API service")
	apiNotifications, _ := notifBroker.Subscribe(apiSubscriberBuffer)
	srv, err := api.Start(st.GetContext(), requests.RequestEnv{
		Config: cfg,
		State:  st,
		Store:  store,
		Chat:   chatSvc,
		Images: imagesSvc,
		Player: tracker,
		OnSettingsChanged: func() {
			ApplyLogLevel(cfg)
		},
	}, apiNotifications)
	if err != nil {
		log.Error().Err(err).Msg("error starting API service")
		st.StopService()
		<-notifBroker.Done()
		teardown()
		return nil, nil, fmt.Errorf("failed to start api: %w", err)
	}

	log.Info().Msg("starting publishers")
	activePublishers := publishers.StartMQTTPublishers(cfg.GetMQTTPublishers(), notifBroker)

	announcer := discovery.New(cfg, opts.Discovery)
	if err := announcer.Start(); err != nil {
		log.Warn().Err(err).Msg("network discovery not started")
	}

	var g errgroup.Group
	g.Go(func() error {
		return srv.Wait()
	})
	g.Go(func() error {
		err := cfg.Watch(st.GetContext(), func() {
			log.Info().Msg("config reloaded from disk")
			ApplyLogLevel(cfg)
		})
		if err != nil {
			log.Warn().Err(err).Msg("config watcher stopped")
		}
		return nil
	})

	doneCh := make(chan struct{})
	go func() {
		<-st.GetContext().Done()
		log.Info().Msg("service context cancelled, running cleanup")

		announcer.Stop()
		publishers.StopAll(activePublishers)
		if err := g.Wait(); err != nil {
			log.Error().Err(err).Msg("api server stopped with error")
		}
		teardown()
		<-notifBroker.Done()

		log.Info().Msg("service cleanup completed")
		close(doneCh)
	}()

	log.Info().Str("addr", srv.Addr().String()).Msg("service fully initialized")

	stop = func() error {
		st.StopService()
		<-doneCh
		return nil
	}
	return stop, doneCh, nil
}
