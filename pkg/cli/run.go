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

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/refugium/companion-core/internal/telemetry"
	"github.com/refugium/companion-core/pkg/audio"
	"github.com/refugium/companion-core/pkg/config"
	"github.com/refugium/companion-core/pkg/helpers"
	"github.com/refugium/companion-core/pkg/service"
	"github.com/rs/zerolog/log"
)

// RunApp runs the service until SIGINT/SIGTERM or an internal shutdown.
// If another instance is already serving the API it returns immediately.
func RunApp(cfg *config.Instance, paths helpers.Paths, daemonMode bool) (returnErr error) {
	defer func() {
		if r := recover(); r != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %v\n", r)
			log.Error().Msgf("panic recovered: %v", r)
			returnErr = fmt.Errorf("panic: %v", r)
		}
	}()
	defer telemetry.Close()

	if helpers.IsServiceRunning(cfg) {
		log.Info().
			Int("port", cfg.APIPort()).
			Msg("service already running, exiting")
		return nil
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	var opts service.Options
	if daemonMode {
		opts.Output = audio.NullOutput{}
	}

	stopSvc, done, err := service.Start(cfg, paths, opts)
	if err != nil {
		log.Error().Msgf("error starting service: %s", err)
		return fmt.Errorf("error starting service: %w", err)
	}
	defer func() {
		if err := stopSvc(); err != nil {
			log.Error().Msgf("error stopping service: %s", err)
		}
	}()

	if daemonMode {
		log.Info().Msg("started in daemon mode")
	}

	select {
	case <-sigs:
		log.Info().Msg("received shutdown signal")
	case <-done:
		log.Info().Msg("service shut down internally")
	}

	return nil
}
