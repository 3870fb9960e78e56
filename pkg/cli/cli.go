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

// Package cli holds the command line flags and setup shared by the
// companion binaries.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/refugium/companion-core/internal/telemetry"
	"github.com/refugium/companion-core/pkg/api/client"
	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/config"
	"github.com/refugium/companion-core/pkg/helpers"
	"github.com/refugium/companion-core/pkg/service"
	"github.com/rs/zerolog/log"
)

var ErrEmptyFlag = errors.New("flag requires a value")

type Flags struct {
	API     *string
	Version *bool
	Reload  *bool
	Daemon  *bool
}

// SetupFlags defines all CLI flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		API: fs.String(
			"api",
			"",
			"send method:params to the running service and print the response",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		Reload: fs.Bool(
			"reload",
			false,
			"reload config from disk in the running service",
		),
		Daemon: fs.Bool(
			"daemon",
			false,
			"run service without an audio device, logging to stderr",
		),
	}
}

func isFlagPassed(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// ParseAPIFlag splits "method:params". Params are optional.
func ParseAPIFlag(value string) (method, params string, err error) {
	method, params, _ = strings.Cut(value, ":")
	method = strings.TrimSpace(method)
	if method == "" {
		return "", "", fmt.Errorf("api: %w", ErrEmptyFlag)
	}
	return method, params, nil
}

// Pre parses args and handles flags that need no environment. It returns
// true if the program should exit.
func (f *Flags) Pre(fs *flag.FlagSet, args []string, out io.Writer) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, nil
		}
		return true, fmt.Errorf("failed to parse flags: %w", err)
	}
	if *f.Version {
		_, _ = fmt.Fprintf(out, "Companion v%s\n", config.AppVersion)
		return true, nil
	}
	return false, nil
}

// Post handles flags that talk to a running service. It returns true if a
// flag was handled and the program should exit.
func (f *Flags) Post(ctx context.Context, fs *flag.FlagSet, api client.APIClient, out io.Writer) (bool, error) {
	switch {
	case isFlagPassed(fs, "api"):
		method, params, err := ParseAPIFlag(*f.API)
		if err != nil {
			return true, err
		}
		resp, err := api.Call(ctx, method, params)
		if err != nil {
			log.Error().Err(err).Msg("error calling API")
			return true, fmt.Errorf("error calling API: %w", err)
		}
		_, _ = fmt.Fprintln(out, resp)
		return true, nil
	case *f.Reload:
		if _, err := api.Call(ctx, models.MethodSettingsReload, ""); err != nil {
			log.Error().Err(err).Msg("error reloading settings")
			return true, fmt.Errorf("error reloading: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// Setup creates the directories, logging and config. Daemon mode renders
// no audio and also logs to stderr.
//
//nolint:gocritic // config struct copied for immutability
func Setup(
	paths helpers.Paths,
	defaultConfig config.Values,
	daemon bool,
) (*config.Instance, error) {
	if err := helpers.EnsureDirectories(paths); err != nil {
		return nil, fmt.Errorf("error creating directories: %w", err)
	}

	var writers []io.Writer
	if daemon {
		writers = []io.Writer{os.Stderr}
	}
	if err := helpers.InitLogging(paths, writers); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	cfg, err := config.NewConfig(paths.ConfigDir, defaultConfig)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	service.ApplyLogLevel(cfg)

	if err := telemetry.Init(
		cfg.ErrorReporting(),
		cfg.DeviceID(),
		config.AppVersion,
	); err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}

	return cfg, nil
}
