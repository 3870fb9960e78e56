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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/refugium/companion-core/pkg/api/client"
	"github.com/refugium/companion-core/pkg/cli"
	"github.com/refugium/companion-core/pkg/config"
	"github.com/refugium/companion-core/pkg/helpers"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet(config.AppName, flag.ContinueOnError)
	flags := cli.SetupFlags(fs)

	exit, err := flags.Pre(fs, os.Args[1:], os.Stdout)
	if exit || err != nil {
		return err
	}

	paths := helpers.DefaultPaths()
	cfg, err := cli.Setup(paths, config.BaseDefaults, *flags.Daemon)
	if err != nil {
		return err
	}

	handled, err := flags.Post(context.Background(), fs, client.NewLocalAPIClient(cfg), os.Stdout)
	if handled {
		return err
	}

	return cli.RunApp(cfg, paths, *flags.Daemon)
}
