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
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/refugium/companion-core/pkg/config"
)

// Paths holds the directories the service reads from and writes to.
type Paths struct {
	DataDir   string
	ConfigDir string
	TempDir   string
	LogDir    string
}

var (
	userDirOnce        sync.Once
	userDirCache       string
	userDirCacheExists bool
)

// HasUserDir checks if a "user" directory exists next to the executable
// and returns its absolute path. When present it replaces the config and
// data directories, for a portable install. The result is cached after the
// first call.
func HasUserDir() (string, bool) {
	userDirOnce.Do(func() {
		exePath := os.Getenv(config.AppEnv)
		if exePath == "" {
			var err error
			exePath, err = os.Executable()
			if err != nil {
				return
			}
		}

		userDir := filepath.Join(filepath.Dir(exePath), config.UserDir)
		info, err := os.Stat(userDir)
		if err != nil || !info.IsDir() {
			return
		}

		userDirCache = userDir
		userDirCacheExists = true
	})

	return userDirCache, userDirCacheExists
}

// DefaultPaths resolves the standard directories using the XDG base
// directory layout.
func DefaultPaths() Paths {
	tempDir := filepath.Join(os.TempDir(), config.AppName)

	if v, ok := HasUserDir(); ok {
		return Paths{
			DataDir:   v,
			ConfigDir: v,
			TempDir:   tempDir,
			LogDir:    filepath.Join(v, config.LogsDir),
		}
	}

	return Paths{
		DataDir:   filepath.Join(xdg.DataHome, config.AppName),
		ConfigDir: filepath.Join(xdg.ConfigHome, config.AppName),
		TempDir:   tempDir,
		LogDir:    filepath.Join(xdg.DataHome, config.AppName, config.LogsDir),
	}
}

func (p Paths) UserDBPath() string {
	return filepath.Join(p.DataDir, config.UserDbFile)
}

func (p Paths) GalleryDir() string {
	return filepath.Join(p.DataDir, config.GalleryDir)
}

// SpeechCacheDir holds voiced messages. It is disposable.
func (p Paths) SpeechCacheDir() string {
	return filepath.Join(p.TempDir, config.SpeechCacheDir)
}

// EnsureDirectories creates the temp, log and data directories.
func EnsureDirectories(p Paths) error {
	if err := os.MkdirAll(p.TempDir, 0o750); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	if err := os.MkdirAll(p.LogDir, 0o750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := os.MkdirAll(p.DataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}
