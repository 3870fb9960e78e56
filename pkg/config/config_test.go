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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_WritesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, CfgFile))
	require.NoError(t, err, "default config should be written to disk")

	assert.NotEmpty(t, cfg.DeviceID(), "device id should be generated on first save")
	assert.Equal(t, DefaultPersonaName, cfg.PersonaName())
	assert.Equal(t, StoreSQLite, cfg.StoreBackend())
	assert.Equal(t, ProviderGemini, cfg.GenerationProvider())
	assert.Equal(t, DefaultAPIPort, cfg.APIPort())
}

func TestNewConfig_DeviceIDStable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	second, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	assert.Equal(t, first.DeviceID(), second.DeviceID())
}

func TestLoad_FileValuesOverrideDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := `config_schema = 1
debug_logging = true

[store]
backend = "memory"

[playback]
poll_interval = "250ms"

[entitlements]
starting_tokens = 12
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, CfgFile), []byte(data), 0o600))

	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	assert.True(t, cfg.DebugLogging())
	assert.Equal(t, StoreMemory, cfg.StoreBackend())
	assert.Equal(t, IdentityLocal, cfg.IdentityMode())
	assert.Equal(t, 12, cfg.StartingTokens())
	assert.Equal(t, "250ms", cfg.PlaybackPollInterval().String())
	// untouched sections keep their defaults
	assert.Equal(t, DefaultPersonaName, cfg.PersonaName())
}

func TestLoad_SchemaMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CfgFile), []byte("config_schema = 99\n"), 0o600))

	_, err := NewConfig(dir, BaseDefaults)
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestLoad_InvalidToml(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CfgFile), []byte("config_schema = [\n"), 0o600))

	_, err := NewConfig(dir, BaseDefaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config")
}

func TestSave_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	require.NoError(t, cfg.SetVoice("Puck"))
	require.NoError(t, cfg.SetPlaybackPollInterval("50ms"))
	cfg.SetAPIPort(9000)
	require.NoError(t, cfg.Save())

	reloaded, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, "Puck", reloaded.Voice())
	assert.Equal(t, "50ms", reloaded.PlaybackPollInterval().String())
	assert.Equal(t, 9000, reloaded.APIPort())
	assert.Equal(t, ":9000", reloaded.APIListen())
}

func TestGenerationAPIKey_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(GeminiKeyEnv, "env-key")

	cfg, err := NewConfig(dir, Values{
		ConfigSchema: SchemaVersion,
		Generation:   Generation{APIKey: "file-key"},
	})
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.GenerationAPIKey())

	require.NoError(t, cfg.Save())
	data, err := os.ReadFile(filepath.Join(dir, CfgFile))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "file-key", "keys must not be written while env provides one")
	assert.Equal(t, "env-key", cfg.GenerationAPIKey())
}

func TestSetDebugLogging(t *testing.T) {
	t.Parallel()

	cfg := &Instance{}
	cfg.SetDebugLogging(true)
	assert.True(t, cfg.DebugLogging())
	cfg.SetDebugLogging(false)
	assert.False(t, cfg.DebugLogging())
}
