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

package discovery

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/refugium/companion-core/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnnouncement struct {
	shutdowns atomic.Int32
}

func (f *fakeAnnouncement) Shutdown() {
	f.shutdowns.Add(1)
}

type fakeRegistrar struct {
	ann      *fakeAnnouncement
	instance string
	txt      []string
	ifaces   []string
	failures int
	calls    int
	port     int
	mu       sync.Mutex
}

func (f *fakeRegistrar) register(
	instance, _, _ string,
	port int,
	txt []string,
	ifaces []net.Interface,
) (Announcement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("no route to host")
	}
	f.instance = instance
	f.port = port
	f.txt = txt
	for _, iface := range ifaces {
		f.ifaces = append(f.ifaces, iface.Name)
	}
	f.ann = &fakeAnnouncement{}
	return f.ann, nil
}

func (f *fakeRegistrar) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func lan() ([]net.Interface, error) {
	return []net.Interface{
		{Name: "lo", Flags: net.FlagUp | net.FlagLoopback | net.FlagMulticast},
		{Name: "eth0", Flags: net.FlagUp | net.FlagMulticast},
		{Name: "docker0", Flags: net.FlagUp | net.FlagMulticast},
		{Name: "wlan0", Flags: net.FlagMulticast},
	}, nil
}

func testConfig(t *testing.T, enabled bool) *config.Instance {
	t.Helper()
	cfg, err := config.NewConfig(t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)
	cfg.SetDiscoveryEnabled(enabled)
	return cfg
}

func TestUsableInterfaces(t *testing.T) {
	t.Parallel()

	all, err := lan()
	require.NoError(t, err)

	usable := usableInterfaces(all)
	require.Len(t, usable, 1)
	assert.Equal(t, "eth0", usable[0].Name)
}

func TestIsVirtual(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"docker0", "br-1a2b", "veth12", "VirBr0", "wg0", "cali9"} {
		assert.True(t, isVirtual(name), name)
	}
	for _, name := range []string{"eth0", "en0", "wlan0", "enp3s0"} {
		assert.False(t, isVirtual(name), name)
	}
}

func TestStart_Disabled(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistrar{}
	svc := New(testConfig(t, false), Options{Register: reg.register, Interfaces: lan})

	require.NoError(t, svc.Start())
	assert.Zero(t, reg.callCount())
	assert.False(t, svc.Announced())
	assert.Empty(t, svc.InstanceName())
}

func TestStart_Registers(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, true)
	cfg.SetAPIPort(7611)
	reg := &fakeRegistrar{}
	svc := New(cfg, Options{Register: reg.register, Interfaces: lan})

	require.NoError(t, svc.Start())
	require.True(t, svc.Announced())

	assert.Equal(t, 7611, reg.port)
	assert.Equal(t, []string{"eth0"}, reg.ifaces)
	assert.Contains(t, reg.txt, "path=/api")
	assert.Contains(t, reg.txt, "version="+config.AppVersion)
	assert.Contains(t, reg.txt, "persona="+cfg.PersonaName())
	assert.NotEmpty(t, reg.instance)
	assert.Equal(t, reg.instance, svc.InstanceName())

	svc.Stop()
	assert.False(t, svc.Announced())
	assert.Equal(t, int32(1), reg.ann.shutdowns.Load())
}

func TestStart_RetriesInBackground(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistrar{failures: 2}
	svc := New(testConfig(t, true), Options{
		Register:      reg.register,
		Interfaces:    lan,
		RetryInterval: 10 * time.Millisecond,
		MaxRetry:      5 * time.Second,
	})

	require.NoError(t, svc.Start())
	assert.Eventually(t, svc.Announced, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, reg.callCount())

	svc.Stop()
}

func TestStart_NoUsableInterface(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistrar{}
	none := func() ([]net.Interface, error) {
		return []net.Interface{{Name: "lo", Flags: net.FlagUp | net.FlagLoopback}}, nil
	}
	svc := New(testConfig(t, true), Options{
		Register:      reg.register,
		Interfaces:    none,
		RetryInterval: 10 * time.Millisecond,
		MaxRetry:      50 * time.Millisecond,
	})

	require.NoError(t, svc.Start())
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, reg.callCount())
	assert.False(t, svc.Announced())
	svc.Stop()
}

func TestStop_Idempotent(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistrar{}
	svc := New(testConfig(t, true), Options{Register: reg.register, Interfaces: lan})
	require.NoError(t, svc.Start())

	svc.Stop()
	svc.Stop()
	assert.Equal(t, int32(1), reg.ann.shutdowns.Load())
	assert.Error(t, svc.Start())
}

func TestInstanceName_Configured(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	defaults := config.BaseDefaults
	defaults.Service.Discovery = config.Discovery{InstanceName: "  wohnzimmer "}
	cfg, err := config.NewConfig(dir, defaults)
	require.NoError(t, err)

	assert.Equal(t, "wohnzimmer", instanceName(cfg))
}
