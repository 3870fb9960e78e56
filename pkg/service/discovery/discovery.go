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

// Package discovery announces the companion API on the local network with
// mDNS, so clients on the same network can connect without typing an
// address.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/refugium/companion-core/pkg/config"
	"github.com/refugium/companion-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
)

const (
	ServiceType = "_companion._tcp"
	domain      = "local."

	DefaultRetryInterval = 30 * time.Second
	DefaultMaxRetry      = 5 * time.Minute
)

var errNotRegistered = errors.New("mdns registration failed")

// container and VPN interfaces clients can't reach
var virtualPrefixes = []string{
	"docker", "br-", "veth", "virbr", "lxc", "lxd",
	"cni", "flannel", "cali", "tunl", "wg",
}

// Announcement is a live mDNS registration.
type Announcement interface {
	Shutdown()
}

// RegisterFunc publishes an instance on the given interfaces.
type RegisterFunc func(
	instance, service, domain string,
	port int,
	txt []string,
	ifaces []net.Interface,
) (Announcement, error)

func zeroconfRegister(
	instance, service, domain string,
	port int,
	txt []string,
	ifaces []net.Interface,
) (Announcement, error) {
	server, err := zeroconf.Register(instance, service, domain, port, txt, ifaces)
	if err != nil {
		return nil, fmt.Errorf("zeroconf register: %w", err)
	}
	return server, nil
}

type Options struct {
	Register      RegisterFunc
	Interfaces    func() ([]net.Interface, error)
	RetryInterval time.Duration
	MaxRetry      time.Duration
}

// Service keeps the API announced until Stop. If the network isn't up yet
// registration is retried in the background for a while.
type Service struct {
	announcement Announcement
	cfg          *config.Instance
	cancel       context.CancelFunc
	register     RegisterFunc
	interfaces   func() ([]net.Interface, error)
	instance     string
	interval     time.Duration
	maxRetry     time.Duration
	mu           syncutil.Mutex
	stopped      bool
}

func New(cfg *config.Instance, opts Options) *Service {
	if opts.Register == nil {
		opts.Register = zeroconfRegister
	}
	if opts.Interfaces == nil {
		opts.Interfaces = net.Interfaces
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = DefaultMaxRetry
	}
	return &Service{
		cfg:        cfg,
		register:   opts.Register,
		interfaces: opts.Interfaces,
		interval:   opts.RetryInterval,
		maxRetry:   opts.MaxRetry,
	}
}

// usableInterfaces keeps interfaces that are up, multicast capable, not
// loopback and not virtual.
func usableInterfaces(ifaces []net.Interface) []net.Interface {
	var usable []net.Interface
	for _, iface := range ifaces {
		switch {
		case iface.Flags&net.FlagUp == 0,
			iface.Flags&net.FlagLoopback != 0,
			iface.Flags&net.FlagMulticast == 0,
			isVirtual(iface.Name):
			continue
		}
		usable = append(usable, iface)
	}
	return usable
}

func isVirtual(name string) bool {
	name = strings.ToLower(name)
	for _, prefix := range virtualPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// instanceName is the configured name, else the host name, else a name
// derived from the device id.
func instanceName(cfg *config.Instance) string {
	if name := strings.TrimSpace(cfg.DiscoveryInstanceName()); name != "" {
		return name
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	if id := cfg.DeviceID(); len(id) >= 8 {
		return config.AppName + "-" + id[:8]
	}
	return config.AppName
}

func (s *Service) txtRecords() []string {
	return []string{
		"version=" + config.AppVersion,
		"path=/api",
		"persona=" + s.cfg.PersonaName(),
	}
}

// Start announces the API if discovery is enabled. It only fails when the
// service was already stopped.
func (s *Service) Start() error {
	if !s.cfg.DiscoveryEnabled() {
		log.Info().Msg("discovery: disabled by configuration")
		return nil
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return errors.New("discovery: service stopped")
	}
	s.instance = instanceName(s.cfg)
	ctx, cancel := context.WithTimeout(context.Background(), s.maxRetry)
	s.cancel = cancel
	s.mu.Unlock()

	if s.tryRegister() {
		cancel()
		return nil
	}

	log.Info().
		Dur("interval", s.interval).
		Dur("maxDuration", s.maxRetry).
		Msg("discovery: registration failed, retrying in background")
	go s.retryLoop(ctx)
	return nil
}

func (s *Service) retryLoop(ctx context.Context) {
	backoff := retry.NewConstant(s.interval)
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		if s.tryRegister() {
			return nil
		}
		return retry.RetryableError(errNotRegistered)
	})
	if err != nil {
		log.Warn().Err(err).Msg("discovery: giving up, network discovery unavailable")
		return
	}
	log.Info().Msg("discovery: registered after retry")
}

func (s *Service) tryRegister() bool {
	all, err := s.interfaces()
	if err != nil {
		log.Debug().Err(err).Msg("discovery: listing interfaces")
		return false
	}
	ifaces := usableInterfaces(all)
	if len(ifaces) == 0 {
		log.Debug().Msg("discovery: no usable network interface")
		return false
	}

	port := s.cfg.APIPort()
	ann, err := s.register(s.instance, ServiceType, domain, port, s.txtRecords(), ifaces)
	if err != nil {
		log.Debug().Err(err).Msg("discovery: registration attempt failed")
		return false
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		ann.Shutdown()
		return true
	}
	s.announcement = ann
	s.mu.Unlock()

	names := make([]string, 0, len(ifaces))
	for _, iface := range ifaces {
		names = append(names, iface.Name)
	}
	log.Info().
		Str("instance", s.instance).
		Int("port", port).
		Strs("interfaces", names).
		Msg("discovery: announcing api")
	return true
}

// Stop withdraws the announcement. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.announcement != nil {
		s.announcement.Shutdown()
		s.announcement = nil
	}
}

// InstanceName is empty until Start ran with discovery enabled.
func (s *Service) InstanceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instance
}

// Announced reports whether a registration is live.
func (s *Service) Announced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.announcement != nil
}
