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

package publishers

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/refugium/companion-core/pkg/api/models"
	"github.com/refugium/companion-core/pkg/config"
	"github.com/refugium/companion-core/pkg/service/broker"
	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 64

// Message is the MQTT payload: the notification without the JSON-RPC
// wrapper.
type Message struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// MQTTPublisher forwards service notifications to an MQTT topic.
type MQTTPublisher struct {
	client    mqtt.Client
	newClient func(*mqtt.ClientOptions) mqtt.Client
	stopCh    chan struct{}
	broker    string
	topic     string
	filter    []string
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// NewMQTTPublisher creates a publisher for broker and topic. An empty
// filter publishes every notification method.
func NewMQTTPublisher(broker, topic string, filter []string) *MQTTPublisher {
	return &MQTTPublisher{
		broker:    broker,
		topic:     topic,
		filter:    filter,
		stopCh:    make(chan struct{}),
		newClient: mqtt.NewClient,
	}
}

// Filter is the list of methods to publish, empty for all.
func (p *MQTTPublisher) Filter() []string {
	return p.filter
}

// Start connects to the broker and publishes everything received on
// notifications until Stop or the channel closes.
func (p *MQTTPublisher) Start(notifications <-chan models.Notification) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + p.broker)
	opts.SetClientID("companion-publisher-" + uuid.New().String()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	opts.OnConnect = func(_ mqtt.Client) {
		log.Info().Msgf("mqtt publisher: connected to %s", p.broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt publisher: connection lost")
	}

	p.client = p.newClient(opts)

	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Info().Msgf("mqtt publisher: publishing to %s (topic: %s)", p.broker, p.topic)

	p.wg.Add(1)
	go p.publishNotifications(notifications)

	return nil
}

// Stop ends publishing and disconnects. Safe to call more than once.
func (p *MQTTPublisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()

		if p.client != nil && p.client.IsConnected() {
			log.Debug().Msg("mqtt publisher: disconnecting")
			p.client.Disconnect(250)
		}
	})
}

func (p *MQTTPublisher) publishNotifications(notifications <-chan models.Notification) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			log.Debug().Msg("mqtt publisher: stopping notification publisher")
			return
		case notif, ok := <-notifications:
			if !ok {
				log.Debug().Msg("mqtt publisher: notification channel closed")
				return
			}

			payload, err := json.Marshal(Message{Method: notif.Method, Params: notif.Params})
			if err != nil {
				log.Error().Err(err).Msg("mqtt publisher: failed to marshal notification")
				continue
			}

			token := p.client.Publish(p.topic, 0, false, payload)
			if token.Wait() && token.Error() != nil {
				log.Error().Err(token.Error()).Msg("mqtt publisher: failed to publish message")
				continue
			}

			log.Debug().Msgf("mqtt publisher: published %s notification", notif.Method)
		}
	}
}

// StartMQTTPublishers starts a publisher for every enabled config entry,
// each fed by its own filtered broker subscription. Publishers that fail
// to connect are logged and skipped.
func StartMQTTPublishers(cfgs []config.MQTTPublisher, b *broker.Broker) []*MQTTPublisher {
	started := make([]*MQTTPublisher, 0, len(cfgs))
	for _, c := range cfgs {
		if c.Enabled != nil && !*c.Enabled {
			continue
		}
		if c.Broker == "" || c.Topic == "" {
			log.Warn().Msg("mqtt publisher: broker and topic are required, skipping")
			continue
		}

		pub := NewMQTTPublisher(c.Broker, c.Topic, c.Filter)
		ch, id := b.Subscribe(subscriberBuffer, pub.Filter()...)
		if err := pub.Start(ch); err != nil {
			log.Error().Err(err).Str("broker", c.Broker).Msg("mqtt publisher: failed to start")
			b.Unsubscribe(id)
			continue
		}
		started = append(started, pub)
	}
	return started
}

func StopAll(pubs []*MQTTPublisher) {
	for _, p := range pubs {
		p.Stop()
	}
}
