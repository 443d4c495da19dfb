// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/emvstat/internal/config"
)

// ErrNotConnected is returned when publishing before Connect succeeded
var ErrNotConnected = errors.New("sink: broker not connected")

// MQTTSink publishes events to <topic>/<event type>
type MQTTSink struct {
	client     mqtt.Client
	topic      string
	qos        byte
	retain     bool
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewMQTTSink creates an MQTT sink. Call Connect before publishing.
func NewMQTTSink(cfg config.MQTTConfig, logger zerolog.Logger) *MQTTSink {
	logger = logger.With().Str("sink", "mqtt").Logger()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logger.Info().Str("broker", cfg.Broker).Msg("connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	retryDelay := time.Duration(cfg.RetryDelay) * time.Millisecond
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}

	return &MQTTSink{
		client:     mqtt.NewClient(opts),
		topic:      cfg.Topic,
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Connect connects to the broker, retrying until ctx is done
func (s *MQTTSink) Connect(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := waitToken(ctx, s.client.Connect())
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("MQTT connection cancelled: %w", ctx.Err())
		}
		s.logger.Warn().Err(err).Int("attempt", attempt).
			Dur("retry_in", s.retryDelay).Msg("MQTT connection failed")

		select {
		case <-ctx.Done():
			return fmt.Errorf("MQTT connection cancelled: %w", ctx.Err())
		case <-time.After(s.retryDelay):
		}
	}
}

// Publish implements Sink
func (s *MQTTSink) Publish(ctx context.Context, event Event) error {
	if !s.client.IsConnected() {
		return ErrNotConnected
	}
	body, err := event.Body()
	if err != nil {
		return err
	}

	topic := s.topic + "/" + string(event.Type)
	if err := waitToken(ctx, s.client.Publish(topic, s.qos, s.retain, body)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	s.logger.Debug().Str("topic", topic).Str("id", event.ID).Msg("event published")
	return nil
}

// Close implements Sink
func (s *MQTTSink) Close() error {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	return nil
}

// waitToken waits for a paho token or ctx, whichever comes first
func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
