// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/emvstat/internal/config"
)

const flushTimeout = 5 * time.Second

// natsConn is the part of *nats.Conn the sink uses
type natsConn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSSink publishes events to <subject>.<event type>. The event ID is
// sent as the Nats-Msg-Id header so JetStream can deduplicate.
type NATSSink struct {
	conn    natsConn
	subject string
	logger  zerolog.Logger
}

// DialNATS connects to the configured server
func DialNATS(cfg config.NATSConfig, logger zerolog.Logger) (*NATSSink, error) {
	logger = logger.With().Str("sink", "nats").Logger()

	nc, err := nats.Connect(
		cfg.URL,
		nats.Name("emvstat"),
		nats.ReconnectWait(3*time.Second),
		nats.MaxReconnects(-1),
		nats.MaxPingsOutstanding(5),
		nats.PingInterval(10*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("NATS connection to %s failed: %w", cfg.URL, err)
	}
	logger.Info().Str("url", cfg.URL).Msg("connected to NATS")

	return &NATSSink{conn: nc, subject: cfg.Subject, logger: logger}, nil
}

// Publish implements Sink
func (s *NATSSink) Publish(ctx context.Context, event Event) error {
	body, err := event.Body()
	if err != nil {
		return err
	}

	msg := nats.NewMsg(s.subject + "." + string(event.Type))
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	msg.Data = body

	if err := s.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Subject, err)
	}
	// FlushWithContext requires a deadline
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", msg.Subject, err)
	}
	s.logger.Debug().Str("subject", msg.Subject).Str("id", event.ID).Msg("event published")
	return nil
}

// Close implements Sink
func (s *NATSSink) Close() error {
	s.conn.Close()
	return nil
}
