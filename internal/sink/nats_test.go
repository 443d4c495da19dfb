// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNATSConn struct {
	msgs        []*nats.Msg
	publishErr  error
	flushErr    error
	hadDeadline bool
	closed      bool
}

func (c *fakeNATSConn) PublishMsg(m *nats.Msg) error {
	c.msgs = append(c.msgs, m)
	return c.publishErr
}

func (c *fakeNATSConn) FlushWithContext(ctx context.Context) error {
	_, c.hadDeadline = ctx.Deadline()
	return c.flushErr
}

func (c *fakeNATSConn) Close() {
	c.closed = true
}

func TestNATSSink_Publish(t *testing.T) {
	t.Parallel()

	conn := &fakeNATSConn{}
	s := &NATSSink{conn: conn, subject: "emvstat.scans", logger: zerolog.Nop()}
	event := decodedEvent(t)

	require.NoError(t, s.Publish(context.Background(), event))
	require.Len(t, conn.msgs, 1)

	msg := conn.msgs[0]
	assert.Equal(t, "emvstat.scans.decoded", msg.Subject)
	assert.Equal(t, event.ID, msg.Header.Get(nats.MsgIdHdr))
	body, err := event.Body()
	require.NoError(t, err)
	assert.JSONEq(t, string(body), string(msg.Data))
	assert.True(t, conn.hadDeadline)
}

func TestNATSSink_PublishErrors(t *testing.T) {
	t.Parallel()

	conn := &fakeNATSConn{publishErr: errors.New("slow consumer")}
	s := &NATSSink{conn: conn, subject: "emvstat.scans", logger: zerolog.Nop()}
	err := s.Publish(context.Background(), NewEvent("", "AB", nil, nil, errors.New("bad")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emvstat.scans.malformed")

	conn = &fakeNATSConn{flushErr: nats.ErrConnectionClosed}
	s = &NATSSink{conn: conn, subject: "emvstat.scans", logger: zerolog.Nop()}
	assert.ErrorIs(t, s.Publish(context.Background(), decodedEvent(t)), nats.ErrConnectionClosed)
}

func TestNATSSink_Close(t *testing.T) {
	t.Parallel()

	conn := &fakeNATSConn{}
	s := &NATSSink{conn: conn, subject: "emvstat.scans", logger: zerolog.Nop()}
	require.NoError(t, s.Close())
	assert.True(t, conn.closed)
}
