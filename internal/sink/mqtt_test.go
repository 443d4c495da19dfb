// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/emvstat/internal/config"
)

// fakeToken is a paho token that is already complete, or never completes
// when pending is set
type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error, pending bool) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	if !pending {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type publishedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient overrides the mqtt.Client methods the sink calls
type fakeClient struct {
	mqtt.Client
	connected    bool
	connectErrs  []error
	connects     int
	pending      bool
	publishErr   error
	published    []publishedMessage
	disconnected bool
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Connect() mqtt.Token {
	c.connects++
	if c.pending {
		return newFakeToken(nil, true)
	}
	if len(c.connectErrs) > 0 {
		err := c.connectErrs[0]
		c.connectErrs = c.connectErrs[1:]
		return newFakeToken(err, false)
	}
	c.connected = true
	return newFakeToken(nil, false)
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, publishedMessage{topic, qos, retained, payload.([]byte)})
	return newFakeToken(c.publishErr, false)
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.disconnected = true
	c.connected = false
}

func newTestMQTTSink(client *fakeClient) *MQTTSink {
	return &MQTTSink{
		client:     client,
		topic:      "emvstat/scans",
		qos:        1,
		retryDelay: time.Millisecond,
		logger:     zerolog.Nop(),
	}
}

func TestMQTTSink_ConnectRetries(t *testing.T) {
	t.Parallel()

	client := &fakeClient{connectErrs: []error{errors.New("refused"), errors.New("refused")}}
	s := newTestMQTTSink(client)

	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, 3, client.connects)
	assert.True(t, client.IsConnected())
}

func TestMQTTSink_ConnectCancelled(t *testing.T) {
	t.Parallel()

	client := &fakeClient{pending: true}
	s := newTestMQTTSink(client)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Connect(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMQTTSink_Publish(t *testing.T) {
	t.Parallel()

	client := &fakeClient{connected: true}
	s := newTestMQTTSink(client)
	event := decodedEvent(t)

	require.NoError(t, s.Publish(context.Background(), event))
	require.Len(t, client.published, 1)

	msg := client.published[0]
	assert.Equal(t, "emvstat/scans/decoded", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.False(t, msg.retained)
	body, err := event.Body()
	require.NoError(t, err)
	assert.JSONEq(t, string(body), string(msg.payload))
}

func TestMQTTSink_PublishErrors(t *testing.T) {
	t.Parallel()

	s := newTestMQTTSink(&fakeClient{})
	assert.ErrorIs(t, s.Publish(context.Background(), decodedEvent(t)), ErrNotConnected)

	failing := newTestMQTTSink(&fakeClient{connected: true, publishErr: errors.New("queue full")})
	err := failing.Publish(context.Background(), decodedEvent(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emvstat/scans/decoded")
	assert.Contains(t, err.Error(), "queue full")
}

func TestMQTTSink_Close(t *testing.T) {
	t.Parallel()

	client := &fakeClient{connected: true}
	require.NoError(t, newTestMQTTSink(client).Close())
	assert.True(t, client.disconnected)

	idle := &fakeClient{}
	require.NoError(t, newTestMQTTSink(idle).Close())
	assert.False(t, idle.disconnected)
}

func TestNewMQTTSink_NotConnected(t *testing.T) {
	t.Parallel()

	cfg := config.Default().MQTT
	cfg.Broker = "127.0.0.1"
	cfg.RetryDelay = 0

	s := NewMQTTSink(cfg, zerolog.Nop())
	assert.Equal(t, 5*time.Second, s.retryDelay)
	assert.Equal(t, "emvstat/scans", s.topic)
	assert.ErrorIs(t, s.Publish(context.Background(), decodedEvent(t)), ErrNotConnected)
	assert.NoError(t, s.Close())
}
