// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sink publishes scan events to message brokers.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/Thermoquad/emvstat/internal/syncutil"
	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

// EventType classifies a scan event
type EventType string

const (
	EventDecoded   EventType = "decoded"
	EventMalformed EventType = "malformed"
)

// Event is one scanned payload and its decode outcome
type Event struct {
	ID        string               `json:"id"`
	Type      EventType            `json:"type"`
	Time      time.Time            `json:"time"`
	Source    string               `json:"source,omitempty"`
	Raw       string               `json:"raw"`
	Payload   *emvqr.ParsedPayload `json:"payload,omitempty"`
	Anomalies []string             `json:"anomalies,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// NewEvent builds an event for a decode result
func NewEvent(source, raw string, p *emvqr.ParsedPayload, anomalies []emvqr.Anomaly, decodeErr error) Event {
	event := Event{
		ID:     uuid.NewString(),
		Type:   EventDecoded,
		Time:   time.Now().UTC(),
		Source: source,
		Raw:    raw,
	}
	if decodeErr != nil {
		event.Type = EventMalformed
		event.Error = decodeErr.Error()
		return event
	}
	event.Payload = p
	for _, a := range anomalies {
		event.Anomalies = append(event.Anomalies, a.Message)
	}
	return event
}

// Body renders the event as the JSON message body
func (e Event) Body() ([]byte, error) {
	return json.Marshal(e)
}

// Sink receives scan events
type Sink interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Multi fans events out to several sinks. All sinks are attempted; the
// errors are joined.
type Multi []Sink

// Publish implements Sink
func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Sink
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// JSONLines writes one JSON event per line to w
type JSONLines struct {
	mu syncutil.Mutex
	w  io.Writer
}

// NewJSONLines creates a sink writing to w
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: w}
}

// Publish implements Sink
func (j *JSONLines) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := event.Body()
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.w.Write(append(body, '\n'))
	return err
}

// Close implements Sink
func (j *JSONLines) Close() error {
	return nil
}
