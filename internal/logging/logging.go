// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging configures zerolog for the emvstat commands.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

// Output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New builds a logger writing to w. An empty level means info.
func New(level, format string, w io.Writer) (zerolog.Logger, error) {
	if level == "" {
		level = zerolog.InfoLevel.String()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var out io.Writer
	switch format {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	case FormatJSON:
		out = w
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q (use %s or %s)", format, FormatConsole, FormatJSON)
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// Setup builds a logger with New and installs it as the global logger
func Setup(level, format string, w io.Writer) (zerolog.Logger, error) {
	logger, err := New(level, format, w)
	if err != nil {
		return logger, err
	}
	log.Logger = logger
	return logger, nil
}

// Tracer forwards tokenizer events to a logger: records at trace level,
// truncations at debug level.
type Tracer struct {
	logger zerolog.Logger
}

// NewTracer adapts logger to the emvqr.Tracer interface
func NewTracer(logger zerolog.Logger) *Tracer {
	return &Tracer{logger: logger}
}

// TraceRecord implements emvqr.Tracer
func (t *Tracer) TraceRecord(depth, offset int, r emvqr.Record) {
	t.logger.Trace().
		Int("depth", depth).
		Int("offset", offset).
		Str("tag", r.Tag).
		Int("length", r.Length).
		Str("value", r.Value).
		Msg("tlv record")
}

// TraceTruncated implements emvqr.Tracer
func (t *Tracer) TraceTruncated(depth, offset int, reason emvqr.TruncationReason) {
	t.logger.Debug().
		Int("depth", depth).
		Int("offset", offset).
		Stringer("reason", reason).
		Msg("tlv stream truncated")
}

var _ emvqr.Tracer = (*Tracer)(nil)
