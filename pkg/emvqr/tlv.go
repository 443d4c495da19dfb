// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

import (
	"errors"
	"fmt"
	"strconv"
)

// Radix is the numeric base of 2-character length fields and of tag range
// comparisons. It is fixed per profile and never auto-detected: "10" is a
// valid length in both bases but places the next record at different offsets.
type Radix int

// Supported radices
const (
	RadixDecimal Radix = 10
	RadixHex     Radix = 16
)

// String returns the radix name
func (r Radix) String() string {
	switch r {
	case RadixDecimal:
		return "decimal"
	case RadixHex:
		return "hex"
	default:
		return fmt.Sprintf("base-%d", int(r))
	}
}

// ErrTruncatedStream is reported by Tokenizer.Scan when the input ended in
// the middle of a record. Tokenize treats the same condition as end of input.
var ErrTruncatedStream = errors.New("emvqr: truncated TLV stream")

// TruncationReason tells which part of a record was incomplete
type TruncationReason int

const (
	TruncatedTag TruncationReason = iota
	TruncatedLength
	InvalidLength
	TruncatedValue
)

// String returns a short description of the reason
func (r TruncationReason) String() string {
	switch r {
	case TruncatedTag:
		return "incomplete tag"
	case TruncatedLength:
		return "incomplete length"
	case InvalidLength:
		return "unparsable length"
	case TruncatedValue:
		return "value shorter than declared length"
	default:
		return "unknown"
	}
}

// TruncationError locates where tokenizing stopped
type TruncationError struct {
	Offset int
	Reason TruncationReason
}

// Error implements the error interface
func (e *TruncationError) Error() string {
	return fmt.Sprintf("%v at offset %d: %s", ErrTruncatedStream, e.Offset, e.Reason)
}

// Unwrap allows errors.Is(err, ErrTruncatedStream)
func (e *TruncationError) Unwrap() error {
	return ErrTruncatedStream
}

// Record is one Tag-Length-Value entry. Length and Value count characters,
// not bytes. Children is only populated for records whose value the decoder
// treats as a nested template.
type Record struct {
	Tag      string
	Length   int
	Value    string
	Children []Record
}

// Tokenizer splits a TLV stream into records without interpreting them
type Tokenizer struct {
	radix  Radix
	tracer Tracer
}

// NewTokenizer creates a tokenizer for the given length radix. A nil tracer
// disables tracing.
func NewTokenizer(radix Radix, tracer Tracer) *Tokenizer {
	if tracer == nil {
		tracer = NopTracer{}
	}
	return &Tokenizer{
		radix:  radix,
		tracer: tracer,
	}
}

// Radix returns the tokenizer's length radix
func (t *Tokenizer) Radix() Radix {
	return t.radix
}

// Tokenize returns the complete records of data. A truncated or unparsable
// trailing record ends the scan and is dropped; this is not an error.
// Nested values are not tokenized.
func (t *Tokenizer) Tokenize(data string) []Record {
	records, _ := t.scan(data, 0)
	return records
}

// Scan is Tokenize that also reports a *TruncationError when the scan
// stopped before the end of data. The returned records are the same.
func (t *Tokenizer) Scan(data string) ([]Record, error) {
	return t.scan(data, 0)
}

func (t *Tokenizer) scan(data string, depth int) ([]Record, error) {
	chars := []rune(data)
	records := make([]Record, 0, 8)
	index := 0

	for index < len(chars) {
		start := index

		// Tag (2 characters)
		if index+TagSize > len(chars) {
			return records, t.truncated(depth, start, TruncatedTag)
		}
		tag := string(chars[index : index+TagSize])
		index += TagSize

		// Length (2 characters in the configured radix)
		if index+LengthSize > len(chars) {
			return records, t.truncated(depth, start, TruncatedLength)
		}
		length, err := parseNumber(string(chars[index:index+LengthSize]), t.radix)
		if err != nil {
			return records, t.truncated(depth, start, InvalidLength)
		}
		index += LengthSize

		// Value (length characters)
		if index+length > len(chars) {
			return records, t.truncated(depth, start, TruncatedValue)
		}
		value := string(chars[index : index+length])
		index += length

		record := Record{Tag: tag, Length: length, Value: value}
		t.tracer.TraceRecord(depth, start, record)
		records = append(records, record)
	}

	return records, nil
}

func (t *Tokenizer) truncated(depth, offset int, reason TruncationReason) error {
	t.tracer.TraceTruncated(depth, offset, reason)
	return &TruncationError{Offset: offset, Reason: reason}
}

// parseNumber parses a tag or length field in the given radix
func parseNumber(s string, radix Radix) (int, error) {
	n, err := strconv.ParseUint(s, int(radix), 16)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// findRecord returns the value of the first record with the given tag
func findRecord(records []Record, tag string) (string, bool) {
	for _, r := range records {
		if r.Tag == tag {
			return r.Value, true
		}
	}
	return "", false
}
