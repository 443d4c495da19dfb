// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

// Tracer observes tokenizer progress. Depth is 0 for the top-level stream
// and increases by one for each nested template. Offsets count characters
// from the start of the stream being tokenized.
//
// Tracers are for diagnostics only; decoding never depends on them.
type Tracer interface {
	TraceRecord(depth, offset int, r Record)
	TraceTruncated(depth, offset int, reason TruncationReason)
}

// NopTracer discards all events
type NopTracer struct{}

// TraceRecord implements Tracer
func (NopTracer) TraceRecord(depth, offset int, r Record) {}

// TraceTruncated implements Tracer
func (NopTracer) TraceTruncated(depth, offset int, reason TruncationReason) {}
