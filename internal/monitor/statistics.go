// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package monitor tracks scan statistics and error rates for a stream of
// decoded payloads.
package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/emvstat/internal/syncutil"
	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

// Counters is a point-in-time copy of the statistics
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalScans     uint64
	ValidScans     uint64
	CRCErrors      uint64
	MalformedScans uint64

	// Incomplete payloads and their causes
	IncompleteScans   uint64
	MissingFields     uint64
	NoMerchantAccount uint64
	AnomalousValues   uint64

	StaticScans  uint64
	DynamicScans uint64

	// Rates (calculated)
	ScanRate  float64 // scans/sec
	ErrorRate float64 // errors/sec
}

// Errors returns the number of scans that were not clean
func (c Counters) Errors() uint64 {
	return c.CRCErrors + c.MalformedScans + c.IncompleteScans + c.AnomalousValues
}

// Statistics tracks scan statistics. It is safe for concurrent use.
type Statistics struct {
	mu  syncutil.Mutex
	c   Counters
	now func() time.Time
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{now: time.Now}
	s.reset()
	return s
}

// Update records the outcome of one decode. It returns the anomalies found
// in p, or nil when decodeErr is set.
func (s *Statistics) Update(p *emvqr.ParsedPayload, decodeErr error) []emvqr.Anomaly {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.TotalScans++
	s.c.LastUpdateTime = s.now()

	if decodeErr != nil || p == nil {
		s.c.MalformedScans++
		return nil
	}

	if p.IsDynamic() {
		s.c.DynamicScans++
	} else {
		s.c.StaticScans++
	}

	anomalies := emvqr.Inspect(p)
	if len(anomalies) == 0 {
		s.c.ValidScans++
		return anomalies
	}

	incomplete := false
	for _, a := range anomalies {
		switch a.Type {
		case emvqr.AnomalyCRCMismatch:
			s.c.CRCErrors++
		case emvqr.AnomalyMissingField:
			s.c.MissingFields++
			incomplete = true
		case emvqr.AnomalyNoMerchantAccount:
			s.c.NoMerchantAccount++
			incomplete = true
		default:
			s.c.AnomalousValues++
		}
	}
	if incomplete {
		s.c.IncompleteScans++
	}

	return anomalies
}

// CalculateRates calculates scan and error rates
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Statistics) calculateRates() {
	elapsed := s.now().Sub(s.c.StartTime).Seconds()
	if elapsed > 0 {
		s.c.ScanRate = float64(s.c.TotalScans) / elapsed
		s.c.ErrorRate = float64(s.c.Errors()) / elapsed
	}
}

// Snapshot returns a copy of the counters with fresh rates
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
	return s.c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	c := s.Snapshot()
	elapsed := s.now().Sub(c.StartTime)

	percent := func(n uint64) float64 {
		if c.TotalScans == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(c.TotalScans)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds()))
	sb.WriteString(fmt.Sprintf("Total Scans:     %8d\n", c.TotalScans))
	sb.WriteString(fmt.Sprintf("Valid Scans:     %8d (%.1f%%)\n", c.ValidScans, percent(c.ValidScans)))

	if c.CRCErrors > 0 {
		sb.WriteString(fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", c.CRCErrors, percent(c.CRCErrors)))
	}
	if c.MalformedScans > 0 {
		sb.WriteString(fmt.Sprintf("Malformed:       %8d (%.1f%%)\n", c.MalformedScans, percent(c.MalformedScans)))
	}
	if c.IncompleteScans > 0 {
		sb.WriteString(fmt.Sprintf("Incomplete:      %8d (%.1f%%)\n", c.IncompleteScans, percent(c.IncompleteScans)))
		if c.MissingFields > 0 {
			sb.WriteString(fmt.Sprintf("  Missing Fields:   %5d\n", c.MissingFields))
		}
		if c.NoMerchantAccount > 0 {
			sb.WriteString(fmt.Sprintf("  No Account:       %5d\n", c.NoMerchantAccount))
		}
	}
	if c.AnomalousValues > 0 {
		sb.WriteString(fmt.Sprintf("Anomalous Values:%8d (%.1f%%)\n", c.AnomalousValues, percent(c.AnomalousValues)))
	}

	sb.WriteString(fmt.Sprintf("Static/Dynamic:  %8d / %d\n", c.StaticScans, c.DynamicScans))
	sb.WriteString(fmt.Sprintf("Scan Rate:       %8.1f scans/sec\n", c.ScanRate))
	sb.WriteString(fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", c.ErrorRate))
	sb.WriteString("================================\n")

	return sb.String()
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Statistics) reset() {
	now := s.now()
	s.c = Counters{StartTime: now, LastUpdateTime: now}
}
