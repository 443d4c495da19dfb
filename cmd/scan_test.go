// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/emvstat/internal/monitor"
	"github.com/Thermoquad/emvstat/internal/sink"
	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

type publishedEvent struct {
	ID        string          `json:"id"`
	Type      sink.EventType  `json:"type"`
	Source    string          `json:"source"`
	Raw       string          `json:"raw"`
	Payload   json.RawMessage `json:"payload"`
	Anomalies []string        `json:"anomalies"`
	Error     string          `json:"error"`
}

func readEvents(t *testing.T, data []byte) []publishedEvent {
	t.Helper()
	var events []publishedEvent
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 4096), maxScanLength)
	for scanner.Scan() {
		var e publishedEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	return events
}

func newTestProcessor(out *bytes.Buffer, published *bytes.Buffer, asJSON bool) *scanProcessor {
	sp := &scanProcessor{
		out:     out,
		decoder: emvqr.NewDecoder(emvqr.ProfileEMVCo),
		stats:   monitor.NewStatistics(),
		source:  "Serial: /dev/ttyACM0 @ 9600 baud",
		asJSON:  asJSON,
	}
	if published != nil {
		sp.sink = sink.NewJSONLines(published)
	}
	return sp
}

func TestScanSummary(t *testing.T) {
	t.Parallel()

	p, err := emvqr.Decode(emvqr.SampleAnnexB)
	require.NoError(t, err)
	assert.Equal(t, "BEST TRANSPORT, 23.72 ¥ (CRC OK)", scanSummary(p))

	p, err = emvqr.Decode(corruptedAnnexB)
	require.NoError(t, err)
	assert.Equal(t, "BEST TRANSPORT, 23.72 ¥ (CRC MISMATCH)", scanSummary(p))

	p = &emvqr.ParsedPayload{CRCValid: true}
	assert.Equal(t, "<unknown merchant>, open amount (CRC OK)", scanSummary(p))
}

func TestScanProcessor_Handle(t *testing.T) {
	t.Parallel()

	var out, published bytes.Buffer
	sp := newTestProcessor(&out, &published, false)
	ctx := context.Background()

	sp.handle(ctx, emvqr.SampleAnnexB)
	sp.handle(ctx, corruptedAnnexB)
	sp.handle(ctx, "garbage")

	report := out.String()
	assert.Contains(t, report, "BEST TRANSPORT, 23.72 ¥ (CRC OK)")
	assert.Contains(t, report, "Merchant: BEST TRANSPORT")
	assert.Contains(t, report, "  ! CRC A13B does not match payload")
	assert.Contains(t, report, "[ERROR] emvqr: malformed payload")

	events := readEvents(t, published.Bytes())
	require.Len(t, events, 3)

	assert.Equal(t, sink.EventDecoded, events[0].Type)
	assert.Equal(t, emvqr.SampleAnnexB, events[0].Raw)
	assert.Equal(t, "Serial: /dev/ttyACM0 @ 9600 baud", events[0].Source)
	assert.NotEmpty(t, events[0].Payload)
	assert.Empty(t, events[0].Anomalies)

	assert.Equal(t, sink.EventDecoded, events[1].Type)
	assert.Equal(t, []string{"CRC A13B does not match payload"}, events[1].Anomalies)

	assert.Equal(t, sink.EventMalformed, events[2].Type)
	assert.NotEmpty(t, events[2].Error)

	assert.NotEqual(t, events[0].ID, events[1].ID)

	counters := sp.stats.Snapshot()
	assert.Equal(t, uint64(3), counters.TotalScans)
	assert.Equal(t, uint64(1), counters.ValidScans)
	assert.Equal(t, uint64(1), counters.CRCErrors)
	assert.Equal(t, uint64(1), counters.MalformedScans)
}

func TestScanProcessor_JSONOutput(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	sp := newTestProcessor(&out, nil, true)
	sp.handle(context.Background(), emvqr.SampleAnnexB)

	assert.Contains(t, out.String(), `"merchantName": "BEST TRANSPORT"`)
	assert.NotContains(t, out.String(), "Merchant: BEST TRANSPORT")
}

type failingSink struct {
	calls int
}

func (f *failingSink) Publish(ctx context.Context, event sink.Event) error {
	f.calls++
	return errors.New("broker down")
}

func (f *failingSink) Close() error {
	return nil
}

func TestScanProcessor_SinkFailureKeepsScanning(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	failing := &failingSink{}
	sp := newTestProcessor(&out, nil, false)
	sp.sink = failing

	sp.handle(context.Background(), emvqr.SampleAnnexB)
	sp.handle(context.Background(), emvqr.SampleAnnexB)

	assert.Equal(t, 2, failing.calls)
	assert.Equal(t, uint64(2), sp.stats.Snapshot().ValidScans)
}

func TestAwaitValidPayload(t *testing.T) {
	t.Parallel()

	scans := make(chan string, 3)
	scans <- "AB"
	scans <- corruptedAnnexB
	scans <- emvqr.SampleAnnexB

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := awaitValidPayload(ctx, emvqr.NewDecoder(emvqr.ProfileEMVCo), scans)
	require.NoError(t, err)
	assert.Equal(t, 2, result.skipped)
	require.NotNil(t, result.payload)
	assert.Equal(t, "BEST TRANSPORT", result.payload.MerchantName)
}

func TestAwaitValidPayload_Closed(t *testing.T) {
	t.Parallel()

	scans := make(chan string, 1)
	scans <- "AB"
	close(scans)

	result, err := awaitValidPayload(context.Background(), emvqr.NewDecoder(emvqr.ProfileEMVCo), scans)
	assert.EqualError(t, err, "connection closed")
	assert.Equal(t, 1, result.skipped)
	assert.Nil(t, result.payload)
}

func TestAwaitValidPayload_Timeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := awaitValidPayload(ctx, emvqr.NewDecoder(emvqr.ProfileEMVCo), make(chan string))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenSinks_NothingConfigured(t *testing.T) {
	t.Parallel()

	s, err := openSinks(context.Background(), "", &bytes.Buffer{}, true)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpenSinks_EventsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"earlier","type":"decoded","raw":"x"}`+"\n"), 0o644))

	s, err := openSinks(context.Background(), path, &bytes.Buffer{}, false)
	require.NoError(t, err)
	require.NotNil(t, s)

	var out bytes.Buffer
	sp := newTestProcessor(&out, nil, false)
	sp.sink = s
	sp.handle(context.Background(), emvqr.SampleAnnexB)
	sp.handle(context.Background(), "garbage")
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	events := readEvents(t, data)
	require.Len(t, events, 3)
	assert.Equal(t, "earlier", events[0].ID)
	assert.Equal(t, sink.EventDecoded, events[1].Type)
	assert.Equal(t, emvqr.SampleAnnexB, events[1].Raw)
	assert.Equal(t, sink.EventMalformed, events[2].Type)
}

func TestOpenSinks_EventsStdout(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	s, err := openSinks(context.Background(), "-", &stdout, true)
	require.NoError(t, err)
	require.NotNil(t, s)

	require.NoError(t, s.Publish(context.Background(), sink.NewEvent("test", "AB", nil, nil, emvqr.ErrMalformedPayload)))
	require.NoError(t, s.Close())

	events := readEvents(t, stdout.Bytes())
	require.Len(t, events, 1)
	assert.Equal(t, "test", events[0].Source)
	assert.Equal(t, sink.EventMalformed, events[0].Type)
}

func TestOpenSinks_EventsFileError(t *testing.T) {
	t.Parallel()

	_, err := openSinks(context.Background(), filepath.Join(t.TempDir(), "missing", "events.jsonl"), &bytes.Buffer{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open events file")
}
