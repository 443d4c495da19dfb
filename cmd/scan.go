// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/emvstat/internal/monitor"
	"github.com/Thermoquad/emvstat/internal/sink"
	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

var (
	scanJSON          bool
	scanStatsInterval int
	scanNoPublish     bool
	scanEventsOut     string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Decode payloads as they are scanned",
	Long: `Continuously decode and display EMV QR payloads as they arrive from a
barcode scanner (one payload per line).

Each payload is printed with its decoded fields and any anomalies (CRC
mismatch, missing mandatory records). When MQTT or NATS is configured, every
scan is also published as a JSON event. --events-out appends the same events
to a file, one JSON object per line ("-" for standard output).

Supports both serial and WebSocket connections.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print decoded payloads as JSON")
	scanCmd.Flags().IntVar(&scanStatsInterval, "stats-interval", 60, "Statistics summary interval in seconds (0 disables)")
	scanCmd.Flags().BoolVar(&scanNoPublish, "no-publish", false, "Do not publish to configured MQTT/NATS sinks")
	scanCmd.Flags().StringVar(&scanEventsOut, "events-out", "", "Append scan events as JSON lines to a file (- for stdout)")
}

// scanProcessor decodes scanned lines and reports them
type scanProcessor struct {
	out     io.Writer
	decoder *emvqr.Decoder
	stats   *monitor.Statistics
	sink    sink.Sink
	source  string
	asJSON  bool
}

// handle decodes one scanned payload. Sink failures are logged and do not
// stop scanning.
func (sp *scanProcessor) handle(ctx context.Context, raw string) {
	timestamp := time.Now().Format("15:04:05.000")
	p, err := sp.decoder.Decode(raw)
	anomalies := sp.stats.Update(p, err)

	if err != nil {
		fmt.Fprintf(sp.out, "[%s] [ERROR] %v\n", timestamp, err)
		logger.Debug().Str("raw", raw).Err(err).Msg("scan rejected")
	} else {
		fmt.Fprintf(sp.out, "[%s] %s\n", timestamp, scanSummary(p))
		if sp.asJSON {
			data, jsonErr := p.JSON()
			if jsonErr != nil {
				logger.Error().Err(jsonErr).Msg("JSON rendering failed")
			} else {
				fmt.Fprintf(sp.out, "%s\n", data)
			}
		} else {
			fmt.Fprint(sp.out, emvqr.FormatPayload(p))
		}
		for _, a := range anomalies {
			fmt.Fprintf(sp.out, "  ! %s\n", a.Message)
		}
		fmt.Fprintln(sp.out)
	}

	if sp.sink == nil {
		return
	}
	if pubErr := sp.sink.Publish(ctx, sink.NewEvent(sp.source, raw, p, anomalies, err)); pubErr != nil {
		logger.Warn().Err(pubErr).Msg("publishing scan failed")
	}
}

// scanSummary is the one-line description of a decoded payload
func scanSummary(p *emvqr.ParsedPayload) string {
	amount := "open amount"
	if p.Amount != nil {
		amount = *p.Amount + " " + emvqr.CurrencySymbol(p.CurrencyCode)
	}
	crc := "CRC OK"
	if !p.CRCValid {
		crc = "CRC MISMATCH"
	}
	return fmt.Sprintf("%s, %s (%s)", orUnknown(p.MerchantName), amount, crc)
}

func orUnknown(s string) string {
	if s == "" {
		return "<unknown merchant>"
	}
	return s
}

// eventFile wraps a JSON lines sink so that closing it closes the file
type eventFile struct {
	*sink.JSONLines
	f *os.File
}

func (e eventFile) Close() error {
	return e.f.Close()
}

// openEventsOut opens the JSON lines event sink for path
func openEventsOut(path string, stdout io.Writer) (sink.Sink, error) {
	if path == "-" {
		return sink.NewJSONLines(stdout), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	return eventFile{JSONLines: sink.NewJSONLines(f), f: f}, nil
}

// openSinks opens the events file (when eventsOut is set) and connects the
// configured brokers (when publish is set). It returns nil when there is
// nothing to publish to.
func openSinks(ctx context.Context, eventsOut string, stdout io.Writer, publish bool) (sink.Sink, error) {
	var sinks sink.Multi

	if eventsOut != "" {
		events, err := openEventsOut(eventsOut, stdout)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, events)
	}
	if !publish {
		if len(sinks) == 0 {
			return nil, nil
		}
		return sinks, nil
	}

	if cfg.MQTT.Enabled() {
		mqttSink := sink.NewMQTTSink(cfg.MQTT, logger)
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := mqttSink.Connect(connectCtx)
		cancel()
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		sinks = append(sinks, mqttSink)
	}

	if cfg.NATS.Enabled() {
		natsSink, err := sink.DialNATS(cfg.NATS, logger)
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		sinks = append(sinks, natsSink)
	}

	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	out := cmd.OutOrStdout()
	processor := &scanProcessor{
		out:     out,
		decoder: newDecoder(),
		stats:   monitor.NewStatistics(),
		source:  connInfo,
		asJSON:  scanJSON,
	}

	s, err := openSinks(ctx, scanEventsOut, out, !scanNoPublish)
	if err != nil {
		return err
	}
	if s != nil {
		processor.sink = s
		defer s.Close()
	}

	fmt.Fprintf(out, "emvstat - Scan Log\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Profile: %s\n", currentProfile().Name)
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	scans := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readScans(ctx, conn, scans)
	}()

	var ticks <-chan time.Time
	if scanStatsInterval > 0 {
		ticker := time.NewTicker(time.Duration(scanStatsInterval) * time.Second)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case raw := <-scans:
			processor.handle(ctx, raw)

		case <-ticks:
			fmt.Fprintf(out, "\n%s\n", processor.stats.String())

		case err := <-readErr:
			fmt.Fprintf(out, "\n%s", processor.stats.String())
			if err != nil {
				return fmt.Errorf("read error: %w", err)
			}
			logger.Info().Msg("connection closed")
			return nil

		case <-ctx.Done():
			fmt.Fprintf(out, "\n%s", processor.stats.String())
			return nil
		}
	}
}
