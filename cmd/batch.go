// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Thermoquad/emvstat/internal/monitor"
	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

var (
	batchWorkers   int
	batchNoSummary bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Decode many payloads, one per line",
	Long: `Decode a file of payloads (one per line, standard input when no file is
given) using a pool of workers.

Each non-empty line produces one JSON object on standard output, in input
order:
  {"line":1,"raw":"...","payload":{...},"anomalies":["..."]}
  {"line":2,"raw":"...","error":"..."}

A statistics summary is printed to standard error at the end.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", runtime.NumCPU(), "Number of concurrent decoders")
	batchCmd.Flags().BoolVar(&batchNoSummary, "no-summary", false, "Do not print the statistics summary")
}

// batchResult is one output line
type batchResult struct {
	Line      int                  `json:"line"`
	Raw       string               `json:"raw"`
	Payload   *emvqr.ParsedPayload `json:"payload,omitempty"`
	Anomalies []string             `json:"anomalies,omitempty"`
	Error     string               `json:"error,omitempty"`
}

type batchLine struct {
	number int
	raw    string
}

// readBatchLines returns the non-empty lines of r with their 1-based numbers
func readBatchLines(r io.Reader) ([]batchLine, error) {
	var lines []batchLine
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), maxScanLength)

	for n := 1; scanner.Scan(); n++ {
		if raw := normalizeScan(scanner.Text()); raw != "" {
			lines = append(lines, batchLine{number: n, raw: raw})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return lines, nil
}

// decodeBatch decodes lines with at most workers goroutines and writes the
// results to w in input order
func decodeBatch(ctx context.Context, w io.Writer, decoder *emvqr.Decoder, stats *monitor.Statistics, lines []batchLine, workers int) error {
	if workers < 1 {
		workers = 1
	}
	results := make([]batchResult, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, line := range lines {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result := batchResult{Line: line.number, Raw: line.raw}
			p, err := decoder.Decode(line.raw)
			anomalies := stats.Update(p, err)
			if err != nil {
				result.Error = err.Error()
			} else {
				result.Payload = p
				for _, a := range anomalies {
					result.Anomalies = append(result.Anomalies, a.Message)
				}
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, result := range results {
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	input := cmd.InOrStdin()
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		input = f
	}

	lines, err := readBatchLines(input)
	if err != nil {
		return err
	}
	logger.Debug().Int("payloads", len(lines)).Int("workers", batchWorkers).Msg("batch decode started")

	stats := monitor.NewStatistics()
	if err := decodeBatch(cmd.Context(), cmd.OutOrStdout(), newDecoder(), stats, lines, batchWorkers); err != nil {
		return err
	}

	if !batchNoSummary {
		fmt.Fprint(os.Stderr, stats.String())
	}
	return nil
}
