// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the scanner by waiting for a valid payload",
	Long: `Wait for a valid EMV QR payload on the connection until timeout.

This command connects to a serial port or WebSocket and waits for a scanned
payload that decodes and passes its CRC check. Lines that do not decode or
fail the CRC are counted and skipped.

Exit codes:
  0 - Payload received before timeout
  1 - Timeout reached without receiving a valid payload
  2 - Connection error

Useful for testing a barcode scanner or a WebSocket scanner bridge.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 0, "Timeout in seconds to wait for a payload (default from config)")
}

// probeResult is the first valid payload and the lines skipped before it
type probeResult struct {
	payload *emvqr.ParsedPayload
	skipped int
}

// awaitValidPayload returns the first payload of scans that decodes with a
// valid CRC
func awaitValidPayload(ctx context.Context, decoder *emvqr.Decoder, scans <-chan string) (probeResult, error) {
	skipped := 0
	for {
		select {
		case raw, ok := <-scans:
			if !ok {
				return probeResult{skipped: skipped}, errors.New("connection closed")
			}
			p, err := decoder.Decode(raw)
			if err != nil || !p.CRCValid {
				skipped++
				continue
			}
			return probeResult{payload: p, skipped: skipped}, nil

		case <-ctx.Done():
			return probeResult{skipped: skipped}, ctx.Err()
		}
	}
}

func runProbe(cmd *cobra.Command, args []string) error {
	timeout := probeTimeout
	if timeout <= 0 {
		timeout = cfg.Scanner.Timeout
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("emvstat - Scanner Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", timeout)
	fmt.Printf("Waiting for a valid payload...\n\n")

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeout)*time.Second)
	defer cancel()

	scans := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readScans(ctx, conn, scans)
		close(scans)
	}()

	result, err := awaitValidPayload(ctx, newDecoder(), scans)
	if result.skipped > 0 {
		fmt.Printf("(skipped %d invalid scans)\n", result.skipped)
	}

	switch {
	case err == nil:
		p := result.payload
		fmt.Printf("SUCCESS: Received valid payload\n")
		fmt.Printf("  Merchant: %s, %s\n", orUnknown(p.MerchantName), p.MerchantCity)
		fmt.Printf("  Accounts: %d\n", len(p.MerchantAccounts))
		fmt.Printf("  Currency: %s\n", p.Currency)
		fmt.Printf("  CRC: %s\n", p.CRC)
		os.Exit(0)

	case errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid payload received within %d seconds\n", timeout)
		os.Exit(1)

	default:
		// The reader has finished unless the probe was interrupted
		if !errors.Is(err, context.Canceled) {
			if rerr := <-readErr; rerr != nil {
				err = rerr
			}
		}
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	}

	return nil
}
