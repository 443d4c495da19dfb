// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

// Output formats shared by decode and batch
const (
	formatText    = "text"
	formatJSON    = "json"
	formatCBORHex = "cbor-hex"
)

var (
	decodeSample string
	decodeFormat string
	decodeTokens bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [payload]",
	Short: "Decode a payload",
	Long: `Decode an EMV QR payload and display its fields.

The payload is taken from the argument, from a built-in sample (--sample),
or from standard input. A CRC mismatch is reported as a warning; a payload
that cannot be decoded at all exits with an error.

Output formats:
  text      human-readable report with anomalies (default)
  json      ParsedPayload as JSON
  cbor-hex  ParsedPayload as hex-encoded CBOR

Use --tokens to dump the raw TLV record tree before the report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVar(&decodeSample, "sample", "", "Decode a built-in sample ("+strings.Join(sampleNames(), ", ")+")")
	decodeCmd.Flags().StringVarP(&decodeFormat, "format", "f", formatText, "Output format (text, json, cbor-hex)")
	decodeCmd.Flags().BoolVar(&decodeTokens, "tokens", false, "Dump the TLV record tree")
}

func sampleNames() []string {
	names := make([]string, 0, len(emvqr.Samples()))
	for name := range emvqr.Samples() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// payloadInput picks the payload from args, a named sample or r
func payloadInput(args []string, sample string, r io.Reader) (string, error) {
	if sample != "" {
		raw, ok := emvqr.Samples()[sample]
		if !ok {
			return "", fmt.Errorf("unknown sample %q (available: %s)", sample, strings.Join(sampleNames(), ", "))
		}
		return raw, nil
	}
	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read payload: %w", err)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return "", fmt.Errorf("no payload given")
	}
	return raw, nil
}

// renderPayload writes p in the given format
func renderPayload(w io.Writer, p *emvqr.ParsedPayload, format string) error {
	switch format {
	case formatText:
		fmt.Fprint(w, emvqr.FormatPayload(p))
		anomalies := emvqr.Inspect(p)
		if len(anomalies) > 0 {
			fmt.Fprintf(w, "\nAnomalies:\n")
			for _, a := range anomalies {
				fmt.Fprintf(w, "  - [%s] %s\n", a.Type, a.Message)
			}
		}

	case formatJSON:
		data, err := p.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n", data)

	case formatCBORHex:
		data, err := emvqr.MarshalCBOR(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n", hex.EncodeToString(data))

	default:
		return fmt.Errorf("unknown output format %q (use %s, %s or %s)", format, formatText, formatJSON, formatCBORHex)
	}
	return nil
}

// decodeTo decodes raw and writes the report to w. CRC mismatches are
// reported on warn.
func decodeTo(w, warn io.Writer, decoder *emvqr.Decoder, raw, format string, tokens bool) error {
	if tokens {
		records, err := decoder.Records(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "TLV records (%s lengths):\n", decoder.Profile().LengthRadix)
		fmt.Fprint(w, emvqr.FormatRecords(records, decoder.Profile()))
		fmt.Fprintln(w)
	}

	p, err := decoder.Decode(raw)
	if err != nil {
		return err
	}
	if err := renderPayload(w, p, format); err != nil {
		return err
	}

	if !p.CRCValid {
		chars := []rune(raw)
		expected := emvqr.ComputeCRC(string(chars[:len(chars)-emvqr.CRCSize]))
		fmt.Fprintf(warn, "\033[1;33mWARNING:\033[0m CRC mismatch (payload says %s, computed %s); the payload may be corrupted\n", p.CRC, expected)
	}
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	raw, err := payloadInput(args, decodeSample, cmd.InOrStdin())
	if err != nil {
		return err
	}
	logger.Debug().Int("length", len(raw)).Str("profile", currentProfile().Name).Msg("decoding payload")

	return decodeTo(cmd.OutOrStdout(), os.Stderr, newDecoder(), raw, decodeFormat, decodeTokens)
}
