// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

var (
	crcVerify bool
	crcAppend bool
)

// errCRCMismatch makes crc --verify exit non-zero
var errCRCMismatch = errors.New("CRC mismatch")

var crcCmd = &cobra.Command{
	Use:   "crc [data]",
	Short: "Compute or verify a payload checksum",
	Long: `Compute the CRC-16/CCITT-FALSE checksum of data (UTF-8 bytes, four
upper-case hex digits).

  --verify  treat data as a complete payload and check its trailing CRC
  --append  treat data as a payload body and print it with the CRC record
            (tag 63) appended

Data is taken from the argument or from standard input.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCRC,
}

func init() {
	rootCmd.AddCommand(crcCmd)
	crcCmd.Flags().BoolVar(&crcVerify, "verify", false, "Verify the CRC of a complete payload")
	crcCmd.Flags().BoolVar(&crcAppend, "append", false, "Append the CRC record to a payload body")
	crcCmd.MarkFlagsMutuallyExclusive("verify", "append")
}

// crcReport writes the checksum result for data
func crcReport(w io.Writer, data string, verify, appendRecord bool, profile *emvqr.Profile) error {
	switch {
	case verify:
		chars := []rune(data)
		if len(chars) < emvqr.MinPayloadSize {
			return fmt.Errorf("%w: %d characters, need at least %d", emvqr.ErrMalformedPayload, len(chars), emvqr.MinPayloadSize)
		}
		body := string(chars[:len(chars)-emvqr.CRCSize])
		provided := string(chars[len(chars)-emvqr.CRCSize:])
		computed := emvqr.ComputeCRC(body)
		if !emvqr.VerifyCRC(body, provided) {
			fmt.Fprintf(w, "CRC %s (INVALID, computed %s)\n", provided, computed)
			return errCRCMismatch
		}
		fmt.Fprintf(w, "CRC %s (valid)\n", provided)

	case appendRecord:
		body := data + string(emvqr.TagCRC) + profile.FormatLength(emvqr.CRCSize)
		fmt.Fprintln(w, body+emvqr.ComputeCRC(body))

	default:
		fmt.Fprintln(w, emvqr.ComputeCRC(data))
	}
	return nil
}

func runCRC(cmd *cobra.Command, args []string) error {
	data, err := payloadInput(args, "", cmd.InOrStdin())
	if err != nil {
		return err
	}
	return crcReport(cmd.OutOrStdout(), data, crcVerify, crcAppend, currentProfile())
}
