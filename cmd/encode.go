// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

var (
	encodeFieldsFile string
	encodeSets       []string
	encodeCheck      bool
	encodeListKeys   bool
	encodeShow       bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Build a payload from transaction fields",
	Long: `Build an EMV QR payload from a transaction field map.

Fields are read from a JSON, YAML or CBOR file (--fields, chosen by
extension) and/or given as --set key=value pairs; --set wins over the file.
Absent fields fall back to the configured encoder defaults.

Use --check to report inputs that would produce a broken payload (values
too long for the length field, unparsable amounts, invalid ICC data) and
--list-keys to print the accepted field keys.`,
	Args: cobra.NoArgs,
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().StringVar(&encodeFieldsFile, "fields", "", "Field file (.json, .yaml, .yml or .cbor)")
	encodeCmd.Flags().StringArrayVar(&encodeSets, "set", nil, "Set a field (key=value), repeatable")
	encodeCmd.Flags().BoolVar(&encodeCheck, "check", false, "Report field values that would produce a broken payload")
	encodeCmd.Flags().BoolVar(&encodeListKeys, "list-keys", false, "List the accepted field keys and exit")
	encodeCmd.Flags().BoolVar(&encodeShow, "show", false, "Decode the result and print the report")
}

// loadFieldFile reads a field map; the format follows the file extension
func loadFieldFile(path string) (emvqr.FieldMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read field file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".cbor" {
		return emvqr.UnmarshalFieldMapCBOR(data)
	}

	raw := map[string]string{}
	switch ext {
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unsupported field file extension %q (use .json, .yaml, .yml or .cbor)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return emvqr.FieldMapFromStrings(raw)
}

// applyAssignments sets key=value pairs on fields
func applyAssignments(fields emvqr.FieldMap, sets []string) error {
	for _, set := range sets {
		key, value, ok := strings.Cut(set, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q (expected key=value)", set)
		}
		parsed, err := emvqr.FieldMapFromStrings(map[string]string{strings.TrimSpace(key): value})
		if err != nil {
			return err
		}
		for k, v := range parsed {
			fields[k] = v
		}
	}
	return nil
}

// collectFields merges the field file and the assignments
func collectFields(file string, sets []string) (emvqr.FieldMap, error) {
	fields := emvqr.FieldMap{}
	if file != "" {
		loaded, err := loadFieldFile(file)
		if err != nil {
			return nil, err
		}
		for k, v := range loaded {
			fields[k] = v
		}
	}
	if err := applyAssignments(fields, sets); err != nil {
		return nil, err
	}
	return fields, nil
}

// writeAnomalies prints advisory findings, one per line
func writeAnomalies(w io.Writer, anomalies []emvqr.Anomaly) {
	for _, a := range anomalies {
		fmt.Fprintf(w, "\033[1;33mWARNING:\033[0m [%s] %s\n", a.Type, a.Message)
	}
}

func runEncode(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if encodeListKeys {
		for _, key := range emvqr.AllFieldKeys() {
			fmt.Fprintln(out, key)
		}
		return nil
	}

	fields, err := collectFields(encodeFieldsFile, encodeSets)
	if err != nil {
		return err
	}

	encoder := newEncoder()
	if encodeCheck {
		writeAnomalies(os.Stderr, emvqr.CheckFields(fields, encoder.Profile()))
	}

	payload := encoder.Encode(fields)
	logger.Debug().Int("fields", len(fields)).Str("profile", encoder.Profile().Name).Msg("payload encoded")
	fmt.Fprintln(out, payload)

	if encodeShow {
		fmt.Fprintln(out)
		return decodeTo(out, os.Stderr, newDecoder(), payload, formatText, false)
	}
	return nil
}
