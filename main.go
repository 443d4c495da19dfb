// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// emvstat - EMV QR Payload Analyzer
//
// A CLI tool for decoding, encoding and monitoring EMV Consumer-Presented
// QR payloads.

package main

import (
	"os"

	"github.com/Thermoquad/emvstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
