// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

import (
	"strings"
	"testing"
)

func TestFormatPayload_AnnexB(t *testing.T) {
	p, err := Decode(SampleAnnexB)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	out := FormatPayload(p)

	for _, want := range []string{
		"EMV QR payload (profile emvco)",
		"Initiation Method: 12 (dynamic)",
		"Merchant: BEST TRANSPORT",
		"City: BEIJING, Country: CN",
		"Category Code: 4111",
		"Currency: CNY - Chinese Yuan (¥)",
		"Amount: 23.72 ¥",
		"[29] GIM UEMOA",
		"      00: D15600000000",
		"Terminal Label: A6008667",
		"Card Sequence: 0016A011223344998877070812345678",
		"Language Template (ZH):",
		"Name: 最佳运输",
		"CRC: A13A (valid)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Postal Code") {
		t.Error("Absent postal code should not be printed")
	}
}

func TestFormatPayload_Minimal(t *testing.T) {
	p, err := Decode("0000")
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	out := FormatPayload(p)

	for _, want := range []string{
		"Payload Format: -",
		"Amount: (entered by consumer)",
		"CRC: 0000 (INVALID)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"Merchant Accounts", "Additional Data", "Language Template"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("Output should not contain %q", unwanted)
		}
	}
}

func TestFormatRecords(t *testing.T) {
	records, err := NewDecoder(ProfileEMVCo).Records(SampleAnnexB)
	if err != nil {
		t.Fatalf("Records error: %v", err)
	}
	out := FormatRecords(records, nil)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	if lines[0] != `00 02 PAYLOAD_FORMAT: "01"` {
		t.Errorf("Unexpected first line %q", lines[0])
	}
	if !strings.Contains(out, `29 30 MERCHANT_ACCOUNT: "0012D156000000000510A93FO3230Q"`) {
		t.Errorf("Missing merchant account line:\n%s", out)
	}
	if !strings.Contains(out, "\n  00 12: \"D15600000000\"\n") {
		t.Errorf("Missing indented child line:\n%s", out)
	}
	if !strings.Contains(out, `91 32 UNRESERVED: "0016A011223344998877070812345678"`) {
		t.Errorf("Missing unreserved line:\n%s", out)
	}
}

func TestFormatTagName(t *testing.T) {
	tests := []struct {
		tag      string
		profile  *Profile
		expected string
	}{
		{"00", ProfileEMVCo, "PAYLOAD_FORMAT"},
		{"63", ProfileEMVCo, "CRC"},
		{"26", ProfileEMVCo, "MERCHANT_ACCOUNT"},
		{"70", ProfileEMVCo, "RFU"},
		{"85", ProfileEMVCo, "UNRESERVED"},
		{"0A", ProfileEMVCo, "UNKNOWN"},
		{"0A", ProfileLegacyHex, "MERCHANT_ACCOUNT"},
		{"8E", ProfileLegacyHex, "UNRESERVED"},
	}

	for _, tt := range tests {
		if got := FormatTagName(tt.tag, tt.profile); got != tt.expected {
			t.Errorf("FormatTagName(%q, %s) = %q, expected %q", tt.tag, tt.profile.Name, got, tt.expected)
		}
	}
}
