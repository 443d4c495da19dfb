// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

import (
	"strings"
	"testing"
)

func anomalyTypes(anomalies []Anomaly) map[AnomalyType]int {
	counts := make(map[AnomalyType]int)
	for _, a := range anomalies {
		counts[a.Type]++
	}
	return counts
}

// ============================================================
// Inspect
// ============================================================

func TestInspect_AnnexBClean(t *testing.T) {
	p, err := Decode(SampleAnnexB)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if anomalies := Inspect(p); len(anomalies) != 0 {
		t.Errorf("Expected no anomalies, got %v", anomalies)
	}
}

func TestInspect_EncodedPayload(t *testing.T) {
	p, err := Decode(Encode(nil))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	counts := anomalyTypes(Inspect(p))
	// The encoder never emits merchant account templates
	if counts[AnomalyNoMerchantAccount] != 1 || len(counts) != 1 {
		t.Errorf("Expected only a missing merchant account, got %v", counts)
	}
}

func TestInspect_Empty(t *testing.T) {
	p, err := Decode("0000")
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	anomalies := Inspect(p)
	counts := anomalyTypes(anomalies)

	if counts[AnomalyCRCMismatch] != 1 {
		t.Error("Expected CRC mismatch")
	}
	if counts[AnomalyMissingField] != len(mandatoryFields) {
		t.Errorf("Expected %d missing fields, got %d", len(mandatoryFields), counts[AnomalyMissingField])
	}
	if counts[AnomalyNoMerchantAccount] != 1 {
		t.Error("Expected missing merchant account")
	}

	found := false
	for _, a := range anomalies {
		if a.Type == AnomalyMissingField && strings.Contains(a.Error(), "MERCHANT_NAME") {
			found = true
		}
	}
	if !found {
		t.Error("Expected missing MERCHANT_NAME message")
	}
}

func TestInspect_InvalidInitiationMethod(t *testing.T) {
	p, err := Decode(withCRC("010213"))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if anomalyTypes(Inspect(p))[AnomalyInvalidValue] != 1 {
		t.Error("Expected invalid initiation method anomaly")
	}
}

// ============================================================
// CheckFields
// ============================================================

func TestCheckFields_Clean(t *testing.T) {
	for _, profile := range Profiles() {
		if anomalies := CheckFields(fullFields(), profile); len(anomalies) != 0 {
			t.Errorf("%s: expected no anomalies, got %v", profile.Name, anomalies)
		}
	}
}

func TestCheckFields_ValueTooLong(t *testing.T) {
	fields := FieldMap{
		FieldFooterTicket: strings.Repeat("X", 120),
		FieldMerchantName: strings.Repeat("N", 120),
	}

	counts := anomalyTypes(CheckFields(fields, ProfileEMVCo))
	if counts[AnomalyValueTooLong] != 1 {
		t.Errorf("Expected one overlong value (name is truncated), got %v", counts)
	}

	// Two hex digits can declare up to 255
	if anomalies := CheckFields(fields, ProfileLegacyHex); len(anomalies) != 0 {
		t.Errorf("Expected no anomalies under hex lengths, got %v", anomalies)
	}
}

func TestCheckFields_AdditionalTemplateTooLong(t *testing.T) {
	fields := FieldMap{
		FieldReference: strings.Repeat("R", 60),
		FieldCardHint:  strings.Repeat("*", 40),
	}
	anomalies := CheckFields(fields, nil)
	if len(anomalies) != 1 || anomalies[0].Details["tag"] != "62" {
		t.Errorf("Expected additional data template anomaly, got %v", anomalies)
	}
}

func TestCheckFields_InvalidInputs(t *testing.T) {
	fields := FieldMap{
		FieldAmount:  "twelve",
		FieldDate:    "2025-03-07",
		FieldEMVData: "XYZ",
	}
	counts := anomalyTypes(CheckFields(fields, nil))

	if counts[AnomalyInvalidAmount] != 1 {
		t.Error("Expected invalid amount anomaly")
	}
	if counts[AnomalyInvalidValue] != 1 {
		t.Error("Expected invalid date anomaly")
	}
	if counts[AnomalyInvalidICCData] != 1 {
		t.Error("Expected invalid ICC data anomaly")
	}
}

func TestCheckFields_AmountGrammar(t *testing.T) {
	tests := []struct {
		amount  string
		flagged bool
	}{
		{"23.72", false},
		{"1e3", false},
		{"0x10", true},
		{"1_000", true},
		{"0x1p4", true},
		{"1e100000", true},
		{"-1e100000", true},
		{"1e-100000", false},
		{"99999999999999999", true},
	}

	for _, tt := range tests {
		counts := anomalyTypes(CheckFields(FieldMap{FieldAmount: tt.amount}, nil))
		if got := counts[AnomalyInvalidAmount] == 1; got != tt.flagged {
			t.Errorf("CheckFields amount %q: flagged=%v, expected %v", tt.amount, got, tt.flagged)
		}
	}
}

func TestAnomalyType_String(t *testing.T) {
	if AnomalyCRCMismatch.String() != "crc-mismatch" || AnomalyType(99).String() != "unknown" {
		t.Error("Unexpected anomaly type names")
	}
}
