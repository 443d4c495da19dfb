// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

import (
	"fmt"
	"unicode/utf8"
)

// AnomalyType represents different types of payload anomalies
type AnomalyType int

const (
	AnomalyCRCMismatch AnomalyType = iota
	AnomalyMissingField
	AnomalyNoMerchantAccount
	AnomalyInvalidValue
	AnomalyValueTooLong
	AnomalyInvalidAmount
	AnomalyInvalidICCData
)

// String returns a short name for the anomaly type
func (t AnomalyType) String() string {
	switch t {
	case AnomalyCRCMismatch:
		return "crc-mismatch"
	case AnomalyMissingField:
		return "missing-field"
	case AnomalyNoMerchantAccount:
		return "no-merchant-account"
	case AnomalyInvalidValue:
		return "invalid-value"
	case AnomalyValueTooLong:
		return "value-too-long"
	case AnomalyInvalidAmount:
		return "invalid-amount"
	case AnomalyInvalidICCData:
		return "invalid-icc-data"
	default:
		return "unknown"
	}
}

// Anomaly is an advisory finding about a payload or an encoder input.
// Decode and Encode never produce anomalies themselves.
type Anomaly struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (a *Anomaly) Error() string {
	return a.Message
}

// mandatoryFields are the top-level records every payload must carry
var mandatoryFields = []struct {
	tag   TopTag
	value func(p *ParsedPayload) string
}{
	{TagPayloadFormat, func(p *ParsedPayload) string { return p.PayloadFormatIndicator }},
	{TagMerchantCategoryCode, func(p *ParsedPayload) string { return p.MerchantCategoryCode }},
	{TagCurrency, func(p *ParsedPayload) string { return p.CurrencyCode }},
	{TagCountryCode, func(p *ParsedPayload) string { return p.CountryCode }},
	{TagMerchantName, func(p *ParsedPayload) string { return p.MerchantName }},
	{TagMerchantCity, func(p *ParsedPayload) string { return p.MerchantCity }},
}

// Inspect reports structural anomalies of a decoded payload
// Returns an empty slice for a clean payload
func Inspect(p *ParsedPayload) []Anomaly {
	anomalies := []Anomaly{}

	if !p.CRCValid {
		anomalies = append(anomalies, Anomaly{
			Type:    AnomalyCRCMismatch,
			Message: fmt.Sprintf("CRC %s does not match payload", p.CRC),
			Details: map[string]interface{}{"crc": p.CRC},
		})
	}

	for _, field := range mandatoryFields {
		if field.value(p) == "" {
			anomalies = append(anomalies, Anomaly{
				Type:    AnomalyMissingField,
				Message: fmt.Sprintf("Missing mandatory %s record (tag %s)", FormatTagName(string(field.tag), ProfileEMVCo), field.tag),
				Details: map[string]interface{}{"tag": string(field.tag)},
			})
		}
	}

	if len(p.MerchantAccounts) == 0 {
		anomalies = append(anomalies, Anomaly{
			Type:    AnomalyNoMerchantAccount,
			Message: "No merchant account template (tags 02-51)",
		})
	}

	method := p.PointOfInitiationMethod
	if method != "" && method != InitiationMethodStatic && method != InitiationMethodDynamic {
		anomalies = append(anomalies, Anomaly{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Invalid initiation method %q (expected 11 or 12)", method),
			Details: map[string]interface{}{"tag": string(TagInitiationMethod), "value": method},
		})
	}

	return anomalies
}

// CheckFields reports encoder inputs that would produce a broken payload
// under profile (ProfileEMVCo if nil): values the length field cannot
// declare, amounts that encode as 0 or saturate, unreadable ICC data and
// dates that encode as nothing.
func CheckFields(fields FieldMap, profile *Profile) []Anomaly {
	if profile == nil {
		profile = ProfileEMVCo
	}
	anomalies := []Anomaly{}
	limit := profile.MaxValueLength()

	for _, key := range AllFieldKeys() {
		value := fields[key]
		// Merchant names are truncated and ICC data is never emitted as is
		if key == FieldMerchantName || key == FieldEMVData {
			continue
		}
		if n := utf8.RuneCountInString(value); n > limit {
			anomalies = append(anomalies, Anomaly{
				Type:    AnomalyValueTooLong,
				Message: fmt.Sprintf("%s is %d characters (max %d)", key, n, limit),
				Details: map[string]interface{}{"field": string(key), "length": n, "max": limit},
			})
		}
	}

	encoder := NewEncoder(profile)
	template := encoder.additionalData(fields)
	if n := utf8.RuneCountInString(template); n > limit {
		anomalies = append(anomalies, Anomaly{
			Type:    AnomalyValueTooLong,
			Message: fmt.Sprintf("Additional data template is %d characters (max %d)", n, limit),
			Details: map[string]interface{}{"tag": string(TagAdditionalData), "length": n, "max": limit},
		})
	}

	if amount := fields[FieldAmount]; amount != "" {
		currency := valueOr(fields[FieldCurrencyAlpha], encoder.defaults.CurrencyAlpha)
		if _, ok := parseDecimal(amount); !ok {
			anomalies = append(anomalies, Anomaly{
				Type:    AnomalyInvalidAmount,
				Message: fmt.Sprintf("Amount %q is not a decimal number (encodes as 0)", amount),
				Details: map[string]interface{}{"field": string(FieldAmount), "value": amount},
			})
		} else if units, clamped := encoder.minorUnitAmount(amount, currency); clamped {
			anomalies = append(anomalies, Anomaly{
				Type:    AnomalyInvalidAmount,
				Message: fmt.Sprintf("Amount %q is out of range (encodes as %s)", amount, units),
				Details: map[string]interface{}{"field": string(FieldAmount), "value": amount},
			})
		}
	}

	if date := fields[FieldDate]; date != "" && formatDate(date) == "" {
		anomalies = append(anomalies, Anomaly{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Date %q is not MM/DD/YYYY (omitted)", date),
			Details: map[string]interface{}{"field": string(FieldDate), "value": date},
		})
	}

	if icc := fields[FieldEMVData]; icc != "" {
		if _, err := ExtractEMVTags(icc); err != nil {
			anomalies = append(anomalies, Anomaly{
				Type:    AnomalyInvalidICCData,
				Message: err.Error(),
				Details: map[string]interface{}{"field": string(FieldEMVData)},
			})
		}
	}

	return anomalies
}
