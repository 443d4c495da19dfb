// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProfile is returned by ProfileByName
var ErrUnknownProfile = errors.New("emvqr: unknown profile")

// AdditionalDataTags assigns additional data template (62) sub-tags to the
// encoder's logical fields
type AdditionalDataTags struct {
	Date           string
	Time           string
	CardHint       string
	TerminalLabel  string
	ReferenceLabel string
	AuthCode       string
}

// VendorTags assigns unreserved top-level tags (80-99) to the vendor
// extension fields
type VendorTags struct {
	FooterTicket       string
	InterchangeFee     string
	ApplicationName    string
	BatchNumber        string
	ReceiptNumber      string
	EMVTag84           string
	EMVTag95           string
	EMVTag9F10         string
	EMVTag9B           string
	EMVTag9F34         string
	TransactionWording string
	CardSequence       string
	TransactionScheme  string
	TransactionType    string
}

type vendorName struct {
	tag  string
	name string
}

func (v VendorTags) names() []vendorName {
	return []vendorName{
		{v.FooterTicket, "Footer Ticket"},
		{v.InterchangeFee, "Interchange Fee"},
		{v.ApplicationName, "Application Name"},
		{v.BatchNumber, "Batch Number"},
		{v.ReceiptNumber, "Receipt Number"},
		{v.EMVTag84, "AID"},
		{v.EMVTag95, "TVR"},
		{v.EMVTag9F10, "Issuer Application Data"},
		{v.EMVTag9B, "TSI"},
		{v.EMVTag9F34, "CVM Results"},
		{v.TransactionWording, "Transaction Wording"},
		{v.CardSequence, "Card Sequence"},
		{v.TransactionScheme, "Transaction Scheme"},
		{v.TransactionType, "Transaction Type"},
	}
}

// Profile selects one of the field-ID tables in circulation. The length
// radix and the radix used for tag range comparisons are part of the
// profile; a payload decoded under the wrong profile will misparse.
type Profile struct {
	Name        string
	Description string
	LengthRadix Radix
	TagRadix    Radix
	Additional  AdditionalDataTags
	Vendor      VendorTags
}

// ProfileEMVCo uses decimal lengths and decimal tag ranges, as published by
// EMVCo. Vendor fields occupy 80-93.
var ProfileEMVCo = &Profile{
	Name:        "emvco",
	Description: "decimal lengths and tag ranges (EMVCo)",
	LengthRadix: RadixDecimal,
	TagRadix:    RadixDecimal,
	Additional: AdditionalDataTags{
		Date:           string(AdditionalBillNumber),
		Time:           string(AdditionalMobileNumber),
		CardHint:       string(AdditionalLoyaltyNumber),
		TerminalLabel:  string(AdditionalStoreLabel),
		ReferenceLabel: string(AdditionalReferenceLabel),
		AuthCode:       string(AdditionalPurposeOfTransaction),
	},
	Vendor: VendorTags{
		FooterTicket:       "80",
		InterchangeFee:     "81",
		ApplicationName:    "82",
		BatchNumber:        "83",
		ReceiptNumber:      "84",
		EMVTag84:           "85",
		EMVTag95:           "86",
		EMVTag9F10:         "87",
		EMVTag9B:           "88",
		EMVTag9F34:         "89",
		TransactionWording: "90",
		CardSequence:       "91",
		TransactionScheme:  "92",
		TransactionType:    "93",
	},
}

// ProfileLegacyHex uses hexadecimal lengths and hexadecimal tag ranges, with
// the hex-keyed vendor table of earlier terminal builds.
var ProfileLegacyHex = &Profile{
	Name:        "legacy-hex",
	Description: "hexadecimal lengths and tag ranges (legacy terminals)",
	LengthRadix: RadixHex,
	TagRadix:    RadixHex,
	Additional: AdditionalDataTags{
		Date:           string(AdditionalBillNumber),
		Time:           string(AdditionalMobileNumber),
		CardHint:       string(AdditionalLoyaltyNumber),
		TerminalLabel:  string(AdditionalTerminalLabel),
		ReferenceLabel: string(AdditionalReferenceLabel),
		AuthCode:       "0A",
	},
	Vendor: VendorTags{
		FooterTicket:       "80",
		InterchangeFee:     "81",
		ApplicationName:    "82",
		EMVTag84:           "84",
		EMVTag95:           "85",
		EMVTag9F10:         "86",
		EMVTag9B:           "87",
		EMVTag9F34:         "88",
		TransactionWording: "89",
		CardSequence:       "8A",
		TransactionScheme:  "8B",
		BatchNumber:        "8C",
		ReceiptNumber:      "8D",
		TransactionType:    "8E",
	},
}

// Profiles returns all built-in profiles, default first
func Profiles() []*Profile {
	return []*Profile{ProfileEMVCo, ProfileLegacyHex}
}

// ProfileByName looks up a built-in profile. "decimal" and "hex" are
// accepted as aliases.
func ProfileByName(name string) (*Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProfileEMVCo.Name, "decimal":
		return ProfileEMVCo, nil
	case ProfileLegacyHex.Name, "hex":
		return ProfileLegacyHex, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
}

// MaxValueLength is the longest value the 2-character length field can declare
func (p *Profile) MaxValueLength() int {
	if p.LengthRadix == RadixHex {
		return 0xFF
	}
	return 99
}

// FormatLength renders a value length as the 2-character length field
func (p *Profile) FormatLength(n int) string {
	if p.LengthRadix == RadixHex {
		return fmt.Sprintf("%02X", n)
	}
	return fmt.Sprintf("%02d", n)
}

// UnreservedFieldName returns the display name of an unreserved top-level tag
func (p *Profile) UnreservedFieldName(tag string) string {
	for _, v := range p.Vendor.names() {
		if v.tag != "" && strings.EqualFold(v.tag, tag) {
			return v.name
		}
	}
	return fmt.Sprintf("Unreserved Template (%s)", tag)
}

// tagInRange reports whether tag lies in [lo, hi] when all three are read
// in the profile's tag radix
func (p *Profile) tagInRange(tag, lo, hi string) (bool, error) {
	n, err := parseNumber(tag, p.TagRadix)
	if err != nil {
		return false, fmt.Errorf("%w: tag %q is not a %s number", ErrMalformedPayload, tag, p.TagRadix)
	}
	low, _ := parseNumber(lo, p.TagRadix)
	high, _ := parseNumber(hi, p.TagRadix)
	return n >= low && n <= high, nil
}
