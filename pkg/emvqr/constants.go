// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package emvqr decodes and encodes EMV Consumer-Presented QR payloads.
//
// A payload is a flat string of Tag-Length-Value records (2-character tag,
// 2-character length, value) terminated by a CRC-16 record (tag 63). Some
// records are themselves TLV streams: merchant account templates (02-51),
// the additional data template (62) and the language template (64). This
// package provides tokenizing, decoding into a ParsedPayload, encoding from
// a FieldMap, and CRC computation and verification.
package emvqr

// CRC-16/CCITT-FALSE configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Wire layout
const (
	TagSize    = 2
	LengthSize = 2
	CRCSize    = 4

	// MinPayloadSize is the shortest input that can carry a CRC value
	MinPayloadSize = CRCSize

	// MaxMerchantNameLength is the number of characters kept by the encoder
	MaxMerchantNameLength = 25
)

// TopTag identifies a top-level record of the payload
type TopTag string

// Top-level tags
const (
	TagPayloadFormat           TopTag = "00"
	TagInitiationMethod        TopTag = "01"
	TagMerchantAccountStart    TopTag = "02"
	TagMerchantAccountEnd      TopTag = "51"
	TagMerchantCategoryCode    TopTag = "52"
	TagCurrency                TopTag = "53"
	TagAmount                  TopTag = "54"
	TagTipIndicator            TopTag = "55"
	TagConvenienceFeeFixed     TopTag = "56"
	TagConvenienceFeePercent   TopTag = "57"
	TagCountryCode             TopTag = "58"
	TagMerchantName            TopTag = "59"
	TagMerchantCity            TopTag = "60"
	TagPostalCode              TopTag = "61"
	TagAdditionalData          TopTag = "62"
	TagCRC                     TopTag = "63"
	TagLanguageTemplate        TopTag = "64"
	TagRFUStart                TopTag = "65"
	TagRFUEnd                  TopTag = "79"
	TagUnreservedTemplateStart TopTag = "80"
	TagUnreservedTemplateEnd   TopTag = "99"
)

// AdditionalTag identifies a record inside the additional data template (62)
type AdditionalTag string

// Additional data template sub-tags
const (
	AdditionalBillNumber           AdditionalTag = "01"
	AdditionalMobileNumber         AdditionalTag = "02"
	AdditionalStoreLabel           AdditionalTag = "03"
	AdditionalLoyaltyNumber        AdditionalTag = "04"
	AdditionalReferenceLabel       AdditionalTag = "05"
	AdditionalCustomerLabel        AdditionalTag = "06"
	AdditionalTerminalLabel        AdditionalTag = "07"
	AdditionalPurposeOfTransaction AdditionalTag = "08"
	AdditionalConsumerDataRequest  AdditionalTag = "09"
	AdditionalRFUStart             AdditionalTag = "10"
	AdditionalRFUEnd               AdditionalTag = "99"
)

// LanguageTag identifies a record inside the language template (64)
type LanguageTag string

// Language template sub-tags
const (
	LanguagePreference   LanguageTag = "00"
	LanguageMerchantName LanguageTag = "01"
	LanguageMerchantCity LanguageTag = "02"
	LanguageRFUStart     LanguageTag = "03"
	LanguageRFUEnd       LanguageTag = "99"
)

// Constant values emitted by the encoder
const (
	PayloadFormatValue      = "01"
	InitiationMethodStatic  = "11"
	InitiationMethodDynamic = "12"
)
