// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Defaults are the values the encoder uses when a field is absent
type Defaults struct {
	MerchantCategoryCode string
	CurrencyAlpha        string
	CountryCode          string
	MerchantName         string
	MerchantCity         string
}

// DefaultDefaults returns the built-in fallback values
func DefaultDefaults() Defaults {
	return Defaults{
		MerchantCategoryCode: "5541",
		CurrencyAlpha:        "JOD",
		CountryCode:          "JO",
		MerchantName:         "JORDAN GATE GAS STATION",
		MerchantCity:         "AMMAN",
	}
}

// Encoder builds payload strings from a FieldMap. An Encoder holds only
// immutable configuration and is safe for concurrent use.
type Encoder struct {
	profile    *Profile
	defaults   Defaults
	minorUnits map[string]int64
}

// EncoderOption configures an Encoder
type EncoderOption func(*Encoder)

// WithDefaults overrides fallback values. Empty fields of d keep the
// built-in value.
func WithDefaults(d Defaults) EncoderOption {
	return func(e *Encoder) {
		e.defaults.MerchantCategoryCode = valueOr(d.MerchantCategoryCode, e.defaults.MerchantCategoryCode)
		e.defaults.CurrencyAlpha = valueOr(d.CurrencyAlpha, e.defaults.CurrencyAlpha)
		e.defaults.CountryCode = valueOr(d.CountryCode, e.defaults.CountryCode)
		e.defaults.MerchantName = valueOr(d.MerchantName, e.defaults.MerchantName)
		e.defaults.MerchantCity = valueOr(d.MerchantCity, e.defaults.MerchantCity)
	}
}

// WithMinorUnits sets minor-unit factors per alpha currency code. Currencies
// not listed keep MinorUnitFactor; non-positive factors are ignored.
func WithMinorUnits(units map[string]int64) EncoderOption {
	return func(e *Encoder) {
		for alpha, factor := range units {
			if factor > 0 {
				e.minorUnits[strings.ToUpper(alpha)] = factor
			}
		}
	}
}

// NewEncoder creates an encoder for the given profile (ProfileEMVCo if nil)
func NewEncoder(profile *Profile, opts ...EncoderOption) *Encoder {
	if profile == nil {
		profile = ProfileEMVCo
	}
	e := &Encoder{
		profile:    profile,
		defaults:   DefaultDefaults(),
		minorUnits: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEncoder = NewEncoder(ProfileEMVCo)

// Encode encodes fields with ProfileEMVCo and the built-in defaults
func Encode(fields FieldMap) string {
	return defaultEncoder.Encode(fields)
}

// Profile returns the encoder's profile
func (e *Encoder) Profile() *Profile {
	return e.profile
}

// Defaults returns the fallback values in effect
func (e *Encoder) Defaults() Defaults {
	return e.defaults
}

// Encode builds the payload for fields, ending with the CRC record.
//
// Records are emitted in a fixed order and skipped when their value is
// empty. Values longer than the length field can declare are emitted with a
// wrong length; use CheckFields to detect them beforehand.
func (e *Encoder) Encode(fields FieldMap) string {
	var buf strings.Builder

	e.emitField(&buf, string(TagPayloadFormat), PayloadFormatValue)
	e.emitField(&buf, string(TagInitiationMethod), InitiationMethodStatic)
	e.emitField(&buf, string(TagMerchantCategoryCode), valueOr(fields[FieldMerchantNumber], e.defaults.MerchantCategoryCode))

	currencyAlpha := valueOr(fields[FieldCurrencyAlpha], e.defaults.CurrencyAlpha)
	e.emitField(&buf, string(TagCurrency), CurrencyAlphaToNumeric(currencyAlpha))
	e.emitField(&buf, string(TagAmount), e.formatAmount(fields[FieldAmount], currencyAlpha))

	e.emitField(&buf, string(TagCountryCode), valueOr(fields[FieldCountryCode], e.defaults.CountryCode))
	e.emitField(&buf, string(TagMerchantName), truncateChars(valueOr(fields[FieldMerchantName], e.defaults.MerchantName), MaxMerchantNameLength))
	e.emitField(&buf, string(TagMerchantCity), e.cityFromAddress(fields[FieldTerminalAddress]))

	e.emitField(&buf, string(TagAdditionalData), e.additionalData(fields))

	icc := e.iccTags(fields)
	emv := func(key FieldKey, tag string) string {
		return valueOr(fields[key], icc[tag])
	}

	vendor := e.profile.Vendor
	e.emitField(&buf, vendor.FooterTicket, fields[FieldFooterTicket])
	e.emitField(&buf, vendor.InterchangeFee, fields[FieldInterchangeFee])
	e.emitField(&buf, vendor.ApplicationName, valueOr(fields[FieldApplicationName], applicationName(icc)))
	e.emitField(&buf, vendor.EMVTag84, emv(FieldEMVTag84, EMVTagAID))
	e.emitField(&buf, vendor.EMVTag95, emv(FieldEMVTag95, EMVTagTVR))
	e.emitField(&buf, vendor.EMVTag9B, emv(FieldEMVTag9B, EMVTagTSI))
	e.emitField(&buf, vendor.EMVTag9F10, emv(FieldEMVTag9F10, EMVTagIssuerApplicationData))
	e.emitField(&buf, vendor.EMVTag9F34, emv(FieldEMVTag9F34, EMVTagCVMResults))
	e.emitField(&buf, vendor.TransactionWording, fields[FieldTransactionWording])
	e.emitField(&buf, vendor.CardSequence, fields[FieldCardSequence])
	e.emitField(&buf, vendor.TransactionScheme, fields[FieldTransactionScheme])
	e.emitField(&buf, vendor.BatchNumber, fields[FieldBatchNumber])
	e.emitField(&buf, vendor.ReceiptNumber, fields[FieldReceiptNumber])
	e.emitField(&buf, vendor.TransactionType, fields[FieldTransactionType])

	// The checksum covers the CRC record's own tag and length
	crcHeader := string(TagCRC) + e.profile.FormatLength(CRCSize)
	buf.WriteString(crcHeader)
	buf.WriteString(ComputeCRC(buf.String()))

	return buf.String()
}

// additionalData assembles the additional data template value, "" when no
// sub-field is present
func (e *Encoder) additionalData(fields FieldMap) string {
	var sub strings.Builder
	tags := e.profile.Additional

	if date := fields[FieldDate]; date != "" {
		e.emitField(&sub, tags.Date, formatDate(date))
	}
	if t := fields[FieldTime]; t != "" {
		e.emitField(&sub, tags.Time, formatTime(t))
	}
	e.emitField(&sub, tags.CardHint, fields[FieldCardHint])
	e.emitField(&sub, tags.TerminalLabel, fields[FieldTerminalNumber])
	e.emitField(&sub, tags.ReferenceLabel, fields[FieldReference])
	e.emitField(&sub, tags.AuthCode, fields[FieldAuthCode])

	return sub.String()
}

// emitField appends tag, length and value. Empty values are skipped.
func (e *Encoder) emitField(buf *strings.Builder, tag, value string) {
	if value == "" {
		return
	}
	buf.WriteString(tag)
	buf.WriteString(e.profile.FormatLength(utf8.RuneCountInString(value)))
	buf.WriteString(value)
}

func (e *Encoder) minorUnitFactor(alpha string) int64 {
	if factor, ok := e.minorUnits[strings.ToUpper(alpha)]; ok {
		return factor
	}
	return MinorUnitFactor(alpha)
}

// formatAmount converts a decimal major-unit amount to minor units,
// truncating toward zero. Unparsable amounts become 0; amounts outside the
// int64 range saturate.
func (e *Encoder) formatAmount(amount, currencyAlpha string) string {
	units, _ := e.minorUnitAmount(amount, currencyAlpha)
	return units.String()
}

// minorUnitAmount returns the amount in minor units and whether it had to
// be clamped to the int64 range
func (e *Encoder) minorUnitAmount(amount, currencyAlpha string) (*big.Int, bool) {
	value, ok := parseDecimal(amount)
	if !ok {
		return new(big.Int), false
	}
	if value == nil {
		// Exponent beyond maxAmountExponent
		return saturatedAmount(amount), true
	}
	value.Mul(value, new(big.Rat).SetInt64(e.minorUnitFactor(currencyAlpha)))
	units := new(big.Int).Quo(value.Num(), value.Denom())

	switch {
	case units.Cmp(maxMinorUnits) > 0:
		return new(big.Int).Set(maxMinorUnits), true
	case units.Cmp(minMinorUnits) < 0:
		return new(big.Int).Set(minMinorUnits), true
	}
	return units, false
}

// cityFromAddress takes the word after the last "-" of a terminal address
func (e *Encoder) cityFromAddress(address string) string {
	i := strings.LastIndex(address, "-")
	if i < 0 {
		return e.defaults.MerchantCity
	}
	city := address[i+1:]
	if j := strings.Index(city, " "); j >= 0 {
		city = city[:j]
	}
	return city
}

// iccTags returns the tags of the raw ICC data field, nil when absent or
// unreadable
func (e *Encoder) iccTags(fields FieldMap) map[string]string {
	raw := fields[FieldEMVData]
	if raw == "" {
		return nil
	}
	tags, err := ExtractEMVTags(raw)
	if err != nil {
		return nil
	}
	return tags
}

// Amount limits
const maxAmountExponent = 4096

var (
	maxMinorUnits = big.NewInt(math.MaxInt64)
	minMinorUnits = big.NewInt(math.MinInt64)
)

// parseDecimal parses a plain decimal number, [+-]digits[.digits] with an
// optional [eE][+-]digits exponent. It returns a nil value with ok set when
// the exponent exceeds maxAmountExponent and the mantissa is not zero.
func parseDecimal(s string) (*big.Rat, bool) {
	s = strings.TrimSpace(s)
	mantissa, exponent, ok := splitDecimal(s)
	if !ok {
		return nil, false
	}

	if exponent != "" {
		digits := strings.TrimLeft(strings.TrimLeft(exponent, "+-"), "0")
		if n, _ := strconv.Atoi(digits); len(digits) > 4 || n > maxAmountExponent {
			if strings.Trim(mantissa, "+-0.") == "" {
				return new(big.Rat), true
			}
			if strings.HasPrefix(exponent, "-") {
				return new(big.Rat), true
			}
			return nil, true
		}
	}
	return new(big.Rat).SetString(s)
}

// splitDecimal checks the decimal grammar and splits off the exponent
// digits (with sign)
func splitDecimal(s string) (mantissa, exponent string, ok bool) {
	mantissa = s
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mantissa, exponent = s[:i], s[i+1:]
		if !isDigits(strings.TrimPrefix(strings.TrimPrefix(exponent, "+"), "-")) ||
			strings.HasPrefix(exponent, "+-") || strings.HasPrefix(exponent, "-+") {
			return "", "", false
		}
	}

	body := mantissa
	if body != "" && (body[0] == '+' || body[0] == '-') {
		body = body[1:]
	}
	whole, frac, hasPoint := strings.Cut(body, ".")
	if !isDigits(whole) || (hasPoint && !isDigits(frac)) {
		return "", "", false
	}
	return mantissa, exponent, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// saturatedAmount is the clamped value for an amount with a huge positive
// exponent
func saturatedAmount(amount string) *big.Int {
	if strings.HasPrefix(strings.TrimSpace(amount), "-") {
		return new(big.Int).Set(minMinorUnits)
	}
	return new(big.Int).Set(maxMinorUnits)
}

// formatDate converts MM/DD/YYYY to YYMMDD, "" when malformed
func formatDate(date string) string {
	parts := strings.Split(date, "/")
	if len(parts) < 3 {
		return ""
	}
	year := []rune(parts[2])
	if len(year) < 4 {
		return ""
	}
	return string(year[2:4]) + padTwo(parts[0]) + padTwo(parts[1])
}

// formatTime converts HH:MM:SS to HHMMSS
func formatTime(t string) string {
	return strings.ReplaceAll(t, ":", "")
}

func padTwo(s string) string {
	if n := utf8.RuneCountInString(s); n < 2 {
		return strings.Repeat("0", 2-n) + s
	}
	return s
}

func truncateChars(s string, limit int) string {
	chars := []rune(s)
	if len(chars) <= limit {
		return s
	}
	return string(chars[:limit])
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
