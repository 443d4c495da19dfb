// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

import (
	"errors"
	"fmt"
)

// ErrMalformedPayload is returned when the input is too short to carry a CRC
// or a tag that must be compared numerically is not a number. No partial
// result accompanies it.
var ErrMalformedPayload = errors.New("emvqr: malformed payload")

// Decoder turns payload strings into ParsedPayload values. A Decoder holds
// only immutable configuration and is safe for concurrent use.
type Decoder struct {
	profile   *Profile
	tracer    Tracer
	tokenizer *Tokenizer
}

// DecoderOption configures a Decoder
type DecoderOption func(*Decoder)

// WithTracer installs a tokenizer trace hook
func WithTracer(t Tracer) DecoderOption {
	return func(d *Decoder) {
		if t != nil {
			d.tracer = t
		}
	}
}

// NewDecoder creates a decoder for the given profile (ProfileEMVCo if nil)
func NewDecoder(profile *Profile, opts ...DecoderOption) *Decoder {
	if profile == nil {
		profile = ProfileEMVCo
	}
	d := &Decoder{
		profile: profile,
		tracer:  NopTracer{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.tokenizer = NewTokenizer(profile.LengthRadix, d.tracer)
	return d
}

var defaultDecoder = NewDecoder(ProfileEMVCo)

// Decode decodes raw with ProfileEMVCo
func Decode(raw string) (*ParsedPayload, error) {
	return defaultDecoder.Decode(raw)
}

// Profile returns the decoder's profile
func (d *Decoder) Profile() *Profile {
	return d.profile
}

// Decode parses raw into a ParsedPayload. A checksum mismatch is reported
// through CRCValid, not as an error. Records truncated at the end of a stream
// are ignored.
func (d *Decoder) Decode(raw string) (*ParsedPayload, error) {
	body, providedCRC, err := splitCRC(raw)
	if err != nil {
		return nil, err
	}

	records, _ := d.tokenizer.scan(body, 0)

	p := &ParsedPayload{
		MerchantAccounts:    []MerchantAccount{},
		AdditionalData:      NewOrderedMap(),
		UnreservedTemplates: NewOrderedMap(),
		CRC:                 providedCRC,
		CRCValid:            VerifyCRC(body, providedCRC),
		Profile:             d.profile.Name,
	}

	// Singleton fields, first match wins
	p.PayloadFormatIndicator, _ = findRecord(records, string(TagPayloadFormat))
	p.PointOfInitiationMethod, _ = findRecord(records, string(TagInitiationMethod))
	p.MerchantCategoryCode, _ = findRecord(records, string(TagMerchantCategoryCode))
	p.CurrencyCode, _ = findRecord(records, string(TagCurrency))
	p.MerchantName, _ = findRecord(records, string(TagMerchantName))
	p.MerchantCity, _ = findRecord(records, string(TagMerchantCity))
	p.CountryCode, _ = findRecord(records, string(TagCountryCode))
	p.PostalCode, _ = findRecord(records, string(TagPostalCode))
	if amount, ok := findRecord(records, string(TagAmount)); ok {
		p.Amount = &amount
	}
	p.Currency = CurrencyName(p.CurrencyCode)

	for _, r := range records {
		isAccount, err := d.profile.tagInRange(r.Tag, string(TagMerchantAccountStart), string(TagMerchantAccountEnd))
		if err != nil {
			return nil, err
		}
		if isAccount {
			p.MerchantAccounts = append(p.MerchantAccounts, MerchantAccount{
				Tag:        r.Tag,
				SchemeName: SchemeName(r.Tag),
				Fields:     d.subFields(r.Value),
			})
			continue
		}

		isUnreserved, err := d.profile.tagInRange(r.Tag, string(TagUnreservedTemplateStart), string(TagUnreservedTemplateEnd))
		if err != nil {
			return nil, err
		}
		if isUnreserved {
			p.UnreservedTemplates.Set(d.profile.UnreservedFieldName(r.Tag), r.Value)
		}
	}

	if value, ok := findRecord(records, string(TagAdditionalData)); ok {
		for _, sub := range d.nested(value) {
			p.AdditionalData.Set(AdditionalDataFieldName(sub.Tag), sub.Value)
		}
	}

	if value, ok := findRecord(records, string(TagLanguageTemplate)); ok {
		p.LanguageTemplate, err = d.decodeLanguageTemplate(value)
		if err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Records returns the top-level records of raw (CRC record excluded) with
// Children populated for merchant account, additional data and language
// templates. Tags that are not numbers in the profile radix are left as
// leaves.
func (d *Decoder) Records(raw string) ([]Record, error) {
	body, _, err := splitCRC(raw)
	if err != nil {
		return nil, err
	}
	records, _ := d.tokenizer.scan(body, 0)
	for i := range records {
		if d.isTemplate(records[i].Tag) {
			records[i].Children = d.nested(records[i].Value)
		}
	}
	return records, nil
}

func (d *Decoder) isTemplate(tag string) bool {
	switch TopTag(tag) {
	case TagAdditionalData, TagLanguageTemplate:
		return true
	}
	isAccount, err := d.profile.tagInRange(tag, string(TagMerchantAccountStart), string(TagMerchantAccountEnd))
	return err == nil && isAccount
}

func (d *Decoder) nested(value string) []Record {
	records, _ := d.tokenizer.scan(value, 1)
	return records
}

func (d *Decoder) subFields(value string) *OrderedMap {
	fields := NewOrderedMap()
	for _, sub := range d.nested(value) {
		fields.Set(sub.Tag, sub.Value)
	}
	return fields
}

func (d *Decoder) decodeLanguageTemplate(value string) (*LanguageTemplate, error) {
	subs := d.nested(value)

	lt := &LanguageTemplate{}
	lt.LanguagePreference, _ = findRecord(subs, string(LanguagePreference))
	if name, ok := findRecord(subs, string(LanguageMerchantName)); ok {
		lt.MerchantName = &name
	}
	if city, ok := findRecord(subs, string(LanguageMerchantCity)); ok {
		lt.MerchantCity = &city
	}

	extra := NewOrderedMap()
	for _, sub := range subs {
		isRFU, err := d.profile.tagInRange(sub.Tag, string(LanguageRFUStart), string(LanguageRFUEnd))
		if err != nil {
			return nil, err
		}
		if isRFU {
			extra.Set(sub.Tag, sub.Value)
		}
	}
	if extra.Len() > 0 {
		lt.AdditionalData = extra
	}

	return lt, nil
}

// splitCRC separates the trailing 4-character CRC value from the body. The
// body keeps the CRC record's tag and length, which the checksum covers.
func splitCRC(raw string) (body, crc string, err error) {
	chars := []rune(raw)
	if len(chars) < MinPayloadSize {
		return "", "", fmt.Errorf("%w: %d characters, need at least %d", ErrMalformedPayload, len(chars), MinPayloadSize)
	}
	split := len(chars) - CRCSize
	return string(chars[:split]), string(chars[split:]), nil
}
