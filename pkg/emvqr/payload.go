// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

import (
	"bytes"
	"encoding/json"
)

// OrderedMap is a string map that remembers insertion order. Setting an
// existing key replaces its value but keeps its original position.
type OrderedMap struct {
	keys   []string
	values map[string]string
}

// NewOrderedMap creates an empty map
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]string)}
}

// Set stores value under key
func (m *OrderedMap) Set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key
func (m *OrderedMap) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order
func (m *OrderedMap) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Len returns the number of entries
func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Each calls fn for every entry in insertion order
func (m *OrderedMap) Each(fn func(key, value string)) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// MarshalJSON writes the entries as a JSON object in insertion order
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MerchantAccount is a decoded merchant account template (tags 02-51).
// Fields maps sub-tags to raw values.
type MerchantAccount struct {
	Tag        string      `json:"tag"`
	SchemeName string      `json:"schemeName"`
	Fields     *OrderedMap `json:"fields"`
}

// LanguageTemplate is the decoded language template (tag 64).
// AdditionalData is nil when the template has no sub-tags in 03-99.
type LanguageTemplate struct {
	LanguagePreference string      `json:"languagePreference"`
	MerchantName       *string     `json:"merchantName"`
	MerchantCity       *string     `json:"merchantCity"`
	AdditionalData     *OrderedMap `json:"additionalData"`
}

// ParsedPayload is the result of decoding a payload. It is not modified
// after Decode returns.
type ParsedPayload struct {
	PayloadFormatIndicator  string            `json:"payloadFormatIndicator"`
	PointOfInitiationMethod string            `json:"pointOfInitiationMethod"`
	MerchantAccounts        []MerchantAccount `json:"merchantAccounts"`
	MerchantCategoryCode    string            `json:"merchantCategoryCode"`
	CurrencyCode            string            `json:"currencyCode"`
	Currency                string            `json:"currency"`
	Amount                  *string           `json:"amount"`
	CountryCode             string            `json:"countryCode"`
	MerchantName            string            `json:"merchantName"`
	MerchantCity            string            `json:"merchantCity"`
	PostalCode              string            `json:"postalCode"`
	AdditionalData          *OrderedMap       `json:"additionalData"`
	UnreservedTemplates     *OrderedMap       `json:"unreservedTemplates"`
	LanguageTemplate        *LanguageTemplate `json:"languageTemplate"`
	CRC                     string            `json:"crc"`
	CRCValid                bool              `json:"crcValid"`
	Profile                 string            `json:"profile"`
}

// JSON renders the payload as indented JSON
func (p *ParsedPayload) JSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// IsDynamic reports whether the point of initiation method marks a
// single-use payload
func (p *ParsedPayload) IsDynamic() bool {
	return p.PointOfInitiationMethod == InitiationMethodDynamic
}
