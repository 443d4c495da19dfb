// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborNull is the encoding of a CBOR null
var cborNull = []byte{0xF6}

// MarshalCBOR encodes a decoded payload as a CBOR map keyed like its JSON
// form. Ordered maps become arrays of [key, value] pairs.
func MarshalCBOR(p *ParsedPayload) ([]byte, error) {
	data, err := cbor.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}
	return data, nil
}

// UnmarshalPayloadCBOR decodes the output of MarshalCBOR
func UnmarshalPayloadCBOR(data []byte) (*ParsedPayload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}
	var p ParsedPayload
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	return &p, nil
}

// UnmarshalFieldMapCBOR decodes encoder input given as a CBOR map of text
// strings. Unknown keys are rejected.
func UnmarshalFieldMapCBOR(data []byte) (FieldMap, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}
	var m map[string]string
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	return FieldMapFromStrings(m)
}

// MarshalCBOR encodes the entries as an array of [key, value] pairs, which
// keeps their order
func (m *OrderedMap) MarshalCBOR() ([]byte, error) {
	if m == nil {
		return cborNull, nil
	}
	pairs := make([][2]string, 0, len(m.keys))
	for _, k := range m.keys {
		pairs = append(pairs, [2]string{k, m.values[k]})
	}
	return cbor.Marshal(pairs)
}

// UnmarshalCBOR decodes an array of [key, value] pairs
func (m *OrderedMap) UnmarshalCBOR(data []byte) error {
	m.keys = nil
	m.values = make(map[string]string)
	if bytes.Equal(data, cborNull) {
		return nil
	}

	var pairs [][]string
	if err := cbor.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("expected array of pairs: %w", err)
	}
	for i, pair := range pairs {
		if len(pair) != 2 {
			return fmt.Errorf("pair %d has %d elements, expected 2", i, len(pair))
		}
		m.Set(pair[0], pair[1])
	}
	return nil
}
