// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/moov-io/bertlv"
)

// ErrInvalidICCData is returned when ICC data is not hex-encoded BER-TLV
var ErrInvalidICCData = errors.New("emvqr: invalid ICC data")

// ICC data tags read by the encoder
const (
	EMVTagAID                      = "84"
	EMVTagTVR                      = "95"
	EMVTagTSI                      = "9B"
	EMVTagIssuerApplicationData    = "9F10"
	EMVTagCVMResults               = "9F34"
	EMVTagApplicationLabel         = "50"
	EMVTagApplicationPreferredName = "9F12"
)

// ExtractEMVTags decodes hex-encoded BER-TLV ICC data and returns the value
// of every primitive tag as upper-case hex, keyed by the upper-case tag.
// Constructed templates are walked; the first occurrence of a tag wins.
func ExtractEMVTags(iccHex string) (map[string]string, error) {
	data, err := hex.DecodeString(strings.Join(strings.Fields(iccHex), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidICCData, err)
	}

	tlvs, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidICCData, err)
	}

	tags := make(map[string]string)
	collectEMVTags(tlvs, tags)
	return tags, nil
}

func collectEMVTags(tlvs []bertlv.TLV, tags map[string]string) {
	for _, t := range tlvs {
		tag := strings.ToUpper(t.Tag)
		if _, seen := tags[tag]; !seen && len(t.TLVs) == 0 {
			tags[tag] = strings.ToUpper(hex.EncodeToString(t.Value))
		}
		if len(t.TLVs) > 0 {
			collectEMVTags(t.TLVs, tags)
		}
	}
}

// applicationName returns the preferred name (9F12) or the label (50) as
// text, or "" when neither is present or printable
func applicationName(tags map[string]string) string {
	for _, tag := range []string{EMVTagApplicationPreferredName, EMVTagApplicationLabel} {
		raw, err := hex.DecodeString(tags[tag])
		if err != nil || len(raw) == 0 {
			continue
		}
		name := string(raw)
		if isPrintable(name) {
			return strings.TrimSpace(name)
		}
	}
	return ""
}

func isPrintable(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
