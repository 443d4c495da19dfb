// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownFieldKey is returned by FieldMapFromStrings for keys the encoder
// does not know
var ErrUnknownFieldKey = errors.New("emvqr: unknown field key")

// FieldKey names one logical input of the encoder. The string values are an
// external contract shared with the terminal software that produces them.
type FieldKey string

// Merchant and terminal
const (
	FieldMerchantName    FieldKey = "Acquirer.Merchant.Outlet.Name"
	FieldTerminalAddress FieldKey = "Acquirer.Merchant.Outlet.Terminal.Address"
	FieldMerchantNumber  FieldKey = "Acquirer.Merchant.Outlet.Number"
	FieldTerminalNumber  FieldKey = "Acquirer.Merchant.Outlet.Terminal.Number"
	FieldCountryCode     FieldKey = "Acquirer.Merchant.Outlet.Country"
)

// Transaction
const (
	FieldReference          FieldKey = "REF.reference"
	FieldTransactionWording FieldKey = "REF.transactionType{getTransactionWording::}"
	FieldDate               FieldKey = "REF.dateTime{subString:0:10}"
	FieldTransactionScheme  FieldKey = "REF.transactionType{getTransactionScheme::}"
	FieldTime               FieldKey = "REF.dateTime{subString:11:19}"
	FieldAmount             FieldKey = "REF.trxAmount"
	FieldCurrencyAlpha      FieldKey = "REF.currencyIsoCode{currencyAlpha::}"
	FieldInterchangeFee     FieldKey = "REF.interchangeFee"
	FieldAuthCode           FieldKey = "REF.autCode"
	FieldTransactionType    FieldKey = "REF.transactionType"
	FieldFooterTicket       FieldKey = "FOOTER_TICKET"
	FieldBatchNumber        FieldKey = "BatchNumber"
	FieldReceiptNumber      FieldKey = "ReceiptNumber"
)

// Card
const (
	FieldCardHint     FieldKey = "Card.Number{hideCardNumber::}"
	FieldCardSequence FieldKey = "Card.Sequence"
)

// ICC data
const (
	FieldApplicationName FieldKey = "SCRT.EMVDATA{getApplicationName:0:}"
	FieldEMVTag84        FieldKey = "SCRT.EMVDATA{getEMVTag:84:}"
	FieldEMVTag95        FieldKey = "SCRT.EMVDATA{getEMVTag:95:}"
	FieldEMVTag9F10      FieldKey = "SCRT.EMVDATA{getEMVTag:9F10:}"
	FieldEMVTag9B        FieldKey = "SCRT.EMVDATA{getEMVTag:9B:}"
	FieldEMVTag9F34      FieldKey = "SCRT.EMVDATA{requestSignature:9F34:9F10}"

	// FieldEMVData carries the raw ICC data as hex BER-TLV. The EMV tag
	// fields above fall back to it when absent.
	FieldEMVData FieldKey = "SCRT.EMVDATA"
)

var knownFieldKeys = map[FieldKey]bool{
	FieldMerchantName:       true,
	FieldTerminalAddress:    true,
	FieldMerchantNumber:     true,
	FieldTerminalNumber:     true,
	FieldCountryCode:        true,
	FieldReference:          true,
	FieldTransactionWording: true,
	FieldDate:               true,
	FieldTransactionScheme:  true,
	FieldTime:               true,
	FieldAmount:             true,
	FieldCurrencyAlpha:      true,
	FieldInterchangeFee:     true,
	FieldAuthCode:           true,
	FieldTransactionType:    true,
	FieldFooterTicket:       true,
	FieldBatchNumber:        true,
	FieldReceiptNumber:      true,
	FieldCardHint:           true,
	FieldCardSequence:       true,
	FieldApplicationName:    true,
	FieldEMVTag84:           true,
	FieldEMVTag95:           true,
	FieldEMVTag9F10:         true,
	FieldEMVTag9B:           true,
	FieldEMVTag9F34:         true,
	FieldEMVData:            true,
}

// IsValid reports whether k is a key the encoder reads
func (k FieldKey) IsValid() bool {
	return knownFieldKeys[k]
}

// AllFieldKeys returns every known key in lexical order
func AllFieldKeys() []FieldKey {
	keys := make([]FieldKey, 0, len(knownFieldKeys))
	for k := range knownFieldKeys {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// FieldMap is the encoder input. Missing keys and empty values are treated
// the same.
type FieldMap map[FieldKey]string

// FieldMapFromStrings converts a plain string map, rejecting unknown keys
func FieldMapFromStrings(m map[string]string) (FieldMap, error) {
	fields := make(FieldMap, len(m))
	for k, v := range m {
		key := FieldKey(k)
		if !key.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFieldKey, k)
		}
		fields[key] = v
	}
	return fields, nil
}

// Strings returns the map with plain string keys
func (f FieldMap) Strings() map[string]string {
	m := make(map[string]string, len(f))
	for k, v := range f {
		m[string(k)] = v
	}
	return m
}
