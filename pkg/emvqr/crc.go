// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

import (
	"fmt"
	"strings"
)

// CalculateCRC computes CRC-16-CCITT checksum for the given data
func CalculateCRC(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// ComputeCRC returns the checksum of the UTF-8 bytes of data as four
// upper-case hex digits.
func ComputeCRC(data string) string {
	return fmt.Sprintf("%04X", CalculateCRC([]byte(data)))
}

// VerifyCRC reports whether providedCRC matches the checksum of
// payloadWithoutCRC. The comparison ignores case.
func VerifyCRC(payloadWithoutCRC, providedCRC string) bool {
	return strings.EqualFold(ComputeCRC(payloadWithoutCRC), providedCRC)
}
