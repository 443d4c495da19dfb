// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

// SampleAnnexB is the example payload published in Annex B of the EMVCo
// merchant-presented QR specification. Its CRC verifies.
const SampleAnnexB = "00020101021229300012D156000000000510A93FO3230Q31280012D15600000001030812345678520441115802CN5914BEST TRANSPORT6007BEIJING64200002ZH0104最佳运输0202北京540523.7253031565502016233030412340603***0708A60086670902ME91320016A0112233449988770708123456786304A13A"

// SampleComplex extends the Annex B payload with hand-edited records. The
// CRC does not verify and a record declares a length past its neighbours, so
// an unreserved tag that is not decimal ("8A") reaches the top level.
const SampleComplex = "00020101021229300012D156000000000510A93FO3230Q31280012D15600000001030812345678520441115802CN5914BEST TRANSPORT6007BEIJING64200002ZH0104最佳运输0202北京540523.725303156550201623303041234060398765432106304A13A0708A6008667090211ME0102ID5204987605120454455253039586802SG7004ABCD63046CC3"

// SampleLanguageTemplate carries a postal code, a non-numeric category code
// and a second language template after an embedded CRC record. The trailing
// CRC does not verify.
const SampleLanguageTemplate = "00020101021229300012D156000000000510A93FO3230Q31280012D15600000001030812345678" +
	"5204ABCD5303156540523.725502015802CN5914BEST TRANSPORT6007BEIJING61071234567624" +
	"0001256304A13A64280002ZH0104最佳运输0202北京62800003JA0104ベスト輸送0202東京63044CDF"

// Samples lists the built-in samples by name
func Samples() map[string]string {
	return map[string]string{
		"annex-b":  SampleAnnexB,
		"complex":  SampleComplex,
		"language": SampleLanguageTemplate,
	}
}
