// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

import (
	"fmt"
	"strings"
)

// FormatPayload formats a decoded payload into a human-readable report
func FormatPayload(p *ParsedPayload) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "EMV QR payload (profile %s)\n", p.Profile)
	fmt.Fprintf(&sb, "  Payload Format: %s\n", orDash(p.PayloadFormatIndicator))
	fmt.Fprintf(&sb, "  Initiation Method: %s\n", formatInitiationMethod(p.PointOfInitiationMethod))
	fmt.Fprintf(&sb, "  Merchant: %s\n", orDash(p.MerchantName))
	fmt.Fprintf(&sb, "  City: %s, Country: %s\n", orDash(p.MerchantCity), orDash(p.CountryCode))
	if p.MerchantCategoryCode != "" {
		fmt.Fprintf(&sb, "  Category Code: %s\n", p.MerchantCategoryCode)
	}
	if p.PostalCode != "" {
		fmt.Fprintf(&sb, "  Postal Code: %s\n", p.PostalCode)
	}
	fmt.Fprintf(&sb, "  Currency: %s\n", p.Currency)
	if p.Amount != nil {
		fmt.Fprintf(&sb, "  Amount: %s %s\n", *p.Amount, CurrencySymbol(p.CurrencyCode))
	} else {
		sb.WriteString("  Amount: (entered by consumer)\n")
	}

	if len(p.MerchantAccounts) > 0 {
		sb.WriteString("  Merchant Accounts:\n")
		for _, account := range p.MerchantAccounts {
			fmt.Fprintf(&sb, "    [%s] %s\n", account.Tag, account.SchemeName)
			account.Fields.Each(func(tag, value string) {
				fmt.Fprintf(&sb, "      %s: %s\n", tag, value)
			})
		}
	}

	formatSection(&sb, "Additional Data", p.AdditionalData)
	formatSection(&sb, "Unreserved Templates", p.UnreservedTemplates)

	if lt := p.LanguageTemplate; lt != nil {
		fmt.Fprintf(&sb, "  Language Template (%s):\n", orDash(lt.LanguagePreference))
		if lt.MerchantName != nil {
			fmt.Fprintf(&sb, "    Name: %s\n", *lt.MerchantName)
		}
		if lt.MerchantCity != nil {
			fmt.Fprintf(&sb, "    City: %s\n", *lt.MerchantCity)
		}
		lt.AdditionalData.Each(func(tag, value string) {
			fmt.Fprintf(&sb, "    %s: %s\n", tag, value)
		})
	}

	status := "valid"
	if !p.CRCValid {
		status = "INVALID"
	}
	fmt.Fprintf(&sb, "  CRC: %s (%s)\n", p.CRC, status)

	return sb.String()
}

// FormatRecords dumps a record tree, one record per line, children indented
// under their template
func FormatRecords(records []Record, profile *Profile) string {
	if profile == nil {
		profile = ProfileEMVCo
	}
	var sb strings.Builder
	formatRecords(&sb, records, profile, 0)
	return sb.String()
}

func formatRecords(sb *strings.Builder, records []Record, profile *Profile, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, r := range records {
		name := ""
		if depth == 0 {
			name = " " + FormatTagName(r.Tag, profile)
		}
		fmt.Fprintf(sb, "%s%s %s%s: %q\n", indent, r.Tag, profile.FormatLength(r.Length), name, r.Value)
		if len(r.Children) > 0 {
			formatRecords(sb, r.Children, profile, depth+1)
		}
	}
}

// FormatTagName returns the name of a top-level tag under profile
func FormatTagName(tag string, profile *Profile) string {
	switch TopTag(tag) {
	case TagPayloadFormat:
		return "PAYLOAD_FORMAT"
	case TagInitiationMethod:
		return "INITIATION_METHOD"
	case TagMerchantCategoryCode:
		return "MERCHANT_CATEGORY_CODE"
	case TagCurrency:
		return "CURRENCY"
	case TagAmount:
		return "AMOUNT"
	case TagTipIndicator:
		return "TIP_INDICATOR"
	case TagConvenienceFeeFixed:
		return "CONVENIENCE_FEE_FIXED"
	case TagConvenienceFeePercent:
		return "CONVENIENCE_FEE_PERCENT"
	case TagCountryCode:
		return "COUNTRY_CODE"
	case TagMerchantName:
		return "MERCHANT_NAME"
	case TagMerchantCity:
		return "MERCHANT_CITY"
	case TagPostalCode:
		return "POSTAL_CODE"
	case TagAdditionalData:
		return "ADDITIONAL_DATA"
	case TagCRC:
		return "CRC"
	case TagLanguageTemplate:
		return "LANGUAGE_TEMPLATE"
	}

	if ok, err := profile.tagInRange(tag, string(TagMerchantAccountStart), string(TagMerchantAccountEnd)); err == nil && ok {
		return "MERCHANT_ACCOUNT"
	}
	if ok, err := profile.tagInRange(tag, string(TagRFUStart), string(TagRFUEnd)); err == nil && ok {
		return "RFU"
	}
	if ok, err := profile.tagInRange(tag, string(TagUnreservedTemplateStart), string(TagUnreservedTemplateEnd)); err == nil && ok {
		return "UNRESERVED"
	}
	return "UNKNOWN"
}

func formatInitiationMethod(method string) string {
	switch method {
	case InitiationMethodStatic:
		return method + " (static)"
	case InitiationMethodDynamic:
		return method + " (dynamic)"
	default:
		return orDash(method)
	}
}

func formatSection(sb *strings.Builder, title string, m *OrderedMap) {
	if m.Len() == 0 {
		return
	}
	fmt.Fprintf(sb, "  %s:\n", title)
	m.Each(func(key, value string) {
		fmt.Fprintf(sb, "    %s: %s\n", key, value)
	})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
