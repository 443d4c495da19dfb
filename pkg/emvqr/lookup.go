// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emvqr

import (
	"fmt"
	"strings"
)

// CurrencyInfo describes an ISO 4217 currency
type CurrencyInfo struct {
	Alpha  string
	Name   string
	Symbol string
}

// currencies is keyed by ISO 4217 numeric code
var currencies = map[string]CurrencyInfo{
	"156": {"CNY", "Chinese Yuan", "¥"},
	"344": {"HKD", "Hong Kong Dollar", "HK$"},
	"360": {"IDR", "Indonesian Rupiah", "Rp"},
	"392": {"JPY", "Japanese Yen", "¥"},
	"410": {"KRW", "South Korean Won", "₩"},
	"458": {"MYR", "Malaysian Ringgit", "RM"},
	"608": {"PHP", "Philippine Peso", "₱"},
	"702": {"SGD", "Singapore Dollar", "S$"},
	"764": {"THB", "Thai Baht", "฿"},
	"901": {"TWD", "New Taiwan Dollar", "NT$"},
	"704": {"VND", "Vietnamese Dong", "₫"},
	"036": {"AUD", "Australian Dollar", "A$"},
	"124": {"CAD", "Canadian Dollar", "C$"},
	"978": {"EUR", "Euro", "€"},
	"826": {"GBP", "British Pound", "£"},
	"356": {"INR", "Indian Rupee", "₹"},
	"840": {"USD", "US Dollar", "$"},
	"784": {"AED", "UAE Dirham", "د.إ"},
	"682": {"SAR", "Saudi Riyal", "﷼"},
	"400": {"JOD", "Jordanian Dinar", "JD"},
	"643": {"RUB", "Russian Ruble", "₽"},
	"710": {"ZAR", "South African Rand", "R"},
	"404": {"KES", "Kenyan Shilling", "KSh"},
	"566": {"NGN", "Nigerian Naira", "₦"},
	"504": {"MAD", "Moroccan Dirham", "د.م."},
	"818": {"EGP", "Egyptian Pound", "E£"},
	"985": {"PLN", "Polish Złoty", "zł"},
	"756": {"CHF", "Swiss Franc", "CHF"},
	"578": {"NOK", "Norwegian Krone", "kr"},
	"752": {"SEK", "Swedish Krona", "kr"},
	"208": {"DKK", "Danish Krone", "kr"},
	"949": {"TRY", "Turkish Lira", "₺"},
	"986": {"BRL", "Brazilian Real", "R$"},
	"484": {"MXN", "Mexican Peso", "Mex$"},
	"032": {"ARS", "Argentine Peso", "AR$"},
	"152": {"CLP", "Chilean Peso", "CLP$"},
	"604": {"PEN", "Peruvian Sol", "S/"},
}

// DefaultCurrencyNumeric is used by the encoder for unknown alpha codes
const DefaultCurrencyNumeric = "400"

// minorUnits holds the minor-unit factor of currencies that differ from
// the two-decimal default
var minorUnits = map[string]int64{
	"JOD": 1000,
	"USD": 100,
	"EUR": 100,
}

// LookupCurrency returns the currency for an ISO 4217 numeric code
func LookupCurrency(numeric string) (CurrencyInfo, bool) {
	info, ok := currencies[numeric]
	return info, ok
}

// CurrencyName returns "<alpha> - <name> (<symbol>)" for a numeric code, or
// "Unknown Currency (<code>)"
func CurrencyName(numeric string) string {
	info, ok := currencies[numeric]
	if !ok {
		return fmt.Sprintf("Unknown Currency (%s)", numeric)
	}
	return fmt.Sprintf("%s - %s (%s)", info.Alpha, info.Name, info.Symbol)
}

// CurrencySymbol returns the symbol for a numeric code, or the code itself
func CurrencySymbol(numeric string) string {
	if info, ok := currencies[numeric]; ok {
		return info.Symbol
	}
	return numeric
}

// CurrencyAlphaToNumeric converts an alpha code (e.g. JOD) to its numeric
// code (e.g. 400). Unknown codes map to DefaultCurrencyNumeric.
func CurrencyAlphaToNumeric(alpha string) string {
	alpha = strings.ToUpper(strings.TrimSpace(alpha))
	for numeric, info := range currencies {
		if info.Alpha == alpha {
			return numeric
		}
	}
	return DefaultCurrencyNumeric
}

// MinorUnitFactor returns how many minor units make one major unit of the
// currency (1000 fils per dinar, 100 cents per dollar). Unlisted currencies
// use 100.
func MinorUnitFactor(alpha string) int64 {
	if f, ok := minorUnits[strings.ToUpper(alpha)]; ok {
		return f
	}
	return 100
}

// schemeNames maps merchant account template tags to payment schemes
var schemeNames = map[string]string{
	"02": "Visa",
	"03": "Mastercard",
	"04": "Amex",
	"05": "JCB",
	"06": "UnionPay",
	"07": "Discover",
	"08": "Diners",
	"09": "Interac",
	"10": "Rupay",
	"11": "JCB",
	"12": "Mir",
	"13": "eftpos",
	"14": "Elcart",
	"15": "Girogo",
	"16": "Maestro UK",
	"17": "Maestro",
	"18": "Maestro International",
	"19": "Maestro Domestic",
	"20": "Mastercard Debit",
	"21": "Mastercard Credit",
	"22": "Visa Electron",
	"23": "Visa Debit",
	"24": "Visa Credit",
	"25": "Visa Dankort",
	"26": "Dankort",
	"27": "Bancontact",
	"28": "Girocard",
	"29": "GIM UEMOA",
	"30": "Meeza",
	"31": "Troy",
}

// SchemeName returns the payment scheme of a merchant account template tag
func SchemeName(tag string) string {
	if name, ok := schemeNames[tag]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Merchant Account (%s)", tag)
}

var additionalDataNames = map[AdditionalTag]string{
	AdditionalBillNumber:           "Bill Number",
	AdditionalMobileNumber:         "Mobile Number",
	AdditionalStoreLabel:           "Store Label",
	AdditionalLoyaltyNumber:        "Loyalty Number",
	AdditionalReferenceLabel:       "Reference Label",
	AdditionalCustomerLabel:        "Customer Label",
	AdditionalTerminalLabel:        "Terminal Label",
	AdditionalPurposeOfTransaction: "Purpose of Transaction",
	AdditionalConsumerDataRequest:  "Consumer Data Request",
}

// AdditionalDataFieldName returns the display name of an additional data
// template sub-tag
func AdditionalDataFieldName(tag string) string {
	if name, ok := additionalDataNames[AdditionalTag(tag)]; ok {
		return name
	}
	return fmt.Sprintf("Additional Field (%s)", tag)
}
