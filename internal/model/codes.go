package model

import "strings"

// countries is the set of ISO 3166-1 alpha-2 codes accepted in addresses and
// as VAT id prefixes. EU/EEA plus the trading partners the ERP deals with.
var countries = map[string]bool{
	"AT": true, "BE": true, "BG": true, "CH": true, "CY": true, "CZ": true,
	"DE": true, "DK": true, "EE": true, "ES": true, "FI": true, "FR": true,
	"GB": true, "GR": true, "HR": true, "HU": true, "IE": true, "IS": true,
	"IT": true, "LI": true, "LT": true, "LU": true, "LV": true, "MT": true,
	"NL": true, "NO": true, "PL": true, "PT": true, "RO": true, "SE": true,
	"SI": true, "SK": true, "US": true,
	// EL is the VAT prefix Greece uses instead of GR.
	"EL": true,
}

// currencies is the set of ISO 4217 codes the pipeline accepts.
var currencies = map[string]bool{
	"EUR": true, "USD": true, "GBP": true, "CHF": true, "SEK": true,
	"DKK": true, "NOK": true, "PLN": true, "CZK": true, "HUF": true,
	"RON": true, "BGN": true, "ISK": true,
}

// KnownCountry reports whether code is an accepted ISO 3166-1 alpha-2 code.
func KnownCountry(code string) bool {
	return countries[strings.ToUpper(code)]
}

// KnownCurrency reports whether code is an accepted ISO 4217 code.
func KnownCurrency(code string) bool {
	return currencies[strings.ToUpper(code)]
}

// VATCountryPrefix returns the two-letter prefix of a VAT id, or "" if the id
// is too short to carry one.
func VATCountryPrefix(vatID string) string {
	if len(vatID) < 2 {
		return ""
	}
	return strings.ToUpper(vatID[:2])
}
