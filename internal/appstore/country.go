package appstore

import (
	"fmt"
	"strings"
)

// Country is an App Store storefront code such as "US" or "BIH". Codes are
// compared case-insensitively and normalized to upper case.
type Country string

// Storefronts commonly passed on the command line. Any valid code works.
const (
	Australia     Country = "AU"
	Austria       Country = "AT"
	Brazil        Country = "BR"
	Canada        Country = "CA"
	China         Country = "CN"
	Denmark       Country = "DK"
	Finland       Country = "FI"
	France        Country = "FR"
	Germany       Country = "DE"
	HongKong      Country = "HK"
	India         Country = "IN"
	Ireland       Country = "IE"
	Israel        Country = "IL"
	Italy         Country = "IT"
	Japan         Country = "JP"
	Korea         Country = "KR"
	Mexico        Country = "MX"
	Netherlands   Country = "NL"
	NewZealand    Country = "NZ"
	Norway        Country = "NO"
	Poland        Country = "PL"
	Portugal      Country = "PT"
	Singapore     Country = "SG"
	Spain         Country = "ES"
	Sweden        Country = "SE"
	Switzerland   Country = "CH"
	Taiwan        Country = "TW"
	Turkey        Country = "TR"
	Ukraine       Country = "UA"
	UnitedKingdom Country = "GB"
	UnitedStates  Country = "US"

	DefaultCountry = UnitedStates
)

// ParseCountry normalizes and validates a 2 or 3 letter storefront code.
// An empty string yields DefaultCountry.
func ParseCountry(s string) (Country, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if code == "" {
		return DefaultCountry, nil
	}
	if len(code) < 2 || len(code) > 3 {
		return "", fmt.Errorf("invalid country code %q: want 2 or 3 letters", s)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("invalid country code %q: want 2 or 3 letters", s)
		}
	}
	return Country(code), nil
}

// Code returns the upper-case storefront code.
func (c Country) Code() string {
	return strings.ToUpper(strings.TrimSpace(string(c)))
}

// Equal reports whether c and other name the same storefront.
func (c Country) Equal(other Country) bool {
	return strings.EqualFold(strings.TrimSpace(string(c)), strings.TrimSpace(string(other)))
}

func (c Country) String() string { return c.Code() }
