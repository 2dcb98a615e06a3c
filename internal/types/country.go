package types

import (
	"slices"
	"strings"
)

// Country is a member of the fixed set of countries the program accepts
// applicants from. The value is the English country name.
type Country string

// countryPrefixes maps every allowed country to its international
// dialing prefix. It doubles as the allowed-country set.
var countryPrefixes = map[Country]string{
	"Algeria":              "+213",
	"Bahrain":              "+973",
	"Comoros":              "+269",
	"Djibouti":             "+253",
	"Egypt":                "+20",
	"Iraq":                 "+964",
	"Jordan":               "+962",
	"Kuwait":               "+965",
	"Lebanon":              "+961",
	"Libya":                "+218",
	"Mauritania":           "+222",
	"Morocco":              "+212",
	"Oman":                 "+968",
	"Palestine":            "+970",
	"Qatar":                "+974",
	"Saudi Arabia":         "+966",
	"Somalia":              "+252",
	"Sudan":                "+249",
	"Syria":                "+963",
	"Tunisia":              "+216",
	"United Arab Emirates": "+971",
	"Yemen":                "+967",
}

// Allowed reports whether c is in the allowed-country set.
func (c Country) Allowed() bool {
	_, ok := countryPrefixes[c]
	return ok
}

// DialPrefix returns the dialing prefix for c and whether c is known.
func (c Country) DialPrefix() (string, bool) {
	prefix, ok := countryPrefixes[c]
	return prefix, ok
}

// Countries returns the allowed-country set in alphabetical order.
func Countries() []Country {
	out := make([]Country, 0, len(countryPrefixes))
	for c := range countryPrefixes {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// ReanchorPhone rewrites phone after the country changed from previous to
// next:
//
//   - an empty phone becomes "<next prefix> "
//   - a phone that starts with the previous prefix gets the next prefix
//   - anything else is left untouched
//
// An unknown next country leaves the phone as it is.
func ReanchorPhone(phone string, previous, next Country) string {
	nextPrefix, ok := next.DialPrefix()
	if !ok {
		return phone
	}

	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return nextPrefix + " "
	}

	if prevPrefix, ok := previous.DialPrefix(); ok && strings.HasPrefix(trimmed, prevPrefix) {
		rest := strings.TrimPrefix(trimmed, prevPrefix)
		return nextPrefix + " " + strings.TrimLeft(rest, " -")
	}

	return phone
}
