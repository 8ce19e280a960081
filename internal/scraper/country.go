package scraper

import "strings"

// usCountryVariations holds canonical US name variants, all lowercase
var usCountryVariations = map[string]bool{
	"us":                       true,
	"usa":                      true,
	"u.s.":                     true,
	"u.s.a.":                   true,
	"u.s.a":                    true,
	"united states":            true,
	"united states of america": true,
	"america":                  true,
}

// usTerritories are treated as US for filtering purposes
var usTerritories = map[string]bool{
	"puerto rico":                  true,
	"guam":                         true,
	"u.s. virgin islands":          true,
	"united states virgin islands": true,
	"american samoa":               true,
	"northern mariana islands":     true,
}

// IsUSCountry reports whether a country string represents the United States
// or a US territory. Empty input is not US.
func IsUSCountry(country string) bool {
	if country == "" {
		return false
	}
	normalized := strings.TrimSpace(strings.ToLower(country))

	if usCountryVariations[normalized] {
		return true
	}
	if usTerritories[normalized] {
		return true
	}

	// "State, United States" compound strings
	if strings.Contains(normalized, ", united states") {
		return true
	}

	return false
}
