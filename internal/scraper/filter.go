package scraper

import (
	"fmt"
	"strings"

	"bizfinder/config"
)

// Verdict is the tri-state outcome of evaluating a card against filters
type Verdict string

const (
	// VerdictPass means the card survives all filters
	VerdictPass Verdict = "pass"
	// VerdictFail means the card is filtered out
	VerdictFail Verdict = "fail"
	// VerdictCheckDetail means card-level data is insufficient and the
	// detail page must be consulted before deciding
	VerdictCheckDetail Verdict = "check_detail"
)

// PolicyFlags carries run-level filter policy toggles
type PolicyFlags struct {
	VerifiedOnly bool
}

// Evaluate applies the filter configuration to a card. It is pure and
// total: any card and configuration produce a verdict and, for non-pass
// verdicts, a reason.
//
// Checks run in confidence order so cheap, decisive checks short-circuit
// before the one check (country) that may need a detail-page fetch.
func Evaluate(card *ListingCard, filters config.FilterConfig, policy PolicyFlags) (Verdict, string) {
	// Confidential listings expose no data to act on
	if card.IsConfidential {
		return VerdictFail, "confidential listing"
	}

	if policy.VerifiedOnly && !card.HasVerified {
		return VerdictFail, "not verified"
	}

	// Revenue/profit floor. Monthly figures get a monthly floor when one
	// is configured; otherwise everything is compared annualized.
	floor := filters.MinAnnualRevenueCents
	if card.RevenueUnit == RevenueMonthly && filters.MinMonthlyProfitCents > 0 {
		floor = filters.MinMonthlyProfitCents * 12
	}
	if floor > 0 {
		annual := card.AnnualRevenueCents()
		if annual == nil {
			return VerdictFail, "profit unknown"
		}
		if *annual < floor {
			return VerdictFail, fmt.Sprintf("profit too low ($%s/yr)", formatDollars(*annual))
		}
	}

	// Asking price ceiling. An unknown price fails a configured ceiling.
	if filters.MaxAskingPriceCents > 0 {
		if card.AskingPriceCents == nil {
			return VerdictFail, "price unknown"
		}
		if *card.AskingPriceCents > filters.MaxAskingPriceCents {
			return VerdictFail, fmt.Sprintf("price too high ($%s)", formatDollars(*card.AskingPriceCents))
		}
	}

	// Category blacklist before country: blacklisted categories are
	// decidable from card data regardless of country.
	for _, field := range []struct{ name, text string }{
		{"category", card.Category},
		{"industry", card.Industry},
		{"title", card.Title},
	} {
		if term := filters.BlacklistMatch(field.text); term != "" {
			return VerdictFail, fmt.Sprintf("blacklisted: '%s' in %s '%s'", term, field.name, field.text)
		}
	}

	// Country policy last: the one dimension where card data is often
	// incomplete, so an unknown country defers instead of failing.
	if filters.CountryFilterEnabled() {
		if countryAllowed(card.Country, filters.AllowedCountries) {
			return VerdictPass, ""
		}
		if card.Country == "" {
			return VerdictCheckDetail, "country unknown, need detail page"
		}
		return VerdictFail, fmt.Sprintf("country not allowed: %s", card.Country)
	}

	return VerdictPass, ""
}

// countryAllowed matches a card country against the allowed list. Entries
// naming the US match any recognized US variant or territory.
func countryAllowed(country string, allowed []string) bool {
	for _, a := range allowed {
		if IsUSCountry(a) {
			if IsUSCountry(country) {
				return true
			}
			continue
		}
		if strings.EqualFold(strings.TrimSpace(country), strings.TrimSpace(a)) {
			return true
		}
	}
	return false
}

// formatDollars renders cents as whole dollars with thousands separators
func formatDollars(cents int64) string {
	dollars := cents / 100
	s := fmt.Sprintf("%d", dollars)
	if dollars < 0 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
