package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bizfinder/config"
)

func int64p(v int64) *int64 { return &v }

func baseFilters() config.FilterConfig {
	return config.FilterConfig{
		MinAnnualRevenueCents: 3_000_000, // $30k/yr
		MinMonthlyProfitCents: 200_000,   // $2k/mo
		CategoryBlacklist:     config.DefaultCategoryBlacklist,
		AllowedCountries:      []string{"United States"},
	}
}

func passingCard() *ListingCard {
	return &ListingCard{
		SourceID:     SourceAcquire,
		ExternalID:   "abc123",
		Title:        "B2B analytics platform",
		Category:     "SaaS",
		RevenueCents: int64p(5_000_000), // $50k/yr
		RevenueUnit:  RevenueAnnual,
		Country:      "United States",
	}
}

func TestEvaluatePass(t *testing.T) {
	verdict, reason := Evaluate(passingCard(), baseFilters(), PolicyFlags{})
	assert.Equal(t, VerdictPass, verdict)
	assert.Empty(t, reason)
}

func TestEvaluateConfidential(t *testing.T) {
	card := passingCard()
	card.IsConfidential = true
	verdict, reason := Evaluate(card, baseFilters(), PolicyFlags{})
	assert.Equal(t, VerdictFail, verdict)
	assert.Equal(t, "confidential listing", reason)
}

func TestEvaluateVerifiedOnly(t *testing.T) {
	card := passingCard()
	verdict, reason := Evaluate(card, baseFilters(), PolicyFlags{VerifiedOnly: true})
	assert.Equal(t, VerdictFail, verdict)
	assert.Equal(t, "not verified", reason)

	card.HasVerified = true
	verdict, _ = Evaluate(card, baseFilters(), PolicyFlags{VerifiedOnly: true})
	assert.Equal(t, VerdictPass, verdict)
}

func TestEvaluateProfitFloor(t *testing.T) {
	card := passingCard()
	card.RevenueCents = nil
	verdict, reason := Evaluate(card, baseFilters(), PolicyFlags{})
	assert.Equal(t, VerdictFail, verdict)
	assert.Equal(t, "profit unknown", reason)

	card.RevenueCents = int64p(1_000_000) // $10k/yr vs $30k floor
	verdict, reason = Evaluate(card, baseFilters(), PolicyFlags{})
	assert.Equal(t, VerdictFail, verdict)
	assert.Equal(t, "profit too low ($10,000/yr)", reason)
}

func TestEvaluateMonthlyFloor(t *testing.T) {
	// monthly cards use the monthly floor annualized: $2k/mo -> $24k/yr
	card := passingCard()
	card.RevenueUnit = RevenueMonthly
	card.RevenueCents = int64p(250_000) // $2.5k/mo = $30k/yr
	verdict, _ := Evaluate(card, baseFilters(), PolicyFlags{})
	assert.Equal(t, VerdictPass, verdict)

	card.RevenueCents = int64p(150_000) // $1.5k/mo = $18k/yr
	verdict, reason := Evaluate(card, baseFilters(), PolicyFlags{})
	assert.Equal(t, VerdictFail, verdict)
	assert.Equal(t, "profit too low ($18,000/yr)", reason)
}

func TestEvaluatePriceCeiling(t *testing.T) {
	filters := baseFilters()
	filters.MaxAskingPriceCents = 50_000_000 // $500k

	card := passingCard()
	verdict, reason := Evaluate(card, filters, PolicyFlags{})
	assert.Equal(t, VerdictFail, verdict)
	assert.Equal(t, "price unknown", reason)

	card.AskingPriceCents = int64p(90_000_000)
	verdict, reason = Evaluate(card, filters, PolicyFlags{})
	assert.Equal(t, VerdictFail, verdict)
	assert.Equal(t, "price too high ($900,000)", reason)

	card.AskingPriceCents = int64p(40_000_000)
	verdict, _ = Evaluate(card, filters, PolicyFlags{})
	assert.Equal(t, VerdictPass, verdict)
}

func TestEvaluateBlacklist(t *testing.T) {
	card := passingCard()
	card.Category = "Amazon FBA"
	verdict, reason := Evaluate(card, baseFilters(), PolicyFlags{})
	assert.Equal(t, VerdictFail, verdict)
	assert.Contains(t, reason, "blacklisted: 'amazon'")
	assert.Contains(t, reason, "category")

	card = passingCard()
	card.Title = "Profitable dropshipping store"
	verdict, reason = Evaluate(card, baseFilters(), PolicyFlags{})
	assert.Equal(t, VerdictFail, verdict)
	assert.Contains(t, reason, "title")
}

func TestEvaluateBlacklistBeforeCountry(t *testing.T) {
	// a blacklisted card with unknown country fails instead of deferring
	card := passingCard()
	card.Country = ""
	card.Category = "Newsletter"
	verdict, reason := Evaluate(card, baseFilters(), PolicyFlags{})
	assert.Equal(t, VerdictFail, verdict)
	assert.Contains(t, reason, "blacklisted")
}

func TestEvaluateCountry(t *testing.T) {
	card := passingCard()
	card.Country = "Germany"
	verdict, reason := Evaluate(card, baseFilters(), PolicyFlags{})
	assert.Equal(t, VerdictFail, verdict)
	assert.Equal(t, "country not allowed: Germany", reason)

	card.Country = ""
	verdict, reason = Evaluate(card, baseFilters(), PolicyFlags{})
	assert.Equal(t, VerdictCheckDetail, verdict)
	assert.Equal(t, "country unknown, need detail page", reason)

	card.Country = "Puerto Rico"
	verdict, _ = Evaluate(card, baseFilters(), PolicyFlags{})
	assert.Equal(t, VerdictPass, verdict)
}

func TestEvaluateCountryFilterDisabled(t *testing.T) {
	filters := baseFilters()
	filters.AllowedCountries = nil

	card := passingCard()
	card.Country = "Germany"
	verdict, _ := Evaluate(card, filters, PolicyFlags{})
	assert.Equal(t, VerdictPass, verdict)
}

func TestEvaluateDisabledFilters(t *testing.T) {
	// zero thresholds disable their checks entirely
	card := &ListingCard{SourceID: SourceFlippa, ExternalID: "x"}
	verdict, _ := Evaluate(card, config.FilterConfig{}, PolicyFlags{})
	assert.Equal(t, VerdictPass, verdict)
}

func TestFormatDollars(t *testing.T) {
	assert.Equal(t, "1,234,567", formatDollars(123_456_789))
	assert.Equal(t, "900", formatDollars(90_000))
	assert.Equal(t, "0", formatDollars(50))
}
