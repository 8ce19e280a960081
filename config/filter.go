package config

import (
	"os"
	"strings"
)

// DefaultCategoryBlacklist holds category terms that mark a listing as
// unwanted regardless of its financials. Matching is case-insensitive
// substring matching against category, industry and title text.
var DefaultCategoryBlacklist = []string{
	// E-commerce variants
	"ecommerce",
	"e-commerce",
	// Platform-dependent businesses
	"amazon",
	"fba",
	"dropship",
	"dropshipping",
	// Social media dependent
	"youtube",
	"tiktok",
	"instagram",
	"social media",
	// Content businesses
	"newsletter",
	"blog",
	"content",
	"affiliate",
	// Other filtered types
	"marketplace",
	"directory",
	"agency",
	"community",
}

// DefaultAllowedCountries restricts results to US-based listings unless
// overridden. An empty slice disables country filtering entirely.
var DefaultAllowedCountries = []string{"United States"}

// FilterConfig holds the listing filter thresholds. All money values are
// integer cents; a zero value means the check is disabled. Treat values as
// immutable; derive variants via WithOverrides.
type FilterConfig struct {
	// MinAnnualRevenueCents is the floor applied to annual revenue figures
	// (Acquire, Microns cards carry annual numbers).
	MinAnnualRevenueCents int64

	// MinMonthlyProfitCents is the floor applied to monthly profit figures
	// (Flippa cards carry monthly net profit).
	MinMonthlyProfitCents int64

	// MaxAskingPriceCents caps the asking price. When set, a listing with an
	// unknown price also fails the check.
	MaxAskingPriceCents int64

	// CategoryBlacklist terms, matched case-insensitively as substrings.
	CategoryBlacklist []string

	// AllowedCountries limits listings by country. Empty disables the check.
	AllowedCountries []string
}

// FilterOverrides carries explicitly-provided filter values. Nil fields
// leave the base configuration untouched.
type FilterOverrides struct {
	MinAnnualRevenueCents *int64
	MinMonthlyProfitCents *int64
	MaxAskingPriceCents   *int64
	CategoryBlacklist     *[]string
	AllowedCountries      *[]string
}

// DefaultFilterConfig returns the built-in filter defaults
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		CategoryBlacklist: append([]string(nil), DefaultCategoryBlacklist...),
		AllowedCountries:  append([]string(nil), DefaultAllowedCountries...),
	}
}

// loadFilterConfig builds the default FilterConfig with environment overrides
func loadFilterConfig() FilterConfig {
	f := DefaultFilterConfig()
	f.MinAnnualRevenueCents = getEnvCents("MIN_ANNUAL_REVENUE")
	f.MinMonthlyProfitCents = getEnvCents("MIN_MONTHLY_PROFIT")
	f.MaxAskingPriceCents = getEnvCents("MAX_ASKING_PRICE")
	if extra := os.Getenv("CATEGORY_BLACKLIST_EXTRA"); extra != "" {
		for _, term := range strings.Split(extra, ",") {
			term = strings.TrimSpace(strings.ToLower(term))
			if term != "" {
				f.CategoryBlacklist = append(f.CategoryBlacklist, term)
			}
		}
	}
	return f
}

// WithOverrides returns a copy of the configuration with only the
// explicitly-provided override fields replaced.
func (f FilterConfig) WithOverrides(o FilterOverrides) FilterConfig {
	out := f
	out.CategoryBlacklist = append([]string(nil), f.CategoryBlacklist...)
	out.AllowedCountries = append([]string(nil), f.AllowedCountries...)

	if o.MinAnnualRevenueCents != nil {
		out.MinAnnualRevenueCents = *o.MinAnnualRevenueCents
	}
	if o.MinMonthlyProfitCents != nil {
		out.MinMonthlyProfitCents = *o.MinMonthlyProfitCents
	}
	if o.MaxAskingPriceCents != nil {
		out.MaxAskingPriceCents = *o.MaxAskingPriceCents
	}
	if o.CategoryBlacklist != nil {
		out.CategoryBlacklist = append([]string(nil), (*o.CategoryBlacklist)...)
	}
	if o.AllowedCountries != nil {
		out.AllowedCountries = append([]string(nil), (*o.AllowedCountries)...)
	}
	return out
}

// CountryFilterEnabled reports whether country filtering is active
func (f FilterConfig) CountryFilterEnabled() bool {
	return len(f.AllowedCountries) > 0
}

// BlacklistMatch returns the first blacklisted term found in text, or ""
func (f FilterConfig) BlacklistMatch(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	for _, term := range f.CategoryBlacklist {
		if strings.Contains(lower, strings.ToLower(term)) {
			return term
		}
	}
	return ""
}
