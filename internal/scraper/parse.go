package scraper

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Known non-USD currencies with approximate USD conversion rates.
// Rough estimates for filtering only, not for financial decisions.
var currencyToUSDRate = map[string]float64{
	"AUD": 0.65,
	"CAD": 0.74,
	"EUR": 1.08,
	"GBP": 1.26,
	"SGD": 0.74,
	"HKD": 0.13,
	"NZD": 0.60,
	"INR": 0.012,
}

// currencyCodes keeps detection order stable
var currencyCodes = []string{"AUD", "CAD", "EUR", "GBP", "SGD", "HKD", "NZD", "INR"}

// Money is a parsed money token normalized to USD cents where a conversion
// rate is known. Currency "" means the token carried no currency marker and
// USD was assumed.
type Money struct {
	Cents    int64
	Currency string
	Warning  string
}

var (
	moneyRe    = regexp.MustCompile(`([\d.]+)\s*([kKmMbB])?`)
	percentRe  = regexp.MustCompile(`([\d.]+)\s*%`)
	yearsRe    = regexp.MustCompile(`(\d+)\s*year`)
	monthsRe   = regexp.MustCompile(`(\d+)\s*month`)
	yearTokRe  = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	rangeLowRe = regexp.MustCompile(`([\d,]+)\s*(?:-|–|\+)`)
	digitsRe   = regexp.MustCompile(`[\d,]+`)
)

// ParseMoney parses a money token like "$910k", "USD $54,200" or "€1.2M"
// into USD cents. Returns nil when no numeric value is found.
func ParseMoney(text string) *Money {
	if text == "" {
		return nil
	}

	currency := detectCurrency(text)

	cleaned := strings.NewReplacer(",", "", " ", "").Replace(text)
	m := moneyRe.FindStringSubmatch(cleaned)
	if m == nil {
		return nil
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}

	switch strings.ToUpper(m[2]) {
	case "K":
		value *= 1_000
	case "M":
		value *= 1_000_000
	case "B":
		value *= 1_000_000_000
	}

	cents := int64(math.Round(value * 100))

	if currency == "" {
		return &Money{Cents: cents}
	}

	rate, ok := currencyToUSDRate[currency]
	if !ok {
		return &Money{
			Cents:    cents,
			Currency: currency,
			Warning:  fmt.Sprintf("unknown currency %s, stored as-is", currency),
		}
	}
	return &Money{
		Cents:    int64(float64(cents) * rate),
		Currency: currency,
		Warning:  fmt.Sprintf("converted from %s (rate: %g)", currency, rate),
	}
}

// ParseMonthlyMoney parses a monthly money token like "USD $2,977 p/mo".
// Returns nil unless the text carries a monthly indicator, so annual
// figures are never mistaken for monthly ones.
func ParseMonthlyMoney(text string) *Money {
	lower := strings.ToLower(text)
	monthly := false
	for _, indicator := range []string{"p/mo", "/mo", "per month", "monthly"} {
		if strings.Contains(lower, indicator) {
			monthly = true
			break
		}
	}
	if !monthly {
		return nil
	}
	return ParseMoney(text)
}

// detectCurrency scans for ISO codes and common symbols in a money token
func detectCurrency(text string) string {
	upper := strings.ToUpper(text)
	for _, code := range currencyCodes {
		if strings.Contains(upper, code) {
			return code
		}
	}
	switch {
	case strings.Contains(text, "£"):
		return "GBP"
	case strings.Contains(text, "€"):
		return "EUR"
	case strings.Contains(text, "A$"):
		return "AUD"
	case strings.Contains(text, "C$"):
		return "CAD"
	}
	return ""
}

// ParsePercent extracts the first percentage like "10%" or "8.5%+ Stable".
// Returns nil if no percentage is present.
func ParsePercent(text string) *float64 {
	m := percentRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &value
}

// ParseDurationMonths parses an age token like "12 years", "6 months" or
// "2 years 3 months" into a month count. Returns nil when neither unit is
// present; zero is never returned, so "not found" stays distinguishable.
func ParseDurationMonths(text string) *int {
	lower := strings.ToLower(text)
	total := 0
	if m := yearsRe.FindStringSubmatch(lower); m != nil {
		years, _ := strconv.Atoi(m[1])
		total += years * 12
	}
	if m := monthsRe.FindStringSubmatch(lower); m != nil {
		months, _ := strconv.Atoi(m[1])
		total += months
	}
	if total <= 0 {
		return nil
	}
	return &total
}

// ParseYear extracts the first plausible 4-digit year token
func ParseYear(text string) *int {
	m := yearTokRe.FindString(text)
	if m == "" {
		return nil
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &year
}

// ParseCustomerCount parses exact counts and range expressions, taking the
// lower bound of a range: "101-250" -> 101, "1,000+" -> 1000, "42" -> 42.
func ParseCustomerCount(text string) *int {
	if text == "" {
		return nil
	}
	token := text
	if m := rangeLowRe.FindStringSubmatch(text); m != nil {
		token = m[1]
	} else if m := digitsRe.FindString(text); m != "" {
		token = m
	} else {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(token, ",", ""))
	if err != nil {
		return nil
	}
	return &n
}
