package scraper

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"bizfinder/config"
	"bizfinder/logger"
	apperrors "bizfinder/pkg/errors"
)

// Flippa limits and pacing
const (
	flippaMaxPages            = 100
	flippaMaxConsecutiveFails = 5
	flippaMaxDetailRetries    = 3
	flippaMinCardLines        = 3
	flippaMinDescriptionLen   = 80
	flippaBaseRetryDelay      = 3 * time.Second
	flippaBetweenPages        = 2 * time.Second
)

// flippaCardSelectors is a fallback chain; tracking classes change often
var flippaCardSelectors = []string{
	"[class*='GTM-search-result-card']",
	"[data-testid='listing-card']",
	"a[href^='/'][class*='card']",
	".search-results a[href^='/']",
}

var flippaIDRe = regexp.MustCompile(`/(\d+)(?:[/?#]|$)`)

// Flippa scrapes flippa.com search results and listing pages. Cards carry
// monthly net profit; the asking price only appears on detail pages.
type Flippa struct {
	page    Page
	baseURL string
	log     *logger.Logger

	workingSelector string
}

// NewFlippa creates the Flippa scraper
func NewFlippa(page Page, cfg *config.Config) *Flippa {
	return &Flippa{
		page:    page,
		baseURL: cfg.FlippaURL,
		log:     logger.ForScraper(string(SourceFlippa)),
	}
}

func (f *Flippa) Source() SourceID { return SourceFlippa }

// Setup is a no-op; Flippa search needs no authentication
func (f *Flippa) Setup(ctx context.Context) error { return nil }

// flippaExtractID pulls the numeric listing ID out of a listing URL
func flippaExtractID(url string) (string, bool) {
	m := flippaIDRe.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// flippaCardRules configures the shared card extractor for Flippa's
// label-above-value card layout.
func flippaCardRules() CardRules {
	return CardRules{
		Source:      SourceFlippa,
		RevenueUnit: RevenueMonthly,
		ExtractID:   flippaExtractID,
		MinLines:    flippaMinCardLines,
		Direction:   ValueAfter,
		Labels: []LabelRule{
			{Labels: []string{"type"}, Apply: func(c *ListingCard, v string) {
				if c.Category == "" {
					c.Category = v
				}
			}},
			{Labels: []string{"industry"}, Apply: func(c *ListingCard, v string) {
				if c.Industry == "" {
					c.Industry = v
				}
			}},
			{Labels: []string{"net profit", "monthly profit"}, Apply: func(c *ListingCard, v string) {
				if c.RevenueCents != nil {
					return
				}
				if m := ParseMonthlyMoney(v); m != nil {
					c.RevenueCents = &m.Cents
					c.Currency = m.Currency
					if m.Warning != "" {
						c.Warnings = append(c.Warnings, m.Warning)
					}
				}
			}},
			{Labels: []string{"site age"}, Apply: func(c *ListingCard, v string) {
				if c.SiteAgeMonths == nil {
					c.SiteAgeMonths = ParseDurationMonths(v)
				}
			}},
		},
		DataMarkers:         []string{"Type", "Net Profit"},
		ConfidentialMarkers: []string{"Confidential", "Sign NDA"},
		VerifiedMarkers:     []string{"Verified Listing", "Verified Revenue"},
		FillExtra:           flippaFillExtra,
	}
}

// flippaFillExtra fills title and country with Flippa-specific heuristics
func flippaFillExtra(card *ListingCard, lines []string) {
	// Titles look like "Amazon Store | Home and Garden"
	if card.Title == "" {
		for _, line := range lines {
			if strings.Contains(line, "|") && len(line) > 5 {
				card.Title = line
				break
			}
		}
	}

	// Country via "Location" / "Based in" look-ahead
	if card.Country == "" {
		for i, line := range lines {
			lower := strings.ToLower(line)
			if (strings.Contains(lower, "location") || strings.Contains(lower, "based in")) && i+1 < len(lines) {
				candidate := strings.TrimSpace(lines[i+1])
				if len(candidate) > 1 && len(candidate) < 50 {
					card.Country = candidate
					break
				}
			}
		}
	}
}

// Cards walks the paginated search results
func (f *Flippa) Cards(ctx context.Context, opts CardOptions) ([]ListingCard, []string, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 || maxPages > flippaMaxPages {
		maxPages = flippaMaxPages
	}

	var allCards []ListingCard
	var allWarnings []string
	seen := make(map[string]bool)
	rules := flippaCardRules()

	consecutiveFailures := 0
	pageNum := 1

	for pageNum <= maxPages {
		url := f.pageURL(pageNum)
		f.log.Info().Int("page", pageNum).Str("url", url).Msg("Fetching search page")

		if err := f.page.Navigate(ctx, url); err != nil {
			consecutiveFailures++
			retryDelay := time.Duration(float64(flippaBaseRetryDelay) * math.Pow(2, float64(consecutiveFailures-1)))
			f.log.Warn().
				Err(err).
				Int("consecutive_failures", consecutiveFailures).
				Dur("retry_delay", retryDelay).
				Msg("Page load failed")

			if consecutiveFailures >= flippaMaxConsecutiveFails {
				f.log.Error().Int("failures", consecutiveFailures).Msg("Stopping pagination after repeated failures")
				break
			}
			if err := sleepCtx(ctx, retryDelay); err != nil {
				return allCards, allWarnings, err
			}
			continue // retry same page
		}
		consecutiveFailures = 0

		bodyText, err := f.page.BodyText(ctx)
		if err == nil {
			if indicator, blocked := DetectBlock(bodyText); blocked {
				f.log.Warn().Str("indicator", indicator).Msg("Rate limit detected, stopping pagination")
				allWarnings = append(allWarnings, fmt.Sprintf("rate limit detected on page %d", pageNum))
				break
			}
		}

		if f.workingSelector == "" {
			f.workingSelector = f.findWorkingSelector(ctx)
			if f.workingSelector == "" {
				allWarnings = append(allWarnings, "no working card selector found")
				break
			}
		}

		blocks, err := f.page.Blocks(ctx, f.workingSelector, "")
		if err != nil {
			return allCards, allWarnings, err
		}

		pageCards, pageWarnings := ExtractCards(blocks, rules)
		allWarnings = append(allWarnings, pageWarnings...)
		if len(pageCards) == 0 {
			f.log.Info().Int("page", pageNum).Msg("No cards on page, stopping pagination")
			break
		}

		newCount := 0
		for _, card := range pageCards {
			if !seen[card.ExternalID] {
				seen[card.ExternalID] = true
				allCards = append(allCards, card)
				newCount++
			}
		}
		f.log.Info().
			Int("page", pageNum).
			Int("cards", len(pageCards)).
			Int("new", newCount).
			Int("total", len(allCards)).
			Msg("Extracted cards")

		if newCount == 0 {
			f.log.Info().Msg("No new cards on page, stopping pagination")
			break
		}
		if opts.MaxCards > 0 && len(allCards) >= opts.MaxCards {
			break
		}

		if err := sleepCtx(ctx, flippaBetweenPages); err != nil {
			return allCards, allWarnings, err
		}
		pageNum++
	}

	return allCards, allWarnings, nil
}

// pageURL builds the search URL for a page number
func (f *Flippa) pageURL(pageNum int) string {
	if pageNum == 1 {
		return f.baseURL
	}
	separator := "?"
	if strings.Contains(f.baseURL, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%spage=%d", f.baseURL, separator, pageNum)
}

// findWorkingSelector tries the fallback chain and returns the first
// selector matching any element
func (f *Flippa) findWorkingSelector(ctx context.Context) string {
	for _, selector := range flippaCardSelectors {
		count, err := f.page.CountElements(ctx, selector)
		if err == nil && count > 0 {
			f.log.Debug().Str("selector", selector).Int("count", count).Msg("Using card selector")
			return selector
		}
	}
	return ""
}

// Detail loads a listing page and builds the full record. The page load is
// retried with exponential backoff; field-level parse failures just leave
// the field empty.
func (f *Flippa) Detail(ctx context.Context, card *ListingCard) (*ListingCreate, error) {
	for attempt := 0; ; attempt++ {
		err := f.page.Navigate(ctx, card.URL)
		if err == nil {
			break
		}
		if attempt >= flippaMaxDetailRetries {
			return nil, apperrors.NewNetwork(string(SourceFlippa),
				fmt.Sprintf("detail page failed after %d retries: %s", attempt, card.URL), err)
		}
		retryDelay := time.Duration(float64(flippaBaseRetryDelay) * math.Pow(2, float64(attempt)))
		f.log.Warn().Err(err).Int("retry", attempt+1).Msg("Detail page load failed, retrying")
		if serr := sleepCtx(ctx, retryDelay); serr != nil {
			return nil, serr
		}
	}

	pageText, err := f.page.BodyText(ctx)
	if err != nil {
		return nil, apperrors.NewParsing(string(SourceFlippa), "failed to read detail page text", err)
	}
	lines := SplitLines(pageText)

	raw := NewPayload()
	var warnings []string

	title := f.detailTitle(ctx)

	priceCents, priceType, priceWarnings := flippaDetailPrice(lines)
	warnings = append(warnings, priceWarnings...)
	raw.SetString("price_type", priceType)

	profitCents := flippaDetailMonthlyProfit(lines, &warnings)

	category := valueAfterExact(lines, "Type")
	industry := valueAfterExact(lines, "Industry")
	fullCategory := category
	if category != "" && industry != "" {
		fullCategory = category + " | " + industry
	} else if industry != "" {
		fullCategory = industry
	}

	country := card.Country
	if country == "" {
		country = flippaDetailCountry(lines)
	}

	var launchedYear *int
	siteAge := flippaDetailSiteAge(lines)
	if siteAge != nil {
		year := time.Now().Year() - (*siteAge / 12)
		launchedYear = &year
	}

	hasVerified := strings.Contains(pageText, "Verified Listing") || strings.Contains(pageText, "Verified Revenue")

	description := flippaDetailDescription(lines)

	raw.SetString("url", card.URL)
	raw.SetString("external_id", card.ExternalID)
	raw.SetBool("has_verified", hasVerified)
	raw.SetString("category", category)
	raw.SetString("industry", industry)
	if siteAge != nil {
		raw.SetInt("site_age_months", int64(*siteAge))
	}
	if profitCents != nil {
		raw.SetInt("profit_monthly_cents", *profitCents)
	}
	raw.SetStrings("parse_warnings", warnings)
	raw.SetString("card_title", card.Title)
	if card.RevenueCents != nil {
		raw.SetInt("card_profit_monthly_cents", *card.RevenueCents)
	}
	raw.SetString("card_country", card.Country)

	return &ListingCreate{
		SourceID:         SourceFlippa,
		ExternalID:       card.ExternalID,
		URL:              card.URL,
		Title:            title,
		Category:         fullCategory,
		Description:      description,
		Country:          country,
		AskingPriceCents: priceCents,
		// Flippa reports profit, not revenue; the two are not conflated
		AnnualRevenueCents: nil,
		LaunchedYear:       launchedYear,
		Status:             StatusActive,
		Raw:                raw,
	}, nil
}

// detailTitle strips Flippa's suffixes off the document title
func (f *Flippa) detailTitle(ctx context.Context) string {
	pageTitle, err := f.page.Title(ctx)
	if err != nil {
		return ""
	}
	if idx := strings.Index(pageTitle, " on Flippa:"); idx >= 0 {
		return pageTitle[:idx]
	}
	if idx := strings.Index(pageTitle, " | Flippa"); idx >= 0 {
		return pageTitle[:idx]
	}
	return pageTitle
}

// flippaDetailPrice finds the asking price, handling fixed-price and
// auction listings. The price value sits within a few lines of its label
// and must not be a monthly figure.
func flippaDetailPrice(lines []string) (*int64, string, []string) {
	fixedMarkers := []string{"Asking Price", "Buy It Now", "Fixed Price"}
	auctionMarkers := []string{"Current Bid", "Reserve Price", "Starting Bid"}

	for i, line := range lines {
		var priceType string
		if containsAny(line, fixedMarkers) {
			priceType = "fixed"
		} else if containsAny(line, auctionMarkers) {
			priceType = "auction"
		} else {
			continue
		}

		for j := i; j < i+5 && j < len(lines); j++ {
			candidate := lines[j]
			lower := strings.ToLower(candidate)
			if !strings.Contains(candidate, "$") || strings.Contains(lower, "p/mo") || strings.Contains(lower, "/mo") {
				continue
			}
			if m := ParseMoney(candidate); m != nil && m.Cents > 0 {
				var warnings []string
				if m.Warning != "" {
					warnings = append(warnings, m.Warning)
				}
				return &m.Cents, priceType, warnings
			}
		}
		return nil, priceType, nil
	}
	return nil, "", nil
}

// flippaDetailMonthlyProfit scans for the monthly net profit figure
func flippaDetailMonthlyProfit(lines []string, warnings *[]string) *int64 {
	for i, line := range lines {
		if !containsAny(line, []string{"Net Profit", "Monthly Profit"}) {
			continue
		}
		for j := i; j < i+3 && j < len(lines); j++ {
			if m := ParseMonthlyMoney(lines[j]); m != nil && m.Cents > 0 {
				if m.Warning != "" {
					*warnings = append(*warnings, m.Warning)
				}
				return &m.Cents
			}
		}
		return nil
	}
	return nil
}

// flippaDetailCountry reads the business location, keeping the country
// part of "State, Country" strings
func flippaDetailCountry(lines []string) string {
	for i, line := range lines {
		if strings.Contains(line, "Business Location") && i+1 < len(lines) {
			location := lines[i+1]
			if idx := strings.LastIndex(location, ","); idx >= 0 {
				return strings.TrimSpace(location[idx+1:])
			}
			return strings.TrimSpace(location)
		}
		if line == "Location" && i+1 < len(lines) {
			return lines[i+1]
		}
	}
	return ""
}

// flippaDetailSiteAge reads the "Site Age" field
func flippaDetailSiteAge(lines []string) *int {
	for i, line := range lines {
		if strings.Contains(line, "Site Age") && i+1 < len(lines) {
			return ParseDurationMonths(lines[i+1])
		}
	}
	return nil
}

// flippaDetailDescription takes the first long paragraph that is neither a
// price nor a labeled field row
func flippaDetailDescription(lines []string) string {
	for _, line := range lines {
		if len(line) < flippaMinDescriptionLen {
			continue
		}
		if strings.HasPrefix(line, "USD") || strings.HasPrefix(line, "$") {
			continue
		}
		if containsAny(line, []string{"Type", "Industry", "Monetization", "Site Age"}) {
			continue
		}
		return line
	}
	return ""
}

// valueAfterExact returns the line following an exact label match
func valueAfterExact(lines []string, label string) string {
	for i, line := range lines {
		if line == label && i+1 < len(lines) {
			return lines[i+1]
		}
	}
	return ""
}
