package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"bizfinder/config"
	"bizfinder/logger"
	apperrors "bizfinder/pkg/errors"
)

const (
	micronsListingsPath  = "/online-businesses-and-startups-for-sale"
	micronsPageParam     = "c150de50_page"
	micronsCardSelector  = ".listing-card"
	micronsLinkSelector  = `a[href*="/startup-listings/"]`
	micronsBetweenPages  = time.Second
	micronsMaxPages      = 50
	micronsMaxValueCents = 100_000_000_00 // $100M
)

// Microns category labels observed on the site
var micronsKnownCategories = []string{
	"Micro-SaaS",
	"Web app",
	"Mobile app",
	"Newsletter",
	"E-commerce",
	"Marketplace",
	"Directory",
	"Browser Extension",
	"Agency",
	"Content",
	"Community",
}

var micronsDigitsRe = regexp.MustCompile(`[^\d]`)

// monthsByName supports locale-independent "Month DD, YYYY" parsing
var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// Microns scrapes microns.io. Cards render the value line above its label
// and detail pages expose stable CSS classes, so details are parsed from
// HTML rather than flat text.
type Microns struct {
	page    Page
	baseURL string
	log     *logger.Logger
}

// NewMicrons creates the Microns scraper
func NewMicrons(page Page, cfg *config.Config) *Microns {
	return &Microns{
		page:    page,
		baseURL: strings.TrimSuffix(cfg.MicronsURL, "/"),
		log:     logger.ForScraper(string(SourceMicrons)),
	}
}

func (m *Microns) Source() SourceID { return SourceMicrons }

// Setup is a no-op; Microns listings are public
func (m *Microns) Setup(ctx context.Context) error { return nil }

// micronsExtractID takes the slug after /startup-listings/
func micronsExtractID(url string) (string, bool) {
	idx := strings.Index(url, "/startup-listings/")
	if idx < 0 {
		return "", false
	}
	slug := url[idx+len("/startup-listings/"):]
	slug = strings.TrimSuffix(strings.SplitN(slug, "?", 2)[0], "/")
	if slug == "" || strings.Contains(slug, "/") {
		return "", false
	}
	return slug, true
}

// micronsCardRules configures the shared extractor for Microns cards,
// where values precede their labels.
func micronsCardRules() CardRules {
	money := func(set func(c *ListingCard, cents int64) bool) func(*ListingCard, string) {
		return func(c *ListingCard, v string) {
			m := ParseMoney(v)
			if m == nil || !set(c, m.Cents) {
				return
			}
			if m.Warning != "" {
				c.Warnings = append(c.Warnings, m.Warning)
			}
		}
	}
	return CardRules{
		Source:      SourceMicrons,
		RevenueUnit: RevenueAnnual,
		ExtractID:   micronsExtractID,
		MinLines:    2,
		Direction:   ValueBefore,
		Labels: []LabelRule{
			{Labels: []string{"annual revenue"}, Apply: money(func(c *ListingCard, cents int64) bool {
				if c.RevenueCents != nil {
					return false
				}
				c.RevenueCents = &cents
				return true
			})},
			{Labels: []string{"asking price"}, Apply: money(func(c *ListingCard, cents int64) bool {
				if c.AskingPriceCents != nil {
					return false
				}
				c.AskingPriceCents = &cents
				return true
			})},
		},
		FillExtra: micronsFillExtra,
	}
}

// micronsFillExtra matches the category against the known list and takes
// the first two qualifying lines as title and description
func micronsFillExtra(card *ListingCard, lines []string) {
	isCategory := func(line string) (string, bool) {
		for _, cat := range micronsKnownCategories {
			if strings.EqualFold(line, cat) {
				return cat, true
			}
		}
		return "", false
	}

	for _, line := range lines {
		if cat, ok := isCategory(line); ok {
			if card.Category == "" {
				card.Category = cat
			}
			continue
		}
		if line == "Annual Revenue" || line == "Asking Price" {
			continue
		}
		if strings.HasPrefix(line, "$") {
			continue
		}
		if card.Title == "" {
			card.Title = line
		} else if card.Description == "" {
			card.Description = line
			break
		}
	}
}

// Cards walks the paginated listings index
func (m *Microns) Cards(ctx context.Context, opts CardOptions) ([]ListingCard, []string, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 || maxPages > micronsMaxPages {
		maxPages = micronsMaxPages
	}

	listingsURL := m.baseURL + micronsListingsPath
	rules := micronsCardRules()
	var allCards []ListingCard
	var allWarnings []string
	seen := make(map[string]bool)

	for pageNum := 1; pageNum <= maxPages; pageNum++ {
		url := listingsURL
		if pageNum > 1 {
			url = fmt.Sprintf("%s?%s=%d", listingsURL, micronsPageParam, pageNum)
		}
		m.log.Info().Int("page", pageNum).Str("url", url).Msg("Fetching listings page")

		if err := m.page.Navigate(ctx, url); err != nil {
			return allCards, allWarnings, err
		}
		if err := m.page.WaitVisible(ctx, micronsCardSelector); err != nil {
			// no cards on this page means we ran off the end
			m.log.Info().Int("page", pageNum).Msg("No cards found, reached the end")
			break
		}

		blocks, err := m.page.Blocks(ctx, micronsCardSelector, "")
		if err != nil {
			return allCards, allWarnings, err
		}
		pageCards, pageWarnings := ExtractCards(blocks, rules)
		allWarnings = append(allWarnings, pageWarnings...)
		if len(pageCards) == 0 {
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
		m.log.Info().
			Int("page", pageNum).
			Int("cards", len(pageCards)).
			Int("new", newCount).
			Int("total", len(allCards)).
			Msg("Extracted cards")

		if newCount == 0 {
			break
		}
		if opts.MaxCards > 0 && len(allCards) >= opts.MaxCards {
			break
		}

		// stop when the pager shows no next-page link
		nextSelector := fmt.Sprintf(`a[href*="%s=%d"]`, micronsPageParam, pageNum+1)
		count, err := m.page.CountElements(ctx, nextSelector)
		if err != nil || count == 0 {
			break
		}
		if err := sleepCtx(ctx, micronsBetweenPages); err != nil {
			return allCards, allWarnings, err
		}
	}

	return allCards, allWarnings, nil
}

// Detail parses a listing page through its stable CSS selectors
func (m *Microns) Detail(ctx context.Context, card *ListingCard) (*ListingCreate, error) {
	if err := m.page.Navigate(ctx, card.URL); err != nil {
		return nil, err
	}
	if err := m.page.WaitVisible(ctx, "h2.h2-heading-2"); err != nil {
		m.log.Warn().Err(err).Str("url", card.URL).Msg("Timeout waiting for detail content")
	}

	html, err := m.page.HTML(ctx)
	if err != nil {
		return nil, apperrors.NewParsing(string(SourceMicrons), "failed to read detail page", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, apperrors.NewParsing(string(SourceMicrons), "failed to parse detail page", err)
	}

	title := strings.TrimSpace(doc.Find("h2.h2-heading-2").First().Text())

	var askingPrice *int64
	priceText := strings.TrimSpace(doc.Find(".seller-listing_priceholder h3.h3-heading-2").First().Text())
	if money := ParseMoney(priceText); money != nil {
		askingPrice = &money.Cents
	}

	category := strings.TrimSpace(doc.Find(".listing_tag_holder").First().Text())

	// h5 metric values sit next to their labels inside a shared parent
	var arr *int64
	var customers *int
	var launchedYear *int
	doc.Find("h5.h5-heading-2, h5.h5-heading").Each(func(_ int, sel *goquery.Selection) {
		parentText := sel.Parent().Text()
		value := strings.TrimSpace(sel.Text())
		switch {
		case strings.Contains(parentText, "ARR") && arr == nil:
			if money := ParseMoney(value); money != nil {
				arr = &money.Cents
			}
		case strings.Contains(parentText, "Customers") && customers == nil:
			if digits := micronsDigitsRe.ReplaceAllString(value, ""); digits != "" {
				if n, err := strconv.Atoi(digits); err == nil {
					customers = &n
				}
			}
		case strings.Contains(parentText, "Launched") && launchedYear == nil:
			if digits := micronsDigitsRe.ReplaceAllString(value, ""); digits != "" {
				if y, err := strconv.Atoi(digits); err == nil {
					launchedYear = &y
				}
			}
		}
	})

	var postedAt *time.Time
	dateText := doc.Find(".listing_date-holder").First().Text()
	if strings.Contains(dateText, "Published on") {
		dateStr := strings.TrimSpace(strings.ReplaceAll(dateText, "Published on", ""))
		postedAt = parseMicronsDate(dateStr)
	}

	description := ""
	doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.Contains(sel.Text(), "Startup description") {
			description = strings.TrimSpace(sel.Next().Text())
			return false
		}
		return true
	})
	if description == "" {
		description = strings.TrimSpace(doc.Find("div.body-text.opacity70").First().Text())
	}

	// card fallback for fields the page failed to surface
	raw := NewPayload()
	if title == "" && card.Title != "" {
		title = card.Title
		raw.SetString("title_source", "card")
	}
	if category == "" {
		category = card.Category
	}
	if description == "" {
		description = card.Description
	}
	if askingPrice == nil {
		askingPrice = card.AskingPriceCents
	}
	if arr == nil {
		arr = card.RevenueCents
	}

	warnings := micronsValidate(askingPrice, arr, customers, launchedYear)

	raw.SetString("url", card.URL)
	raw.SetString("title", title)
	raw.SetString("category", category)
	if askingPrice != nil {
		raw.SetInt("asking_price_cents", *askingPrice)
	}
	if arr != nil {
		raw.SetInt("arr_cents", *arr)
	}
	if customers != nil {
		raw.SetInt("customers", int64(*customers))
	}
	if launchedYear != nil {
		raw.SetInt("launched_year", int64(*launchedYear))
	}
	if postedAt != nil {
		raw.SetString("posted_at", postedAt.Format(time.RFC3339))
	}
	raw.SetStrings("validation_warnings", warnings)

	return &ListingCreate{
		SourceID:           SourceMicrons,
		ExternalID:         card.ExternalID,
		URL:                card.URL,
		Title:              title,
		Category:           category,
		Description:        description,
		AskingPriceCents:   askingPrice,
		AnnualRevenueCents: arr, // ARR is already a 12-month figure
		Customers:          customers,
		LaunchedYear:       launchedYear,
		PostedAt:           postedAt,
		Status:             StatusActive,
		Raw:                raw,
	}, nil
}

// parseMicronsDate parses "January 11, 2026" without locale dependence
func parseMicronsDate(dateStr string) *time.Time {
	parts := strings.Fields(strings.ReplaceAll(dateStr, ",", ""))
	if len(parts) != 3 {
		return nil
	}
	month, ok := monthsByName[strings.ToLower(parts[0])]
	if !ok {
		return nil
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

// micronsValidate flags suspicious values without rejecting the record
func micronsValidate(askingPrice, annualRevenue *int64, customers, launchedYear *int) []string {
	var warnings []string
	currentYear := time.Now().Year()

	if askingPrice != nil {
		switch {
		case *askingPrice < 0:
			warnings = append(warnings, fmt.Sprintf("negative asking_price: %d", *askingPrice))
		case *askingPrice == 0:
			warnings = append(warnings, "zero asking_price - possibly free/negotiable")
		case *askingPrice > micronsMaxValueCents:
			warnings = append(warnings, fmt.Sprintf("unusually high asking_price: $%d", *askingPrice/100))
		}
	}
	if annualRevenue != nil {
		switch {
		case *annualRevenue < 0:
			warnings = append(warnings, fmt.Sprintf("negative annual_revenue: %d", *annualRevenue))
		case *annualRevenue > micronsMaxValueCents:
			warnings = append(warnings, fmt.Sprintf("unusually high annual_revenue: $%d", *annualRevenue/100))
		}
	}
	if customers != nil {
		switch {
		case *customers < 0:
			warnings = append(warnings, fmt.Sprintf("negative customers: %d", *customers))
		case *customers > 10_000_000:
			warnings = append(warnings, fmt.Sprintf("unusually high customers: %d", *customers))
		}
	}
	if launchedYear != nil {
		switch {
		case *launchedYear < 1990:
			warnings = append(warnings, fmt.Sprintf("suspiciously old launched_year: %d", *launchedYear))
		case *launchedYear > currentYear+1:
			warnings = append(warnings, fmt.Sprintf("future launched_year: %d", *launchedYear))
		}
	}
	return warnings
}
