package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bizfinder/config"
	"bizfinder/logger"
	apperrors "bizfinder/pkg/errors"
)

// Acquire pacing: random delay ranges keep the session from looking
// mechanical.
var (
	acquireBetweenListings = [2]time.Duration{1500 * time.Millisecond, 4 * time.Second}
	acquireAfterScroll     = [2]time.Duration{1 * time.Second, 3 * time.Second}
	acquireAfterLogin      = [2]time.Duration{2 * time.Second, 4 * time.Second}
	acquireAfterClick      = [2]time.Duration{500 * time.Millisecond, 1500 * time.Millisecond}
)

const (
	acquireMaxScrollAttempts = 10
	acquireMaxEmptyScrolls   = 2
	acquireMaxListingsPerRun = 200
)

const (
	acquireSigninPath   = "/signin"
	acquireListingsPath = "/all-listing"
	acquireCardSelector = `a[href*="/startup/"]`
	// card text lives on a styled ancestor of the link
	acquireCardAncestor = `div[class*="rounded"], div[class*="border"]`
)

// acquireCategories are the category labels the marketplace renders on cards
var acquireCategories = []string{"SaaS", "Mobile", "Digital", "AI", "Ecommerce", "Agency", "Marketplace", "Chrome Extension"}

var (
	acquireIDRe        = regexp.MustCompile(`/startup/([^/]+)/([^/?]+)`)
	acquireViewsRe     = regexp.MustCompile(`(\d+)\s*buyers have viewed`)
	acquireUSStateRe   = regexp.MustCompile(`United States\s*\(([^)]+)\)`)
	profitMultipleRe   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*x\s*profit`)
	revenueMultipleRe  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*x\s*revenue`)
	acquirePriceLineRe = regexp.MustCompile(`^\$[\d,.]+[kKmMbB]?$`)
)

// acquireTitleExclusions are placeholder phrases from premium-locked pages
// that must never become a title
var acquireTitleExclusions = []string{
	"TTM REVENUE", "TTM PROFIT", "ASKING PRICE", "UPGRADE TO",
	"CHAT WITH THE FOUNDER", "ACCESS EXCLUSIVE DATA",
	"UNAVAILABLE TO THE PUBLIC", "REQUEST ACCESS",
	"SUPPORTING FILES", "ANNUAL GROWTH", "LAST MONTH",
	"MULTIPLES", "PROFIT MARGIN", "CHURN RATE",
}

// Acquire scrapes app.acquire.com. The marketplace requires a logged-in
// session and loads listings through infinite scroll.
type Acquire struct {
	page     Page
	baseURL  string
	username string
	password string
	log      *logger.Logger

	loggedIn bool
}

// NewAcquire creates the Acquire scraper
func NewAcquire(page Page, cfg *config.Config) *Acquire {
	base := cfg.AcquireURL
	if idx := strings.Index(base, "/all-listing"); idx >= 0 {
		base = base[:idx]
	}
	return &Acquire{
		page:     page,
		baseURL:  base,
		username: cfg.AcquireUsername,
		password: cfg.AcquirePassword,
		log:      logger.ForScraper(string(SourceAcquire)),
	}
}

func (a *Acquire) Source() SourceID { return SourceAcquire }

// acquireExtractID pulls the listing ID out of /startup/{user}/{listing}
func acquireExtractID(url string) (string, bool) {
	m := acquireIDRe.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[2], true
}

// Setup logs in. The session then carries authentication for the whole
// run.
func (a *Acquire) Setup(ctx context.Context) error {
	if a.loggedIn {
		return nil
	}
	if a.username == "" || a.password == "" {
		return apperrors.NewConfiguration("ACQUIRE_USERNAME and ACQUIRE_PASSWORD must be set", nil)
	}

	a.log.Info().Msg("Navigating to login page")
	if err := a.page.Navigate(ctx, a.baseURL+acquireSigninPath); err != nil {
		return err
	}
	if err := a.page.WaitVisible(ctx, `input[type="password"]`); err != nil {
		return apperrors.NewAuth(string(SourceAcquire), "login form did not appear", err)
	}
	if err := RandomDelay(ctx, acquireAfterClick[0], acquireAfterClick[1]); err != nil {
		return err
	}

	a.log.Info().Msg("Submitting credentials")
	if err := a.page.SendKeys(ctx, `input[type="text"]`, a.username); err != nil {
		return apperrors.NewAuth(string(SourceAcquire), "failed to fill email field", err)
	}
	if err := RandomDelay(ctx, acquireAfterClick[0], acquireAfterClick[1]); err != nil {
		return err
	}
	if err := a.page.SendKeys(ctx, `input[type="password"]`, a.password); err != nil {
		return apperrors.NewAuth(string(SourceAcquire), "failed to fill password field", err)
	}
	if err := RandomDelay(ctx, acquireAfterClick[0], acquireAfterClick[1]); err != nil {
		return err
	}
	if err := a.page.Click(ctx, `button[type="submit"]`); err != nil {
		return apperrors.NewAuth(string(SourceAcquire), "failed to click login button", err)
	}

	// login redirects to /browse or /all-listing on success
	deadline := time.Now().Add(30 * time.Second)
	for {
		loc, err := a.page.CurrentURL(ctx)
		if err == nil && (strings.Contains(loc, "/browse") || strings.Contains(loc, "/all-listing")) {
			break
		}
		if time.Now().After(deadline) {
			return apperrors.NewAuth(string(SourceAcquire), "login did not redirect to browse page", nil)
		}
		if err := sleepCtx(ctx, time.Second); err != nil {
			return err
		}
	}

	a.log.Info().Msg("Login successful")
	a.loggedIn = true
	return RandomDelay(ctx, acquireAfterLogin[0], acquireAfterLogin[1])
}

// acquireCardRules configures the shared extractor for the all-listing
// cards: upper-case financial labels, value on the next line.
func acquireCardRules() CardRules {
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
		Source:      SourceAcquire,
		RevenueUnit: RevenueAnnual,
		ExtractID:   acquireExtractID,
		MinLines:    1,
		Direction:   ValueAfter,
		Labels: []LabelRule{
			{Labels: []string{"ttm revenue"}, Apply: money(func(c *ListingCard, cents int64) bool {
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
		FillExtra: acquireFillExtra,
	}
}

// acquireFillExtra finds the category label and title line on a card
func acquireFillExtra(card *ListingCard, lines []string) {
	for _, line := range lines {
		if card.Category == "" {
			for _, cat := range acquireCategories {
				if line == cat {
					card.Category = cat
					break
				}
			}
		}
		if card.Title == "" && len(line) > 30 &&
			!containsAny(strings.ToUpper(line), []string{"TTM", "ASKING", "REVENUE", "PROFIT"}) {
			card.Title = line
		}
	}
}

// Cards scrolls the all-listing page until no new listings appear
func (a *Acquire) Cards(ctx context.Context, opts CardOptions) ([]ListingCard, []string, error) {
	if err := a.Setup(ctx); err != nil {
		return nil, nil, err
	}

	a.log.Info().Msg("Navigating to all listings page")
	if err := a.page.Navigate(ctx, a.baseURL+acquireListingsPath); err != nil {
		return nil, nil, err
	}
	if err := a.page.WaitVisible(ctx, acquireCardSelector); err != nil {
		a.log.Warn().Err(err).Msg("Timeout waiting for listing cards, page may be empty or slow")
	}
	if err := RandomDelay(ctx, acquireAfterClick[0], acquireAfterClick[1]); err != nil {
		return nil, nil, err
	}

	scrollLimit := opts.MaxPages
	if scrollLimit <= 0 {
		scrollLimit = acquireMaxScrollAttempts
	}
	maxCards := opts.MaxCards
	if maxCards <= 0 || maxCards > acquireMaxListingsPerRun {
		maxCards = acquireMaxListingsPerRun
	}

	rules := acquireCardRules()
	var cards []ListingCard
	var warnings []string
	seen := make(map[string]bool)
	emptyScrolls := 0

	for scroll := 0; scroll < scrollLimit; scroll++ {
		blocks, err := a.page.Blocks(ctx, acquireCardSelector, acquireCardAncestor)
		if err != nil {
			return cards, warnings, err
		}

		pageCards, pageWarnings := ExtractCards(blocks, rules)
		warnings = append(warnings, pageWarnings...)

		newCount := 0
		for _, card := range pageCards {
			if seen[card.ExternalID] {
				continue
			}
			seen[card.ExternalID] = true
			cards = append(cards, card)
			newCount++
		}
		a.log.Info().
			Int("scroll", scroll+1).
			Int("links", len(blocks)).
			Int("new", newCount).
			Int("total", len(cards)).
			Msg("Scanned listing cards")

		// Keep scrolling while the page is still loading new content
		if newCount == 0 {
			emptyScrolls++
			if emptyScrolls >= acquireMaxEmptyScrolls {
				a.log.Info().Msg("No new listings after multiple scrolls, stopping")
				break
			}
		} else {
			emptyScrolls = 0
		}

		if len(cards) >= maxCards {
			a.log.Info().Int("limit", maxCards).Msg("Reached card limit")
			break
		}

		if err := a.page.ScrollToBottom(ctx); err != nil {
			return cards, warnings, err
		}
		if err := RandomDelay(ctx, acquireAfterScroll[0], acquireAfterScroll[1]); err != nil {
			return cards, warnings, err
		}
	}

	if len(cards) > maxCards {
		cards = cards[:maxCards]
	}
	return cards, warnings, nil
}

// Detail scrapes one listing page. Premium-locked pages yield partial
// records with card data as fallback.
func (a *Acquire) Detail(ctx context.Context, card *ListingCard) (*ListingCreate, error) {
	if err := a.Setup(ctx); err != nil {
		return nil, err
	}
	if err := RandomDelay(ctx, acquireBetweenListings[0], acquireBetweenListings[1]); err != nil {
		return nil, err
	}

	a.log.Debug().Str("url", card.URL).Msg("Scraping listing")
	if err := a.page.Navigate(ctx, card.URL); err != nil {
		return nil, err
	}
	// Firestore content loads async; wait for the financial block
	if err := a.page.WaitVisible(ctx, "h1, h2"); err != nil {
		a.log.Warn().Err(err).Str("url", card.URL).Msg("Timeout waiting for content")
	}
	if err := RandomDelay(ctx, acquireAfterClick[0], acquireAfterClick[1]); err != nil {
		return nil, err
	}

	pageText, err := a.page.BodyText(ctx)
	if err != nil {
		return nil, apperrors.NewParsing(string(SourceAcquire), "failed to read detail page text", err)
	}
	lines := SplitLines(pageText)
	lower := strings.ToLower(pageText)

	raw := NewPayload()
	raw.SetString("url", card.URL)
	raw.SetString("external_id", card.ExternalID)

	isPremiumLocked := strings.Contains(lower, "upgrade to platinum")
	raw.SetBool("is_premium_locked", isPremiumLocked)

	status := StatusActive
	if strings.Contains(lower, "this listing has been sold") || strings.Contains(lower, "already sold") {
		status = StatusSold
	} else if strings.Contains(lower, "under offer") {
		status = StatusUnderOffer
	}
	raw.SetString("status", string(status))

	title, titleSource := acquireDetailTitle(ctx, a.page, lines, card)
	raw.SetString("title_source", titleSource)

	fin := acquireDetailFinancials(lines)
	fin.record(raw)

	category := acquireDetailCategory(lines)
	if category == "" && card.Category != "" {
		category = card.Category
		raw.SetString("category_source", "card")
	}
	raw.SetString("category", category)

	if title == "" {
		prefix := category
		if prefix == "" {
			prefix = "Listing"
		}
		id := card.ExternalID
		if len(id) > 8 {
			id = id[:8]
		}
		title = fmt.Sprintf("%s (%s...)", prefix, id)
		raw.SetString("title_source", "generated")
	}

	location, country := acquireDetailLocation(pageText)
	raw.SetString("location", location)
	raw.SetString("country", country)

	biz := acquireDetailBusiness(lines)
	biz.record(raw)

	description := ""
	for _, line := range lines {
		if len(line) > 100 && !containsAny(strings.ToUpper(line), []string{"TTM", "ASKING", "UPGRADE"}) {
			description = line
			break
		}
	}
	raw.SetString("description", description)

	hasVerified := strings.Contains(lower, "verified")
	raw.SetBool("has_verified", hasVerified)
	raw.SetBool("under_advisory", strings.Contains(pageText, "Under M&A advisory"))

	if m := acquireViewsRe.FindStringSubmatch(pageText); m != nil {
		views, _ := strconv.Atoi(m[1])
		raw.SetInt("view_count", int64(views))
	}

	var launchedYear *int
	if biz.dateFounded != "" {
		launchedYear = ParseYear(biz.dateFounded)
	}

	customers := ParseCustomerCount(biz.customersRange)

	askingPrice := fin.askingPrice
	if askingPrice == nil && card.AskingPriceCents != nil {
		askingPrice = card.AskingPriceCents
		raw.SetString("asking_price_source", "card")
	}
	ttmRevenue := fin.ttmRevenue
	if ttmRevenue == nil && card.RevenueCents != nil {
		ttmRevenue = card.RevenueCents
		raw.SetString("ttm_revenue_source", "card")
	}

	// Prefer ARR over TTM revenue when both are present
	annualRevenue := fin.arr
	if annualRevenue == nil {
		annualRevenue = ttmRevenue
	}

	if isPremiumLocked {
		a.log.Info().Str("listing", card.ExternalID).Msg("Listing requires Platinum upgrade, data may be limited")
	}

	var postedAt *time.Time

	return &ListingCreate{
		SourceID:           SourceAcquire,
		ExternalID:         card.ExternalID,
		URL:                card.URL,
		Title:              title,
		Category:           category,
		Description:        description,
		Location:           location,
		Country:            country,
		AskingPriceCents:   askingPrice,
		AnnualRevenueCents: annualRevenue,
		Customers:          customers,
		LaunchedYear:       launchedYear,
		PostedAt:           postedAt,
		Status:             status,
		Raw:                raw,
	}, nil
}

// acquireDetailTitle resolves the title cascade: heading element, longest
// qualifying body line, card title.
func acquireDetailTitle(ctx context.Context, page Page, lines []string, card *ListingCard) (string, string) {
	// heading-element pass via DOM blocks
	for _, selector := range []string{"h1", "h2"} {
		blocks, err := page.Blocks(ctx, selector, "")
		if err != nil {
			continue
		}
		for _, b := range blocks {
			text := strings.TrimSpace(b.Text)
			if len(text) > 20 && !containsAny(strings.ToUpper(text), []string{"ASKING", "TTM", "REVENUE", "PROFIT"}) {
				return text, "heading"
			}
		}
	}

	// body-line pass, skipping premium-wall placeholder phrases
	for _, line := range lines {
		upper := strings.ToUpper(line)
		if containsAny(upper, acquireTitleExclusions) {
			continue
		}
		if acquirePriceLineRe.MatchString(strings.TrimSpace(line)) {
			continue
		}
		if len(line) <= 30 || len(line) >= 200 {
			continue
		}
		return line, "body"
	}

	if card.Title != "" {
		return card.Title, "card"
	}
	return "", ""
}

// acquireFinancials holds the metrics block of a detail page
type acquireFinancials struct {
	askingPrice      *int64
	ttmRevenue       *int64
	ttmProfit        *int64
	arr              *int64
	growthRate       *float64
	churnRate        *float64
	profitMultiple   *float64
	revenueMultiple  *float64
	lastMonthRevenue *int64
	lastMonthProfit  *int64
}

func (f *acquireFinancials) record(raw Payload) {
	setCents := func(key string, v *int64) {
		if v != nil {
			raw.SetInt(key, *v)
		}
	}
	setRate := func(key string, v *float64) {
		if v != nil {
			raw.SetFloat(key, *v)
		}
	}
	setCents("asking_price_cents", f.askingPrice)
	setCents("ttm_revenue_cents", f.ttmRevenue)
	setCents("ttm_profit_cents", f.ttmProfit)
	setCents("arr_cents", f.arr)
	setRate("growth_rate", f.growthRate)
	setRate("churn_rate", f.churnRate)
	setRate("profit_multiple", f.profitMultiple)
	setRate("revenue_multiple", f.revenueMultiple)
	setCents("last_month_revenue_cents", f.lastMonthRevenue)
	setCents("last_month_profit_cents", f.lastMonthProfit)
}

// acquireDetailFinancials label-scans the financial metrics
func acquireDetailFinancials(lines []string) *acquireFinancials {
	fin := &acquireFinancials{}
	money := func(v string) *int64 {
		if m := ParseMoney(v); m != nil {
			return &m.Cents
		}
		return nil
	}

	for i, line := range lines {
		upper := strings.ToUpper(line)
		var next string
		if i+1 < len(lines) {
			next = lines[i+1]
		}

		switch {
		case strings.Contains(upper, "ASKING PRICE") && next != "":
			if fin.askingPrice == nil {
				fin.askingPrice = money(next)
			}
		case strings.Contains(upper, "TTM REVENUE") && next != "":
			if fin.ttmRevenue == nil {
				fin.ttmRevenue = money(next)
			}
		case strings.Contains(upper, "TTM PROFIT") && next != "":
			if fin.ttmProfit == nil {
				fin.ttmProfit = money(next)
			}
		case strings.Contains(upper, "ANNUAL RECURRING REVENUE") && next != "":
			if fin.arr == nil {
				fin.arr = money(next)
			}
		case strings.Contains(upper, "ANNUAL GROWTH RATE") && next != "":
			if fin.growthRate == nil {
				fin.growthRate = ParsePercent(next)
			}
		case strings.Contains(upper, "CHURN RATE") && next != "":
			if fin.churnRate == nil {
				fin.churnRate = ParsePercent(next)
			}
		case strings.Contains(upper, "LAST MONTH") && strings.Contains(upper, "REVENUE") && next != "":
			if fin.lastMonthRevenue == nil {
				fin.lastMonthRevenue = money(next)
			}
		case strings.Contains(upper, "LAST MONTH") && strings.Contains(upper, "PROFIT") && next != "":
			if fin.lastMonthProfit == nil {
				fin.lastMonthProfit = money(next)
			}
		default:
			if m := profitMultipleRe.FindStringSubmatch(line); m != nil && fin.profitMultiple == nil {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil {
					fin.profitMultiple = &v
				}
			} else if m := revenueMultipleRe.FindStringSubmatch(line); m != nil && fin.revenueMultiple == nil {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil {
					fin.revenueMultiple = &v
				}
			}
		}
	}
	return fin
}

// acquireDetailCategory looks for a standalone category label line
func acquireDetailCategory(lines []string) string {
	for _, cat := range acquireCategories {
		for _, line := range lines {
			lowerLine := strings.ToLower(line)
			if lowerLine == strings.ToLower(cat) || lowerLine == strings.ToLower(cat)+" startup" {
				return cat
			}
		}
	}
	return ""
}

// acquireDetailLocation reads "United States (Delaware)" style markers
func acquireDetailLocation(pageText string) (location, country string) {
	if m := acquireUSStateRe.FindStringSubmatch(pageText); m != nil {
		return m[1], "United States"
	}
	if strings.Contains(pageText, "United States") {
		return "", "United States"
	}
	return "", ""
}

// acquireBusiness holds the business-details block
type acquireBusiness struct {
	teamSize       string
	dateFounded    string
	businessModel  string
	techStack      string
	competitors    string
	sellingReason  string
	financing      string
	customersRange string
}

func (b *acquireBusiness) record(raw Payload) {
	raw.SetString("team_size", b.teamSize)
	raw.SetString("date_founded", b.dateFounded)
	raw.SetString("business_model", b.businessModel)
	raw.SetString("tech_stack", b.techStack)
	raw.SetString("competitors", b.competitors)
	raw.SetString("selling_reason", b.sellingReason)
	raw.SetString("financing", b.financing)
	raw.SetString("customers_range", b.customersRange)
}

var customersRangeRe = regexp.MustCompile(`^[\d,]+(?:-[\d,]+|\+)?$`)

// acquireDetailBusiness label-scans the business details, collecting
// multi-line sections (tech stack, competitors) up to the next section
// header.
func acquireDetailBusiness(lines []string) *acquireBusiness {
	biz := &acquireBusiness{}
	collect := func(start int, stops []string) string {
		var items []string
		for j := start; j < start+9 && j < len(lines); j++ {
			if containsAny(strings.ToUpper(lines[j]), stops) {
				break
			}
			if lines[j] != "" && len(lines[j]) < 50 {
				items = append(items, lines[j])
			}
		}
		return strings.Join(items, ", ")
	}

	for i, line := range lines {
		upper := strings.ToUpper(line)
		var next string
		if i+1 < len(lines) {
			next = lines[i+1]
		}

		switch {
		case strings.Contains(upper, "TEAM SIZE") && next != "":
			if biz.teamSize == "" {
				biz.teamSize = next
			}
		case strings.Contains(upper, "DATE FOUNDED") && next != "":
			if biz.dateFounded == "" {
				biz.dateFounded = next
			}
		case strings.Contains(upper, "BUSINESS MODEL") && next != "":
			if biz.businessModel == "" {
				biz.businessModel = next
			}
		case strings.Contains(upper, "TECH STACK"):
			if biz.techStack == "" {
				biz.techStack = collect(i+1, []string{"COMPETITORS", "GROWTH", "KEY ASSETS", "ACQUISITION"})
			}
		case strings.Contains(upper, "COMPETITORS"):
			if biz.competitors == "" {
				biz.competitors = collect(i+1, []string{"GROWTH OPPORTUNITIES", "KEY ASSETS", "ACQUISITION"})
			}
		case strings.Contains(upper, "SELLING REASON") && next != "":
			if biz.sellingReason == "" {
				biz.sellingReason = next
			}
		case strings.Contains(upper, "FINANCING") && next != "":
			if biz.financing == "" {
				biz.financing = next
			}
		case strings.Contains(upper, "CUSTOMERS") && next != "":
			if biz.customersRange == "" && customersRangeRe.MatchString(next) {
				biz.customersRange = next
			}
		}
	}
	return biz
}
