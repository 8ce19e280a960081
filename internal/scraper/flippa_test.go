package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bizfinder/config"
)

const flippaCardText = "SaaS Business | Analytics\n" +
	"Type\nSaaS\n" +
	"Industry\nInternet\n" +
	"Net Profit\nUSD $2,977 p/mo\n" +
	"Site Age\n3 years"

func TestFlippaExtractID(t *testing.T) {
	tests := []struct {
		url    string
		id     string
		wantOK bool
	}{
		{url: "https://flippa.com/11827252", id: "11827252", wantOK: true},
		{url: "https://flippa.com/11827252?utm=x", id: "11827252", wantOK: true},
		{url: "https://flippa.com/11827252/details", id: "11827252", wantOK: true},
		{url: "https://flippa.com/buy/saas", wantOK: false},
	}
	for _, tt := range tests {
		id, ok := flippaExtractID(tt.url)
		assert.Equal(t, tt.wantOK, ok, tt.url)
		assert.Equal(t, tt.id, id, tt.url)
	}
}

func TestFlippaCardExtraction(t *testing.T) {
	blocks := []Block{
		{URL: "https://flippa.com/11827252", Text: flippaCardText},
	}
	cards, _ := ExtractCards(blocks, flippaCardRules())
	assert.Len(t, cards, 1)

	card := cards[0]
	assert.Equal(t, SourceFlippa, card.SourceID)
	assert.Equal(t, "11827252", card.ExternalID)
	assert.Equal(t, "SaaS Business | Analytics", card.Title)
	assert.Equal(t, "SaaS", card.Category)
	assert.Equal(t, "Internet", card.Industry)
	assert.Equal(t, RevenueMonthly, card.RevenueUnit)
	assert.NotNil(t, card.RevenueCents)
	assert.Equal(t, int64(297_700), *card.RevenueCents)
	assert.NotNil(t, card.SiteAgeMonths)
	assert.Equal(t, 36, *card.SiteAgeMonths)
	assert.False(t, card.IsConfidential)
}

func TestFlippaCardConfidentialTeaser(t *testing.T) {
	blocks := []Block{
		{URL: "https://flippa.com/11900001", Text: "Confidential\nSign NDA\nto view details"},
	}
	cards, _ := ExtractCards(blocks, flippaCardRules())
	assert.Len(t, cards, 1)
	assert.True(t, cards[0].IsConfidential)
}

func TestFlippaPageURL(t *testing.T) {
	f := NewFlippa(newStubPage(), &config.Config{FlippaURL: "https://flippa.com/search"})
	assert.Equal(t, "https://flippa.com/search", f.pageURL(1))
	assert.Equal(t, "https://flippa.com/search?page=2", f.pageURL(2))

	f = NewFlippa(newStubPage(), &config.Config{FlippaURL: "https://flippa.com/search?filter[property_type]=saas"})
	assert.Equal(t, "https://flippa.com/search?filter[property_type]=saas&page=3", f.pageURL(3))
}

func TestFlippaCards(t *testing.T) {
	page := newStubPage()
	f := NewFlippa(page, &config.Config{FlippaURL: "https://flippa.com/search"})

	selector := flippaCardSelectors[0]
	page1 := "https://flippa.com/search"
	page2 := "https://flippa.com/search?page=2"

	page.counts[stubKey(page1, selector)] = 2
	page.blocks[stubKey(page1, selector)] = []Block{
		{URL: "https://flippa.com/11827252", Text: flippaCardText},
		{URL: "https://flippa.com/11827253", Text: flippaCardText},
	}
	// page 2 repeats page 1, so pagination stops on zero new IDs
	page.blocks[stubKey(page2, selector)] = page.blocks[stubKey(page1, selector)]

	cards, warnings, err := f.Cards(context.Background(), CardOptions{MaxPages: 5})
	assert.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Len(t, cards, 2)
	assert.Equal(t, "11827252", cards[0].ExternalID)
	assert.Equal(t, "11827253", cards[1].ExternalID)
	assert.Equal(t, []string{page1, page2}, page.navigated)
}

func TestFlippaCardsStopsOnBlock(t *testing.T) {
	page := newStubPage()
	f := NewFlippa(page, &config.Config{FlippaURL: "https://flippa.com/search"})
	page.bodyText["https://flippa.com/search"] = "429 Too Many Requests"

	cards, warnings, err := f.Cards(context.Background(), CardOptions{MaxPages: 5})
	assert.NoError(t, err)
	assert.Empty(t, cards)
	assert.Contains(t, warnings[0], "rate limit detected")
}

func TestFlippaDetail(t *testing.T) {
	page := newStubPage()
	f := NewFlippa(page, &config.Config{FlippaURL: "https://flippa.com/search"})

	url := "https://flippa.com/11827252"
	page.titles[url] = "Established SaaS Tool on Flippa: #11827252"
	page.bodyText[url] = "Asking Price\n" +
		"USD $75,000\n" +
		"Net Profit\n" +
		"USD $2,500 p/mo\n" +
		"Type\nSaaS\n" +
		"Industry\nInternet\n" +
		"Business Location\n" +
		"Austin, United States\n" +
		"Site Age\n2 years\n" +
		"An established analytics platform serving small agencies, fully automated and run by a single owner."

	card := &ListingCard{SourceID: SourceFlippa, ExternalID: "11827252", URL: url}
	listing, err := f.Detail(context.Background(), card)
	assert.NoError(t, err)

	assert.Equal(t, "Established SaaS Tool", listing.Title)
	assert.Equal(t, "SaaS | Internet", listing.Category)
	assert.Equal(t, "United States", listing.Country)
	assert.NotNil(t, listing.AskingPriceCents)
	assert.Equal(t, int64(7_500_000), *listing.AskingPriceCents)
	// profit is never reported as revenue
	assert.Nil(t, listing.AnnualRevenueCents)
	assert.NotNil(t, listing.LaunchedYear)
	assert.Equal(t, time.Now().Year()-2, *listing.LaunchedYear)
	assert.Contains(t, listing.Description, "analytics platform")
	assert.Equal(t, "fixed", listing.Raw["price_type"])
	assert.Equal(t, int64(250_000), listing.Raw["profit_monthly_cents"])
}

func TestFlippaDetailPrice(t *testing.T) {
	// the monthly profit line between the label and the price must be skipped
	lines := []string{"Asking Price", "USD $2,500 p/mo", "USD $75,000"}
	cents, priceType, _ := flippaDetailPrice(lines)
	assert.NotNil(t, cents)
	assert.Equal(t, int64(7_500_000), *cents)
	assert.Equal(t, "fixed", priceType)

	lines = []string{"Current Bid", "USD $12,000"}
	cents, priceType, _ = flippaDetailPrice(lines)
	assert.NotNil(t, cents)
	assert.Equal(t, int64(1_200_000), *cents)
	assert.Equal(t, "auction", priceType)

	cents, priceType, _ = flippaDetailPrice([]string{"Type", "SaaS"})
	assert.Nil(t, cents)
	assert.Empty(t, priceType)
}

func TestFlippaDetailCountry(t *testing.T) {
	country := flippaDetailCountry([]string{"Business Location", "Sydney, NSW, Australia"})
	assert.Equal(t, "Australia", country)

	country = flippaDetailCountry([]string{"Location", "United States"})
	assert.Equal(t, "United States", country)

	assert.Empty(t, flippaDetailCountry([]string{"Type", "SaaS"}))
}
