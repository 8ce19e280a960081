package scraper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"bizfinder/config"
	apperrors "bizfinder/pkg/errors"
)

func TestAcquireExtractID(t *testing.T) {
	id, ok := acquireExtractID("https://app.acquire.com/startup/ZNnx8E/tPqW3vYc2K")
	assert.True(t, ok)
	assert.Equal(t, "tPqW3vYc2K", id)

	id, ok = acquireExtractID("https://app.acquire.com/startup/ZNnx8E/tPqW3vYc2K?ref=browse")
	assert.True(t, ok)
	assert.Equal(t, "tPqW3vYc2K", id)

	_, ok = acquireExtractID("https://app.acquire.com/all-listing")
	assert.False(t, ok)
}

func TestAcquireSetupRequiresCredentials(t *testing.T) {
	a := NewAcquire(newStubPage(), &config.Config{AcquireURL: "https://app.acquire.com/all-listing"})
	err := a.Setup(context.Background())
	assert.Error(t, err)

	var scrapeErr *apperrors.ScrapeError
	assert.ErrorAs(t, err, &scrapeErr)
	assert.Equal(t, apperrors.ErrorTypeConfiguration, scrapeErr.Type)
}

func TestAcquireCardExtraction(t *testing.T) {
	blocks := []Block{
		{
			URL: "https://app.acquire.com/startup/ZNnx8E/tPqW3vYc2K",
			Text: "SaaS\n" +
				"B2B analytics platform with strong retention and no paid marketing\n" +
				"TTM Revenue\n$420k\n" +
				"Asking Price\n$1.2M",
		},
	}
	cards, _ := ExtractCards(blocks, acquireCardRules())
	assert.Len(t, cards, 1)

	card := cards[0]
	assert.Equal(t, "tPqW3vYc2K", card.ExternalID)
	assert.Equal(t, "SaaS", card.Category)
	assert.Equal(t, RevenueAnnual, card.RevenueUnit)
	assert.NotNil(t, card.RevenueCents)
	assert.Equal(t, int64(42_000_000), *card.RevenueCents)
	assert.NotNil(t, card.AskingPriceCents)
	assert.Equal(t, int64(120_000_000), *card.AskingPriceCents)
	assert.Equal(t, "B2B analytics platform with strong retention and no paid marketing", card.Title)
}

func TestAcquireDetailTitleCascade(t *testing.T) {
	page := newStubPage()
	ctx := context.Background()

	// body-line pass skips premium-wall placeholders and price lines
	lines := []string{
		"ASKING PRICE",
		"$500,000",
		"UPGRADE TO PLATINUM",
		"A profitable B2B SaaS with two hundred customers and steady growth",
	}
	title, source := acquireDetailTitle(ctx, page, lines, &ListingCard{})
	assert.Equal(t, "A profitable B2B SaaS with two hundred customers and steady growth", title)
	assert.Equal(t, "body", source)

	// heading elements win over body lines
	page.blocks[stubKey("", "h1")] = []Block{{Text: "Subscription box service for specialty coffee drinkers"}}
	title, source = acquireDetailTitle(ctx, page, lines, &ListingCard{})
	assert.Equal(t, "Subscription box service for specialty coffee drinkers", title)
	assert.Equal(t, "heading", source)
}

func TestAcquireDetailTitleFallsBackToCard(t *testing.T) {
	page := newStubPage()
	lines := []string{"ASKING PRICE", "$500,000", "short"}
	title, source := acquireDetailTitle(context.Background(), page, lines, &ListingCard{Title: "Card title from the index page"})
	assert.Equal(t, "Card title from the index page", title)
	assert.Equal(t, "card", source)

	title, source = acquireDetailTitle(context.Background(), page, lines, &ListingCard{})
	assert.Empty(t, title)
	assert.Empty(t, source)
}

func TestAcquireDetailFinancials(t *testing.T) {
	lines := []string{
		"Asking Price", "$950,000",
		"TTM Revenue", "$420,000",
		"TTM Profit", "$180,000",
		"Annual recurring revenue", "$400,000",
		"Annual growth rate", "25%",
		"Churn rate", "2.1%",
		"5.2x profit",
	}
	fin := acquireDetailFinancials(lines)

	assert.Equal(t, int64(95_000_000), *fin.askingPrice)
	assert.Equal(t, int64(42_000_000), *fin.ttmRevenue)
	assert.Equal(t, int64(18_000_000), *fin.ttmProfit)
	assert.Equal(t, int64(40_000_000), *fin.arr)
	assert.Equal(t, 25.0, *fin.growthRate)
	assert.Equal(t, 2.1, *fin.churnRate)
	assert.Equal(t, 5.2, *fin.profitMultiple)
	assert.Nil(t, fin.revenueMultiple)
}

func TestAcquireDetailBusiness(t *testing.T) {
	lines := []string{
		"Team size", "3",
		"Date founded", "March 2019",
		"Business model", "Subscriptions",
		"Tech stack",
		"Ruby on Rails", "PostgreSQL", "Redis",
		"Competitors",
		"BigCo", "OtherCo",
		"Growth opportunities",
		"Expand to Europe",
		"Customers", "101-250",
	}
	biz := acquireDetailBusiness(lines)

	assert.Equal(t, "3", biz.teamSize)
	assert.Equal(t, "March 2019", biz.dateFounded)
	assert.Equal(t, "Subscriptions", biz.businessModel)
	assert.Equal(t, "Ruby on Rails, PostgreSQL, Redis", biz.techStack)
	assert.Equal(t, "BigCo, OtherCo", biz.competitors)
	assert.Equal(t, "101-250", biz.customersRange)
}

func TestAcquireDetailLocation(t *testing.T) {
	location, country := acquireDetailLocation("Based in United States (Delaware) since 2019")
	assert.Equal(t, "Delaware", location)
	assert.Equal(t, "United States", country)

	location, country = acquireDetailLocation("The team operates from United States remotely")
	assert.Empty(t, location)
	assert.Equal(t, "United States", country)

	_, country = acquireDetailLocation("Based in Berlin, Germany")
	assert.Empty(t, country)
}

func TestAcquireDetailCategory(t *testing.T) {
	assert.Equal(t, "SaaS", acquireDetailCategory([]string{"About", "saas startup", "details"}))
	assert.Equal(t, "Ecommerce", acquireDetailCategory([]string{"Ecommerce"}))
	assert.Empty(t, acquireDetailCategory([]string{"something else entirely"}))
}

func TestAcquireConversionWarnings(t *testing.T) {
	block := Block{
		URL: "https://app.acquire.com/startup/ZNnx8E/tPqW3vYc2K",
		Text: "SaaS\n" +
			"Scheduling tool for trade businesses across Australia\n" +
			"TTM Revenue\nAUD $420k\n" +
			"Asking Price\nAUD $1.2M",
	}
	// a repeated block for the same listing must not duplicate warnings
	cards, warnings := ExtractCards([]Block{block, block}, acquireCardRules())
	assert.Len(t, cards, 1)

	card := cards[0]
	assert.NotNil(t, card.RevenueCents)
	assert.Equal(t, int64(27_300_000), *card.RevenueCents)
	assert.NotNil(t, card.AskingPriceCents)
	assert.Equal(t, int64(78_000_000), *card.AskingPriceCents)

	assert.Len(t, card.Warnings, 2)
	assert.Contains(t, card.Warnings[0], "converted from AUD")

	assert.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "tPqW3vYc2K: converted from AUD")
}
