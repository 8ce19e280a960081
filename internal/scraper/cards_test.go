package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRules() CardRules {
	return CardRules{
		Source:      SourceFlippa,
		RevenueUnit: RevenueMonthly,
		ExtractID: func(url string) (string, bool) {
			id := strings.TrimPrefix(url, "https://example.com/")
			if id == "" || id == url {
				return "", false
			}
			return id, true
		},
		MinLines:  2,
		Direction: ValueAfter,
		Labels: []LabelRule{
			{Labels: []string{"net profit"}, Apply: func(c *ListingCard, v string) {
				if c.RevenueCents == nil {
					if m := ParseMonthlyMoney(v); m != nil {
						c.RevenueCents = &m.Cents
					}
				}
			}},
			{Labels: []string{"type"}, Apply: func(c *ListingCard, v string) {
				if c.Category == "" {
					c.Category = v
				}
			}},
		},
		DataMarkers:         []string{"Net Profit"},
		ConfidentialMarkers: []string{"Confidential"},
		VerifiedMarkers:     []string{"Verified Listing"},
	}
}

func TestExtractCardsBasic(t *testing.T) {
	blocks := []Block{
		{URL: "https://example.com/111", Text: "Type\nSaaS\nNet Profit\nUSD $2,977 p/mo"},
		{URL: "https://example.com/222", Text: "Type\nApp\nNet Profit\n$500 /mo\nVerified Listing"},
	}

	cards, warnings := ExtractCards(blocks, testRules())
	assert.Empty(t, warnings)
	assert.Len(t, cards, 2)

	assert.Equal(t, "111", cards[0].ExternalID)
	assert.Equal(t, "SaaS", cards[0].Category)
	assert.NotNil(t, cards[0].RevenueCents)
	assert.Equal(t, int64(297_700), *cards[0].RevenueCents)
	assert.False(t, cards[0].HasVerified)

	assert.Equal(t, "222", cards[1].ExternalID)
	assert.True(t, cards[1].HasVerified)
}

func TestExtractCardsSkipsDecorativeBlocks(t *testing.T) {
	blocks := []Block{
		{URL: "", Text: "Type\nSaaS"},
		{URL: "https://other.example.org/page", Text: "Type\nSaaS"},
		{URL: "https://example.com/111", Text: "single line"},
	}
	cards, _ := ExtractCards(blocks, testRules())
	assert.Empty(t, cards)
}

func TestExtractCardsMergesDuplicates(t *testing.T) {
	// first block wins for fields set by both
	blocks := []Block{
		{URL: "https://example.com/111", Text: "Type\nSaaS\nNet Profit\n$1,000 /mo"},
		{URL: "https://example.com/111", Text: "Type\nEcommerce\nNet Profit\n$9,999 /mo"},
	}
	cards, _ := ExtractCards(blocks, testRules())
	assert.Len(t, cards, 1)
	assert.Equal(t, "SaaS", cards[0].Category)
	assert.Equal(t, int64(100_000), *cards[0].RevenueCents)
}

func TestExtractCardsConfidentialCleared(t *testing.T) {
	// a teaser block marks the listing confidential; a later data-bearing
	// block for the same listing clears it
	blocks := []Block{
		{URL: "https://example.com/111", Text: "Confidential\nSign NDA to view"},
		{URL: "https://example.com/111", Text: "Type\nSaaS\nNet Profit\n$2,000 /mo"},
	}
	cards, _ := ExtractCards(blocks, testRules())
	assert.Len(t, cards, 1)
	assert.False(t, cards[0].IsConfidential)
	assert.NotNil(t, cards[0].RevenueCents)
}

func TestExtractCardsConfidentialStaysAfterData(t *testing.T) {
	// once a data block is seen, a trailing teaser cannot re-flag it
	blocks := []Block{
		{URL: "https://example.com/111", Text: "Type\nSaaS\nNet Profit\n$2,000 /mo"},
		{URL: "https://example.com/111", Text: "Confidential\nSign NDA to view"},
	}
	cards, _ := ExtractCards(blocks, testRules())
	assert.Len(t, cards, 1)
	assert.False(t, cards[0].IsConfidential)
}

func TestExtractCardsConfidentialOnly(t *testing.T) {
	blocks := []Block{
		{URL: "https://example.com/111", Text: "Confidential\nSign NDA to view"},
	}
	cards, _ := ExtractCards(blocks, testRules())
	assert.Len(t, cards, 1)
	assert.True(t, cards[0].IsConfidential)
}

func TestExtractCardsValueBefore(t *testing.T) {
	rules := testRules()
	rules.Direction = ValueBefore
	rules.Labels = []LabelRule{
		{Labels: []string{"asking price"}, Apply: func(c *ListingCard, v string) {
			if m := ParseMoney(v); m != nil {
				c.AskingPriceCents = &m.Cents
			}
		}},
	}
	rules.DataMarkers = nil
	rules.ConfidentialMarkers = nil

	blocks := []Block{
		{URL: "https://example.com/my-startup", Text: "My Startup\n$35,000\nAsking Price"},
	}
	cards, _ := ExtractCards(blocks, rules)
	assert.Len(t, cards, 1)
	assert.NotNil(t, cards[0].AskingPriceCents)
	assert.Equal(t, int64(3_500_000), *cards[0].AskingPriceCents)
}

func TestSplitLines(t *testing.T) {
	lines := SplitLines("  a  \n\n b\n\n\nc ")
	assert.Equal(t, []string{"a", "b", "c"}, lines)
	assert.Empty(t, SplitLines("  \n \n"))
}
