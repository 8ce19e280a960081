package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"bizfinder/config"
	"bizfinder/internal/scraper"
	"bizfinder/services/notifier"
	"bizfinder/services/store"
	"bizfinder/services/worker"
)

// scriptedScraper feeds a fixed set of cards through the real pipeline
type scriptedScraper struct {
	cards   []scraper.ListingCard
	details map[string]*scraper.ListingCreate
}

func (s *scriptedScraper) Source() scraper.SourceID { return scraper.SourceMicrons }

func (s *scriptedScraper) Setup(ctx context.Context) error { return nil }

func (s *scriptedScraper) Cards(ctx context.Context, opts scraper.CardOptions) ([]scraper.ListingCard, []string, error) {
	return s.cards, nil, nil
}

func (s *scriptedScraper) Detail(ctx context.Context, card *scraper.ListingCard) (*scraper.ListingCreate, error) {
	return s.details[card.ExternalID], nil
}

var _ scraper.Scraper = (*scriptedScraper)(nil)

func centsp(v int64) *int64 { return &v }

func pipelineScraper() *scriptedScraper {
	annual := scraper.RevenueAnnual
	return &scriptedScraper{
		cards: []scraper.ListingCard{
			{
				SourceID:         scraper.SourceMicrons,
				ExternalID:       "cooltool",
				URL:              "https://www.microns.io/startup-listings/cooltool",
				Title:            "CoolTool",
				Category:         "Micro-SaaS",
				RevenueCents:     centsp(5_000_000),
				RevenueUnit:      annual,
				AskingPriceCents: centsp(15_000_000),
				Country:          "United States",
				HasVerified:      true,
			},
			{
				SourceID:         scraper.SourceMicrons,
				ExternalID:       "bigshop",
				URL:              "https://www.microns.io/startup-listings/bigshop",
				Title:            "BigShop",
				Category:         "E-commerce",
				RevenueCents:     centsp(8_000_000),
				RevenueUnit:      annual,
				AskingPriceCents: centsp(60_000_000),
				Country:          "United States",
			},
			{
				SourceID:       scraper.SourceMicrons,
				ExternalID:     "hidden",
				URL:            "https://www.microns.io/startup-listings/hidden",
				IsConfidential: true,
			},
		},
		details: map[string]*scraper.ListingCreate{
			"cooltool": {
				SourceID:           scraper.SourceMicrons,
				ExternalID:         "cooltool",
				URL:                "https://www.microns.io/startup-listings/cooltool",
				Title:              "CoolTool",
				Category:           "Micro-SaaS",
				Description:        "Automated reporting for agencies",
				Country:            "United States",
				AskingPriceCents:   centsp(15_000_000),
				AnnualRevenueCents: centsp(5_000_000),
				Status:             scraper.StatusActive,
			},
		},
	}
}

func pipelineFilters() config.FilterConfig {
	return config.FilterConfig{
		MinAnnualRevenueCents: 3_000_000,
		MaxAskingPriceCents:   50_000_000,
		CategoryBlacklist:     []string{"gambling"},
		AllowedCountries:      []string{"United States"},
	}
}

// TestPipelineEndToEnd drives scripted cards through the real worker,
// SQLite store and Slack notifier.
func TestPipelineEndToEnd(t *testing.T) {
	var mu sync.Mutex
	var messages []string
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Text string `json:"text"`
		}
		assert.NoError(t, json.Unmarshal(body, &payload))
		mu.Lock()
		messages = append(messages, payload.Text)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer webhook.Close()

	st, err := store.NewSQLiteStore(":memory:")
	assert.NoError(t, err)
	defer st.Close()

	scr := pipelineScraper()
	notify := notifier.NewSlackNotifier(webhook.URL)
	w := worker.NewWorker(st, nil, notify, nil, pipelineFilters())

	ctx := context.Background()
	stats, err := w.Run(ctx, scr, worker.RunOptions{})
	assert.NoError(t, err)

	assert.Equal(t, 3, stats.TotalSeen)
	assert.Equal(t, 1, stats.Scraped)
	assert.Equal(t, 1, stats.NewStored)
	assert.Equal(t, 2, stats.FilteredOut)
	assert.Equal(t, 1, stats.FilterReasons["confidential listing"])
	assert.Equal(t, 1, stats.FilterReasons["price too high ($600,000)"])
	assert.Equal(t, 2, stats.CountrySeen["us"])
	assert.Equal(t, 1, stats.CountrySeen["unknown"])

	// the stored row is visible through the store API
	known, err := st.KnownIDs(ctx, scraper.SourceMicrons)
	assert.NoError(t, err)
	assert.True(t, known["cooltool"])
	assert.Len(t, known, 1)

	// one Slack post for the new listing, one for the run summary
	mu.Lock()
	defer mu.Unlock()
	if assert.Len(t, messages, 2) {
		assert.Contains(t, messages[0], "CoolTool")
		assert.Contains(t, messages[0], "microns")
		assert.Contains(t, messages[1], "confidential listing")
	}
}

// TestPipelineSecondRunSkipsKnown re-runs the same cards and expects the
// stored one to be skipped without a detail scrape
func TestPipelineSecondRunSkipsKnown(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	assert.NoError(t, err)
	defer st.Close()

	scr := pipelineScraper()
	w := worker.NewWorker(st, nil, notifier.Noop{}, nil, pipelineFilters())

	ctx := context.Background()
	_, err = w.Run(ctx, scr, worker.RunOptions{})
	assert.NoError(t, err)

	stats, err := w.Run(ctx, scr, worker.RunOptions{SkipKnown: true})
	assert.NoError(t, err)
	assert.Equal(t, 1, stats.AlreadyKnown)
	assert.Equal(t, 0, stats.NewStored)
	assert.Equal(t, 2, stats.FilteredOut)

	summary, err := st.Summary(ctx)
	assert.NoError(t, err)
	if assert.Len(t, summary, 1) {
		assert.Equal(t, "microns", summary[0].SourceID)
		assert.Equal(t, 1, summary[0].Total)
	}
}
