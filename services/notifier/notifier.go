package notifier

import (
	"context"

	"bizfinder/internal/scraper"
)

// Notifier delivers scrape results to a chat channel
type Notifier interface {
	// NotifyNewListings announces newly discovered listings
	NotifyNewListings(ctx context.Context, source scraper.SourceID, listings []scraper.ScrapedListing) error

	// NotifyRunSummary posts the end-of-run statistics
	NotifyRunSummary(ctx context.Context, stats *scraper.RunStats) error
}

// Noop is used when no webhook is configured
type Noop struct{}

func (Noop) NotifyNewListings(context.Context, scraper.SourceID, []scraper.ScrapedListing) error {
	return nil
}

func (Noop) NotifyRunSummary(context.Context, *scraper.RunStats) error { return nil }
