package scraper

import (
	"context"
	"fmt"

	"bizfinder/config"
)

// CardOptions bounds the index-page phase of a run
type CardOptions struct {
	// MaxPages caps index pages (Flippa, Microns) or scroll attempts
	// (Acquire). 0 uses the source's own safety limit.
	MaxPages int

	// MaxCards stops card collection early once this many cards are held.
	// 0 means no early stop.
	MaxCards int
}

// Scraper is the per-marketplace contract. Implementations share one
// browser page and run strictly sequentially.
type Scraper interface {
	// Source identifies the marketplace
	Source() SourceID

	// Setup prepares the session, e.g. logging in. Called once per run.
	Setup(ctx context.Context) error

	// Cards walks the index pages and returns deduplicated cards plus
	// non-fatal extraction warnings.
	Cards(ctx context.Context, opts CardOptions) ([]ListingCard, []string, error)

	// Detail loads one listing page and builds the full record, using the
	// card as fallback for fields the page hides.
	Detail(ctx context.Context, card *ListingCard) (*ListingCreate, error)
}

// New creates the scraper for a marketplace source
func New(source SourceID, page Page, cfg *config.Config) (Scraper, error) {
	switch source {
	case SourceFlippa:
		return NewFlippa(page, cfg), nil
	case SourceAcquire:
		return NewAcquire(page, cfg), nil
	case SourceMicrons:
		return NewMicrons(page, cfg), nil
	default:
		return nil, fmt.Errorf("unknown source: %s", source)
	}
}

// ParseSource resolves a CLI argument to a source ID
func ParseSource(name string) (SourceID, error) {
	switch SourceID(name) {
	case SourceFlippa, SourceAcquire, SourceMicrons:
		return SourceID(name), nil
	default:
		return "", fmt.Errorf("unknown source %q (expected flippa, acquire or microns)", name)
	}
}
