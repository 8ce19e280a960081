package publisher

import (
	"bizfinder/internal/scraper"
)

// Publisher announces newly stored listings to downstream consumers
type Publisher interface {
	// PublishListing publishes one listing
	PublishListing(listing *scraper.ScrapedListing) error

	// Trim trims the stream to the configured maximum length
	Trim() error

	// Close closes the publisher connection
	Close() error
}
