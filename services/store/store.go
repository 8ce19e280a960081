package store

import (
	"context"
	"time"

	"bizfinder/internal/scraper"
)

// Listing is a persisted marketplace listing row
type Listing struct {
	ID         string `db:"id"`
	SourceID   string `db:"source_id"`
	ExternalID string `db:"external_id"`
	URL        string `db:"url"`

	Title       string `db:"title"`
	Category    string `db:"category"`
	Description string `db:"description"`
	Location    string `db:"location"`
	Country     string `db:"country"`

	AskingPriceCents   *int64 `db:"asking_price_cents"`
	AnnualRevenueCents *int64 `db:"annual_revenue_cents"`

	Customers    *int       `db:"customers"`
	LaunchedYear *int       `db:"launched_year"`
	PostedAt     *time.Time `db:"posted_at"`

	Status  string `db:"status"`
	RawJSON string `db:"raw_json"`

	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
	LastSeenAt time.Time `db:"last_seen_at"`
}

// ExplorationLog records one raw fetch made while probing a source's
// page structure
type ExplorationLog struct {
	ID            int64     `db:"id"`
	SourceID      string    `db:"source_id"`
	URL           string    `db:"url"`
	StatusCode    int       `db:"status_code"`
	ContentLength int       `db:"content_length"`
	Note          string    `db:"note"`
	CreatedAt     time.Time `db:"created_at"`
}

// SourceSummary aggregates stored listings for one source
type SourceSummary struct {
	SourceID string `db:"source_id"`
	Total    int    `db:"total"`
	Active   int    `db:"active"`
	Sold     int    `db:"sold"`

	// LastSeenAt is text: SQLite strips the column type from MAX()
	LastSeenAt string `db:"last_seen_at"`
	NewLast24h int    `db:"new_last_24h"`
}

// Store persists listings and exploration logs
type Store interface {
	// Upsert inserts a listing or refreshes an existing one, keyed by
	// (source, external ID). Reports whether the listing was new.
	Upsert(ctx context.Context, listing *scraper.ListingCreate) (id string, isNew bool, err error)

	// KnownIDs returns the external IDs already stored for a source
	KnownIDs(ctx context.Context, source scraper.SourceID) (map[string]bool, error)

	// FindStale returns listings for a source not refreshed within maxAge,
	// oldest first, excluding sold listings.
	FindStale(ctx context.Context, source scraper.SourceID, maxAge time.Duration, limit int) ([]Listing, error)

	// UpdateStatus sets the lifecycle status of one listing
	UpdateStatus(ctx context.Context, id string, status scraper.ListingStatus) error

	// Get returns one listing by its marketplace identity, or nil when
	// not stored
	Get(ctx context.Context, source scraper.SourceID, externalID string) (*Listing, error)

	// BySource returns the most recently seen listings for a source
	BySource(ctx context.Context, source scraper.SourceID, limit int) ([]Listing, error)

	// ExplorationLogs returns the most recent exploration entries for a
	// source, newest first
	ExplorationLogs(ctx context.Context, source scraper.SourceID, limit int) ([]ExplorationLog, error)

	// Summary aggregates stored listings per source
	Summary(ctx context.Context) ([]SourceSummary, error)

	// LogExploration records one exploration fetch
	LogExploration(ctx context.Context, entry *ExplorationLog) error

	// Close closes the underlying database
	Close() error
}
