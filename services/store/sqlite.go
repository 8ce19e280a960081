package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"bizfinder/internal/scraper"
	apperrors "bizfinder/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	external_id TEXT NOT NULL,
	url TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	asking_price_cents INTEGER,
	annual_revenue_cents INTEGER,
	customers INTEGER,
	launched_year INTEGER,
	posted_at TIMESTAMP,
	status TEXT NOT NULL DEFAULT 'active',
	raw_json TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	last_seen_at TIMESTAMP NOT NULL,
	UNIQUE(source_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_listings_source ON listings(source_id);
CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
CREATE INDEX IF NOT EXISTS idx_listings_updated ON listings(updated_at);

CREATE TABLE IF NOT EXISTS exploration_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id TEXT NOT NULL,
	url TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	content_length INTEGER NOT NULL DEFAULT 0,
	note TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
`

// SQLiteStore implements Store on SQLite
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, apperrors.NewPersistence("store", "failed to open database", err)
	}
	// SQLite handles one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.NewPersistence("store", "failed to apply schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Upsert inserts a listing or refreshes an existing one. Every upsert
// touches last_seen_at; updated_at moves only with the content.
func (s *SQLiteStore) Upsert(ctx context.Context, listing *scraper.ListingCreate) (string, bool, error) {
	now := time.Now().UTC()

	rawJSON, err := listing.Raw.JSON()
	if err != nil {
		return "", false, apperrors.NewPersistence(string(listing.SourceID), "raw payload encode failed", err)
	}

	var existingID string
	err = s.db.GetContext(ctx, &existingID,
		`SELECT id FROM listings WHERE source_id = ? AND external_id = ?`,
		string(listing.SourceID), listing.ExternalID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", false, apperrors.NewPersistence(string(listing.SourceID), "upsert lookup failed", err)
	}

	row := Listing{
		SourceID:           string(listing.SourceID),
		ExternalID:         listing.ExternalID,
		URL:                listing.URL,
		Title:              listing.Title,
		Category:           listing.Category,
		Description:        listing.Description,
		Location:           listing.Location,
		Country:            listing.Country,
		AskingPriceCents:   listing.AskingPriceCents,
		AnnualRevenueCents: listing.AnnualRevenueCents,
		Customers:          listing.Customers,
		LaunchedYear:       listing.LaunchedYear,
		PostedAt:           listing.PostedAt,
		Status:             string(listing.Status),
		RawJSON:            string(rawJSON),
		UpdatedAt:          now,
		LastSeenAt:         now,
	}

	if errors.Is(err, sql.ErrNoRows) {
		row.ID = uuid.NewString()
		row.CreatedAt = now
		_, err = s.db.NamedExecContext(ctx, `
			INSERT INTO listings (
				id, source_id, external_id, url, title, category, description,
				location, country, asking_price_cents, annual_revenue_cents,
				customers, launched_year, posted_at, status, raw_json,
				created_at, updated_at, last_seen_at
			) VALUES (
				:id, :source_id, :external_id, :url, :title, :category, :description,
				:location, :country, :asking_price_cents, :annual_revenue_cents,
				:customers, :launched_year, :posted_at, :status, :raw_json,
				:created_at, :updated_at, :last_seen_at
			)`, row)
		if err != nil {
			return "", false, apperrors.NewPersistence(string(listing.SourceID), "insert failed", err)
		}
		return row.ID, true, nil
	}

	row.ID = existingID
	_, err = s.db.NamedExecContext(ctx, `
		UPDATE listings SET
			url = :url, title = :title, category = :category,
			description = :description, location = :location, country = :country,
			asking_price_cents = :asking_price_cents,
			annual_revenue_cents = :annual_revenue_cents,
			customers = :customers, launched_year = :launched_year,
			posted_at = :posted_at, status = :status, raw_json = :raw_json,
			updated_at = :updated_at, last_seen_at = :last_seen_at
		WHERE id = :id`, row)
	if err != nil {
		return "", false, apperrors.NewPersistence(string(listing.SourceID), "update failed", err)
	}
	return existingID, false, nil
}

// KnownIDs returns the external IDs already stored for a source
func (s *SQLiteStore) KnownIDs(ctx context.Context, source scraper.SourceID) (map[string]bool, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT external_id FROM listings WHERE source_id = ?`, string(source))
	if err != nil {
		return nil, apperrors.NewPersistence(string(source), "known id query failed", err)
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return known, nil
}

// FindStale returns unsold listings not refreshed within maxAge, oldest
// first
func (s *SQLiteStore) FindStale(ctx context.Context, source scraper.SourceID, maxAge time.Duration, limit int) ([]Listing, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().UTC().Add(-maxAge)

	var listings []Listing
	err := s.db.SelectContext(ctx, &listings, `
		SELECT * FROM listings
		WHERE source_id = ? AND status != ? AND updated_at < ?
		ORDER BY updated_at ASC
		LIMIT ?`,
		string(source), string(scraper.StatusSold), cutoff, limit)
	if err != nil {
		return nil, apperrors.NewPersistence(string(source), "stale query failed", err)
	}
	return listings, nil
}

// UpdateStatus sets the lifecycle status of one listing
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status scraper.ListingStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE listings SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return apperrors.NewPersistence("store", "status update failed", err)
	}
	return nil
}

// Get returns one listing by its marketplace identity, or nil when not
// stored
func (s *SQLiteStore) Get(ctx context.Context, source scraper.SourceID, externalID string) (*Listing, error) {
	var listing Listing
	err := s.db.GetContext(ctx, &listing,
		`SELECT * FROM listings WHERE source_id = ? AND external_id = ?`,
		string(source), externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewPersistence(string(source), "listing lookup failed", err)
	}
	return &listing, nil
}

// BySource returns the most recently seen listings for a source
func (s *SQLiteStore) BySource(ctx context.Context, source scraper.SourceID, limit int) ([]Listing, error) {
	if limit <= 0 {
		limit = 50
	}
	var listings []Listing
	err := s.db.SelectContext(ctx, &listings, `
		SELECT * FROM listings
		WHERE source_id = ?
		ORDER BY last_seen_at DESC
		LIMIT ?`, string(source), limit)
	if err != nil {
		return nil, apperrors.NewPersistence(string(source), "listing query failed", err)
	}
	return listings, nil
}

// ExplorationLogs returns the most recent exploration entries for a
// source, newest first
func (s *SQLiteStore) ExplorationLogs(ctx context.Context, source scraper.SourceID, limit int) ([]ExplorationLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []ExplorationLog
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM exploration_logs
		WHERE source_id = ?
		ORDER BY id DESC
		LIMIT ?`, string(source), limit)
	if err != nil {
		return nil, apperrors.NewPersistence(string(source), "exploration log query failed", err)
	}
	return entries, nil
}

// Summary aggregates stored listings per source
func (s *SQLiteStore) Summary(ctx context.Context) ([]SourceSummary, error) {
	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	var summaries []SourceSummary
	err := s.db.SelectContext(ctx, &summaries, `
		SELECT
			source_id,
			COUNT(*) AS total,
			SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END) AS active,
			SUM(CASE WHEN status = 'sold' THEN 1 ELSE 0 END) AS sold,
			MAX(last_seen_at) AS last_seen_at,
			SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END) AS new_last_24h
		FROM listings
		GROUP BY source_id
		ORDER BY source_id`, cutoff)
	if err != nil {
		return nil, apperrors.NewPersistence("store", "summary query failed", err)
	}
	return summaries, nil
}

// LogExploration records one exploration fetch
func (s *SQLiteStore) LogExploration(ctx context.Context, entry *ExplorationLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO exploration_logs (source_id, url, status_code, content_length, note, created_at)
		VALUES (:source_id, :url, :status_code, :content_length, :note, :created_at)`, entry)
	if err != nil {
		return apperrors.NewPersistence(entry.SourceID, "exploration log insert failed", err)
	}
	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
