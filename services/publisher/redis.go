package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"bizfinder/internal/scraper"
	apperrors "bizfinder/pkg/errors"
)

// RedisPublisher implements Publisher on a Redis stream. Consumers pick
// new listings up with XREAD/XREADGROUP.
type RedisPublisher struct {
	client    *redis.Client
	ctx       context.Context
	stream    string
	maxLength int
}

// streamEntry is the wire form of one published listing
type streamEntry struct {
	SourceID   string `json:"source_id"`
	ExternalID string `json:"external_id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	Category   string `json:"category"`
	Country    string `json:"country"`

	AskingPriceCents   *int64 `json:"asking_price_cents,omitempty"`
	AnnualRevenueCents *int64 `json:"annual_revenue_cents,omitempty"`

	Status      string    `json:"status"`
	IsNew       bool      `json:"is_new"`
	PublishedAt time.Time `json:"published_at"`
}

// NewRedisPublisher creates a Redis stream publisher
func NewRedisPublisher(ctx context.Context, addr string, db int, stream string, maxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:    client,
		ctx:       ctx,
		stream:    stream,
		maxLength: maxLength,
	}
}

// PublishListing publishes one listing as a JSON stream entry
func (p *RedisPublisher) PublishListing(sl *scraper.ScrapedListing) error {
	entry := streamEntry{
		SourceID:           string(sl.Listing.SourceID),
		ExternalID:         sl.Listing.ExternalID,
		URL:                sl.Listing.URL,
		Title:              sl.Listing.Title,
		Category:           sl.Listing.Category,
		Country:            sl.Listing.Country,
		AskingPriceCents:   sl.Listing.AskingPriceCents,
		AnnualRevenueCents: sl.Listing.AnnualRevenueCents,
		Status:             string(sl.Listing.Status),
		IsNew:              sl.IsNew,
		PublishedAt:        time.Now().UTC(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return apperrors.NewPublisher(entry.SourceID, "failed to encode listing", err)
	}

	err = p.client.XAdd(p.ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"listing": string(payload),
		},
	}).Err()
	if err != nil {
		return apperrors.NewPublisher(entry.SourceID, "stream publish failed", err)
	}
	return nil
}

// Trim trims the stream to the configured maximum length
func (p *RedisPublisher) Trim() error {
	if p.maxLength <= 0 {
		return nil
	}
	if err := p.client.XTrimMaxLen(p.ctx, p.stream, int64(p.maxLength)).Err(); err != nil {
		return apperrors.NewPublisher("redis", "stream trim failed", err)
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
