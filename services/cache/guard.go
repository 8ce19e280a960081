package cache

import (
	"fmt"
	"time"

	"bizfinder/internal/scraper"
	"bizfinder/logger"
)

// Default TTLs for guard entries
const (
	DefaultBlockTTL   = 30 * time.Minute
	DefaultScrapedTTL = 6 * time.Hour
)

// Guard shares scrape state between runs through the cache: which sources
// recently rate-limited us, and which listings were scraped recently
// enough to skip. Cache errors degrade to "not cached", never failing a
// run.
type Guard struct {
	cache CacheService
	log   *logger.Logger
}

// NewGuard creates a guard over a cache service
func NewGuard(cache CacheService) *Guard {
	return &Guard{
		cache: cache,
		log:   logger.ForCache(),
	}
}

func blockKey(source scraper.SourceID) string {
	return fmt.Sprintf("blocked:%s", source)
}

func scrapedKey(source scraper.SourceID, externalID string) string {
	return fmt.Sprintf("scraped:%s:%s", source, externalID)
}

// MarkBlocked records that a source rate-limited us, with the indicator
// that tripped the detection
func (g *Guard) MarkBlocked(source scraper.SourceID, indicator string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultBlockTTL
	}
	if err := g.cache.Set(blockKey(source), []byte(indicator), ttl); err != nil {
		g.log.Warn().Err(err).Str("source", string(source)).Msg("Failed to cache block flag")
	}
}

// IsBlocked reports whether a source has an unexpired block flag and the
// indicator recorded with it
func (g *Guard) IsBlocked(source scraper.SourceID) (string, bool) {
	value, err := g.cache.Get(blockKey(source))
	if err != nil {
		return "", false
	}
	return string(value), true
}

// ClearBlocked removes a source's block flag
func (g *Guard) ClearBlocked(source scraper.SourceID) {
	if err := g.cache.Delete(blockKey(source)); err != nil {
		g.log.Debug().Err(err).Str("source", string(source)).Msg("Failed to clear block flag")
	}
}

// MarkScraped records that a listing's detail page was scraped
func (g *Guard) MarkScraped(source scraper.SourceID, externalID string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultScrapedTTL
	}
	if err := g.cache.Set(scrapedKey(source, externalID), []byte("1"), ttl); err != nil {
		g.log.Warn().Err(err).Str("source", string(source)).Msg("Failed to cache scraped flag")
	}
}

// WasScraped reports whether a listing was scraped within the TTL
func (g *Guard) WasScraped(source scraper.SourceID, externalID string) bool {
	_, err := g.cache.Get(scrapedKey(source, externalID))
	return err == nil
}
