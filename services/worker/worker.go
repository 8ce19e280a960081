package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bizfinder/config"
	"bizfinder/internal/scraper"
	"bizfinder/logger"
	apperrors "bizfinder/pkg/errors"
	"bizfinder/services/cache"
	"bizfinder/services/notifier"
	"bizfinder/services/publisher"
	"bizfinder/services/store"
)

// politeness delay between detail-page fetches; Acquire paces itself on
// top of this
var betweenDetails = [2]time.Duration{500 * time.Millisecond, 1500 * time.Millisecond}

// Refresh-mode pacing
var (
	refreshBaseDelay = 1500 * time.Millisecond
	refreshMaxDelay  = 60 * time.Second
)

const refreshMaxFailures = 5

// retryable detail fetches get this many extra attempts, with a doubling
// delay between them
const detailRetries = 2

var detailRetryBase = time.Second

// RunOptions controls one scrape run
type RunOptions struct {
	MaxPages    int
	MaxListings int

	// SkipKnown skips detail fetches for listings already stored
	SkipKnown bool

	// DryRun evaluates and reports cards without fetching details or
	// writing to the store
	DryRun bool

	VerifiedOnly bool
}

// Worker drives the scrape pipeline: cards, filtering, detail pages,
// persistence, publishing, notification.
type Worker struct {
	store   store.Store
	pub     publisher.Publisher
	notify  notifier.Notifier
	guard   *cache.Guard
	filters config.FilterConfig
	log     *logger.Logger
}

// NewWorker creates a worker. Publisher and guard may be nil when Redis or
// memcached are not configured; notify may be a notifier.Noop.
func NewWorker(st store.Store, pub publisher.Publisher, notify notifier.Notifier, guard *cache.Guard, filters config.FilterConfig) *Worker {
	return &Worker{
		store:   st,
		pub:     pub,
		notify:  notify,
		guard:   guard,
		filters: filters,
		log:     logger.ForWorker(),
	}
}

// Run executes one scrape run against a source and returns its stats. The
// returned error covers failures that abort the run; per-listing errors
// are recorded in the stats instead.
func (w *Worker) Run(ctx context.Context, scr scraper.Scraper, opts RunOptions) (*scraper.RunStats, error) {
	source := scr.Source()
	stats := &scraper.RunStats{Source: source, StartedAt: time.Now()}
	defer func() { stats.Duration = time.Since(stats.StartedAt) }()

	if w.guard != nil {
		if indicator, blocked := w.guard.IsBlocked(source); blocked {
			return stats, fmt.Errorf("source %s is rate-limited (%s), try again later", source, indicator)
		}
	}

	if err := scr.Setup(ctx); err != nil {
		stats.RecordError(fmt.Sprintf("setup: %v", err))
		w.notifyFailure(ctx, stats)
		return stats, err
	}

	cards, warnings, err := scr.Cards(ctx, scraper.CardOptions{
		MaxPages: opts.MaxPages,
		MaxCards: opts.MaxListings,
	})
	for _, warning := range warnings {
		w.log.Warn().Str("source", string(source)).Msg(warning)
		if indicator, blocked := scraper.DetectBlock(warning); blocked && w.guard != nil {
			w.guard.MarkBlocked(source, indicator, 0)
		}
	}
	if err != nil {
		stats.RecordError(fmt.Sprintf("cards: %v", err))
		w.notifyFailure(ctx, stats)
		return stats, err
	}
	stats.TotalSeen = len(cards)

	var known map[string]bool
	if opts.SkipKnown {
		known, err = w.store.KnownIDs(ctx, source)
		if err != nil {
			return stats, err
		}
	}

	policy := scraper.PolicyFlags{VerifiedOnly: opts.VerifiedOnly}
	var newListings []scraper.ScrapedListing

	for i := range cards {
		card := &cards[i]
		stats.RecordCountry(card.Country)

		if opts.SkipKnown && known[card.ExternalID] {
			stats.AlreadyKnown++
			continue
		}

		// the guard remembers detail pages scraped within its TTL, even
		// across databases
		if w.guard != nil && !opts.DryRun && w.guard.WasScraped(source, card.ExternalID) {
			w.log.Debug().
				Str("source", string(source)).
				Str("listing", card.ExternalID).
				Msg("Scraped recently, skipping")
			stats.AlreadyKnown++
			continue
		}

		verdict, reason := scraper.Evaluate(card, w.filters, policy)
		if verdict == scraper.VerdictFail {
			w.log.Debug().
				Str("source", string(source)).
				Str("listing", card.ExternalID).
				Str("reason", reason).
				Msg("Filtered out")
			stats.RecordFilter(reason)
			continue
		}

		if opts.DryRun {
			w.log.Info().
				Str("source", string(source)).
				Str("listing", card.ExternalID).
				Str("title", card.Title).
				Str("verdict", string(verdict)).
				Msg("Dry run, would scrape")
			stats.Scraped++
			continue
		}

		listing, err := w.fetchDetail(ctx, scr, card)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			w.log.Error().Err(err).Str("listing", card.ExternalID).Msg("Detail scrape failed")
			stats.RecordError(fmt.Sprintf("%s: %v", card.ExternalID, err))
			continue
		}
		stats.Scraped++

		// cards deferred on unknown country get their second check here
		if verdict == scraper.VerdictCheckDetail {
			enriched := *card
			enriched.Country = listing.Country
			verdict, reason = scraper.Evaluate(&enriched, w.filters, policy)
			if verdict == scraper.VerdictFail {
				stats.RecordFilter(reason)
				continue
			}
			// the detail page can also leave the country unknown; keep the
			// listing rather than discard data already fetched
		}

		id, isNew, err := w.store.Upsert(ctx, listing)
		if err != nil {
			w.log.Error().Err(err).Str("listing", card.ExternalID).Msg("Persist failed")
			stats.RecordError(fmt.Sprintf("%s: %v", card.ExternalID, err))
			continue
		}
		if isNew {
			stats.NewStored++
		} else {
			stats.Updated++
		}
		w.log.Info().
			Str("source", string(source)).
			Str("listing", card.ExternalID).
			Str("id", id).
			Bool("new", isNew).
			Msg("Stored listing")

		sl := scraper.ScrapedListing{Listing: *listing, IsNew: isNew}
		if isNew {
			newListings = append(newListings, sl)
			if w.pub != nil {
				if err := w.pub.PublishListing(&sl); err != nil {
					w.log.Warn().Err(err).Str("listing", card.ExternalID).Msg("Publish failed")
				}
			}
		}
		if w.guard != nil {
			w.guard.MarkScraped(source, card.ExternalID, 0)
		}

		if err := scraper.RandomDelay(ctx, betweenDetails[0], betweenDetails[1]); err != nil {
			return stats, err
		}
	}

	if w.pub != nil {
		if err := w.pub.Trim(); err != nil {
			w.log.Warn().Err(err).Msg("Stream trim failed")
		}
	}

	w.log.Info().
		Str("source", string(source)).
		Int("us", stats.CountrySeen["us"]).
		Int("intl", stats.CountrySeen["intl"]).
		Int("unknown", stats.CountrySeen["unknown"]).
		Msg("Card origins")

	if err := w.notify.NotifyNewListings(ctx, source, newListings); err != nil {
		w.log.Warn().Err(err).Msg("New-listing notification failed")
	}
	if err := w.notify.NotifyRunSummary(ctx, stats); err != nil {
		w.log.Warn().Err(err).Msg("Summary notification failed")
	}

	return stats, nil
}

// notifyFailure reports a run that died during setup or card collection
func (w *Worker) notifyFailure(ctx context.Context, stats *scraper.RunStats) {
	stats.Duration = time.Since(stats.StartedAt)
	if err := w.notify.NotifyRunSummary(ctx, stats); err != nil {
		w.log.Warn().Err(err).Msg("Failure notification failed")
	}
}

// fetchDetail loads one detail page, retrying retryable failures a
// bounded number of times with a doubling delay
func (w *Worker) fetchDetail(ctx context.Context, scr scraper.Scraper, card *scraper.ListingCard) (*scraper.ListingCreate, error) {
	delay := detailRetryBase
	for attempt := 0; ; attempt++ {
		listing, err := scr.Detail(ctx, card)
		if err == nil {
			return listing, nil
		}

		var scrapeErr *apperrors.ScrapeError
		if attempt >= detailRetries || !errors.As(err, &scrapeErr) || !scrapeErr.IsRetryable() {
			return nil, err
		}

		w.log.Warn().Err(err).
			Str("listing", card.ExternalID).
			Int("attempt", attempt+1).
			Msg("Detail scrape failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// Refresh re-scrapes stored listings whose records are older than maxAge,
// updating financials and lifecycle status. Pacing backs off on failures
// and the pass aborts after repeated consecutive failures.
func (w *Worker) Refresh(ctx context.Context, scr scraper.Scraper, maxAge time.Duration, limit int) (*scraper.RunStats, error) {
	source := scr.Source()
	stats := &scraper.RunStats{Source: source, StartedAt: time.Now()}
	defer func() { stats.Duration = time.Since(stats.StartedAt) }()

	if err := scr.Setup(ctx); err != nil {
		return stats, err
	}

	stale, err := w.store.FindStale(ctx, source, maxAge, limit)
	if err != nil {
		return stats, err
	}
	stats.TotalSeen = len(stale)
	w.log.Info().Str("source", string(source)).Int("count", len(stale)).Msg("Refreshing stale listings")

	limiter := scraper.NewRateLimiter(refreshBaseDelay, refreshMaxDelay, 2.0, refreshMaxFailures)

	for i := range stale {
		row := &stale[i]
		if err := limiter.Wait(ctx); err != nil {
			return stats, err
		}

		card := &scraper.ListingCard{
			SourceID:   source,
			ExternalID: row.ExternalID,
			URL:        row.URL,
			Title:      row.Title,
			Category:   row.Category,
		}
		listing, err := scr.Detail(ctx, card)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.RecordError(fmt.Sprintf("%s: %v", row.ExternalID, err))

			// a detail page that stopped parsing as a listing was usually
			// delisted; mark it sold so later passes skip it
			var scrapeErr *apperrors.ScrapeError
			if errors.As(err, &scrapeErr) && scrapeErr.Type == apperrors.ErrorTypeParsing {
				if uerr := w.store.UpdateStatus(ctx, row.ID, scraper.StatusSold); uerr != nil {
					w.log.Warn().Err(uerr).Str("listing", row.ExternalID).Msg("Status update failed")
				} else {
					w.log.Info().Str("listing", row.ExternalID).Msg("Detail page gone, marked sold")
				}
				limiter.RecordSuccess()
				continue
			}

			if !limiter.RecordFailure() {
				w.log.Error().
					Int("failures", limiter.ConsecutiveFailures()).
					Msg("Aborting refresh after repeated failures")
				break
			}
			continue
		}
		limiter.RecordSuccess()
		stats.Scraped++

		_, _, err = w.store.Upsert(ctx, listing)
		if err != nil {
			stats.RecordError(fmt.Sprintf("%s: %v", row.ExternalID, err))
			continue
		}
		stats.Updated++
		if listing.Status != scraper.StatusActive && string(listing.Status) != row.Status {
			w.log.Info().
				Str("listing", row.ExternalID).
				Str("status", string(listing.Status)).
				Msg("Listing status changed")
		}
	}

	if err := w.notify.NotifyRunSummary(ctx, stats); err != nil {
		w.log.Warn().Err(err).Msg("Summary notification failed")
	}
	return stats, nil
}
