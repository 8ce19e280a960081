package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"bizfinder/config"
	"bizfinder/internal/scraper"
	"bizfinder/logger"
	"bizfinder/services/cache"
	"bizfinder/services/notifier"
	"bizfinder/services/publisher"
	"bizfinder/services/store"
	"bizfinder/services/worker"
)

var scrapeFlags struct {
	maxPages    int
	maxListings int

	minProfit  float64
	minRevenue float64
	maxPrice   float64

	skipBlacklist bool
	includeIntl   bool
	verifiedOnly  bool

	skipKnown bool
	dryRun    bool

	publish     bool
	useGuard    bool
	ignoreBlock bool
	noNotify    bool
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <flippa|acquire|microns>",
	Short: "Scrape one marketplace and store matching listings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := scraper.ParseSource(args[0])
		if err != nil {
			return err
		}
		if source == scraper.SourceAcquire {
			if err := cfg.RequireAcquireCredentials(); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg.Filters = cfg.Filters.WithOverrides(filterOverrides())

		st, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		var pub publisher.Publisher
		if scrapeFlags.publish {
			redisPub := publisher.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, int(cfg.RedisStreamMax))
			defer redisPub.Close()
			pub = redisPub
		}

		var guard *cache.Guard
		if scrapeFlags.useGuard {
			guard = cache.NewGuard(cache.NewMemcacheService(cfg.MemcacheAddr))
			if scrapeFlags.ignoreBlock {
				guard.ClearBlocked(source)
			}
		}

		var notify notifier.Notifier = notifier.Noop{}
		if cfg.SlackWebhookURL != "" && !scrapeFlags.noNotify && !scrapeFlags.dryRun {
			notify = notifier.NewSlackNotifier(cfg.SlackWebhookURL)
		}

		resolveProxy(ctx)

		session, err := scraper.NewSession(ctx, cfg)
		if err != nil {
			return err
		}
		defer session.Close()

		scr, err := scraper.New(source, session, cfg)
		if err != nil {
			return err
		}

		w := worker.NewWorker(st, pub, notify, guard, cfg.Filters)
		stats, err := w.Run(ctx, scr, worker.RunOptions{
			MaxPages:     scrapeFlags.maxPages,
			MaxListings:  scrapeFlags.maxListings,
			SkipKnown:    scrapeFlags.skipKnown,
			DryRun:       scrapeFlags.dryRun,
			VerifiedOnly: scrapeFlags.verifiedOnly,
		})
		printStats(stats)
		return err
	},
}

// filterOverrides maps the dollar-denominated CLI flags onto the cents
// filter configuration
func filterOverrides() config.FilterOverrides {
	var o config.FilterOverrides
	if scrapeFlags.minProfit > 0 {
		cents := int64(scrapeFlags.minProfit * 100)
		o.MinMonthlyProfitCents = &cents
	}
	if scrapeFlags.minRevenue > 0 {
		cents := int64(scrapeFlags.minRevenue * 100)
		o.MinAnnualRevenueCents = &cents
	}
	if scrapeFlags.maxPrice > 0 {
		cents := int64(scrapeFlags.maxPrice * 100)
		o.MaxAskingPriceCents = &cents
	}
	if scrapeFlags.skipBlacklist {
		empty := []string{}
		o.CategoryBlacklist = &empty
	}
	if scrapeFlags.includeIntl {
		empty := []string{}
		o.AllowedCountries = &empty
	}
	return o
}

// printStats writes the run outcome to stdout and the log
func printStats(stats *scraper.RunStats) {
	if stats == nil {
		return
	}
	logger.ForWorker().Info().
		Str("source", string(stats.Source)).
		Dur("duration", stats.Duration).
		Int("seen", stats.TotalSeen).
		Int("scraped", stats.Scraped).
		Int("new", stats.NewStored).
		Int("updated", stats.Updated).
		Int("filtered", stats.FilteredOut).
		Int("known", stats.AlreadyKnown).
		Int("errors", stats.Errors).
		Msg("Run finished")

	fmt.Printf("\n%s: %d seen, %d scraped, %d new, %d updated, %d filtered, %d known, %d errors\n",
		stats.Source, stats.TotalSeen, stats.Scraped, stats.NewStored,
		stats.Updated, stats.FilteredOut, stats.AlreadyKnown, stats.Errors)

	if len(stats.FilterReasons) > 0 {
		reasons := make([]string, 0, len(stats.FilterReasons))
		for reason := range stats.FilterReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		fmt.Println("filtered:")
		for _, reason := range reasons {
			fmt.Printf("  %4d  %s\n", stats.FilterReasons[reason], reason)
		}
	}
	for _, detail := range stats.ErrorDetails {
		fmt.Printf("  error: %s\n", detail)
	}
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeFlags.maxPages, "max-pages", 0, "maximum index pages or scroll passes (0 = source default)")
	scrapeCmd.Flags().IntVar(&scrapeFlags.maxListings, "max-listings", 0, "stop after this many cards (0 = source default)")
	scrapeCmd.Flags().Float64Var(&scrapeFlags.minProfit, "min-profit", 0, "minimum monthly profit in dollars (Flippa)")
	scrapeCmd.Flags().Float64Var(&scrapeFlags.minRevenue, "min-revenue", 0, "minimum annual revenue in dollars")
	scrapeCmd.Flags().Float64Var(&scrapeFlags.maxPrice, "max-price", 0, "maximum asking price in dollars")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.skipBlacklist, "skip-blacklist", false, "disable the category blacklist")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.includeIntl, "include-intl", false, "disable the country filter")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.verifiedOnly, "verified-only", false, "keep only verified listings")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.skipKnown, "skip-known", false, "skip listings already stored")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.dryRun, "dry-run", false, "evaluate cards without scraping details or writing")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.publish, "publish", false, "publish new listings to the Redis stream")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.useGuard, "guard", false, "share block/scraped state through memcached")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.ignoreBlock, "ignore-block", false, "clear a cached block flag before running")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.noNotify, "no-notify", false, "suppress Slack notifications")
	rootCmd.AddCommand(scrapeCmd)
}
