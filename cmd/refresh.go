package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bizfinder/internal/scraper"
	"bizfinder/services/notifier"
	"bizfinder/services/store"
	"bizfinder/services/worker"
)

var refreshFlags struct {
	olderThanDays int
	limit         int
	noNotify      bool
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <flippa|acquire|microns>",
	Short: "Re-scrape stored listings to update financials and status",
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

		st, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		var notify notifier.Notifier = notifier.Noop{}
		if cfg.SlackWebhookURL != "" && !refreshFlags.noNotify {
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

		maxAge := time.Duration(refreshFlags.olderThanDays) * 24 * time.Hour
		w := worker.NewWorker(st, nil, notify, nil, cfg.Filters)
		stats, err := w.Refresh(ctx, scr, maxAge, refreshFlags.limit)
		printStats(stats)
		return err
	},
}

func init() {
	refreshCmd.Flags().IntVar(&refreshFlags.olderThanDays, "older-than", 7, "refresh listings not updated in this many days")
	refreshCmd.Flags().IntVar(&refreshFlags.limit, "limit", 50, "maximum listings to refresh")
	refreshCmd.Flags().BoolVar(&refreshFlags.noNotify, "no-notify", false, "suppress Slack notifications")
	rootCmd.AddCommand(refreshCmd)
}
