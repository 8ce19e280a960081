package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"bizfinder/helpers"
	"bizfinder/internal/scraper"
	"bizfinder/services/store"
)

var exploreFlags struct {
	url      string
	selector string
	note     string
	list     bool
}

// explore fetches a page without a browser to probe its structure: useful
// for checking whether a source serves card markup to plain HTTP before
// spending a browser session on it.
var exploreCmd = &cobra.Command{
	Use:   "explore <flippa|acquire|microns>",
	Short: "Probe a source's page structure over plain HTTP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := scraper.ParseSource(args[0])
		if err != nil {
			return err
		}

		url := exploreFlags.url
		if url == "" {
			switch source {
			case scraper.SourceFlippa:
				url = cfg.FlippaURL
			case scraper.SourceAcquire:
				url = cfg.AcquireURL
			case scraper.SourceMicrons:
				url = cfg.MicronsURL
			}
		}

		st, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		if exploreFlags.list {
			entries, err := st.ExplorationLogs(context.Background(), source, 0)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Printf("no exploration logs for %s\n", source)
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %3d  %8dB  %s\n    %s\n",
					e.CreatedAt.Format("2006-01-02 15:04"), e.StatusCode,
					e.ContentLength, e.URL, e.Note)
			}
			return nil
		}

		resolveProxy(context.Background())

		body, err := helpers.FetchWithRandomHeaders(url)
		if err != nil {
			// failed probes are logged too: a block today is data
			_ = st.LogExploration(context.Background(), &store.ExplorationLog{
				SourceID: string(source),
				URL:      url,
				Note:     fmt.Sprintf("fetch failed: %v", err),
			})
			return err
		}

		raw, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d bytes\n", url, len(raw))

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
		if err != nil {
			return err
		}

		note := exploreFlags.note
		if exploreFlags.selector != "" {
			count := doc.Find(exploreFlags.selector).Length()
			fmt.Printf("%q matches %d element(s)\n", exploreFlags.selector, count)
			if note == "" {
				note = fmt.Sprintf("%q matched %d", exploreFlags.selector, count)
			}
		}

		if indicator, blocked := scraper.DetectBlock(doc.Text()); blocked {
			fmt.Printf("block indicator present: %q\n", indicator)
			if note == "" {
				note = "block indicator: " + indicator
			}
		}

		return st.LogExploration(context.Background(), &store.ExplorationLog{
			SourceID:      string(source),
			URL:           url,
			StatusCode:    200,
			ContentLength: len(raw),
			Note:          note,
		})
	},
}

func init() {
	exploreCmd.Flags().StringVar(&exploreFlags.url, "url", "", "URL to probe (defaults to the source's index URL)")
	exploreCmd.Flags().StringVar(&exploreFlags.selector, "selector", "", "CSS selector to count on the fetched page")
	exploreCmd.Flags().StringVar(&exploreFlags.note, "note", "", "note to record with the exploration log")
	exploreCmd.Flags().BoolVar(&exploreFlags.list, "list", false, "print recorded exploration logs instead of fetching")
	rootCmd.AddCommand(exploreCmd)
}
