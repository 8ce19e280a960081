package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"bizfinder/internal/scraper"
	"bizfinder/services/store"
)

var listFlags struct {
	limit int
}

var listCmd = &cobra.Command{
	Use:   "list <flippa|acquire|microns>",
	Short: "Show stored listings for a source, most recently seen first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := scraper.ParseSource(args[0])
		if err != nil {
			return err
		}

		st, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		listings, err := st.BySource(context.Background(), source, listFlags.limit)
		if err != nil {
			return err
		}
		if len(listings) == 0 {
			fmt.Printf("no listings stored for %s\n", source)
			return nil
		}

		for _, l := range listings {
			fmt.Printf("%-12s %-9s ask %-12s rev %-12s %s\n",
				l.ExternalID, l.Status, centsOrDash(l.AskingPriceCents),
				centsOrDash(l.AnnualRevenueCents), l.Title)
			fmt.Printf("             %s\n", l.URL)
		}
		return nil
	},
}

func centsOrDash(cents *int64) string {
	if cents == nil {
		return "-"
	}
	return fmt.Sprintf("$%d", *cents/100)
}

func init() {
	listCmd.Flags().IntVar(&listFlags.limit, "limit", 50, "maximum listings to show")
	rootCmd.AddCommand(listCmd)
}
