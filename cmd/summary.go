package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"bizfinder/services/store"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show stored listing counts per source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		summaries, err := st.Summary(context.Background())
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("no listings stored yet")
			return nil
		}

		fmt.Printf("%-10s %7s %7s %6s %8s  %s\n", "source", "total", "active", "sold", "new 24h", "last seen")
		for _, s := range summaries {
			fmt.Printf("%-10s %7d %7d %6d %8d  %s\n",
				s.SourceID, s.Total, s.Active, s.Sold, s.NewLast24h, s.LastSeenAt)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}
