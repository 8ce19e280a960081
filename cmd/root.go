package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"bizfinder/config"
	"bizfinder/logger"
)

var (
	cfg       *config.Config
	debugMode bool
)

var rootCmd = &cobra.Command{
	Use:   "bizfinder",
	Short: "Find small online businesses for sale",
	Long: `bizfinder scrapes business-for-sale marketplaces (Flippa, Acquire.com,
Microns.io), filters listings against revenue, price, category and country
rules, and stores the survivors in a local SQLite database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debugMode {
			os.Setenv("LOG_LEVEL", "debug")
		}
		logger.Init()
		cfg = config.LoadConfig()
		return cfg.Validate()
	},
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
}
