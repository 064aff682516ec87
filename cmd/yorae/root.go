package main

import (
	"yorae/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "yorae",
	Short: "Before/after cleaning photo comparison",
	Long: `Yorae captures a "before" photo, times the cleaning, captures an "after"
photo and merges both into one labelled comparison image.

  yorae serve                                  # run the app server
  yorae compose before.jpg after.jpg -m 15     # merge two photos offline
  yorae normalize photo.jpg -o small.jpg       # shrink and re-encode one photo`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(serveCmd, composeCmd, normalizeCmd)
}
