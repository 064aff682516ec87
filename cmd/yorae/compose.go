package main

import (
	"fmt"
	"os"
	"time"
	"yorae/internal/logger"
	"yorae/internal/service/photo"

	"github.com/spf13/cobra"
)

var (
	composeMinutes int
	composeOut     string
	composeAt      string
)

var composeCmd = &cobra.Command{
	Use:   "compose BEFORE AFTER",
	Short: "Merge a before and an after photo into one comparison image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewWithWriter(cmd.ErrOrStderr())

		before, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read before photo: %w", err)
		}
		after, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read after photo: %w", err)
		}

		at := time.Now()
		if composeAt != "" {
			if at, err = time.ParseInLocation("2006-01-02 15:04", composeAt, time.Local); err != nil {
				return fmt.Errorf("invalid --at value: %w", err)
			}
		}

		normalizer := photo.NewNormalizer(cfg.NormalizeMaxWidth, cfg.NormalizeQuality, log)
		compositor := photo.NewCompositor(photo.CompositorOptions{
			Target:   cfg.CompositeTarget,
			Quality:  cfg.CompositeQuality,
			Locale:   cfg.LabelLocale,
			Rounded:  cfg.LabelRounded,
			FontPath: cfg.FontPath,
		}, log)

		minutes := max(composeMinutes, cfg.MinDurationMinutes, 0)
		merged, err := compositor.CompositeAt(normalizer.Normalize(before), normalizer.Normalize(after), minutes, at)
		if err != nil {
			return err
		}

		if err := os.WriteFile(composeOut, merged, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", composeOut, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", composeOut, compositor.LabelText(at, minutes))
		return nil
	},
}

func init() {
	composeCmd.Flags().IntVarP(&composeMinutes, "minutes", "m", 0, "Cleaning duration shown on the label")
	composeCmd.Flags().StringVarP(&composeOut, "out", "o", "yorae_result.jpg", "Output file")
	composeCmd.Flags().StringVar(&composeAt, "at", "", `Label timestamp as "YYYY-MM-DD HH:MM" (default now)`)
}
