package main

import (
	"fmt"
	"os"
	"yorae/internal/logger"
	"yorae/internal/service/photo"

	"github.com/spf13/cobra"
)

var normalizeOut string

var normalizeCmd = &cobra.Command{
	Use:   "normalize IN",
	Short: "Shrink and re-encode a photo the way captured stills are stored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewWithWriter(cmd.ErrOrStderr())

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		out := photo.NewNormalizer(cfg.NormalizeMaxWidth, cfg.NormalizeQuality, log).Normalize(data)
		if err := os.WriteFile(normalizeOut, out, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", normalizeOut, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d -> %d bytes)\n", normalizeOut, len(data), len(out))
		return nil
	},
}

func init() {
	normalizeCmd.Flags().StringVarP(&normalizeOut, "out", "o", "normalized.jpg", "Output file")
}
