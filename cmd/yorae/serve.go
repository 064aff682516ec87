package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"yorae/internal/app"

	"github.com/spf13/cobra"
)

var (
	servePort int
	serveDB   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the app server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}
		if cmd.Flags().Changed("db") {
			cfg.DatabasePath = serveDB
		}

		application, err := app.NewApp(cfg, verbose)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return application.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "HTTP port (overrides PORT)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "SQLite database path (overrides DB_PATH)")
}
