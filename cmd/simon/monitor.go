package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"simon/internal/app"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the indefinite driver loop against the case directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		log, err := buildLogger(cfg)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		err = app.Run(ctx, app.ModeMonitor, *cfg, log)
		if err == context.Canceled {
			log.Info("shutting down on signal")
			return nil
		}
		return err
	},
}
