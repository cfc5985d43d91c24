package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"simon/internal/app"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Clean up incomplete artifacts and quiesce the case directory, then exit",
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
		return app.Run(ctx, app.ModeSetup, *cfg, log)
	},
}
