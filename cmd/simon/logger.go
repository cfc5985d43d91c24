package main

import (
	"simon/internal/logging"
	"simon/internal/types"
)

func buildLogger(cfg *types.AppConfig) (*logging.Logger, error) {
	return logging.New(cfg.LogSettings)
}
