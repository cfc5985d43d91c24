package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"simon/internal/bootstrap"
	"simon/internal/config"
	"simon/internal/types"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or bootstrap the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented sample configuration file if none exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := configDirFromFile(configFile)
		existed := bootstrap.ConfigExists(dir)
		if err := bootstrap.WriteSample(dir); err != nil {
			return err
		}
		if existed {
			fmt.Printf("Configuration already exists at %s\n", bootstrap.GetConfigPath(dir))
		} else {
			fmt.Printf("Wrote sample configuration to %s. Edit it before running setup or monitor.\n", bootstrap.GetConfigPath(dir))
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}

func configDirFromFile(path string) string {
	if path == "" {
		return "."
	}
	return filepath.Dir(path)
}

// resolveConfig loads the config file (if present) then overlays any
// CLI flags the user explicitly set, matching viper's usual
// flag-overrides-file precedence without relying on BindPFlags' flat
// key-name matching against our nested TOML sections.
func resolveConfig(cmd *cobra.Command) (*types.AppConfig, error) {
	path := configFile
	if !bootstrap.ConfigExists(configDirFromFile(path)) {
		path = ""
	}
	cfg, err := config.Load(path, nil)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("case-dir") {
		cfg.CaseDir = caseDir
	}
	if flags.Changed("keep-every") {
		cfg.KeepEvery = keepEvery
	}
	if flags.Changed("compress-every") {
		cfg.CompressEvery = compressEvery
	}
	if flags.Changed("num-simultaneous-tasks") {
		cfg.NumSimultaneousTasks = numSimultaneousTasks
	}
	if flags.Changed("sleep-time-per-update") {
		d, err := time.ParseDuration(sleepTimePerUpdate)
		if err != nil {
			return nil, fmt.Errorf("--sleep-time-per-update: %w", err)
		}
		cfg.SleepTimePerUpdate = d
	}
	if flags.Changed("recheck-every-num-updates") {
		cfg.RecheckEveryNumUpdates = recheckEveryNumUpdates
	}
	if flags.Changed("backend") {
		cfg.Backend = backendName
	}
	if flags.Changed("requeue") {
		cfg.Requeue = requeue
	}

	if cfg.CaseDir == "" {
		return nil, fmt.Errorf("--case-dir is required")
	}
	if cfg.KeepEvery == "" {
		return nil, fmt.Errorf("--keep-every is required")
	}
	if cfg.CompressEvery == "" {
		return nil, fmt.Errorf("--compress-every is required")
	}
	if cfg.NumSimultaneousTasks <= 0 {
		cfg.NumSimultaneousTasks = 4
	}
	if cfg.SleepTimePerUpdate <= 0 {
		cfg.SleepTimePerUpdate = 2 * time.Second
	}

	return cfg, nil
}
