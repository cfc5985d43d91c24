// Package config loads the manager's settings from a TOML file
// through viper, with CLI flags and environment variables layered on
// top in viper's usual precedence order (flag > env > file > default).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"simon/internal/simerr"
	"simon/internal/types"
)

// FileConfig mirrors the TOML sections one-for-one: [general],
// [taskqueue], [openfoam], [local], [slurm].
type FileConfig struct {
	General   GeneralSection   `mapstructure:"general"`
	TaskQueue TaskQueueSection `mapstructure:"taskqueue"`
	OpenFOAM  OpenFOAMSection  `mapstructure:"openfoam"`
	Local     LocalSection     `mapstructure:"local"`
	Slurm     SlurmSection     `mapstructure:"slurm"`
	Log       LogSection       `mapstructure:"log"`
}

// GeneralSection holds the manager's identity: which case directory
// it drives and which backend it drives jobs through.
type GeneralSection struct {
	CaseDir string `mapstructure:"case_dir"`
	Backend string `mapstructure:"backend"`
	Requeue bool   `mapstructure:"requeue"`
	WatchFS bool   `mapstructure:"watch_fs"`
}

// TaskQueueSection controls the scheduler's pacing and concurrency.
type TaskQueueSection struct {
	NumSimultaneousTasks   int    `mapstructure:"num_simultaneous_tasks"`
	SleepTimePerUpdate     string `mapstructure:"sleep_time_per_update"`
	RecheckEveryNumUpdates int    `mapstructure:"recheck_every_num_updates"`
}

// OpenFOAMSection controls the keep/compress cadence.
type OpenFOAMSection struct {
	KeepEvery     string `mapstructure:"keep_every"`
	CompressEvery string `mapstructure:"compress_every"`
}

// LocalSection is empty today; reserved for future local-backend
// knobs (e.g. an explicit shell path) and kept so [local] round-trips
// through the sample config even though it currently carries no
// fields of its own.
type LocalSection struct{}

// SlurmSection is only consulted when general.backend = "slurm".
type SlurmSection struct {
	JobSfile      string `mapstructure:"job_sfile"`
	JobID         string `mapstructure:"job_id"`
	CompressSfile string `mapstructure:"compress_sfile"`
}

// LogSection configures the logger.
type LogSection struct {
	LogDir     string `mapstructure:"log_dir"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Load reads path (a TOML file) through viper, layers environment
// variables (SIMON_ prefix, "." replaced with "_") and the given CLI
// flag set on top, applies defaults for anything left unset, and
// returns the fully merged AppConfig.
func Load(path string, flags *pflag.FlagSet) (*types.AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, simerr.Wrap(simerr.ErrInvalidConfiguration, fmt.Sprintf("reading config file %s: %v", path, err))
		}
	}

	v.SetEnvPrefix("simon")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, simerr.Wrap(simerr.ErrInvalidConfiguration, fmt.Sprintf("binding flags: %v", err))
		}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, simerr.Wrap(simerr.ErrInvalidConfiguration, fmt.Sprintf("unmarshal config: %v", err))
	}

	return toAppConfig(v, fc)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.backend", "local")
	v.SetDefault("general.requeue", true)
	v.SetDefault("general.watch_fs", true)
	v.SetDefault("taskqueue.num_simultaneous_tasks", 4)
	v.SetDefault("taskqueue.sleep_time_per_update", "2s")
	v.SetDefault("taskqueue.recheck_every_num_updates", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("log.max_backups", 5)
}

func toAppConfig(v *viper.Viper, fc FileConfig) (*types.AppConfig, error) {
	sleep := v.GetDuration("taskqueue.sleep_time_per_update")

	cfg := &types.AppConfig{
		CaseDir:                fc.General.CaseDir,
		KeepEvery:              fc.OpenFOAM.KeepEvery,
		CompressEvery:          fc.OpenFOAM.CompressEvery,
		NumSimultaneousTasks:   fc.TaskQueue.NumSimultaneousTasks,
		SleepTimePerUpdate:     sleep,
		RecheckEveryNumUpdates: fc.TaskQueue.RecheckEveryNumUpdates,
		Requeue:                fc.General.Requeue,
		Backend:                fc.General.Backend,
		JobSfile:               fc.Slurm.JobSfile,
		JobID:                  fc.Slurm.JobID,
		CompressSfile:          fc.Slurm.CompressSfile,
		WatchFS:                fc.General.WatchFS,
		LogSettings: types.LogSettings{
			LogDir:     fc.Log.LogDir,
			Level:      fc.Log.Level,
			MaxSizeMB:  fc.Log.MaxSizeMB,
			MaxAgeDays: fc.Log.MaxAgeDays,
			MaxBackups: fc.Log.MaxBackups,
		},
	}
	if cfg.Backend != "local" && cfg.Backend != "slurm" {
		return nil, simerr.Wrap(simerr.ErrInvalidConfiguration, fmt.Sprintf("unknown backend %q", cfg.Backend))
	}
	return cfg, nil
}
