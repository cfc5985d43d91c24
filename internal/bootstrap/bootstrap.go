// Package bootstrap provides first-run convenience: detecting a
// missing configuration file and writing a fully-commented sample in
// its place, so a required field is never silently defaulted.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"simon/internal/simerr"
)

const sampleConfig = `# simon configuration file.
# All paths are relative to the case directory unless stated otherwise.

[general]
case_dir = "."
backend = "local" # local | slurm
requeue = true
watch_fs = true

[taskqueue]
num_simultaneous_tasks = 4
sleep_time_per_update = "2s"
recheck_every_num_updates = 1

[openfoam]
keep_every = "0.0001"
compress_every = "0.01"

[local]

[slurm]
job_sfile = "case.sbatch"
job_id = ""
compress_sfile = "compress.sbatch.template"

[log]
log_dir = ""
level = "info"
max_size_mb = 100
max_age_days = 14
max_backups = 5
`

// ConfigFilename is the name of the config file written into a
// manager's config directory.
const ConfigFilename = "config.toml"

// ConfigExists reports whether configDir already carries a config
// file.
func ConfigExists(configDir string) bool {
	_, err := os.Stat(GetConfigPath(configDir))
	return err == nil
}

// GetConfigPath returns the full path to the config file within
// configDir.
func GetConfigPath(configDir string) string {
	return filepath.Join(configDir, ConfigFilename)
}

// GetDefaultConfigDir returns the default config directory based on
// the executable's location.
func GetDefaultConfigDir(exeDir string) string {
	return filepath.Join(exeDir, "configs")
}

// WriteSample writes a fully-commented sample config file to
// configDir if one is not already present. The write is atomic
// (temp-file-then-rename via renameio) so a crash mid-write never
// leaves a half-written config file that EnsureConfig would
// mistake for a real one.
func WriteSample(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return simerr.Wrap(simerr.ErrInvalidConfiguration, fmt.Sprintf("creating config directory: %v", err))
	}
	if ConfigExists(configDir) {
		return nil
	}
	if err := renameio.WriteFile(GetConfigPath(configDir), []byte(sampleConfig), 0o644); err != nil {
		return simerr.Wrap(simerr.ErrInvalidConfiguration, fmt.Sprintf("writing sample config: %v", err))
	}
	return nil
}

// EnsureConfig checks whether configDir already has a config file
// and, if not, writes a sample and reports that the caller should
// stop and let the operator fill it in.
func EnsureConfig(configDir string) (exists bool, err error) {
	if ConfigExists(configDir) {
		return true, nil
	}
	if err := WriteSample(configDir); err != nil {
		return false, err
	}
	return false, nil
}
