package types

import "time"

// AppConfig is the central configuration object for the application.
//
// It is constructed once in main(), passed through app.Run(), and then
// shared with the driver. Treat it as read-only after creation.
type AppConfig struct {
	// CaseDir is the OpenFOAM-style working directory this manager
	// drives: it must contain constant/, system/, and processor0/.
	CaseDir string

	// KeepEvery and CompressEvery are exact decimal strings (not
	// floats) giving the timestep-keep interval and the
	// compressed-group span. CompressEvery must be a strict positive
	// multiple of KeepEvery.
	KeepEvery     string
	CompressEvery string

	// NumSimultaneousTasks bounds how many external processes the
	// TaskQueue runs concurrently.
	NumSimultaneousTasks int

	// SleepTimePerUpdate is how long the monitor loop sleeps between
	// TaskQueue.Update() calls.
	SleepTimePerUpdate time.Duration

	// RecheckEveryNumUpdates is how many Update() cycles pass between
	// Listener.Plan() calls. 0 disables periodic re-planning (monitor
	// then behaves like a one-shot drain, matching setup semantics).
	RecheckEveryNumUpdates int

	// Requeue controls whether the Listener asks the backend to queue
	// a successor run of the producing job the first time it emits a
	// Reconstruct task.
	Requeue bool

	// Backend selects which JobBackend implementation drives requeue
	// and compression: "local" or "slurm".
	Backend string

	// JobSfile, JobID, and CompressSfile are only meaningful for the
	// slurm backend: the producing job's submission script, its job
	// id, and the compression job template.
	JobSfile      string
	JobID         string
	CompressSfile string

	// ConfigDir is the directory containing the TOML configuration
	// file and any backend sfile templates. Typically defaults to
	// "<exeDir>/configs".
	ConfigDir string

	// LogSettings controls logging behavior (file vs stdout, log
	// directory, rotation).
	LogSettings LogSettings

	// WatchFS enables the fsnotify fast-path nudge on the monitor
	// loop's working directory.
	WatchFS bool
}

// LogSettings controls where and how the logger writes.
type LogSettings struct {
	// LogDir is the directory log files are written to. Empty means
	// the console (stderr) only; when set, logs go to the file only.
	LogDir string

	// Level is the minimum logrus level name ("debug", "info",
	// "warn", "error").
	Level string

	// MaxSizeMB, MaxAgeDays, and MaxBackups configure lumberjack
	// rotation of the on-disk log file.
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}
