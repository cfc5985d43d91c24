// Package app wires a loaded AppConfig into a FileState, Listener,
// TaskQueue, and Driver, and runs the requested mode.
package app

import (
	"context"
	"fmt"

	"simon/internal/backend"
	"simon/internal/decimalx"
	"simon/internal/driver"
	"simon/internal/logging"
	"simon/internal/openfoam"
	"simon/internal/queue"
	"simon/internal/types"
)

// Mode selects which of the Driver's two run modes app.Run drives.
type Mode int

const (
	// ModeSetup runs the one-shot cleanup-and-quiesce pass.
	ModeSetup Mode = iota
	// ModeMonitor runs the indefinite polling loop.
	ModeMonitor
)

// Run constructs the full pipeline described by cfg and drives it in
// the requested mode. It returns once the mode completes (Setup) or
// ctx is cancelled (Monitor).
func Run(ctx context.Context, mode Mode, cfg types.AppConfig, log *logging.Logger) error {
	state, err := openfoam.New(cfg.CaseDir)
	if err != nil {
		return err
	}
	state.ScanConcurrency = cfg.NumSimultaneousTasks

	keepEvery, err := decimalx.Parse(cfg.KeepEvery)
	if err != nil {
		return fmt.Errorf("keep_every: %w", err)
	}
	compressEvery, err := decimalx.Parse(cfg.CompressEvery)
	if err != nil {
		return fmt.Errorf("compress_every: %w", err)
	}

	jobBackend, err := buildBackend(cfg, log)
	if err != nil {
		return err
	}

	listener, err := openfoam.NewListener(state, keepEvery, compressEvery, jobBackend, cfg.Requeue, log.Entry())
	if err != nil {
		return err
	}

	taskQueue := queue.New(cfg.NumSimultaneousTasks, log.Entry())

	d := &driver.Driver{
		Listener:               listener,
		Queue:                  taskQueue,
		SleepTimePerUpdate:     cfg.SleepTimePerUpdate,
		RecheckEveryNumUpdates: cfg.RecheckEveryNumUpdates,
		CaseDir:                cfg.CaseDir,
		WatchFS:                cfg.WatchFS,
		Log:                    log.Entry(),
	}

	switch mode {
	case ModeSetup:
		log.Info("running setup: cleaning up incomplete artifacts and quiescing case directory")
		if err := d.Setup(ctx); err != nil {
			return err
		}
		log.Success("setup complete; case directory is ready to restart")
		return nil
	case ModeMonitor:
		log.Info("starting monitor loop")
		return d.Monitor(ctx)
	default:
		return fmt.Errorf("unknown run mode %d", mode)
	}
}

func buildBackend(cfg types.AppConfig, log *logging.Logger) (backend.Backend, error) {
	switch cfg.Backend {
	case "", "local":
		return backend.NewLocal(cfg.CaseDir, log.Entry()), nil
	case "slurm":
		return backend.NewSlurm(cfg.CaseDir, cfg.JobSfile, cfg.JobID, cfg.CompressSfile, log.Entry())
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
