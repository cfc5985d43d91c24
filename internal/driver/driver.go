// Package driver implements the two run modes that alternate
// Listener.Plan() with TaskQueue draining: a one-shot setup mode and
// an indefinite monitor loop.
package driver

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"simon/internal/openfoam"
	"simon/internal/queue"
	"simon/internal/verify"
)

// Driver wires a Listener to a TaskQueue and drives them per the
// configured pacing.
type Driver struct {
	Listener               *openfoam.Listener
	Queue                  *queue.TaskQueue
	SleepTimePerUpdate     time.Duration
	RecheckEveryNumUpdates int
	CaseDir                string
	WatchFS                bool
	Log                    *logrus.Entry

	verified map[string]struct{}
}

// Setup runs the cleanup protocol to completion, then restores the
// case directory to a restartable state. It blocks until cleanup work
// finishes or ctx is cancelled.
func (d *Driver) Setup(ctx context.Context) error {
	cleanupQueue := queue.New(d.Queue.Capacity, d.Log)
	tasks := d.Listener.CleanupTasks(ctx)
	if err := cleanupQueue.Add(ctx, tasks...); err != nil {
		return err
	}
	for cleanupQueue.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.SleepTimePerUpdate):
		}
		if err := cleanupQueue.Update(ctx); err != nil {
			return err
		}
	}
	return d.Listener.EnsureCaseCorrectness(ctx)
}

// Monitor runs the indefinite poll loop: Update the task queue, sleep,
// and every RecheckEveryNumUpdates cycles re-plan and enqueue new
// work. An optional fsnotify watch on the case directory pulls the
// next Plan() forward as soon as a commit-point file appears, without
// changing the poll loop's role as the source of truth. If periodic
// re-planning is disabled (RecheckEveryNumUpdates == 0), Monitor
// behaves like Setup once the queue drains: there is no other way for
// it to discover more work, so it returns rather than looping forever.
func (d *Driver) Monitor(ctx context.Context) error {
	var watcher *fsnotify.Watcher
	if d.WatchFS {
		w, err := fsnotify.NewWatcher()
		if err == nil {
			if err := w.Add(d.CaseDir); err == nil {
				watcher = w
				defer watcher.Close()
			} else {
				w.Close()
				d.Log.WithError(err).Warn("fsnotify watch unavailable, falling back to pure polling")
			}
		} else {
			d.Log.WithError(err).Warn("fsnotify watcher unavailable, falling back to pure polling")
		}
	}

	if err := d.Queue.Add(ctx, d.Listener.Plan(ctx)...); err != nil {
		return err
	}

	updates := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := d.Queue.Update(ctx); err != nil {
			return err
		}
		updates++

		if d.RecheckEveryNumUpdates > 0 && updates%d.RecheckEveryNumUpdates == 0 {
			if err := d.Queue.Add(ctx, d.Listener.Plan(ctx)...); err != nil {
				return err
			}
		}

		d.verifyNewArchives()

		// With periodic re-planning disabled, the monitor has no way to
		// discover more work once the queue drains; behave like setup
		// and return rather than spinning on an empty queue forever.
		if d.RecheckEveryNumUpdates == 0 && d.Queue.Len() == 0 {
			return nil
		}

		if err := d.waitForNextCycle(ctx, watcher); err != nil {
			return err
		}
	}
}

// verifyNewArchives runs a best-effort, read-only integrity check over
// every sealed .tar/.tgz commit point not yet checked this process
// lifetime. A failure is logged and never blocks or fails the monitor
// loop; see internal/verify for the safety rationale.
func (d *Driver) verifyNewArchives() {
	if d.verified == nil {
		d.verified = make(map[string]struct{})
	}

	tars, _ := filepath.Glob(filepath.Join(d.CaseDir, "*.tar"))
	for _, path := range tars {
		if _, done := d.verified[path]; done {
			continue
		}
		d.verified[path] = struct{}{}
		if err := verify.Tar(path); err != nil {
			d.Log.WithField("archive", path).WithError(err).Warn("archive verification failed")
		}
	}

	groups, _ := filepath.Glob(filepath.Join(d.CaseDir, "times_*.tgz"))
	for _, path := range groups {
		if _, done := d.verified[path]; done {
			continue
		}
		d.verified[path] = struct{}{}
		if err := verify.Tgz(path); err != nil {
			d.Log.WithField("archive", path).WithError(err).Warn("archive verification failed")
		}
	}
}

func (d *Driver) waitForNextCycle(ctx context.Context, watcher *fsnotify.Watcher) error {
	timer := time.NewTimer(d.SleepTimePerUpdate)
	defer timer.Stop()

	if watcher == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case event, ok := <-watcher.Events:
			if ok && isCommitPointEvent(event) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if ok {
				d.Log.WithError(err).Warn("fsnotify watcher error")
			}
		}
	}
}

// isCommitPointEvent reports whether an fsnotify event plausibly
// corresponds to one of the pipeline's commit points, so the monitor
// loop doesn't wake up early for every unrelated write.
func isCommitPointEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := event.Name
	return hasAnySuffix(name, ".tar", ".tgz", openfoam.ReconstructionDoneMarker)
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if len(s) >= len(suf) && s[len(s)-len(suf):] == suf {
			return true
		}
	}
	return false
}
