// Package task implements the runnable unit the scheduler drives: a
// shell command paired with a priority and a completion check.
package task

import (
	"bytes"
	"context"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Outcome is the tri-state result of a Task once it has completed.
type Outcome int

const (
	// Unknown means the task has not completed yet.
	Unknown Outcome = iota
	// Success means the task completed with exit code 0, or completed
	// by its completion predicate without ever spawning a process.
	Success
	// Failure means the spawned process exited non-zero.
	Failure
)

// CompletionCheck is an additional, process-independent way for a Task
// to report itself as already done (e.g. because its commit point file
// already exists on disk from a previous run).
type CompletionCheck func() bool

// Task is a single external command the scheduler may run. A zero Task
// is not usable; construct with New.
type Task struct {
	Command  string
	Priority int
	Label    string

	check CompletionCheck

	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool

	exited   atomic.Bool
	exitCode atomic.Int32 // -1 until set
	done     chan struct{}
	stderr   bytes.Buffer
	stderrMu sync.Mutex
}

// New constructs a Task. check may be nil, in which case completion is
// determined solely by whether a spawned process has exited.
func New(command string, priority int, label string, check CompletionCheck) *Task {
	t := &Task{
		Command:  command,
		Priority: priority,
		Label:    label,
		check:    check,
		done:     make(chan struct{}),
	}
	t.exitCode.Store(-1)
	return t
}

// Equal compares tasks by command string only, matching the identity
// rule the scheduler's bookkeeping sets rely on.
func (t *Task) Equal(other *Task) bool {
	if other == nil {
		return false
	}
	return t.Command == other.Command
}

func (t *Task) String() string {
	if t.Label != "" {
		return "[Task: " + t.Label + "]"
	}
	return "[Task: " + t.Command + "]"
}

// Run spawns the command as a detached child process and returns
// immediately; a background goroutine reaps it so IsComplete and
// WasSuccessful never block. No-op if the task is already complete.
func (t *Task) Run(ctx context.Context) error {
	if t.IsComplete() {
		return nil
	}
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	cmd := exec.Command("sh", "-c", t.Command)
	cmd.Stdout = nil
	cmd.Stderr = &boundedWriter{buf: &t.stderr, mu: &t.stderrMu, limit: 64 * 1024}
	t.cmd = cmd
	t.mu.Unlock()

	if err := cmd.Start(); err != nil {
		t.exitCode.Store(1)
		t.exited.Store(true)
		close(t.done)
		return err
	}
	go func() {
		err := cmd.Wait()
		code := int32(0)
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = int32(exitErr.ExitCode())
			} else {
				code = 1
			}
		}
		t.exitCode.Store(code)
		t.exited.Store(true)
		close(t.done)
	}()
	return nil
}

// RunAndWait spawns the command (if not already complete) and blocks
// until it exits or ctx is cancelled.
func (t *Task) RunAndWait(ctx context.Context) error {
	if t.IsComplete() {
		return nil
	}
	if err := t.Run(ctx); err != nil {
		return err
	}
	t.mu.Lock()
	cmd := t.cmd
	done := t.done
	t.mu.Unlock()
	if cmd == nil {
		return nil
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}

// IsComplete reports whether the task is done, either because its
// completion predicate says so or because a spawned process has
// exited.
func (t *Task) IsComplete() bool {
	if t.check != nil && t.check() {
		return true
	}
	return t.exited.Load()
}

// WasSuccessful reports the tri-state outcome of the task.
func (t *Task) WasSuccessful() Outcome {
	if !t.IsComplete() {
		return Unknown
	}
	t.mu.Lock()
	spawned := t.cmd != nil
	t.mu.Unlock()
	if !spawned {
		// Completed via the predicate alone, never spawned a process.
		return Success
	}
	if t.exitCode.Load() == 0 {
		return Success
	}
	return Failure
}

// LogFailure writes the captured stderr to the given logger at warn
// level; intended to be called once a failed task has been observed by
// the scheduler so the operator has something to act on.
func (t *Task) LogFailure(log *logrus.Entry) {
	t.stderrMu.Lock()
	out := t.stderr.String()
	t.stderrMu.Unlock()
	log.WithField("task", t.String()).WithField("stderr", out).Warn("task exited non-zero")
}

type boundedWriter struct {
	buf   *bytes.Buffer
	mu    *sync.Mutex
	limit int
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() >= w.limit {
		return len(p), nil
	}
	remaining := w.limit - w.buf.Len()
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
	} else {
		w.buf.Write(p)
	}
	return len(p), nil
}
