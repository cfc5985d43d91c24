package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"simon/internal/simerr"
	"simon/internal/task"
)

// Local drives compression on the same host the manager runs on,
// tracking liveness of an in-progress compression by PID rather than a
// persisted state file.
type Local struct {
	CaseDir string
	Log     *logrus.Entry
}

// NewLocal constructs a Local backend rooted at caseDir.
func NewLocal(caseDir string, log *logrus.Entry) *Local {
	return &Local{CaseDir: caseDir, Log: log}
}

// RequeueJob is a no-op: a local run has no external scheduler to
// requeue against.
func (l *Local) RequeueJob(ctx context.Context) error { return nil }

// Compress submits a detached shell script that moves the .queued
// marker to .inprogress.<pid>, tars and gzips the named files, then
// atomically renames the result to archiveName.
func (l *Local) Compress(ctx context.Context, archiveName string, files []string) error {
	if archiveName == "" {
		return simerr.Wrap(simerr.ErrInvalidArgument, "no output archive name specified")
	}
	if strings.ContainsAny(archiveName, " \t") {
		return simerr.Wrap(simerr.ErrInvalidArgument, fmt.Sprintf("no spaces allowed in archive name (%s)", archiveName))
	}
	if len(files) == 0 {
		return simerr.Wrap(simerr.ErrInvalidArgument, "no files to compress")
	}
	for _, f := range files {
		if strings.ContainsAny(f, " \t") {
			return simerr.Wrap(simerr.ErrInvalidArgument, fmt.Sprintf("no spaces allowed in file names (%s)", f))
		}
		if _, err := os.Stat(filepath.Join(l.CaseDir, f)); err != nil {
			return simerr.Wrap(simerr.ErrNotFound, fmt.Sprintf("file %s not found", f))
		}
	}

	archivePath := filepath.Join(l.CaseDir, archiveName)
	if _, err := os.Stat(archivePath); err == nil {
		// Already compressed, nothing to do.
		return nil
	}
	if l.compressIsRunning(archiveName) {
		return nil
	}

	scriptPath := filepath.Join(l.CaseDir, "TEMPORARY__COMPRESS__SCRIPT.sh")
	script := compressCommand(archiveName, files)
	if err := renameio.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
		return simerr.Wrap(simerr.ErrBackendUnavailable, "writing compress script")
	}

	command := fmt.Sprintf(
		"cd %s && touch %s.queued && sh %s &",
		l.CaseDir, archiveName, scriptPath,
	)
	t := task.New(command, 0, "compress "+archiveName, nil)
	if err := t.RunAndWait(ctx); err != nil {
		return simerr.Wrap(simerr.ErrBackendUnavailable, "submitting compress task")
	}
	return nil
}

// compressCommand builds the tar+gzip pipeline with $$ standing in for
// the shell's own PID, used as the backend-unique id embedded in the
// .inprogress filename.
func compressCommand(archiveName string, files []string) string {
	tarCmd := fmt.Sprintf("tar -czvf %s.inprogress.$$", archiveName)
	for _, f := range files {
		tarCmd += " " + f
	}
	commands := []string{
		fmt.Sprintf("mv %s.queued %s.inprogress.$$", archiveName, archiveName),
		tarCmd,
		fmt.Sprintf("mv %s.inprogress.$$ %s", archiveName, archiveName),
		fmt.Sprintf("echo Done compressing %s!", archiveName),
	}
	return strings.Join(commands, " && ")
}

func (l *Local) compressIsRunning(archiveName string) bool {
	queued := filepath.Join(l.CaseDir, archiveName+".queued")
	if _, err := os.Stat(queued); err == nil {
		return true
	}
	matches, _ := filepath.Glob(filepath.Join(l.CaseDir, archiveName+".inprogress.*"))
	for _, m := range matches {
		parts := strings.Split(filepath.Base(m), ".")
		pidStr := parts[len(parts)-1]
		pid, err := strconv.Atoi(pidStr)
		if err != nil {
			continue
		}
		if processAlive(pid) {
			return true
		}
	}
	return false
}

// processAlive sends the null signal to pid, the local equivalent of
// the `ps --pid` liveness check: delivery without error means the
// process still exists.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err != unix.ESRCH
}
