package backend

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"simon/internal/simerr"
	"simon/internal/task"
)

var jobNameRegex = regexp.MustCompile(`#SBATCH\s+-J\s+([a-zA-Z0-9_-]+)$`)

// Slurm drives compression and requeueing via sbatch/squeue, tracking
// liveness of an in-progress compression by querying squeue for the
// Slurm job id embedded in the .inprogress filename rather than a
// persisted state file.
type Slurm struct {
	CaseDir       string
	JobSfile      string
	JobID         string
	CompressSfile string
	jobName       string
	Log           *logrus.Entry
}

// NewSlurm constructs a Slurm backend, validating that the case
// directory carries both sfile templates and extracting the job name
// from the #SBATCH -J line of jobSfile.
func NewSlurm(caseDir, jobSfile, jobID, compressSfile string, log *logrus.Entry) (*Slurm, error) {
	s := &Slurm{CaseDir: caseDir, JobSfile: jobSfile, JobID: jobID, CompressSfile: compressSfile, Log: log}
	if _, err := os.Stat(filepath.Join(caseDir, jobSfile)); err != nil {
		return nil, simerr.Wrap(simerr.ErrInvalidConfiguration, fmt.Sprintf("%s does not contain %s", caseDir, jobSfile))
	}
	if _, err := os.Stat(filepath.Join(caseDir, compressSfile)); err != nil {
		return nil, simerr.Wrap(simerr.ErrInvalidConfiguration, fmt.Sprintf("%s does not contain %s", caseDir, compressSfile))
	}
	name, err := s.readJobName()
	if err != nil {
		return nil, err
	}
	s.jobName = name
	return s, nil
}

func (s *Slurm) readJobName() (string, error) {
	f, err := os.Open(filepath.Join(s.CaseDir, s.JobSfile))
	if err != nil {
		return "", simerr.Wrap(simerr.ErrBackendUnavailable, "reading sfile")
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := jobNameRegex.FindStringSubmatch(scanner.Text()); m != nil {
			return m[1], nil
		}
	}
	return "", simerr.Wrap(simerr.ErrBackendUnavailable, "unable to find job name")
}

// jobStatus returns the squeue state for jobID, or "JOB_NOT_FOUND" if
// it is not currently known to the scheduler.
func (s *Slurm) jobStatus(ctx context.Context, jobID string) (string, error) {
	command := fmt.Sprintf("squeue --me --jobs=%s -o '%%i %%j %%T'", jobID)
	// task.Task discards stdout by design, so the squeue probe shells
	// out directly rather than going through the scheduler's Task type.
	out, err := captureOutput(ctx, command)
	if err != nil {
		return "", simerr.Wrap(simerr.ErrBackendUnavailable, "querying squeue")
	}
	lines := nonEmptyLines(out)
	if len(lines) == 1 {
		return "JOB_NOT_FOUND", nil
	}
	if len(lines) < 1 || len(lines) > 2 {
		return "", simerr.Wrap(simerr.ErrBackendUnavailable, fmt.Sprintf("got something weird back from squeue:\n%s", out))
	}
	fields := strings.Fields(lines[1])
	if len(fields) < 3 {
		return "", simerr.Wrap(simerr.ErrBackendUnavailable, fmt.Sprintf("got something weird back from squeue:\n%s", out))
	}
	return fields[2], nil
}

// RequeueJob re-validates the job name is unchanged then submits a
// successor run with an afterany dependency on the current job.
func (s *Slurm) RequeueJob(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(s.CaseDir, s.JobSfile)); err != nil {
		return simerr.Wrap(simerr.ErrBackendUnavailable, fmt.Sprintf("sfile %s does not exist", s.JobSfile))
	}
	name, err := s.readJobName()
	if err != nil {
		return err
	}
	if name != s.jobName {
		return simerr.Wrap(simerr.ErrBackendUnavailable, fmt.Sprintf("job name in sfile %s does not match %s this was started with", name, s.jobName))
	}
	command := fmt.Sprintf(
		"cd %s && sbatch --parsable -d afterany:%s %s",
		s.CaseDir, s.JobID, s.JobSfile,
	)
	t := task.New(command, 0, "requeue", nil)
	return t.RunAndWait(ctx)
}

// Compress copies the compress-sfile template, appends the fill-in
// compress command, and submits it with sbatch. Liveness of an
// in-progress group is checked via squeue rather than a state file.
func (s *Slurm) Compress(ctx context.Context, archiveName string, files []string) error {
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
		if _, err := os.Stat(filepath.Join(s.CaseDir, f)); err != nil {
			return simerr.Wrap(simerr.ErrNotFound, fmt.Sprintf("file %s not found", f))
		}
	}
	if _, err := os.Stat(filepath.Join(s.CaseDir, s.CompressSfile)); err != nil {
		return simerr.Wrap(simerr.ErrBackendUnavailable, fmt.Sprintf("sfile %s does not exist", s.CompressSfile))
	}

	archivePath := filepath.Join(s.CaseDir, archiveName)
	if _, err := os.Stat(archivePath + ".queued"); err == nil {
		return nil
	}
	matches, _ := filepath.Glob(archivePath + ".inprogress.*")
	for _, m := range matches {
		parts := strings.Split(filepath.Base(m), ".")
		jobID := parts[len(parts)-1]
		status, err := s.jobStatus(ctx, jobID)
		if err == nil && status != "JOB_NOT_FOUND" {
			return nil
		}
	}
	if _, err := os.Stat(archivePath); err == nil {
		return nil
	}

	filledSfile := s.CompressSfile + ".filled"
	filledPath := filepath.Join(s.CaseDir, filledSfile)
	contents, err := os.ReadFile(filepath.Join(s.CaseDir, s.CompressSfile))
	if err != nil {
		return simerr.Wrap(simerr.ErrBackendUnavailable, "reading compress sfile template")
	}
	compressCmd := slurmCompressCommand(archiveName, files)
	contents = append(contents, []byte("\n\n"+compressCmd)...)
	if err := os.WriteFile(filledPath, contents, 0o644); err != nil {
		return simerr.Wrap(simerr.ErrBackendUnavailable, "writing filled compress sfile")
	}
	defer os.Remove(filledPath)

	command := fmt.Sprintf(
		"cd %s && touch %s.queued && sbatch %s",
		s.CaseDir, archiveName, filledSfile,
	)
	t := task.New(command, 0, "compress "+archiveName, nil)
	return t.RunAndWait(ctx)
}

func slurmCompressCommand(archiveName string, files []string) string {
	tarCmd := fmt.Sprintf("tar -czvf %s.inprogress.$SLURM_JOB_ID", archiveName)
	for _, f := range files {
		tarCmd += " " + f
	}
	commands := []string{
		fmt.Sprintf("mv %s.queued %s.inprogress.$SLURM_JOB_ID", archiveName, archiveName),
		tarCmd,
		fmt.Sprintf("mv %s.inprogress.$SLURM_JOB_ID %s", archiveName, archiveName),
		fmt.Sprintf("echo Done compressing %s!", archiveName),
	}
	return strings.Join(commands, " && ")
}
