package openfoam

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"simon/internal/backend"
	"simon/internal/decimalx"
	"simon/internal/simerr"
	"simon/internal/task"
)

// Task priorities, lower runs first. DeleteTar is the lowest urgency
// because the tar is the last safe copy of a reconstructed timestep.
const (
	PriorityDelete              = 0
	PriorityTar                 = 1
	PriorityReconstruct         = 2
	PriorityDeleteReconstructed = 0
	PriorityDeleteTar           = 4
)

// Listener plans the Tasks that should run against a FileState
// snapshot. It is stateless with respect to the filesystem but keeps
// in-memory bookkeeping to avoid emitting the same Task twice within
// one process's lifetime; that bookkeeping is not required for
// correctness across restarts since FileState already prevents
// duplicate or unsafe work.
type Listener struct {
	state   *FileState
	backend backend.Backend
	requeue bool
	log     *logrus.Entry

	keepEvery     decimal.Decimal
	compressEvery decimal.Decimal

	requeued bool

	processedSplit         map[string]struct{}
	processedReconstructed map[string]struct{}
	deletedReconstructed   map[string]struct{}
	requestedCompressed    map[string]struct{}
	deletedTarred          map[string]struct{}
}

// NewListener constructs a Listener. compressEvery must be a strict
// positive multiple of keepEvery.
func NewListener(state *FileState, keepEvery, compressEvery decimal.Decimal, backend backend.Backend, requeue bool, log *logrus.Entry) (*Listener, error) {
	if err := verifyFrequencies(keepEvery, compressEvery); err != nil {
		return nil, err
	}
	return &Listener{
		state:                  state,
		backend:                backend,
		requeue:                requeue,
		log:                    log,
		keepEvery:              keepEvery,
		compressEvery:          compressEvery,
		processedSplit:         make(map[string]struct{}),
		processedReconstructed: make(map[string]struct{}),
		deletedReconstructed:   make(map[string]struct{}),
		requestedCompressed:    make(map[string]struct{}),
		deletedTarred:          make(map[string]struct{}),
	}, nil
}

func verifyFrequencies(keepEvery, compressEvery decimal.Decimal) error {
	if keepEvery.IsZero() || keepEvery.IsNegative() {
		return simerr.Wrap(simerr.ErrInvalidConfiguration, "keep_every must be positive")
	}
	if !compressEvery.GreaterThan(keepEvery) || !decimalx.DividesEvenly(compressEvery, keepEvery) {
		return simerr.Wrap(simerr.ErrInvalidConfiguration, fmt.Sprintf("compress_every (%s) should be a strict multiple of keep_every (%s)", compressEvery, keepEvery))
	}
	return nil
}

// SetFrequencies atomically replaces keep_every and compress_every,
// re-validating the pair before committing either.
func (l *Listener) SetFrequencies(keepEvery, compressEvery decimal.Decimal) error {
	if err := verifyFrequencies(keepEvery, compressEvery); err != nil {
		return err
	}
	l.keepEvery = keepEvery
	l.compressEvery = compressEvery
	return nil
}

// Plan runs the four passes over the current filesystem state and
// returns every new Task that should be added to the scheduler. It
// also issues side-band requests to the backend (requeue, compress)
// as a byproduct of Pass A and Pass C.
func (l *Listener) Plan(ctx context.Context) []*task.Task {
	var tasks []*task.Task

	splitTimes := l.state.SplitTimes()
	reconstructedTimes := l.state.ReconstructedTimes()
	tarredTimes := l.state.TarredTimes()

	tasks = append(tasks, l.processSplitTimes(ctx, splitTimes)...)
	tasks = append(tasks, l.processReconstructedTimes(reconstructedTimes, splitTimes)...)
	tasks = append(tasks, l.processTarredTimes(ctx, tarredTimes)...)
	tasks = append(tasks, l.processCompressedCoverage(tarredTimes)...)

	return tasks
}

// processSplitTimes is Pass A: decide, for every split time except the
// one presumed still being written, whether to delete it outright,
// delete it because it has already progressed further, or reconstruct
// it.
func (l *Listener) processSplitTimes(ctx context.Context, splitTimes []string) []*task.Task {
	var tasks []*task.Task
	if len(splitTimes) == 0 {
		return tasks
	}
	for _, t := range splitTimes[:len(splitTimes)-1] {
		if _, done := l.processedSplit[t]; done {
			continue
		}
		kept, err := l.isKept(t)
		if err != nil {
			l.log.WithField("timestep", t).WithError(err).Warn("skipping unparsable split time")
			continue
		}
		switch {
		case !kept:
			tasks = append(tasks, l.deleteSplitTask(t))
			l.processedSplit[t] = struct{}{}
		case l.state.IsReconstructed(t) || l.state.IsTarred(t):
			tasks = append(tasks, l.deleteSplitTask(t))
			l.processedSplit[t] = struct{}{}
		default:
			tasks = append(tasks, l.reconstructTask(t))
			l.processedSplit[t] = struct{}{}
			if l.requeue && !l.requeued {
				if err := l.backend.RequeueJob(ctx); err != nil {
					l.log.WithError(err).Warn("failed to requeue producing job")
				}
				l.requeued = true
			}
		}
	}
	return tasks
}

// isKept applies the keep-divisibility rule: T is kept iff T/keepEvery
// has no fractional component. T="0" is never kept; it is the initial
// condition dump, archived separately.
func (l *Listener) isKept(t string) (bool, error) {
	if t == "0" {
		return false, nil
	}
	tv, err := decimalx.Parse(t)
	if err != nil {
		return false, err
	}
	return decimalx.DividesEvenly(tv, l.keepEvery), nil
}

// processReconstructedTimes is Pass B: tar anything not yet tarred,
// and delete the split copy once the producer has moved past it.
func (l *Listener) processReconstructedTimes(reconstructedTimes, splitTimes []string) []*task.Task {
	var tasks []*task.Task
	var lastSplit string
	if len(splitTimes) > 0 {
		lastSplit = splitTimes[len(splitTimes)-1]
	}
	for _, t := range reconstructedTimes {
		if _, done := l.processedReconstructed[t]; done {
			continue
		}
		if !l.state.IsTarred(t) {
			tasks = append(tasks, l.tarTask(t))
		}
		if lastSplit != "" && t != lastSplit {
			tasks = append(tasks, l.deleteSplitTask(t))
			l.processedReconstructed[t] = struct{}{}
		}
	}
	return tasks
}

// processTarredTimes is Pass C: delete the reconstructed directory now
// that the tar is sealed, and evaluate whether any new compressed
// groups have become complete.
func (l *Listener) processTarredTimes(ctx context.Context, tarredTimes []string) []*task.Task {
	var tasks []*task.Task
	for _, t := range tarredTimes {
		if _, done := l.deletedReconstructed[t]; done {
			continue
		}
		tasks = append(tasks, l.deleteReconstructedTask(t))
		l.deletedReconstructed[t] = struct{}{}
	}
	l.planCompressedGroups(ctx, tarredTimes)
	return tasks
}

// planCompressedGroups implements the grouping algorithm of §4.2.1:
// slide a window of width compress_every across the tarred times and
// request compression for every window that contains exactly
// num_tars_to_compress tars.
func (l *Listener) planCompressedGroups(ctx context.Context, tarredTimes []string) {
	numToCompress := l.compressEvery.Div(l.keepEvery).IntPart()
	if int64(len(tarredTimes)) < numToCompress {
		return
	}

	t0, err := decimalx.Parse(tarredTimes[0])
	if err != nil {
		return
	}
	tN, err := decimalx.Parse(tarredTimes[len(tarredTimes)-1])
	if err != nil {
		return
	}

	iStart := int64(math.Floor(t0.Div(l.compressEvery).InexactFloat64()))
	iEnd := int64(math.Ceil(tN.Div(l.compressEvery).InexactFloat64()))

	i := iStart
	ts := l.compressEvery.Mul(decimal.NewFromInt(i))
	te := ts.Add(l.compressEvery)
	var candidate []string

	advance := func() {
		i++
		ts = l.compressEvery.Mul(decimal.NewFromInt(i))
		te = ts.Add(l.compressEvery)
		candidate = nil
	}

	for _, t := range tarredTimes {
		tv, err := decimalx.Parse(t)
		if err != nil {
			continue
		}
		if tv.LessThan(ts) {
			continue
		}
		for !tv.LessThan(te) && i < iEnd {
			advance()
		}
		candidate = append(candidate, t)
		if int64(len(candidate)) == numToCompress {
			l.requestCompressedGroup(ctx, candidate)
			candidate = nil
		}
	}
}

func (l *Listener) requestCompressedGroup(ctx context.Context, group []string) {
	filename, err := l.state.CreateCompressedFilename(group[0], group[len(group)-1], l.keepEvery.String())
	if err != nil {
		l.log.WithError(err).Warn("failed to name compressed group")
		return
	}
	if _, requested := l.requestedCompressed[filename]; requested {
		return
	}
	if l.state.IsCompressedFile(filename) {
		l.requestedCompressed[filename] = struct{}{}
		return
	}
	if err := l.backend.Compress(ctx, filename, group); err != nil {
		l.log.WithField("archive", filename).WithError(err).Warn("failed to submit compression")
		return
	}
	l.requestedCompressed[filename] = struct{}{}
}

// processCompressedCoverage is Pass D: once a tarred time falls inside
// a sealed compressed group, the standalone tar can be deleted.
func (l *Listener) processCompressedCoverage(tarredTimes []string) []*task.Task {
	var tasks []*task.Task
	for _, t := range tarredTimes {
		if !l.state.IsCompressed(t) {
			continue
		}
		if _, done := l.deletedTarred[t]; done {
			continue
		}
		tasks = append(tasks, l.deleteTarTask(t))
		l.deletedTarred[t] = struct{}{}
	}
	return tasks
}

// CleanupTasks is run once during setup to remove any incomplete
// artifacts: split times that fail to reconstruct, and the reconstructed
// directories of split times that lack the completion marker.
func (l *Listener) CleanupTasks(ctx context.Context) []*task.Task {
	var tasks []*task.Task
	splitTimes := l.state.SplitTimes()
	for i := len(splitTimes) - 1; i >= 0; i-- {
		t := splitTimes[i]
		rt := l.reconstructTask(t)
		_ = rt.RunAndWait(ctx)
		if rt.WasSuccessful() != task.Success {
			tasks = append(tasks, l.deleteSplitTask(t))
		}
	}
	for _, t := range splitTimes {
		if l.state.ReconstructedDirExists(t) && !l.state.IsReconstructed(t) {
			tasks = append(tasks, l.deleteReconstructedTask(t))
		}
	}
	return tasks
}

// EnsureCaseCorrectness restores the case directory to a state from
// which the producer can be restarted. It fails if CleanupTasks still
// produces work, and returns nil without changes while split times
// remain. Once no split times remain it deletes the processor
// directories, then prefers an existing reconstructed time, falling
// back to untarring the newest tar. It returns
// simerr.ErrUnrecoverableSetup if neither is possible.
func (l *Listener) EnsureCaseCorrectness(ctx context.Context) error {
	if tasks := l.CleanupTasks(ctx); len(tasks) > 0 {
		return simerr.Wrap(simerr.ErrUnrecoverableSetup, "directory is not cleaned; cleanup tasks remain")
	}

	if len(l.state.SplitTimes()) == 0 {
		t := task.New(fmt.Sprintf("rm -rf %s/processor*", l.state.CaseDir), PriorityDelete, "remove processor directories", nil)
		if err := t.RunAndWait(ctx); err != nil {
			return simerr.Wrap(simerr.ErrUnrecoverableSetup, "removing processor directories")
		}
	} else {
		return nil
	}

	if len(l.state.ReconstructedTimes()) > 0 {
		return nil
	}

	tarredTimes := l.state.TarredTimes()
	if len(tarredTimes) == 0 {
		return simerr.ErrUnrecoverableSetup
	}
	newest := tarredTimes[len(tarredTimes)-1]
	tarPath := filepath.Join(l.state.CaseDir, newest+".tar")
	markerPath := filepath.Join(l.state.CaseDir, newest, ReconstructionDoneMarker)
	command := fmt.Sprintf("tar -xvf %s --directory=%s && touch %s", tarPath, l.state.CaseDir, markerPath)
	t := task.New(command, PriorityDelete, "untar "+newest, nil)
	if err := t.RunAndWait(ctx); err != nil {
		return simerr.Wrap(simerr.ErrUnrecoverableSetup, "untarring newest archive")
	}
	return nil
}

func (l *Listener) reconstructTask(t string) *task.Task {
	cmd := fmt.Sprintf("reconstructPar -time %s -case %s", t, l.state.CaseDir)
	if t == "0" {
		cmd += " -withZero"
	}
	marker := filepath.Join(l.state.CaseDir, t, ReconstructionDoneMarker)
	cmd += fmt.Sprintf(" && touch %s", marker)
	return task.New(cmd, PriorityReconstruct, "Reconstruct "+t, nil)
}

func (l *Listener) deleteSplitTask(t string) *task.Task {
	cmd := fmt.Sprintf("rm -rf %s/processor*/%s", l.state.CaseDir, t)
	return task.New(cmd, PriorityDelete, "DeleteSplit "+t, nil)
}

func (l *Listener) deleteReconstructedTask(t string) *task.Task {
	cmd := fmt.Sprintf("rm -rf %s/%s", l.state.CaseDir, t)
	return task.New(cmd, PriorityDeleteReconstructed, "DeleteReconstructed "+t, nil)
}

func (l *Listener) tarTask(t string) *task.Task {
	marker := filepath.Join(l.state.CaseDir, t, ReconstructionDoneMarker)
	inprogress := filepath.Join(l.state.CaseDir, t+".tar.inprogress")
	final := filepath.Join(l.state.CaseDir, t+".tar")
	dir := filepath.Join(l.state.CaseDir, t)
	cmd := fmt.Sprintf("tar --exclude %s -cvf %s %s && mv %s %s", marker, inprogress, dir, inprogress, final)
	return task.New(cmd, PriorityTar, "Tar "+t, nil)
}

func (l *Listener) deleteTarTask(t string) *task.Task {
	cmd := fmt.Sprintf("rm %s/%s.tar", l.state.CaseDir, t)
	return task.New(cmd, PriorityDeleteTar, "DeleteTar "+t, nil)
}
