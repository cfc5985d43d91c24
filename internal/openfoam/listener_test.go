package openfoam

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type fakeBackend struct {
	requeueCalls  int
	compressCalls []string
}

func (f *fakeBackend) RequeueJob(ctx context.Context) error {
	f.requeueCalls++
	return nil
}

func (f *fakeBackend) Compress(ctx context.Context, archiveName string, files []string) error {
	f.compressCalls = append(f.compressCalls, archiveName)
	return nil
}

func newTestLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func newTestListener(t *testing.T, dir string, keepEvery, compressEvery string, requeue bool) (*Listener, *fakeBackend, *FileState) {
	t.Helper()
	fs, err := New(dir)
	if err != nil {
		t.Fatalf("New FileState: %v", err)
	}
	fb := &fakeBackend{}
	l, err := NewListener(fs, mustDecimal(t, keepEvery), mustDecimal(t, compressEvery), fb, requeue, newTestLogger())
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	return l, fb, fs
}

func TestNewListener_RejectsBadFrequencies(t *testing.T) {
	dir := newFakeCase(t)
	fs, _ := New(dir)
	fb := &fakeBackend{}
	if _, err := NewListener(fs, mustDecimal(t, "0.1"), mustDecimal(t, "0.1"), fb, false, newTestLogger()); err == nil {
		t.Fatalf("expected error when compress_every equals keep_every")
	}
	if _, err := NewListener(fs, mustDecimal(t, "0.1"), mustDecimal(t, "0.25"), fb, false, newTestLogger()); err == nil {
		t.Fatalf("expected error when compress_every is not a multiple of keep_every")
	}
	if _, err := NewListener(fs, mustDecimal(t, "0"), mustDecimal(t, "1"), fb, false, newTestLogger()); err == nil {
		t.Fatalf("expected error for zero keep_every")
	}
}

// Scenario: a kept split time (not yet the final, still-writing one)
// with no reconstructed/tarred history gets reconstructed, and the
// producer is requeued exactly once across repeated Plan() calls.
func TestPlan_ReconstructsKeptSplitTime_RequeuesOnce(t *testing.T) {
	dir := newFakeCase(t)
	mustMkdirAll(t, filepath.Join(dir, "processor0", "0.1"))
	mustMkdirAll(t, filepath.Join(dir, "processor0", "0.2"))
	l, fb, _ := newTestListener(t, dir, "0.1", "0.2", true)

	tasks := l.Plan(context.Background())
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1 (reconstruct 0.1; 0.2 is the trailing still-writing time)", len(tasks))
	}
	if tasks[0].Label != "Reconstruct 0.1" {
		t.Fatalf("got %q, want Reconstruct 0.1", tasks[0].Label)
	}
	if fb.requeueCalls != 1 {
		t.Fatalf("requeueCalls = %d, want 1", fb.requeueCalls)
	}

	// A second Plan() before the reconstruct completes must not
	// re-emit the same task or requeue again.
	tasks = l.Plan(context.Background())
	if len(tasks) != 0 {
		t.Fatalf("got %d tasks on repeat Plan(), want 0 (already processed)", len(tasks))
	}
	if fb.requeueCalls != 1 {
		t.Fatalf("requeueCalls after repeat Plan() = %d, want still 1", fb.requeueCalls)
	}
}

// Scenario: T="0" is always dropped regardless of divisibility; 0.1 is
// the trailing still-writing split time and gets no task.
func TestPlan_ZeroTimeNeverKept(t *testing.T) {
	dir := newFakeCase(t)
	mustMkdirAll(t, filepath.Join(dir, "processor0", "0"))
	mustMkdirAll(t, filepath.Join(dir, "processor0", "0.1"))
	l, _, _ := newTestListener(t, dir, "0.1", "0.2", false)

	tasks := l.Plan(context.Background())
	if len(tasks) != 1 || tasks[0].Label != "DeleteSplit 0" {
		t.Fatalf("got %v, want a single DeleteSplit 0 task (T=0 is never kept)", tasks)
	}
}

// Scenario: a split time that already has a reconstructed or tarred
// counterpart is deleted rather than reconstructed again.
func TestPlan_DeletesSplitAlreadyReconstructed(t *testing.T) {
	dir := newFakeCase(t)
	mustMkdirAll(t, filepath.Join(dir, "processor0", "0.1"))
	mustMkdirAll(t, filepath.Join(dir, "processor0", "0.2"))
	mustMkdirAll(t, filepath.Join(dir, "0.1"))
	mustWriteFile(t, filepath.Join(dir, "0.1", ReconstructionDoneMarker), "")
	l, _, _ := newTestListener(t, dir, "0.1", "0.2", false)

	tasks := l.Plan(context.Background())
	var sawDeleteSplit, sawTar bool
	for _, tk := range tasks {
		if tk.Label == "DeleteSplit 0.1" {
			sawDeleteSplit = true
		}
		if tk.Label == "Tar 0.1" {
			sawTar = true
		}
	}
	if !sawDeleteSplit {
		t.Fatalf("expected DeleteSplit 0.1 since it is already reconstructed, got %v", tasks)
	}
	if !sawTar {
		t.Fatalf("expected Tar 0.1 since the reconstructed dir has no sealed tar yet, got %v", tasks)
	}
}

// Scenario: a reconstructed time with an existing tar is not re-tarred,
// but its split copy is still deleted once the producer moves past it.
func TestPlan_ReconstructedAlreadyTarred_DeletesSplitWithoutRetar(t *testing.T) {
	dir := newFakeCase(t)
	mustMkdirAll(t, filepath.Join(dir, "processor0", "0.1"))
	mustMkdirAll(t, filepath.Join(dir, "processor0", "0.2"))
	mustMkdirAll(t, filepath.Join(dir, "0.1"))
	mustWriteFile(t, filepath.Join(dir, "0.1", ReconstructionDoneMarker), "")
	mustWriteFile(t, filepath.Join(dir, "0.1.tar"), "")
	l, _, _ := newTestListener(t, dir, "0.1", "0.2", false)

	tasks := l.Plan(context.Background())
	sawDeleteSplit := false
	for _, tk := range tasks {
		if tk.Label == "Tar 0.1" {
			t.Fatalf("did not expect a re-Tar of an already-sealed tar, got %v", tasks)
		}
		if tk.Label == "DeleteSplit 0.1" {
			sawDeleteSplit = true
		}
	}
	if !sawDeleteSplit {
		t.Fatalf("expected DeleteSplit 0.1 since the producer has moved past it, got %v", tasks)
	}
}

// Scenario: once a tar is sealed, the reconstructed directory backing
// it is deleted.
func TestPlan_DeletesReconstructedOnceTarred(t *testing.T) {
	dir := newFakeCase(t)
	mustMkdirAll(t, filepath.Join(dir, "processor0"))
	mustMkdirAll(t, filepath.Join(dir, "0.1"))
	mustWriteFile(t, filepath.Join(dir, "0.1.tar"), "")
	l, _, _ := newTestListener(t, dir, "0.1", "0.2", false)

	tasks := l.Plan(context.Background())
	found := false
	for _, tk := range tasks {
		if tk.Label == "DeleteReconstructed 0.1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected DeleteReconstructed 0.1, got %v", tasks)
	}
}

// Scenario: once enough tars exist to fill a compress_every window, the
// backend receives exactly one Compress request for that group, and a
// repeat Plan() does not request it again.
func TestPlan_RequestsCompressionOnceWindowFills(t *testing.T) {
	dir := newFakeCase(t)
	mustMkdirAll(t, filepath.Join(dir, "processor0"))
	// 0.2 and 0.3 both fall in the window [0.2, 0.4).
	for _, ts := range []string{"0.2", "0.3"} {
		mustWriteFile(t, filepath.Join(dir, ts+".tar"), "")
	}
	l, fb, _ := newTestListener(t, dir, "0.1", "0.2", false)

	l.Plan(context.Background())
	if len(fb.compressCalls) != 1 {
		t.Fatalf("compressCalls = %v, want exactly one request", fb.compressCalls)
	}
	if fb.compressCalls[0] != "times_0.2_0.3_0.1.tgz" {
		t.Fatalf("got %q, want times_0.2_0.3_0.1.tgz", fb.compressCalls[0])
	}

	l.Plan(context.Background())
	if len(fb.compressCalls) != 1 {
		t.Fatalf("compressCalls after repeat Plan() = %v, want still exactly one", fb.compressCalls)
	}
}

// Scenario: once a tar falls inside a sealed compressed group, the
// standalone tar is deleted exactly once.
func TestPlan_DeletesTarOnceCoveredByCompressedGroup(t *testing.T) {
	dir := newFakeCase(t)
	mustMkdirAll(t, filepath.Join(dir, "processor0"))
	mustWriteFile(t, filepath.Join(dir, "0.1.tar"), "")
	mustWriteFile(t, filepath.Join(dir, "times_0.1_0.2_0.1.tgz"), "")
	l, _, _ := newTestListener(t, dir, "0.1", "0.2", false)

	tasks := l.Plan(context.Background())
	found := false
	for _, tk := range tasks {
		if tk.Label == "DeleteTar 0.1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected DeleteTar 0.1 since 0.1 falls within the sealed compressed group, got %v", tasks)
	}

	tasks = l.Plan(context.Background())
	for _, tk := range tasks {
		if tk.Label == "DeleteTar 0.1" {
			t.Fatalf("did not expect a repeat DeleteTar 0.1, got %v", tasks)
		}
	}
}
