// Package openfoam implements the read-only FileState view over an
// OpenFOAM-style case directory and the Listener that plans Tasks
// against it.
package openfoam

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"simon/internal/decimalx"
	"simon/internal/simerr"
)

// ReconstructionDoneMarker is the sentinel file dropped into a
// reassembled timestep directory once reconstruction has fully
// succeeded. Its presence is the commit point distinguishing a
// partially reconstructed directory from a complete one.
const ReconstructionDoneMarker = ".__reconstruction_done"

// FileState is a stateless, read-only view of a case directory's
// on-disk lifecycle stage per timestep. It never mutates the
// filesystem; all mutation happens through Tasks.
type FileState struct {
	CaseDir string

	// ScanConcurrency bounds how many processor<k> directories are
	// probed concurrently by SplitExists. Zero means unbounded
	// (errgroup.SetLimit(-1)).
	ScanConcurrency int
}

// New validates caseDir looks like an OpenFOAM case (constant/,
// system/, processor0/ all present) and returns a FileState over it.
func New(caseDir string) (*FileState, error) {
	for _, sub := range []string{"constant", "system", "processor0"} {
		info, err := os.Stat(filepath.Join(caseDir, sub))
		if err != nil || !info.IsDir() {
			return nil, simerr.Wrap(simerr.ErrInvalidCaseDir, fmt.Sprintf("%s is missing %s", caseDir, sub))
		}
	}
	return &FileState{CaseDir: caseDir}, nil
}

// SplitTimes returns the ascending, numerically-sorted list of
// timestep directories found under processor0/.
func (fs *FileState) SplitTimes() []string {
	entries, err := os.ReadDir(filepath.Join(fs.CaseDir, "processor0"))
	if err != nil {
		return nil
	}
	var times []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if matched, _ := doublestar.Match("[0-9]*", e.Name()); matched {
			times = append(times, e.Name())
		}
	}
	return decimalx.SortTimes(times)
}

// ReconstructedTimes returns the ascending list of timesteps whose
// top-level directory carries the reconstruction-done marker.
func (fs *FileState) ReconstructedTimes() []string {
	entries, err := os.ReadDir(fs.CaseDir)
	if err != nil {
		return nil
	}
	var times []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if matched, _ := doublestar.Match("[0-9]*", e.Name()); !matched {
			continue
		}
		if fs.IsReconstructed(e.Name()) {
			times = append(times, e.Name())
		}
	}
	return decimalx.SortTimes(times)
}

// TarredTimes returns the ascending list of timesteps for which a
// sealed <T>.tar exists at top level.
func (fs *FileState) TarredTimes() []string {
	entries, err := os.ReadDir(fs.CaseDir)
	if err != nil {
		return nil
	}
	var times []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if matched, _ := doublestar.Match("[0-9]*.tar", e.Name()); matched {
			times = append(times, strings.TrimSuffix(e.Name(), ".tar"))
		}
	}
	return decimalx.SortTimes(times)
}

// CompressedFiles returns the filenames of all sealed compressed
// groups present at top level.
func (fs *FileState) CompressedFiles() []string {
	entries, err := os.ReadDir(fs.CaseDir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if matched, _ := doublestar.Match("times_*.tgz", e.Name()); matched {
			files = append(files, e.Name())
		}
	}
	return files
}

// IsReconstructed reports whether T's reconstruction-done marker
// exists.
func (fs *FileState) IsReconstructed(t string) bool {
	_, err := os.Stat(filepath.Join(fs.CaseDir, t, ReconstructionDoneMarker))
	return err == nil
}

// IsTarred reports whether T's sealed tar exists at top level.
func (fs *FileState) IsTarred(t string) bool {
	_, err := os.Stat(filepath.Join(fs.CaseDir, t+".tar"))
	return err == nil
}

// ReconstructedDirExists reports whether T's top-level directory
// exists at all, regardless of whether it carries the marker.
func (fs *FileState) ReconstructedDirExists(t string) bool {
	info, err := os.Stat(filepath.Join(fs.CaseDir, t))
	return err == nil && info.IsDir()
}

// SplitExists reports whether T's directory exists under at least one
// processor<k> sibling. Candidate directories are probed concurrently,
// bounded by ScanConcurrency, since a case directory may carry
// hundreds of processor siblings.
func (fs *FileState) SplitExists(t string) bool {
	entries, err := os.ReadDir(fs.CaseDir)
	if err != nil {
		return false
	}
	var procDirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if matched, _ := doublestar.Match("processor*", e.Name()); matched {
			procDirs = append(procDirs, e.Name())
		}
	}

	var found atomic.Bool
	g := &errgroup.Group{}
	g.SetLimit(boundedLimit(fs.ScanConcurrency))
	for _, proc := range procDirs {
		proc := proc
		g.Go(func() error {
			if found.Load() {
				return nil
			}
			info, err := os.Stat(filepath.Join(fs.CaseDir, proc, t))
			if err == nil && info.IsDir() {
				found.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()
	return found.Load()
}

func boundedLimit(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

// IsCompressed reports whether T falls within the coverage of any
// existing compressed-group file, per the group's own naming rule.
func (fs *FileState) IsCompressed(t string) bool {
	tv, err := decimalx.Parse(t)
	if err != nil {
		return false
	}
	for _, name := range fs.CompressedFiles() {
		start, end, step, err := fs.ParseCompressedFilename(name)
		if err != nil {
			continue
		}
		if tv.LessThan(start) || tv.GreaterThan(end) {
			continue
		}
		if decimalx.DividesEvenly(tv.Sub(start), step) {
			return true
		}
	}
	return false
}

// IsCompressedFile reports whether filename is a well-formed,
// existing compressed-group file.
func (fs *FileState) IsCompressedFile(filename string) bool {
	if !strings.HasSuffix(filename, ".tgz") || !strings.HasPrefix(filename, "times_") {
		return false
	}
	if _, _, _, err := fs.ParseCompressedFilename(filename); err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(fs.CaseDir, filename))
	return err == nil
}

// CreateCompressedFilename formats the canonical name for a
// compressed group spanning [start, end] with the given step.
func (fs *FileState) CreateCompressedFilename(start, end, step string) (string, error) {
	if _, err := decimalx.Parse(start); err != nil {
		return "", simerr.Wrap(simerr.ErrInvalidArgument, fmt.Sprintf("start %q must be a decimal", start))
	}
	if _, err := decimalx.Parse(end); err != nil {
		return "", simerr.Wrap(simerr.ErrInvalidArgument, fmt.Sprintf("end %q must be a decimal", end))
	}
	if _, err := decimalx.Parse(step); err != nil {
		return "", simerr.Wrap(simerr.ErrInvalidArgument, fmt.Sprintf("step %q must be a decimal", step))
	}
	return fmt.Sprintf("times_%s_%s_%s.tgz", start, end, step), nil
}

// ParseCompressedFilename is the inverse of CreateCompressedFilename.
func (fs *FileState) ParseCompressedFilename(name string) (start, end, step decimal.Decimal, err error) {
	stem := strings.TrimSuffix(filepath.Base(name), ".tgz")
	parts := strings.Split(stem, "_")
	if len(parts) != 4 || parts[0] != "times" {
		return decimal.Zero, decimal.Zero, decimal.Zero, simerr.Wrap(simerr.ErrInvalidArgument, fmt.Sprintf("%q is not a compressed group filename", name))
	}
	start, err = decimalx.Parse(parts[1])
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	end, err = decimalx.Parse(parts[2])
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	step, err = decimalx.Parse(parts[3])
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	return start, end, step, nil
}
