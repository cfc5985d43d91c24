// Package simerr defines the sentinel error kinds the core surfaces so
// callers can branch on errors.Is without parsing message text.
package simerr

import "errors"

var (
	// ErrInvalidCaseDir means the working directory is missing constant/,
	// system/, or processor0/.
	ErrInvalidCaseDir = errors.New("invalid case directory")

	// ErrInvalidConfiguration means the supplied settings are internally
	// inconsistent (e.g. compress_every is not a strict multiple of
	// keep_every) or a required value is missing.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidArgument means an otherwise well-formed operation was
	// called with a malformed argument (a non-decimal timestep, a
	// filename containing whitespace, an empty file list).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound means an input file was expected to exist at the point
	// an operation was assembled but did not.
	ErrNotFound = errors.New("not found")

	// ErrBackendUnavailable means the JobBackend could not accept a
	// submission (job scheduler unreachable, sfile misconfigured, etc).
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrUnrecoverableSetup means setup found no state (split,
	// reconstructed, or tarred) from which the producer could be
	// reseeded.
	ErrUnrecoverableSetup = errors.New("unrecoverable setup state")
)

// Wrap attaches additional context to a sentinel while preserving
// errors.Is/As behavior.
func Wrap(kind error, context string) error {
	if context == "" {
		return kind
	}
	return &wrapped{kind: kind, context: context}
}

type wrapped struct {
	kind    error
	context string
}

func (w *wrapped) Error() string { return w.context + ": " + w.kind.Error() }
func (w *wrapped) Unwrap() error { return w.kind }
