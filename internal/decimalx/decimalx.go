// Package decimalx parses and compares OpenFOAM timestep identifiers as
// exact decimals. Timestep names are compared and divided for the
// keep/compress bookkeeping in internal/openfoam; doing that with binary
// floats would silently misjudge values like 0.1 and 0.3 that don't have
// exact float representations.
package decimalx

import (
	"fmt"

	"github.com/shopspring/decimal"
	"simon/internal/simerr"
)

// Parse converts a timestep string such as "0.3" or "120" into an exact
// decimal. It rejects negative values and malformed input.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, simerr.Wrap(simerr.ErrInvalidArgument, fmt.Sprintf("timestep %q is not a decimal", s))
	}
	if d.IsNegative() {
		return decimal.Zero, simerr.Wrap(simerr.ErrInvalidArgument, fmt.Sprintf("timestep %q is negative", s))
	}
	return d, nil
}

// Less reports whether a sorts before b numerically.
func Less(a, b decimal.Decimal) bool { return a.LessThan(b) }

// DividesEvenly reports whether numerator is an exact multiple of
// divisor, i.e. numerator / divisor has no fractional component. Used
// both for the keep-divisibility rule (T / keep_every) and for
// validating compress_every against keep_every at construction time.
func DividesEvenly(numerator, divisor decimal.Decimal) bool {
	if divisor.IsZero() {
		return false
	}
	q := numerator.Div(divisor)
	return q.Equal(q.Truncate(0))
}

// SortTimes sorts a slice of timestep strings in ascending numeric
// order, dropping any that fail to parse (callers that need to
// surface parse errors should call Parse directly instead).
func SortTimes(times []string) []string {
	type entry struct {
		raw string
		val decimal.Decimal
	}
	entries := make([]entry, 0, len(times))
	for _, t := range times {
		v, err := Parse(t)
		if err != nil {
			continue
		}
		entries = append(entries, entry{raw: t, val: v})
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && Less(entries[j].val, entries[j-1].val); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.raw
	}
	return out
}
