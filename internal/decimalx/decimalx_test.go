package decimalx

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func TestDividesEvenly_Table(t *testing.T) {
	// The whole point of this package is to avoid binary-float
	// misjudgments like 0.3 / 0.1 != 3.0 exactly. These cases would
	// fail if DividesEvenly were implemented with float64 division.
	tests := []struct {
		name      string
		numerator string
		divisor   string
		want      bool
	}{
		{"0.3 is a multiple of 0.1", "0.3", "0.1", true},
		{"0.1 is a multiple of 0.1", "0.1", "0.1", true},
		{"0.25 is not a multiple of 0.1", "0.25", "0.1", false},
		{"120 is a multiple of 10", "120", "10", true},
		{"125 is not a multiple of 10", "125", "10", false},
		{"0 is a multiple of anything positive", "0", "0.0001", true},
		{"0.01 is a multiple of 0.01", "0.01", "0.01", true},
		{"compress_every 0.01 over keep_every 0.0001", "0.01", "0.0001", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse(tt.numerator)
			if err != nil {
				t.Fatalf("parse numerator: %v", err)
			}
			d, err := Parse(tt.divisor)
			if err != nil {
				t.Fatalf("parse divisor: %v", err)
			}
			got := DividesEvenly(n, d)
			if got != tt.want {
				t.Fatalf("DividesEvenly(%s, %s) = %v, want %v", tt.numerator, tt.divisor, got, tt.want)
			}
		})
	}
}

func TestParse_RejectsMalformedAndNegative(t *testing.T) {
	for _, s := range []string{"not-a-number", "-1", "-0.5", ""} {
		if _, err := Parse(s); err == nil {
			t.Fatalf("Parse(%q) expected error, got nil", s)
		}
	}
}

func TestSortTimes_NumericNotLexicographic(t *testing.T) {
	in := []string{"10", "2", "0.3", "0.03", "100"}
	got := SortTimes(in)
	want := []string{"0.03", "0.3", "2", "10", "100"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("SortTimes mismatch (-want +got):\n%s", diff)
	}
}

func TestSortTimes_DropsUnparsable(t *testing.T) {
	got := SortTimes([]string{"1", "bogus", "2"})
	if len(got) != 2 {
		t.Fatalf("expected unparsable entries dropped, got %v", got)
	}
}

func TestLess(t *testing.T) {
	a := decimal.RequireFromString("0.1")
	b := decimal.RequireFromString("0.2")
	if !Less(a, b) {
		t.Fatalf("expected %s < %s", a, b)
	}
	if Less(b, a) {
		t.Fatalf("expected %s is not < %s", b, a)
	}
}
