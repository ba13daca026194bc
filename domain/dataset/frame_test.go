package dataset

import (
	"errors"
	"math"
	"testing"

	"phylosem/domain/core"
)

func testFrame(t *testing.T) *Frame {
	t.Helper()
	f := New([]string{"a", "b", "c", "d"})
	if err := f.SetNumeric("x", []float64{1, 2, math.NaN(), 4}); err != nil {
		t.Fatalf("SetNumeric: %v", err)
	}
	if err := f.SetNumeric("y", []float64{10, math.NaN(), 30, 40}); err != nil {
		t.Fatalf("SetNumeric: %v", err)
	}
	if err := f.SetLabel("grp", []string{"g1", "g1", "g2", "g2"}); err != nil {
		t.Fatalf("SetLabel: %v", err)
	}
	return f
}

func TestSetNumericLengthMismatch(t *testing.T) {
	f := New([]string{"a", "b"})
	if err := f.SetNumeric("x", []float64{1}); err == nil {
		t.Error("expected error for mismatched column length")
	}
}

func TestRequire(t *testing.T) {
	f := testFrame(t)
	if err := f.Require("x", "y"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := f.Require("x", "missing")
	if !errors.Is(err, core.ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
}

func TestCompleteCases(t *testing.T) {
	f := testFrame(t)
	rows, err := f.CompleteCases("x", "y")
	if err != nil {
		t.Fatalf("CompleteCases: %v", err)
	}
	want := []int{0, 3}
	if len(rows) != len(want) {
		t.Fatalf("expected %v, got %v", want, rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d: expected %d, got %d", i, want[i], rows[i])
		}
	}
}

func TestSubsetIsIndependent(t *testing.T) {
	f := testFrame(t)
	sub := f.Subset([]int{1, 3})

	if sub.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", sub.Len())
	}
	if sub.Species[0] != "b" || sub.Species[1] != "d" {
		t.Errorf("unexpected species order: %v", sub.Species)
	}

	x, err := sub.Numeric("x")
	if err != nil {
		t.Fatalf("Numeric: %v", err)
	}
	x[0] = 99
	orig, _ := f.Numeric("x")
	if orig[1] == 99 {
		t.Error("subset shares storage with parent frame")
	}

	labels, err := sub.Label("grp")
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	if labels[0] != "g1" || labels[1] != "g2" {
		t.Errorf("unexpected labels: %v", labels)
	}
}

func TestParseGroupCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want GroupCategory
	}{
		{"woody", GroupWoody},
		{" Woody ", GroupWoody},
		{"herbaceous", GroupNonWoody},
		{"semiwoody", GroupSemiWoody},
		{"AM", GroupMycorrhizal},
		{"nm", GroupNonMycorrhizal},
		{"shrub?", GroupUnknown},
		{"", GroupUnknown},
	}
	for _, tt := range tests {
		if got := ParseGroupCategory(tt.raw); got != tt.want {
			t.Errorf("ParseGroupCategory(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}
