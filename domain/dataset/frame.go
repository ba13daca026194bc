package dataset

import (
	"fmt"
	"math"

	"phylosem/domain/core"
)

// Frame is a rectangular observation table: one row per species, named
// numeric columns for traits and responses, named label columns for
// cluster/grouping structure. Column slices always have len == Len().
type Frame struct {
	Species []string
	numeric map[string][]float64
	labels  map[string][]string
}

// New creates an empty frame over the given species identifiers
func New(species []string) *Frame {
	ids := make([]string, len(species))
	copy(ids, species)
	return &Frame{
		Species: ids,
		numeric: make(map[string][]float64),
		labels:  make(map[string][]string),
	}
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return len(f.Species)
}

// SetNumeric attaches a numeric column; missing values are NaN
func (f *Frame) SetNumeric(name string, values []float64) error {
	if len(values) != f.Len() {
		return fmt.Errorf("column %s: length %d does not match %d rows", name, len(values), f.Len())
	}
	col := make([]float64, len(values))
	copy(col, values)
	f.numeric[name] = col
	return nil
}

// SetLabel attaches a string label column
func (f *Frame) SetLabel(name string, values []string) error {
	if len(values) != f.Len() {
		return fmt.Errorf("label %s: length %d does not match %d rows", name, len(values), f.Len())
	}
	col := make([]string, len(values))
	copy(col, values)
	f.labels[name] = col
	return nil
}

// HasNumeric reports whether a numeric column exists
func (f *Frame) HasNumeric(name string) bool {
	_, ok := f.numeric[name]
	return ok
}

// HasLabel reports whether a label column exists
func (f *Frame) HasLabel(name string) bool {
	_, ok := f.labels[name]
	return ok
}

// Numeric returns a numeric column. The returned slice is shared; callers
// must not mutate it.
func (f *Frame) Numeric(name string) ([]float64, error) {
	col, ok := f.numeric[name]
	if !ok {
		return nil, core.MissingColumnError(name)
	}
	return col, nil
}

// Label returns a label column
func (f *Frame) Label(name string) ([]string, error) {
	col, ok := f.labels[name]
	if !ok {
		return nil, core.MissingColumnError(name)
	}
	return col, nil
}

// NumericNames lists the numeric column names in unspecified order
func (f *Frame) NumericNames() []string {
	names := make([]string, 0, len(f.numeric))
	for name := range f.numeric {
		names = append(names, name)
	}
	return names
}

// Require fails fast with a named missing-column error before any fitting
// proceeds (configuration error semantics).
func (f *Frame) Require(columns ...string) error {
	for _, name := range columns {
		if !f.HasNumeric(name) && !f.HasLabel(name) {
			return core.MissingColumnError(name)
		}
	}
	return nil
}

// Subset returns a new frame holding only the rows at the given indices
func (f *Frame) Subset(idx []int) *Frame {
	out := New(make([]string, len(idx)))
	for i, j := range idx {
		out.Species[i] = f.Species[j]
	}
	for name, col := range f.numeric {
		sub := make([]float64, len(idx))
		for i, j := range idx {
			sub[i] = col[j]
		}
		out.numeric[name] = sub
	}
	for name, col := range f.labels {
		sub := make([]string, len(idx))
		for i, j := range idx {
			sub[i] = col[j]
		}
		out.labels[name] = sub
	}
	return out
}

// CompleteCases returns the row indices with finite values in every listed
// numeric column. Rows used by any fitting step must be complete for the
// variables that step consumes.
func (f *Frame) CompleteCases(columns ...string) ([]int, error) {
	cols := make([][]float64, 0, len(columns))
	for _, name := range columns {
		col, err := f.Numeric(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	var idx []int
	for i := 0; i < f.Len(); i++ {
		ok := true
		for _, col := range cols {
			if math.IsNaN(col[i]) || math.IsInf(col[i], 0) {
				ok = false
				break
			}
		}
		if ok {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

// Clone deep-copies the frame
func (f *Frame) Clone() *Frame {
	out := New(f.Species)
	for name, col := range f.numeric {
		out.numeric[name] = append([]float64(nil), col...)
	}
	for name, col := range f.labels {
		out.labels[name] = append([]string(nil), col...)
	}
	return out
}
