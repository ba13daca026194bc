// Package copula detects residually correlated response-axis pairs and fits
// Gaussian copulas over rank-transformed residuals.
package copula

import (
	"math"

	"phylosem/domain/core"
)

// ResidualTable holds the full-data mean-structure residuals per target
// axis, aligned by species row. Missing residuals are NaN.
type ResidualTable struct {
	Species []string
	Axes    []string
	columns map[string][]float64
	groups  []string
}

// NewResidualTable builds an empty table over the species rows
func NewResidualTable(species []string) *ResidualTable {
	return &ResidualTable{
		Species: append([]string(nil), species...),
		columns: make(map[string][]float64),
	}
}

// SetAxis attaches one axis' residual vector
func (t *ResidualTable) SetAxis(axis string, residuals []float64) error {
	if len(residuals) != len(t.Species) {
		return core.ErrInsufficientData
	}
	t.Axes = append(t.Axes, axis)
	t.columns[axis] = append([]float64(nil), residuals...)
	return nil
}

// SetGroups attaches the optional per-row group labels used by grouped refits
func (t *ResidualTable) SetGroups(labels []string) error {
	if len(labels) != len(t.Species) {
		return core.ErrInsufficientData
	}
	t.groups = append([]string(nil), labels...)
	return nil
}

// Axis returns one axis' residual column
func (t *ResidualTable) Axis(axis string) ([]float64, bool) {
	col, ok := t.columns[axis]
	return col, ok
}

// pairComplete returns the two residual columns restricted to rows finite in
// both, along with the surviving row indices.
func (t *ResidualTable) pairComplete(axisA, axisB string) ([]float64, []float64, []int) {
	a := t.columns[axisA]
	b := t.columns[axisB]
	var xs, ys []float64
	var rows []int
	for i := range a {
		if finite(a[i]) && finite(b[i]) {
			xs = append(xs, a[i])
			ys = append(ys, b[i])
			rows = append(rows, i)
		}
	}
	return xs, ys, rows
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
