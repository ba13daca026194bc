package features

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"phylosem/domain/core"
)

// firstComponent returns the first principal component of the standardized
// columns. Only rows complete across all columns enter the decomposition.
func firstComponent(cols [][]float64) ([]float64, error) {
	p := len(cols)
	if p == 0 {
		return nil, core.ErrInsufficientData
	}
	n := len(cols[0])

	var rows []int
	for i := 0; i < n; i++ {
		ok := true
		for _, col := range cols {
			if math.IsNaN(col[i]) || math.IsInf(col[i], 0) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}
	if len(rows) < p+1 {
		return nil, core.InsufficientDataError(p+1, len(rows))
	}

	x := mat.NewDense(len(rows), p, nil)
	for r, i := range rows {
		for j, col := range cols {
			x.Set(r, j, col[i])
		}
	}

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThinV) {
		return nil, core.ErrDegenerateFit
	}
	var v mat.Dense
	svd.VTo(&v)

	loadings := make([]float64, p)
	for j := 0; j < p; j++ {
		loadings[j] = v.At(j, 0)
	}
	return loadings, nil
}
