// Package resample builds repeated stratified k-fold partitions over the
// response distribution and orchestrates leak-free cross-validation: every
// feature transform is refit per training fold.
package resample

import (
	"math"
	"math/rand"
	"sort"

	"phylosem/domain/core"
)

// StratifiedFolds assigns a fold label 0..k-1 to each observation by binning
// the response into quantile classes and dealing shuffled fold labels within
// each class, so every fold sees approximately the full response
// distribution. Rows with a non-finite response get label -1.
func StratifiedFolds(y []float64, k, bins int, rng *rand.Rand) ([]int, error) {
	if k < 2 {
		return nil, core.ErrTooFewRows
	}
	valid := make([]int, 0, len(y))
	values := make([]float64, 0, len(y))
	for i, v := range y {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			valid = append(valid, i)
			values = append(values, v)
		}
	}
	if len(valid) < k {
		return nil, core.ErrTooFewRows
	}
	if bins < 1 {
		bins = 1
	}
	if bins > len(valid)/k {
		bins = maxInt(1, len(valid)/k)
	}

	edges := quantileEdges(values, bins)

	// Collect member rows per stratification class
	classes := make([][]int, bins)
	for j, i := range valid {
		b := binOf(values[j], edges)
		classes[b] = append(classes[b], i)
	}

	folds := make([]int, len(y))
	for i := range folds {
		folds[i] = -1
	}
	for _, members := range classes {
		if len(members) == 0 {
			continue
		}
		order := rng.Perm(len(members))
		foldSeq := rng.Perm(k)
		for pos, oi := range order {
			folds[members[oi]] = foldSeq[pos%k]
		}
	}
	return folds, nil
}

// quantileEdges returns the bins-1 interior quantile cut points of values
func quantileEdges(values []float64, bins int) []float64 {
	if bins <= 1 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	edges := make([]float64, bins-1)
	for i := 1; i < bins; i++ {
		q := float64(i) / float64(bins)
		pos := q * float64(len(sorted)-1)
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		frac := pos - float64(lo)
		edges[i-1] = sorted[lo]*(1-frac) + sorted[hi]*frac
	}
	return edges
}

func binOf(v float64, edges []float64) int {
	for i, e := range edges {
		if v <= e {
			return i
		}
	}
	return len(edges)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
