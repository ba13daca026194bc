package phylo

import (
	"math"
	"sort"
)

// Predictor estimates a species' response as the inverse-distance-power
// weighted mean of training species responses. Training species with no
// finite response or no place in the distance matrix are ignored.
type Predictor struct {
	// XExponent is the power applied to inverse distances
	XExponent float64
	// KTrunc caps the number of nearest donors per prediction, 0 means all
	KTrunc int

	dist      *DistanceMatrix
	donors    []string
	responses map[string]float64
	trainMean float64
}

// NewPredictor indexes the training responses against the distance matrix.
// The training mean is retained as the fallback for isolated species.
func NewPredictor(dist *DistanceMatrix, species []string, y []float64, xExponent float64, kTrunc int) *Predictor {
	p := &Predictor{
		XExponent: xExponent,
		KTrunc:    kTrunc,
		dist:      dist,
		responses: make(map[string]float64),
	}
	var sum float64
	var n int
	for i, sp := range species {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		idx, ok := dist.indexOf(sp)
		if !ok {
			continue
		}
		key := dist.Labels[idx]
		p.donors = append(p.donors, key)
		p.responses[key] = y[i]
		sum += y[i]
		n++
	}
	if n > 0 {
		p.trainMean = sum / float64(n)
	} else {
		p.trainMean = math.NaN()
	}
	return p
}

// Predict returns the weighted-neighbor estimate for one species. The
// species itself never contributes, so in-sample prediction stays honest.
// Species absent from the tree, or with no usable donors, receive the
// training mean.
func (p *Predictor) Predict(species string) float64 {
	self, inTree := p.dist.indexOf(species)
	if !inTree {
		return p.trainMean
	}

	type donor struct {
		dist float64
		y    float64
	}
	ds := make([]donor, 0, len(p.donors))
	for _, key := range p.donors {
		j, _ := p.dist.indexOf(key)
		if j == self {
			continue
		}
		// weights are d^(-x) for d > 0 and zero otherwise, so a donor at
		// patristic distance zero can never contribute
		if d := p.dist.d[self][j]; d > 0 {
			ds = append(ds, donor{dist: d, y: p.responses[key]})
		}
	}
	if len(ds) == 0 {
		return p.trainMean
	}
	sort.Slice(ds, func(a, b int) bool { return ds[a].dist < ds[b].dist })
	if p.KTrunc > 0 && len(ds) > p.KTrunc {
		ds = ds[:p.KTrunc]
	}

	var wsum, ysum float64
	for _, d := range ds {
		w := math.Pow(1/d.dist, p.XExponent)
		wsum += w
		ysum += w * d.y
	}
	if wsum == 0 {
		return p.trainMean
	}
	return ysum / wsum
}

// PredictAll maps Predict over a species list
func (p *Predictor) PredictAll(species []string) []float64 {
	out := make([]float64, len(species))
	for i, sp := range species {
		out[i] = p.Predict(sp)
	}
	return out
}

// Blend mixes structural and neighbor predictions elementwise:
// alpha*phylo + (1-alpha)*sem. The boundaries reproduce the inputs exactly.
func Blend(sem, phylo []float64, alpha float64) []float64 {
	out := make([]float64, len(sem))
	for i := range sem {
		switch {
		case alpha == 0:
			out[i] = sem[i]
		case alpha == 1:
			out[i] = phylo[i]
		default:
			out[i] = alpha*phylo[i] + (1-alpha)*sem[i]
		}
	}
	return out
}
