package meanstruct

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"phylosem/domain/core"
)

const (
	splineDegree    = 3
	defaultBasisDim = 5
	tensorBasisDim  = 4
)

// splineBasis is a cubic B-spline basis fitted on training values: knots at
// training quantiles, columns centered with training means so the basis does
// not confound the intercept. Evaluation clamps to the training range.
type splineBasis struct {
	Knots    []float64 `json:"knots"` // full knot vector with repeated boundaries
	Dim      int       `json:"dim"`
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
	ColMeans []float64 `json:"col_means"`
}

// newSplineBasis places dim-4+2 boundary-inclusive knots at quantiles of the
// finite training values. dim is capped below at degree+1.
func newSplineBasis(values []float64, dim int) (*splineBasis, error) {
	if dim <= 0 {
		dim = defaultBasisDim
	}
	if dim < splineDegree+1 {
		dim = splineDegree + 1
	}

	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) < dim+2 {
		return nil, core.InsufficientDataError(dim+2, len(finite))
	}
	sort.Float64s(finite)
	lo, hi := finite[0], finite[len(finite)-1]
	if hi <= lo {
		return nil, core.ErrDegenerateFit
	}

	// Interior knots at evenly spaced quantiles of the training values
	interior := dim - splineDegree - 1
	knots := make([]float64, 0, dim+splineDegree+1)
	for i := 0; i <= splineDegree; i++ {
		knots = append(knots, lo)
	}
	for i := 1; i <= interior; i++ {
		q := float64(i) / float64(interior+1)
		knots = append(knots, quantileSorted(finite, q))
	}
	for i := 0; i <= splineDegree; i++ {
		knots = append(knots, hi)
	}

	b := &splineBasis{Knots: knots, Dim: dim, Min: lo, Max: hi}

	// Column means over the training values, for centering
	means := make([]float64, dim)
	for _, v := range finite {
		row := b.evalRaw(v)
		for j, bv := range row {
			means[j] += bv
		}
	}
	for j := range means {
		means[j] /= float64(len(finite))
	}
	b.ColMeans = means
	return b, nil
}

// Cols returns the number of identifiable basis columns. The raw basis is a
// partition of unity, so after centering its columns sum to the zero vector;
// the last coefficient is pinned at zero and its column never enters the
// design.
func (b *splineBasis) Cols() int {
	return b.Dim - 1
}

// Eval returns the centered, identifiable basis row for x
func (b *splineBasis) Eval(x float64) []float64 {
	row := b.evalRaw(x)
	out := make([]float64, b.Cols())
	for j := range out {
		out[j] = row[j] - b.ColMeans[j]
	}
	return out
}

// evalRaw computes the Cox-de Boor recursion at x clamped to the training range
func (b *splineBasis) evalRaw(x float64) []float64 {
	if x < b.Min {
		x = b.Min
	}
	if x > b.Max {
		x = b.Max
	}
	t := b.Knots
	nBasis := b.Dim

	// Degree-0 indicators
	m := len(t) - 1
	work := make([]float64, m)
	for i := 0; i < m; i++ {
		if (t[i] <= x && x < t[i+1]) || (x == b.Max && t[i] < t[i+1] && t[i+1] == b.Max) {
			work[i] = 1
		}
	}

	for d := 1; d <= splineDegree; d++ {
		for i := 0; i < m-d; i++ {
			var left, right float64
			if denom := t[i+d] - t[i]; denom > 0 {
				left = (x - t[i]) / denom * work[i]
			}
			if denom := t[i+d+1] - t[i+1]; denom > 0 {
				right = (t[i+d+1] - x) / denom * work[i+1]
			}
			work[i] = left + right
		}
	}

	out := make([]float64, nBasis)
	copy(out, work[:nBasis])
	return out
}

// Penalty builds the second-order difference penalty D'D over the basis
// coefficients, the usual curvature surrogate for penalized regression
// splines, restricted to the identifiable columns. Pinning the dropped
// coefficient at zero turns the full quadratic form into its leading
// (Dim-1)x(Dim-1) block.
func (b *splineBasis) Penalty() *mat.Dense {
	full := differencePenalty(b.Dim)
	k := b.Cols()
	s := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			s.Set(i, j, full.At(i, j))
		}
	}
	return s
}

func differencePenalty(dim int) *mat.Dense {
	if dim < 3 {
		return identityPenalty(dim)
	}
	d := mat.NewDense(dim-2, dim, nil)
	for i := 0; i < dim-2; i++ {
		d.Set(i, i, 1)
		d.Set(i, i+1, -2)
		d.Set(i, i+2, 1)
	}
	s := mat.NewDense(dim, dim, nil)
	s.Mul(d.T(), d)
	return s
}

func identityPenalty(dim int) *mat.Dense {
	s := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		s.Set(i, i, 1)
	}
	return s
}

// tensorPenalty combines the marginal penalties of a k1×k2 tensor basis:
// S1 ⊗ I + I ⊗ S2.
func tensorPenalty(s1, s2 *mat.Dense) *mat.Dense {
	k1, _ := s1.Dims()
	k2, _ := s2.Dims()
	dim := k1 * k2
	out := mat.NewDense(dim, dim, nil)
	for a := 0; a < k1; a++ {
		for b := 0; b < k1; b++ {
			for c := 0; c < k2; c++ {
				out.Set(a*k2+c, b*k2+c, out.At(a*k2+c, b*k2+c)+s1.At(a, b))
			}
		}
	}
	for a := 0; a < k1; a++ {
		for c := 0; c < k2; c++ {
			for d := 0; d < k2; d++ {
				out.Set(a*k2+c, a*k2+d, out.At(a*k2+c, a*k2+d)+s2.At(c, d))
			}
		}
	}
	return out
}

func quantileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
