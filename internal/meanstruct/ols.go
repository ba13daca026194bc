package meanstruct

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"phylosem/domain/core"
)

// Coefficient is one row of the fitted coefficient table
type Coefficient struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	TValue   float64 `json:"t_value"`
	PValue   float64 `json:"p_value"`
}

// lsFit is the output of one (possibly penalized) least-squares solve
type lsFit struct {
	beta    []float64
	rss     float64
	edf     float64 // effective degrees of freedom used by the fit (tr H)
	sigma2  float64
	stdErrs []float64
	lambda  float64
}

// gcvLambdaGrid is the smoothing grid searched when penalty blocks exist
var gcvLambdaGrid = []float64{0.01, 0.1, 1, 10, 100, 1000}

// fitLeastSquares solves min ||y - Xb||² (+ λ b'Sb over penalty blocks).
// When blocks are present the smoothing parameter is chosen by GCV over a
// fixed grid; a plain solve uses λ=0.
func fitLeastSquares(x *mat.Dense, y []float64, blocks []penaltyBlock) (*lsFit, error) {
	n, p := x.Dims()
	if n <= p && len(blocks) == 0 {
		return nil, core.InsufficientDataError(p+1, n)
	}

	if len(blocks) == 0 {
		return solveAt(x, y, nil, 0)
	}

	var best *lsFit
	bestGCV := math.Inf(1)
	for _, lambda := range gcvLambdaGrid {
		fit, err := solveAt(x, y, blocks, lambda)
		if err != nil {
			continue
		}
		denom := float64(n) - fit.edf
		if denom <= 0 {
			continue
		}
		gcv := float64(n) * fit.rss / (denom * denom)
		if gcv < bestGCV {
			bestGCV = gcv
			best = fit
		}
	}
	if best == nil {
		return nil, core.ErrDegenerateFit
	}
	return best, nil
}

// solveAt performs one penalized normal-equations solve at a fixed lambda
func solveAt(x *mat.Dense, y []float64, blocks []penaltyBlock, lambda float64) (*lsFit, error) {
	n, p := x.Dims()

	var xtx mat.Dense
	xtx.Mul(x.T(), x)

	a := mat.DenseCopyOf(&xtx)
	for _, blk := range blocks {
		for i := 0; i < blk.size; i++ {
			for j := 0; j < blk.size; j++ {
				r, c := blk.start+i, blk.start+j
				a.Set(r, c, a.At(r, c)+lambda*blk.s.At(i, j))
			}
		}
	}

	yVec := mat.NewVecDense(n, append([]float64(nil), y...))
	var xty mat.VecDense
	xty.MulVec(x.T(), yVec)

	var aInv mat.Dense
	if err := aInv.Inverse(a); err != nil {
		return nil, core.ErrSingularDesign
	}

	var betaVec mat.VecDense
	betaVec.MulVec(&aInv, &xty)

	beta := make([]float64, p)
	for i := range beta {
		beta[i] = betaVec.AtVec(i)
	}

	// Residual sum of squares
	var fitted mat.VecDense
	fitted.MulVec(x, &betaVec)
	rss := 0.0
	for i := 0; i < n; i++ {
		d := y[i] - fitted.AtVec(i)
		rss += d * d
	}

	// Effective degrees of freedom: tr[(X'X + λS)^{-1} X'X]
	var hat mat.Dense
	hat.Mul(&aInv, &xtx)
	edf := 0.0
	for i := 0; i < p; i++ {
		edf += hat.At(i, i)
	}

	residDF := float64(n) - edf
	if residDF < 1 {
		residDF = 1
	}
	sigma2 := rss / residDF

	// Coefficient standard errors from σ² (X'X+λS)^{-1} X'X (X'X+λS)^{-1};
	// for λ=0 this reduces to σ² (X'X)^{-1}.
	var cov mat.Dense
	cov.Mul(&hat, &aInv)
	stdErrs := make([]float64, p)
	for i := 0; i < p; i++ {
		v := sigma2 * cov.At(i, i)
		if v < 0 {
			v = 0
		}
		stdErrs[i] = math.Sqrt(v)
	}

	return &lsFit{
		beta:    beta,
		rss:     rss,
		edf:     edf,
		sigma2:  sigma2,
		stdErrs: stdErrs,
		lambda:  lambda,
	}, nil
}

// coefficientTable derives two-sided t-test p-values for each coefficient
func coefficientTable(names []string, fit *lsFit, n int) []Coefficient {
	residDF := float64(n) - fit.edf
	if residDF < 1 {
		residDF = 1
	}
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: residDF}

	out := make([]Coefficient, len(names))
	for i, name := range names {
		c := Coefficient{Name: name, Estimate: fit.beta[i], StdErr: fit.stdErrs[i]}
		if c.StdErr > 0 {
			c.TValue = c.Estimate / c.StdErr
			c.PValue = 2 * tDist.Survival(math.Abs(c.TValue))
		} else {
			c.TValue = math.NaN()
			c.PValue = math.NaN()
		}
		out[i] = c
	}
	return out
}
