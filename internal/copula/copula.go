package copula

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"phylosem/domain/core"
	"phylosem/domain/report"
)

const (
	// pitClamp keeps pseudo-observations away from the quantile poles
	pitClamp = 1e-6
	// familyGaussian is the only copula family fitted
	familyGaussian = "gaussian"
)

// Fit is a fitted bivariate Gaussian copula on one axis district
type Fit struct {
	AxisA  string
	AxisB  string
	Rho    float64
	N      int
	LogLik float64
	AIC    float64
}

// FitGaussian fits a Gaussian copula to two residual vectors via rank-PIT
// pseudo-observations and the normal-scores correlation.
func FitGaussian(axisA, axisB string, xs, ys []float64) (Fit, error) {
	if len(xs) != len(ys) || len(xs) < minPairRows {
		return Fit{}, core.InsufficientDataError(minPairRows, len(xs))
	}
	za := normalScores(xs)
	zb := normalScores(ys)
	rho := pearson(za, zb)
	if math.IsNaN(rho) {
		return Fit{}, core.ErrDegenerateFit
	}
	// bound away from the singular boundary
	if rho > 0.999 {
		rho = 0.999
	}
	if rho < -0.999 {
		rho = -0.999
	}
	ll := gaussianLogLik(za, zb, rho)
	return Fit{
		AxisA:  axisA,
		AxisB:  axisB,
		Rho:    rho,
		N:      len(xs),
		LogLik: ll,
		AIC:    -2*ll + 2, // one free parameter
	}, nil
}

// normalScores maps a sample to standard normal quantiles of its scaled
// ranks, rank/(n+1), with ties broken by average rank.
func normalScores(x []float64) []float64 {
	n := len(x)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return x[order[a]] < x[order[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && x[order[j+1]] == x[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}

	norm := distuv.Normal{Mu: 0, Sigma: 1}
	out := make([]float64, n)
	for i, r := range ranks {
		u := r / float64(n+1)
		if u < pitClamp {
			u = pitClamp
		}
		if u > 1-pitClamp {
			u = 1 - pitClamp
		}
		out[i] = norm.Quantile(u)
	}
	return out
}

// gaussianLogLik is the copula log density summed over normal scores
func gaussianLogLik(za, zb []float64, rho float64) float64 {
	r2 := rho * rho
	var ll float64
	for i := range za {
		a, b := za[i], zb[i]
		ll += -0.5*math.Log(1-r2) - (r2*(a*a+b*b)-2*rho*a*b)/(2*(1-r2))
	}
	return ll
}

// GroupedFits refits the district copula within each group and shrinks the
// group estimates toward the pooled rho with weight n/(n+shrinkK). Groups
// with fewer than minRows joint rows are dropped.
func GroupedFits(t *ResidualTable, pooled Fit, shrinkK float64, minRows int) []report.DistrictGroupFit {
	if t.groups == nil {
		return nil
	}
	a, okA := t.Axis(pooled.AxisA)
	b, okB := t.Axis(pooled.AxisB)
	if !okA || !okB {
		return nil
	}

	byGroup := make(map[string][]int)
	var names []string
	for i, g := range t.groups {
		if g == "" {
			continue
		}
		if _, seen := byGroup[g]; !seen {
			names = append(names, g)
		}
		byGroup[g] = append(byGroup[g], i)
	}
	sort.Strings(names)

	var out []report.DistrictGroupFit
	for _, name := range names {
		var xs, ys []float64
		for _, i := range byGroup[name] {
			if finite(a[i]) && finite(b[i]) {
				xs = append(xs, a[i])
				ys = append(ys, b[i])
			}
		}
		if len(xs) < minRows {
			continue
		}
		fit, err := FitGaussian(pooled.AxisA, pooled.AxisB, xs, ys)
		if err != nil {
			continue
		}
		w := float64(fit.N) / (float64(fit.N) + shrinkK)
		out = append(out, report.DistrictGroupFit{
			Group:  name,
			N:      fit.N,
			Rho:    w*fit.Rho + (1-w)*pooled.Rho,
			Weight: w,
		})
	}
	return out
}

// Record converts a fit to its report row
func (f Fit) Record(isDefault bool, groups []report.DistrictGroupFit) report.DistrictRecord {
	return report.DistrictRecord{
		AxisA:   f.AxisA,
		AxisB:   f.AxisB,
		Family:  familyGaussian,
		Rho:     f.Rho,
		N:       f.N,
		LogLik:  f.LogLik,
		AIC:     f.AIC,
		Default: isDefault,
		Groups:  groups,
	}
}
