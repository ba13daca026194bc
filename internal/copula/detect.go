package copula

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"phylosem/domain/report"
)

const minPairRows = 10

// Detector screens residual axis pairs for dependence surviving an FDR
// correction and a minimum-correlation threshold, then forms non-overlapping
// districts from the survivors.
type Detector struct {
	RhoMin float64
	FDRQ   float64
	// MinGroupRows excludes groups with fewer jointly observed rows from
	// per-group copula refits; values below the pairwise floor are raised
	// to it
	MinGroupRows int
}

func (d Detector) minGroupRows() int {
	if d.MinGroupRows < minPairRows {
		return minPairRows
	}
	return d.MinGroupRows
}

// Correlations computes Pearson correlations and two-sided p-values for every
// unordered axis pair with enough jointly observed rows.
func (d Detector) Correlations(t *ResidualTable) []report.PairCorrelation {
	var out []report.PairCorrelation
	for i := 0; i < len(t.Axes); i++ {
		for j := i + 1; j < len(t.Axes); j++ {
			xs, ys, _ := t.pairComplete(t.Axes[i], t.Axes[j])
			if len(xs) < minPairRows {
				continue
			}
			r := pearson(xs, ys)
			if math.IsNaN(r) {
				continue
			}
			out = append(out, report.PairCorrelation{
				AxisA:  t.Axes[i],
				AxisB:  t.Axes[j],
				N:      len(xs),
				R:      r,
				PValue: correlationP(r, len(xs)),
			})
		}
	}
	return out
}

// BenjaminiHochberg fills adjusted p-values via the step-up FDR procedure and
// marks the pairs selected at level q. Annotates in place and returns the
// slice.
func BenjaminiHochberg(pairs []report.PairCorrelation, q float64) []report.PairCorrelation {
	m := len(pairs)
	if m == 0 {
		return pairs
	}
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return pairs[order[a]].PValue < pairs[order[b]].PValue
	})
	// adjusted p is the running minimum of p*m/rank from the largest rank down
	adj := make([]float64, m)
	running := 1.0
	for rank := m - 1; rank >= 0; rank-- {
		idx := order[rank]
		v := pairs[idx].PValue * float64(m) / float64(rank+1)
		if v < running {
			running = v
		}
		adj[idx] = running
	}
	for i := range pairs {
		pairs[i].AdjP = adj[i]
		pairs[i].Selected = adj[i] <= q
	}
	return pairs
}

// Districts greedily matches selected pairs into disjoint two-axis
// districts, strongest absolute correlation first. Each axis joins at most
// one district.
func (d Detector) Districts(pairs []report.PairCorrelation) []report.PairCorrelation {
	var eligible []report.PairCorrelation
	for _, p := range pairs {
		if p.Selected && math.Abs(p.R) >= d.RhoMin {
			eligible = append(eligible, p)
		}
	}
	sort.Slice(eligible, func(a, b int) bool {
		return math.Abs(eligible[a].R) > math.Abs(eligible[b].R)
	})
	used := make(map[string]bool)
	var districts []report.PairCorrelation
	for _, p := range eligible {
		if used[p.AxisA] || used[p.AxisB] {
			continue
		}
		used[p.AxisA] = true
		used[p.AxisB] = true
		districts = append(districts, p)
	}
	return districts
}

func pearson(x, y []float64) float64 {
	n := float64(len(x))
	if n < 2 {
		return math.NaN()
	}
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n
	var sxy, sxx, syy float64
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

// correlationP is the two-sided p-value for r under the null of zero
// correlation, via the t transform with n-2 degrees of freedom.
func correlationP(r float64, n int) float64 {
	if n <= 2 {
		return 1
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	t := r * math.Sqrt(float64(n-2)/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	p := 2 * dist.Survival(math.Abs(t))
	if p > 1 {
		p = 1
	}
	return p
}
