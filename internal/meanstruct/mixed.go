package meanstruct

import "math"

// randomIntercepts holds the BLUP intercept per cluster level and its
// variance components. Unseen clusters predict at the population level
// (zero random effect).
type randomIntercepts struct {
	SigmaB2    float64            `json:"sigma_b2"`
	SigmaE2    float64            `json:"sigma_e2"`
	Intercepts map[string]float64 `json:"intercepts"`
}

// estimateRandomIntercepts estimates between-cluster variance from the fixed
// effect residuals with the one-way ANOVA moment estimator, then shrinks each
// cluster mean by the classic BLUP factor n_j σ²_b / (n_j σ²_b + σ²_e).
// Returns nil when the cluster structure is degenerate (fewer than two
// levels with data).
func estimateRandomIntercepts(residuals []float64, clusters []string) *randomIntercepts {
	sums := make(map[string]float64)
	counts := make(map[string]float64)
	total, n := 0.0, 0.0
	for i, r := range residuals {
		label := clusters[i]
		if label == "" || math.IsNaN(r) {
			continue
		}
		sums[label] += r
		counts[label]++
		total += r
		n++
	}
	m := float64(len(counts))
	if m < 2 || n <= m {
		return nil
	}
	grand := total / n

	// Within- and between-cluster mean squares
	ssw, ssb, sumSqCounts := 0.0, 0.0, 0.0
	for i, r := range residuals {
		label := clusters[i]
		if label == "" || math.IsNaN(r) {
			continue
		}
		d := r - sums[label]/counts[label]
		ssw += d * d
	}
	for label, c := range counts {
		d := sums[label]/c - grand
		ssb += c * d * d
		sumSqCounts += c * c
	}
	msw := ssw / (n - m)
	msb := ssb / (m - 1)
	n0 := (n - sumSqCounts/n) / (m - 1)
	if n0 <= 0 {
		return nil
	}

	sigmaB2 := math.Max(0, (msb-msw)/n0)
	sigmaE2 := msw

	intercepts := make(map[string]float64, len(counts))
	for label, c := range counts {
		mean := sums[label] / c
		denom := c*sigmaB2 + sigmaE2
		if denom <= 0 {
			intercepts[label] = 0
			continue
		}
		intercepts[label] = c * sigmaB2 / denom * mean
	}

	return &randomIntercepts{
		SigmaB2:    sigmaB2,
		SigmaE2:    sigmaE2,
		Intercepts: intercepts,
	}
}

// effect returns the random intercept for a cluster, zero when unseen
func (ri *randomIntercepts) effect(cluster string) float64 {
	if ri == nil {
		return 0
	}
	return ri.Intercepts[cluster]
}
