package dsep

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"phylosem/domain/dataset"
)

// chainFrame builds x -> z -> y, so x _||_ y | z holds while x _||_ y fails
func chainFrame(t *testing.T, n int, seed int64) *dataset.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	species := make([]string, n)
	x := make([]float64, n)
	z := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		species[i] = fmt.Sprintf("sp%03d", i)
		x[i] = rng.NormFloat64()
		z[i] = 1.5*x[i] + 0.4*rng.NormFloat64()
		y[i] = 2*z[i] + 0.4*rng.NormFloat64()
	}
	f := dataset.New(species)
	f.SetNumeric("x", x)
	f.SetNumeric("z", z)
	f.SetNumeric("y", y)
	return f
}

func TestClaimString(t *testing.T) {
	c := Claim{A: "x", B: "y", Conditioning: []string{"z", "w"}}
	if got := c.String(); got != "x _||_ y | [z w]" {
		t.Errorf("String() = %q", got)
	}
	marginal := Claim{A: "x", B: "y"}
	if got := marginal.String(); got != "x _||_ y" {
		t.Errorf("String() = %q", got)
	}
}

func TestTrueClaimAccepted(t *testing.T) {
	f := chainFrame(t, 400, 31)
	res, err := Test(f, []Claim{{A: "x", B: "y", Conditioning: []string{"z"}}})
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if res.PValue < 0.01 {
		t.Errorf("true conditional independence rejected: C=%.2f p=%v", res.C, res.PValue)
	}
	if res.DF != 2 {
		t.Errorf("one claim should give 2 df, got %d", res.DF)
	}
}

func TestFalseClaimRejected(t *testing.T) {
	f := chainFrame(t, 400, 32)
	res, err := Test(f, []Claim{{A: "x", B: "y"}})
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if res.PValue > 1e-6 {
		t.Errorf("strong marginal dependence not rejected: p=%v", res.PValue)
	}
}

// TestFisherCCalibration draws many null datasets and checks that the
// combined statistic rejects at roughly the nominal rate for several basis
// set sizes.
func TestCorrelationPValueStaysPositiveInDeepTail(t *testing.T) {
	// a near-perfect correlation drives |t| far into the tail where
	// 1 - CDF(|t|) underflows to zero; the survival form must not
	rng := rand.New(rand.NewSource(29))
	n := 400
	species := make([]string, n)
	x := make([]float64, n)
	y := make([]float64, n)
	// r near 0.5 at n=400 puts |t| around 12, where the two-sided p-value
	// sits near 1e-30: beyond the 1e-16 resolution of 1 - CDF
	for i := 0; i < n; i++ {
		species[i] = fmt.Sprintf("sp%03d", i)
		x[i] = rng.NormFloat64()
		y[i] = x[i] + 1.7*rng.NormFloat64()
	}
	f := dataset.New(species)
	f.SetNumeric("x", x)
	f.SetNumeric("y", y)

	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	res, err := correlationClaim(f, Claim{A: "x", B: "y"}, rows)
	if err != nil {
		t.Fatalf("correlationClaim: %v", err)
	}
	if res.PValue <= 0 {
		t.Errorf("tail p-value underflowed to %v, want > 0", res.PValue)
	}
	if res.PValue > 1e-16 {
		t.Errorf("p-value %v too large for |t| = %v", res.PValue, res.TValue)
	}
	if res.PValue < 1e-60 {
		t.Errorf("p-value %v implausibly small for |t| = %v", res.PValue, res.TValue)
	}
}

func TestFisherCCalibration(t *testing.T) {
	if testing.Short() {
		t.Skip("simulation test")
	}
	for _, k := range []int{1, 2, 5} {
		k := k
		t.Run(fmt.Sprintf("claims_%d", k), func(t *testing.T) {
			reps := 400
			n := 120
			rejections := 0
			rng := rand.New(rand.NewSource(int64(1000 + k)))
			for rep := 0; rep < reps; rep++ {
				species := make([]string, n)
				f := dataset.New(speciesNames(species))
				claims := make([]Claim, k)
				for c := 0; c < k; c++ {
					a := make([]float64, n)
					b := make([]float64, n)
					for i := 0; i < n; i++ {
						a[i] = rng.NormFloat64()
						b[i] = rng.NormFloat64()
					}
					an := fmt.Sprintf("a%d", c)
					bn := fmt.Sprintf("b%d", c)
					f.SetNumeric(an, a)
					f.SetNumeric(bn, b)
					claims[c] = Claim{A: an, B: bn}
				}
				res, err := Test(f, claims)
				if err != nil {
					t.Fatalf("Test: %v", err)
				}
				if res.PValue < 0.05 {
					rejections++
				}
			}
			rate := float64(rejections) / float64(reps)
			if math.Abs(rate-0.05) > 0.04 {
				t.Errorf("null rejection rate %.3f far from nominal 0.05", rate)
			}
		})
	}
}

func speciesNames(buf []string) []string {
	for i := range buf {
		buf[i] = fmt.Sprintf("sp%04d", i)
	}
	return buf
}

func TestGroupedSumsAcrossGroups(t *testing.T) {
	f := chainFrame(t, 300, 33)
	labels := make([]string, 300)
	for i := range labels {
		if i%2 == 0 {
			labels[i] = "woody"
		} else {
			labels[i] = "non-woody"
		}
	}
	f.SetLabel("grp", labels)

	claims := []Claim{{A: "x", B: "y", Conditioning: []string{"z"}}}
	grouped, err := TestGrouped(f, claims, "grp")
	if err != nil {
		t.Fatalf("TestGrouped: %v", err)
	}
	if len(grouped.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(grouped.Groups))
	}
	var c float64
	df := 0
	for _, res := range grouped.Groups {
		c += res.C
		df += res.DF
	}
	if math.Abs(grouped.C-c) > 1e-9 || grouped.DF != df {
		t.Errorf("omnibus C/df must sum the groups: got C=%.3f df=%d, want C=%.3f df=%d",
			grouped.C, grouped.DF, c, df)
	}
}

func TestGroupedSkipsSmallGroups(t *testing.T) {
	f := chainFrame(t, 100, 34)
	labels := make([]string, 100)
	for i := range labels {
		if i < 5 {
			labels[i] = "rare"
		} else {
			labels[i] = "common"
		}
	}
	f.SetLabel("grp", labels)

	grouped, err := TestGrouped(f, []Claim{{A: "x", B: "y", Conditioning: []string{"z"}}}, "grp")
	if err != nil {
		t.Fatalf("TestGrouped: %v", err)
	}
	if _, ok := grouped.Groups["rare"]; ok {
		t.Error("undersized group should be skipped")
	}
	if got := grouped.Skipped["rare"]; got != 5 {
		t.Errorf("skipped group should record its size, got %d", got)
	}
}

func TestEqualityPrefersPooledWhenHomogeneous(t *testing.T) {
	f := chainFrame(t, 400, 35)
	labels := make([]string, 400)
	for i := range labels {
		labels[i] = []string{"g1", "g2"}[i%2]
	}
	f.SetLabel("grp", labels)

	res, err := TestEquality(f, Claim{A: "x", B: "y", Conditioning: []string{"z"}}, "grp")
	if err != nil {
		t.Fatalf("TestEquality: %v", err)
	}
	if res.Warranted {
		t.Errorf("identical group mechanisms should not warrant a split: pooled IC %.1f vs split %.1f",
			res.PooledIC, res.SplitIC)
	}
}

func TestEqualitySplitsHeterogeneousGroups(t *testing.T) {
	rng := rand.New(rand.NewSource(36))
	n := 400
	species := make([]string, n)
	x := make([]float64, n)
	y := make([]float64, n)
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		species[i] = fmt.Sprintf("sp%03d", i)
		x[i] = rng.NormFloat64()
		if i%2 == 0 {
			labels[i] = "g1"
			y[i] = 3*x[i] + 0.3*rng.NormFloat64()
		} else {
			labels[i] = "g2"
			y[i] = -3*x[i] + 0.3*rng.NormFloat64()
		}
	}
	f := dataset.New(species)
	f.SetNumeric("x", x)
	f.SetNumeric("y", y)
	f.SetLabel("grp", labels)

	res, err := TestEquality(f, Claim{A: "x", B: "y"}, "grp")
	if err != nil {
		t.Fatalf("TestEquality: %v", err)
	}
	if !res.Warranted {
		t.Errorf("opposite slopes should warrant group-specific fits: pooled IC %.1f vs split %.1f",
			res.PooledIC, res.SplitIC)
	}
	if len(res.PerGroup) != 2 {
		t.Errorf("expected two per-group results, got %d", len(res.PerGroup))
	}
}
