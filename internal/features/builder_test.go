package features

import (
	"math"
	"math/rand"
	"testing"

	"phylosem/domain/dataset"
)

func traitFrame(t *testing.T, n int, seed int64) *dataset.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	species := make([]string, n)
	cols := map[string][]float64{
		ColLeafArea: make([]float64, n),
		ColHeight:   make([]float64, n),
		ColSeedMass: make([]float64, n),
		ColStemDens: make([]float64, n),
		ColLMA:      make([]float64, n),
		ColNmass:    make([]float64, n),
	}
	for i := 0; i < n; i++ {
		species[i] = string(rune('a' + i%26))
		les := rng.NormFloat64()
		size := rng.NormFloat64()
		cols[ColLeafArea][i] = math.Pow(10, 1+0.4*les+0.1*rng.NormFloat64())
		cols[ColHeight][i] = math.Pow(10, 0.8*size+0.1*rng.NormFloat64())
		cols[ColSeedMass][i] = math.Pow(10, 0.6*size+0.1*rng.NormFloat64())
		cols[ColStemDens][i] = math.Pow(10, -0.3+0.1*rng.NormFloat64())
		cols[ColLMA][i] = math.Pow(10, 1.5-0.7*les+0.1*rng.NormFloat64())
		cols[ColNmass][i] = math.Pow(10, 0.3+0.7*les+0.1*rng.NormFloat64())
	}

	f := dataset.New(species)
	for name, col := range cols {
		if err := f.SetNumeric(name, col); err != nil {
			t.Fatalf("SetNumeric %s: %v", name, err)
		}
	}
	return f
}

func TestLogOffsetRule(t *testing.T) {
	// median of positives is 100, so the offset is 1e-3 * 100 = 0.1
	raw := []float64{0, 10, 100, 1000, math.NaN()}
	if got := logOffset(raw); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("logOffset = %v, want 0.1", got)
	}

	// tiny medians floor at the minimum offset
	tiny := []float64{1e-9, 1e-9, 1e-9}
	if got := logOffset(tiny); got != minLogOffset {
		t.Errorf("logOffset = %v, want %v", got, minLogOffset)
	}
}

func TestFitUsesTrainingRowsOnly(t *testing.T) {
	train := traitFrame(t, 120, 1)
	testA := traitFrame(t, 40, 2)
	testB := traitFrame(t, 40, 3)

	spec := Default()
	p1, err := spec.Fit(train)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// Test partition contents must not influence fitted parameters
	_, _, p2, err := spec.Build(train, testA)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, _, p3, err := spec.Build(train, testB)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for raw, off := range p1.Offsets {
		if p2.Offsets[raw] != off || p3.Offsets[raw] != off {
			t.Errorf("offset for %s differs across test partitions", raw)
		}
	}
	for name, l1 := range p1.Loadings {
		l2 := p2.Loadings[name]
		for i := range l1 {
			if l1[i] != l2[i] {
				t.Errorf("loading %s[%d] differs across test partitions", name, i)
			}
		}
	}
}

func TestCompositeSignConvention(t *testing.T) {
	f := traitFrame(t, 200, 4)
	spec := Default()
	p, err := spec.Fit(f)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	for _, comp := range spec.Composites {
		loadings := p.Loadings[comp.Name]
		ref := -1
		for i, input := range comp.Inputs {
			if input == comp.Reference {
				ref = i
			}
		}
		if ref < 0 {
			t.Fatalf("reference %s not among inputs of %s", comp.Reference, comp.Name)
		}
		if loadings[ref] <= 0 {
			t.Errorf("%s: reference loading %v not positive", comp.Name, loadings[ref])
		}
	}
}

func TestApplyAddsDerivedColumns(t *testing.T) {
	f := traitFrame(t, 100, 5)
	spec := Default()
	p, err := spec.Fit(f)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	built, err := spec.Apply(p, f)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for _, col := range []string{ColLogLA, ColLogH, ColLogSM, ColLogSSD, ColLogLMA, ColLogNmass, ColLES, ColSIZE} {
		if !built.HasNumeric(col) {
			t.Errorf("missing derived column %s", col)
		}
	}

	// LES should track nmass positively given the anchoring
	les, _ := built.Numeric(ColLES)
	logNmass, _ := built.Numeric(ColLogNmass)
	var sxy float64
	for i := range les {
		sxy += les[i] * (logNmass[i] - mean(logNmass))
	}
	if sxy <= 0 {
		t.Error("LES is anti-correlated with logNmass despite the sign anchor")
	}
}

func TestApplyPropagatesMissingAsNaN(t *testing.T) {
	f := traitFrame(t, 60, 6)
	lma, _ := f.Numeric(ColLMA)
	lma[3] = math.NaN()
	if err := f.SetNumeric(ColLMA, lma); err != nil {
		t.Fatalf("SetNumeric: %v", err)
	}

	spec := Default()
	p, err := spec.Fit(f)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	built, err := spec.Apply(p, f)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	les, _ := built.Numeric(ColLES)
	if !math.IsNaN(les[3]) {
		t.Errorf("expected NaN composite for row with missing input, got %v", les[3])
	}
}

func mean(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}
	return s / float64(len(x))
}
