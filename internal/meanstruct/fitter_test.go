package meanstruct

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"phylosem/domain/dataset"
	"phylosem/domain/model"
)

// linearFrame builds y = 1 + 2*x1 - 0.5*x2 + noise
func linearFrame(t *testing.T, n int, noiseSD float64, seed int64) *dataset.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	species := make([]string, n)
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		species[i] = fmt.Sprintf("sp%03d", i)
		x1[i] = rng.NormFloat64()
		x2[i] = rng.NormFloat64()
		y[i] = 1 + 2*x1[i] - 0.5*x2[i] + noiseSD*rng.NormFloat64()
	}
	f := dataset.New(species)
	f.SetNumeric("x1", x1)
	f.SetNumeric("x2", x2)
	f.SetNumeric("y", y)
	return f
}

func TestFitRecoversLinearCoefficients(t *testing.T) {
	f := linearFrame(t, 400, 0.1, 11)
	form := model.FormSpec{Target: "y", Terms: []model.Term{model.Linear("x1"), model.Linear("x2")}}

	m, outcome, err := Fit(f, form)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if outcome.Status != model.FitOK {
		t.Fatalf("expected clean fit, got %s (%s)", outcome.Status, outcome.Reason)
	}

	checks := []struct {
		name string
		want float64
	}{
		{"(Intercept)", 1},
		{"x1", 2},
		{"x2", -0.5},
	}
	for _, c := range checks {
		coef, ok := m.Coefficient(c.name)
		if !ok {
			t.Fatalf("missing coefficient %s", c.name)
		}
		if math.Abs(coef.Estimate-c.want) > 0.05 {
			t.Errorf("%s = %.4f, want %.4f ± 0.05", c.name, coef.Estimate, c.want)
		}
		if coef.PValue > 1e-6 {
			t.Errorf("%s: expected a decisive p-value, got %v", c.name, coef.PValue)
		}
	}
}

func TestFitMissingColumnFails(t *testing.T) {
	f := linearFrame(t, 50, 0.1, 12)
	form := model.FormSpec{Target: "y", Terms: []model.Term{model.Linear("absent")}}
	if _, _, err := Fit(f, form); err == nil {
		t.Error("expected error for missing predictor column")
	}
}

func TestPredictMatchesInSampleFit(t *testing.T) {
	f := linearFrame(t, 200, 0.2, 13)
	form := model.FormSpec{Target: "y", Terms: []model.Term{model.Linear("x1"), model.Linear("x2")}}
	m, _, err := Fit(f, form)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	pred, err := m.Predict(f)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	resid, err := m.Residuals(f)
	if err != nil {
		t.Fatalf("Residuals: %v", err)
	}
	y, _ := f.Numeric("y")
	for i := range y {
		if math.IsNaN(pred[i]) {
			t.Fatalf("row %d: unexpected NaN prediction", i)
		}
		if math.Abs(y[i]-pred[i]-resid[i]) > 1e-9 {
			t.Fatalf("row %d: residual inconsistent with prediction", i)
		}
	}
}

func TestPredictNaNForMissingPredictor(t *testing.T) {
	f := linearFrame(t, 100, 0.2, 14)
	form := model.FormSpec{Target: "y", Terms: []model.Term{model.Linear("x1")}}
	m, _, err := Fit(f, form)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	probe := linearFrame(t, 10, 0.2, 15)
	x1, _ := probe.Numeric("x1")
	x1[4] = math.NaN()
	probe.SetNumeric("x1", x1)

	pred, err := m.Predict(probe)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !math.IsNaN(pred[4]) {
		t.Errorf("expected NaN for row with missing predictor, got %v", pred[4])
	}
	if math.IsNaN(pred[0]) {
		t.Error("complete row should still predict")
	}
}

func TestSmoothCapturesNonlinearity(t *testing.T) {
	rng := rand.New(rand.NewSource(16))
	n := 300
	species := make([]string, n)
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		species[i] = fmt.Sprintf("sp%03d", i)
		x[i] = 4*rng.Float64() - 2
		y[i] = math.Sin(2*x[i]) + 0.1*rng.NormFloat64()
	}
	f := dataset.New(species)
	f.SetNumeric("x", x)
	f.SetNumeric("y", y)

	linForm := model.FormSpec{Target: "y", Terms: []model.Term{model.Linear("x")}}
	smForm := model.FormSpec{Target: "y", Terms: []model.Term{model.Smooth("x", 8)}}

	lin, _, err := Fit(f, linForm)
	if err != nil {
		t.Fatalf("linear fit: %v", err)
	}
	sm, outcome, err := Fit(f, smForm)
	if err != nil {
		t.Fatalf("smooth fit: %v", err)
	}
	if !outcome.Usable() {
		t.Fatalf("smooth fit unusable: %s", outcome.Reason)
	}
	if sm.RSS() >= lin.RSS()/2 {
		t.Errorf("smooth RSS %.3f did not improve enough on linear RSS %.3f", sm.RSS(), lin.RSS())
	}
	if sm.EDF() <= 2 {
		t.Errorf("smooth used suspiciously few degrees of freedom: %.2f", sm.EDF())
	}
}

func TestPenalizedFormStaysIdentifiable(t *testing.T) {
	// a centered partition-of-unity basis is rank deficient next to the
	// intercept unless one column is dropped; this form exercises a smooth
	// and a tensor together and must still resolve to a usable fit
	rng := rand.New(rand.NewSource(21))
	n := 300
	species := make([]string, n)
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	x3 := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		species[i] = fmt.Sprintf("sp%03d", i)
		x1[i] = rng.NormFloat64()
		x2[i] = 4*rng.Float64() - 2
		x3[i] = rng.NormFloat64()
		y[i] = 1 + x1[i] + math.Sin(2*x2[i]) + 0.3*x1[i]*x3[i] + 0.1*rng.NormFloat64()
	}
	f := dataset.New(species)
	f.SetNumeric("x1", x1)
	f.SetNumeric("x2", x2)
	f.SetNumeric("x3", x3)
	f.SetNumeric("y", y)

	form := model.FormSpec{Target: "y", Terms: []model.Term{
		model.Linear("x1"),
		model.Smooth("x2", 0),
		model.Linear("x3"),
		model.Tensor("x1", "x3", 0),
	}}
	m, outcome, err := Fit(f, form)
	if err != nil {
		t.Fatalf("penalized fit: %v", err)
	}
	if !outcome.Usable() {
		t.Fatalf("penalized fit unusable: %s", outcome.Reason)
	}
	pred, err := m.Predict(f)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i, v := range pred {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("prediction %d is not finite: %v", i, v)
		}
	}
}

func TestRandomInterceptShrinksClusterResiduals(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	n := 240
	clusters := 8
	offsets := make([]float64, clusters)
	for j := range offsets {
		offsets[j] = 2 * rng.NormFloat64()
	}

	species := make([]string, n)
	x := make([]float64, n)
	y := make([]float64, n)
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		species[i] = fmt.Sprintf("sp%03d", i)
		j := i % clusters
		labels[i] = fmt.Sprintf("c%d", j)
		x[i] = rng.NormFloat64()
		y[i] = 1 + 2*x[i] + offsets[j] + 0.3*rng.NormFloat64()
	}
	f := dataset.New(species)
	f.SetNumeric("x", x)
	f.SetNumeric("y", y)
	f.SetLabel("fam", labels)

	plain := model.FormSpec{Target: "y", Terms: []model.Term{model.Linear("x")}}
	mixed := model.FormSpec{Target: "y", Terms: []model.Term{model.Linear("x"), model.RandomIntercept("fam")}}

	pm, _, err := Fit(f, plain)
	if err != nil {
		t.Fatalf("plain fit: %v", err)
	}
	mm, outcome, err := Fit(f, mixed)
	if err != nil {
		t.Fatalf("mixed fit: %v", err)
	}
	if outcome.Status != model.FitOK {
		t.Fatalf("expected clean mixed fit, got %s (%s)", outcome.Status, outcome.Reason)
	}

	plainResid, _ := pm.Residuals(f)
	mixedResid, _ := mm.Residuals(f)
	if rss(mixedResid) >= rss(plainResid)/2 {
		t.Errorf("random intercept did not absorb cluster offsets: mixed %.2f vs plain %.2f",
			rss(mixedResid), rss(plainResid))
	}
}

func TestRandomInterceptDegradesWithOneCluster(t *testing.T) {
	f := linearFrame(t, 80, 0.2, 18)
	labels := make([]string, 80)
	for i := range labels {
		labels[i] = "only"
	}
	f.SetLabel("fam", labels)

	form := model.FormSpec{Target: "y", Terms: []model.Term{model.Linear("x1"), model.RandomIntercept("fam")}}
	m, outcome, err := Fit(f, form)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if outcome.Status != model.FitDegraded {
		t.Errorf("expected degraded fit with a single cluster, got %s", outcome.Status)
	}
	if m == nil {
		t.Error("degraded fit should still return a model")
	}
}

func rss(resid []float64) float64 {
	var s float64
	for _, r := range resid {
		if !math.IsNaN(r) {
			s += r * r
		}
	}
	return s
}
