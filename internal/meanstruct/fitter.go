package meanstruct

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"phylosem/domain/core"
	"phylosem/domain/dataset"
	"phylosem/domain/model"
)

// Model is an immutable fitted mean structure. It is created per fold for
// cross-validation and once on the full data for d-separation and residual
// work; a changed form always yields a new Model.
type Model struct {
	Form    model.FormSpec
	Outcome model.FitOutcome

	names  []string
	fit    *lsFit
	bases  *basisSet
	coefs  []Coefficient
	random *randomIntercepts
	n      int
}

// Fit fits the requested form on the frame's complete cases. Missing-column
// problems surface as errors (configuration failures); statistical
// degeneracies resolve to a Failed outcome with a nil model, and a degenerate
// cluster structure degrades to the plain form.
func Fit(f *dataset.Frame, form model.FormSpec) (*Model, model.FitOutcome, error) {
	columns := form.NumericColumns()
	if err := f.Require(columns...); err != nil {
		return nil, model.Failed(err.Error()), err
	}

	rows, err := f.CompleteCases(columns...)
	if err != nil {
		return nil, model.Failed(err.Error()), err
	}

	fixed := form.FixedTerms()
	names := columnNames(fixed)
	if len(rows) <= len(names) {
		out := model.Failed(fmt.Sprintf("%d complete rows for %d coefficients", len(rows), len(names)))
		return nil, out, nil
	}

	bases, err := fitBases(f, rows, fixed)
	if err != nil {
		return nil, model.Failed(err.Error()), nil
	}

	x, blocks, err := buildDesign(f, rows, fixed, bases)
	if err != nil {
		return nil, model.Failed(err.Error()), nil
	}

	target, err := f.Numeric(form.Target)
	if err != nil {
		return nil, model.Failed(err.Error()), err
	}
	y := gather(target, rows)

	fit, err := fitLeastSquares(x, y, blocks)
	if err != nil {
		return nil, model.Failed(err.Error()), nil
	}

	m := &Model{
		Form:    form,
		Outcome: model.OK(),
		names:   names,
		fit:     fit,
		bases:   bases,
		n:       len(rows),
	}

	if cluster := form.Cluster(); cluster != "" {
		outcome := m.fitRandom(f, rows, x, y, cluster, blocks)
		m.Outcome = outcome
	}

	m.coefs = coefficientTable(names, m.fit, m.n)
	return m, m.Outcome, nil
}

// fitRandom layers a per-cluster random intercept over the fixed fit: moment
// estimate of the variance components from the residuals, one reweighted
// refit of the fixed effects, then final BLUPs. Falls back to the plain form
// with a Degraded outcome when the cluster structure cannot support it.
func (m *Model) fitRandom(f *dataset.Frame, rows []int, x *mat.Dense, y []float64, cluster string, blocks []penaltyBlock) model.FitOutcome {
	labels, err := f.Label(cluster)
	if err != nil {
		return model.Degraded(fmt.Sprintf("cluster column %s missing, using plain regression", cluster))
	}
	rowLabels := make([]string, len(rows))
	for i, r := range rows {
		rowLabels[i] = labels[r]
	}

	resid := residualsOf(x, y, m.fit.beta)
	random := estimateRandomIntercepts(resid, rowLabels)
	if random == nil {
		return model.Degraded("cluster structure degenerate, using plain regression")
	}

	// One refit of the fixed effects against the cluster-adjusted response
	adjusted := make([]float64, len(y))
	for i := range y {
		adjusted[i] = y[i] - random.effect(rowLabels[i])
	}
	refit, err2 := fitLeastSquares(x, adjusted, blocks)
	if err2 != nil {
		return model.Degraded("mixed refit failed, using plain regression")
	}
	m.fit = refit
	random = estimateRandomIntercepts(residualsOf(x, y, refit.beta), rowLabels)
	m.random = random
	return model.OK()
}

// Predict evaluates the model on new rows. Rows with missing predictors get
// NaN; cluster labels unseen in training get the population-level prediction.
func (m *Model) Predict(f *dataset.Frame) ([]float64, error) {
	fixed := m.Form.FixedTerms()
	for _, t := range fixed {
		for _, v := range t.Variables {
			if !f.HasNumeric(v) {
				return nil, core.MissingColumnError(v)
			}
		}
	}

	var clusterLabels []string
	if cluster := m.Form.Cluster(); cluster != "" && m.random != nil && f.HasLabel(cluster) {
		clusterLabels, _ = f.Label(cluster)
	}

	out := make([]float64, f.Len())
	for i := range out {
		row, err := designRow(f, i, fixed, m.bases)
		if err != nil {
			return nil, err
		}
		if row == nil {
			out[i] = math.NaN()
			continue
		}
		pred := 0.0
		for j, b := range m.fit.beta {
			pred += b * row[j]
		}
		if clusterLabels != nil {
			pred += m.random.effect(clusterLabels[i])
		}
		out[i] = pred
	}
	return out, nil
}

// Residuals returns observed minus predicted aligned with the frame rows;
// rows unusable for prediction or with a missing response carry NaN.
func (m *Model) Residuals(f *dataset.Frame) ([]float64, error) {
	pred, err := m.Predict(f)
	if err != nil {
		return nil, err
	}
	obs, err := f.Numeric(m.Form.Target)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(pred))
	for i := range out {
		out[i] = obs[i] - pred[i]
	}
	return out, nil
}

// Coefficients returns the fitted coefficient table
func (m *Model) Coefficients() []Coefficient {
	out := make([]Coefficient, len(m.coefs))
	copy(out, m.coefs)
	return out
}

// Coefficient looks up one coefficient by design column name
func (m *Model) Coefficient(name string) (Coefficient, bool) {
	for _, c := range m.coefs {
		if c.Name == name {
			return c, true
		}
	}
	return Coefficient{}, false
}

// N returns the number of rows the model was fit on
func (m *Model) N() int { return m.n }

// RSS returns the residual sum of squares at fit time
func (m *Model) RSS() float64 { return m.fit.rss }

// EDF returns the effective degrees of freedom consumed by the fit
func (m *Model) EDF() float64 { return m.fit.edf }

func residualsOf(x *mat.Dense, y []float64, beta []float64) []float64 {
	n, _ := x.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		pred := 0.0
		for j, b := range beta {
			pred += b * x.At(i, j)
		}
		out[i] = y[i] - pred
	}
	return out
}
