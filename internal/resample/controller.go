package resample

import (
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"phylosem/domain/core"
	"phylosem/domain/dataset"
	"phylosem/domain/model"
	"phylosem/domain/report"
	"phylosem/internal"
	"phylosem/internal/features"
	"phylosem/internal/meanstruct"
)

// Controller runs repeated stratified k-fold cross-validation. Folds are
// mutually independent given the partition, so they execute in parallel;
// randomness is seeded per repeat (seed + repeat index) for reproducibility.
type Controller struct {
	Folds    int
	Repeats  int
	Bins     int
	Seed     int64
	MinTrain int
	MinTest  int
	Workers  int

	Builder features.Spec
	Log     *internal.Logger
}

// Fold is one train/test cell of the plan
type Fold struct {
	Repeat int
	Index  int
	Train  []int
	Test   []int
}

// Evaluation is the full output of one cross-validated model assessment
type Evaluation struct {
	PerFold     []report.FoldMetrics
	Summary     report.MetricSummary
	Predictions []report.FoldPrediction
}

// Plan lays out every repeat×fold cell for a response vector
func (c *Controller) Plan(y []float64) ([]Fold, error) {
	var plan []Fold
	for rep := 0; rep < c.Repeats; rep++ {
		rng := rand.New(rand.NewSource(c.Seed + int64(rep)))
		labels, err := StratifiedFolds(y, c.Folds, c.Bins, rng)
		if err != nil {
			return nil, err
		}
		for k := 0; k < c.Folds; k++ {
			var train, test []int
			for i, label := range labels {
				switch label {
				case -1:
					// response missing, row unusable for this target
				case k:
					test = append(test, i)
				default:
					train = append(train, i)
				}
			}
			plan = append(plan, Fold{Repeat: rep, Index: k, Train: train, Test: test})
		}
	}
	return plan, nil
}

// Evaluate cross-validates one mean structure on the data. Features are
// rebuilt per training fold; a failed or undersized fold is skipped and
// excluded from aggregation rather than counted as zero.
func (c *Controller) Evaluate(data *dataset.Frame, form model.FormSpec) (*Evaluation, error) {
	y, err := data.Numeric(form.Target)
	if err != nil {
		return nil, err
	}
	plan, err := c.Plan(y)
	if err != nil {
		return nil, err
	}

	cells := make([]foldCell, len(plan))

	workers := c.Workers
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)

	for idx := range plan {
		idx := idx
		g.Go(func() error {
			fold := plan[idx]
			cells[idx] = c.runFold(data, form, fold)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	eval := &Evaluation{}
	var r2s, rmses, maes []float64
	skipped := 0
	for _, cl := range cells {
		if cl.skipped {
			skipped++
			continue
		}
		eval.PerFold = append(eval.PerFold, cl.metrics)
		eval.Predictions = append(eval.Predictions, cl.predictions...)
		r2s = append(r2s, cl.metrics.R2)
		rmses = append(rmses, cl.metrics.RMSE)
		maes = append(maes, cl.metrics.MAE)
	}

	eval.Summary = report.MetricSummary{Axis: form.Target, Cells: len(r2s), Skipped: skipped}
	eval.Summary.R2Mean, eval.Summary.R2SD = meanSD(r2s)
	eval.Summary.RMSEMean, eval.Summary.RMSESD = meanSD(rmses)
	eval.Summary.MAEMean, eval.Summary.MAESD = meanSD(maes)

	if c.Log != nil {
		c.Log.Info("[Resample] %s: %d cells (%d skipped), R2 %.3f ± %.3f",
			form.Target, eval.Summary.Cells, skipped, eval.Summary.R2Mean, eval.Summary.R2SD)
	}
	if len(r2s) == 0 {
		return eval, core.InsufficientDataError(1, 0)
	}
	return eval, nil
}

// foldCell is the result of one repeat×fold unit
type foldCell struct {
	metrics     report.FoldMetrics
	predictions []report.FoldPrediction
	skipped     bool
}

// runFold executes one train/predict cycle. Any per-unit failure marks the
// cell skipped; it never aborts the resampling loop.
func (c *Controller) runFold(data *dataset.Frame, form model.FormSpec, fold Fold) (out foldCell) {
	out.skipped = true
	if len(fold.Train) < c.MinTrain || len(fold.Test) < c.MinTest {
		return out
	}

	trainRaw := data.Subset(fold.Train)
	testRaw := data.Subset(fold.Test)

	train, test, _, err := c.Builder.Build(trainRaw, testRaw)
	if err != nil {
		if c.Log != nil {
			c.Log.Warn("[Resample] fold r%d/f%d feature build failed: %v", fold.Repeat, fold.Index, err)
		}
		return out
	}

	fitted, outcome, err := meanstruct.Fit(train, form)
	if err != nil || !outcome.Usable() {
		if c.Log != nil {
			c.Log.Warn("[Resample] fold r%d/f%d fit skipped: %s", fold.Repeat, fold.Index, outcome.Reason)
		}
		return out
	}

	predicted, err := fitted.Predict(test)
	if err != nil {
		return out
	}
	observed, err := test.Numeric(form.Target)
	if err != nil {
		return out
	}

	scores, ok := Score(observed, predicted)
	if !ok {
		return out
	}

	out.skipped = false
	out.metrics = report.FoldMetrics{
		Axis:   form.Target,
		Repeat: fold.Repeat,
		Fold:   fold.Index,
		N:      scores.N,
		R2:     scores.R2,
		RMSE:   scores.RMSE,
		MAE:    scores.MAE,
		Status: outcome.Status.String(),
	}
	for i := range predicted {
		if !isFinite(predicted[i]) || !isFinite(observed[i]) {
			continue
		}
		out.predictions = append(out.predictions, report.FoldPrediction{
			Species:   test.Species[i],
			Axis:      form.Target,
			Repeat:    fold.Repeat,
			Fold:      fold.Index,
			Observed:  observed[i],
			Predicted: predicted[i],
		})
	}
	return out
}

// Validate checks the controller configuration against a dataset size before
// any fitting starts.
func (c *Controller) Validate(n int) error {
	if n < c.Folds {
		return fmt.Errorf("%w: %d rows for %d folds", core.ErrTooFewRows, n, c.Folds)
	}
	return nil
}
