package engine

import (
	"golang.org/x/sync/errgroup"

	"phylosem/domain/core"
	"phylosem/domain/dataset"
	"phylosem/domain/model"
	"phylosem/domain/report"
	"phylosem/internal/meanstruct"
	"phylosem/internal/phylo"
	"phylosem/internal/resample"
)

// foldBlendScores holds one fold's R2 under every candidate alpha plus the
// pure structural and pure neighbor predictions.
type foldBlendScores struct {
	sem   float64
	phy   float64
	grid  []float64
	valid bool
}

// searchAlpha cross-validates the structural/phylogenetic mixing coefficient
// on the same fold plan used everywhere else. The neighbor predictor is
// trained per fold on training-set responses only, so no test species ever
// donates to its own prediction.
func (e *Engine) searchAlpha(data *dataset.Frame, form model.FormSpec, dist *phylo.DistanceMatrix) (report.BlendRecord, error) {
	rec := report.BlendRecord{
		Axis:      form.Target,
		XExponent: e.cfg.Phylo.XExponent,
		KTrunc:    e.cfg.Phylo.KTrunc,
	}
	grid := e.cfg.Phylo.AlphaGrid
	if len(grid) == 0 {
		grid = []float64{0}
	}

	y, err := data.Numeric(form.Target)
	if err != nil {
		return rec, err
	}
	plan, err := e.controller().Plan(y)
	if err != nil {
		return rec, err
	}

	cells := make([]foldBlendScores, len(plan))
	var g errgroup.Group
	g.SetLimit(e.cfg.Resampling.Workers)
	for idx := range plan {
		idx := idx
		g.Go(func() error {
			cells[idx] = e.blendFold(data, form, dist, plan[idx], grid)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rec, err
	}

	var semSum, phySum float64
	gridSum := make([]float64, len(grid))
	n := 0
	for _, c := range cells {
		if !c.valid {
			continue
		}
		semSum += c.sem
		phySum += c.phy
		for i, v := range c.grid {
			gridSum[i] += v
		}
		n++
	}
	if n == 0 {
		return rec, core.InsufficientDataError(1, 0)
	}

	rec.R2SEM = semSum / float64(n)
	rec.R2Phylo = phySum / float64(n)
	best := 0
	for i := range grid {
		gridSum[i] /= float64(n)
		if gridSum[i] > gridSum[best] {
			best = i
		}
	}
	rec.Alpha = grid[best]
	rec.R2Blend = gridSum[best]
	return rec, nil
}

// blendFold evaluates one train/test cell under every alpha
func (e *Engine) blendFold(data *dataset.Frame, form model.FormSpec, dist *phylo.DistanceMatrix, fold resample.Fold, grid []float64) foldBlendScores {
	out := foldBlendScores{grid: make([]float64, len(grid))}
	if len(fold.Train) < e.cfg.Resampling.MinTrain || len(fold.Test) < e.cfg.Resampling.MinTest {
		return out
	}

	trainRaw := data.Subset(fold.Train)
	testRaw := data.Subset(fold.Test)
	train, test, _, err := e.builder.Build(trainRaw, testRaw)
	if err != nil {
		return out
	}

	fitted, outcome, err := meanstruct.Fit(train, form)
	if err != nil || !outcome.Usable() {
		return out
	}
	semPred, err := fitted.Predict(test)
	if err != nil {
		return out
	}
	observed, err := test.Numeric(form.Target)
	if err != nil {
		return out
	}

	yTrain, err := train.Numeric(form.Target)
	if err != nil {
		return out
	}
	predictor := phylo.NewPredictor(dist, train.Species, yTrain, e.cfg.Phylo.XExponent, e.cfg.Phylo.KTrunc)
	phyPred := predictor.PredictAll(test.Species)

	semScore, okSem := resample.Score(observed, semPred)
	phyScore, okPhy := resample.Score(observed, phyPred)
	if !okSem || !okPhy {
		return out
	}
	out.sem = semScore.R2
	out.phy = phyScore.R2

	for i, alpha := range grid {
		s, ok := resample.Score(observed, phylo.Blend(semPred, phyPred, alpha))
		if !ok {
			return out
		}
		out.grid[i] = s.R2
	}
	out.valid = true
	return out
}
