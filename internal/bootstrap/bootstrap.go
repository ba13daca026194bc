// Package bootstrap estimates coefficient stability by refitting the mean
// structure on resampled data. When the form carries a random intercept the
// resampling unit is the whole cluster, so within-cluster correlation is
// preserved in each replicate.
package bootstrap

import (
	"math/rand"
	"sort"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"phylosem/domain/core"
	"phylosem/domain/dataset"
	"phylosem/domain/model"
	"phylosem/domain/report"
	"phylosem/internal"
	"phylosem/internal/features"
	"phylosem/internal/meanstruct"
)

// Runner draws seeded bootstrap replicates in parallel
type Runner struct {
	Replicates int
	Seed       int64
	Workers    int
	Builder    features.Spec
	Log        *internal.Logger
}

// Stability refits the form on each replicate and summarizes the spread of
// every named coefficient around the full-data estimate. Features are
// refitted per replicate so their uncertainty propagates.
func (r *Runner) Stability(data *dataset.Frame, form model.FormSpec) ([]report.CoefficientStability, error) {
	full, outcome, err := r.fitOnce(data, form)
	if err != nil {
		return nil, err
	}
	if !outcome.Usable() {
		return nil, core.ErrDegenerateFit
	}

	type replicate struct {
		coefs map[string]float64
		ok    bool
	}
	cells := make([]replicate, r.Replicates)

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for rep := 0; rep < r.Replicates; rep++ {
		rep := rep
		g.Go(func() error {
			rng := rand.New(rand.NewSource(r.Seed + int64(rep)))
			sample := r.resample(data, form.Cluster(), rng)
			fitted, oc, err := r.fitOnce(sample, form)
			if err != nil || !oc.Usable() {
				return nil
			}
			coefs := make(map[string]float64)
			for _, c := range fitted.Coefficients() {
				coefs[c.Name] = c.Estimate
			}
			cells[rep] = replicate{coefs: coefs, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byTerm := make(map[string][]float64)
	completed := 0
	for _, cell := range cells {
		if !cell.ok {
			continue
		}
		completed++
		for name, v := range cell.coefs {
			byTerm[name] = append(byTerm[name], v)
		}
	}
	if r.Log != nil {
		r.Log.Info("[Bootstrap] %s: %d/%d replicates completed", form.Target, completed, r.Replicates)
	}
	if completed == 0 {
		return nil, core.InsufficientDataError(1, 0)
	}

	var out []report.CoefficientStability
	for _, c := range full.Coefficients() {
		draws, ok := byTerm[c.Name]
		if !ok {
			continue
		}
		mean, _ := stats.Mean(draws)
		sd := 0.0
		if len(draws) > 1 {
			sd, _ = stats.StandardDeviationSample(draws)
		}
		out = append(out, report.CoefficientStability{
			Axis:       form.Target,
			Term:       c.Name,
			Estimate:   c.Estimate,
			BootMean:   mean,
			BootSD:     sd,
			Replicates: len(draws),
		})
	}
	return out, nil
}

// fitOnce builds features on the sample and fits the form
func (r *Runner) fitOnce(data *dataset.Frame, form model.FormSpec) (*meanstruct.Model, model.FitOutcome, error) {
	params, err := r.Builder.Fit(data)
	if err != nil {
		return nil, model.FitOutcome{Status: model.FitFailed, Reason: err.Error()}, err
	}
	built, err := r.Builder.Apply(params, data)
	if err != nil {
		return nil, model.FitOutcome{Status: model.FitFailed, Reason: err.Error()}, err
	}
	return meanstruct.Fit(built, form)
}

// resample draws rows with replacement. With a cluster column, whole
// clusters are drawn; rows missing a cluster label form one pseudo-cluster.
func (r *Runner) resample(data *dataset.Frame, cluster string, rng *rand.Rand) *dataset.Frame {
	n := data.Len()
	if cluster == "" || !data.HasLabel(cluster) {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		return data.Subset(idx)
	}

	labels, _ := data.Label(cluster)
	byCluster := make(map[string][]int)
	for i, label := range labels {
		byCluster[label] = append(byCluster[label], i)
	}
	names := make([]string, 0, len(byCluster))
	for name := range byCluster {
		names = append(names, name)
	}
	sort.Strings(names)

	var idx []int
	for range names {
		pick := names[rng.Intn(len(names))]
		idx = append(idx, byCluster[pick]...)
	}
	return data.Subset(idx)
}
