package engine

import (
	"context"
	"sort"
	"time"

	"phylosem/domain/core"
	"phylosem/domain/dataset"
	"phylosem/domain/recipe"
	"phylosem/domain/report"
	"phylosem/internal"
	"phylosem/internal/bootstrap"
	"phylosem/internal/config"
	"phylosem/internal/copula"
	"phylosem/internal/dsep"
	"phylosem/internal/errors"
	"phylosem/internal/features"
	"phylosem/internal/meanstruct"
	"phylosem/internal/phylo"
	"phylosem/internal/resample"
	"phylosem/ports"
)

// Engine wires the fitting stages together and persists their artifacts
type Engine struct {
	cfg     *config.Config
	store   ports.ArtifactStore
	log     *internal.Logger
	builder features.Spec
}

// New assembles an engine with the canonical feature plan
func New(cfg *config.Config, store ports.ArtifactStore, log *internal.Logger) *Engine {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &Engine{cfg: cfg, store: store, log: log, builder: features.Default()}
}

// RunInput describes one engine execution
type RunInput struct {
	Data *dataset.Frame
	Axes []string
	Kind FormKind

	// Cluster is the random-intercept label column, empty for none
	Cluster string
	// GroupColumn stratifies the grouped independence tests and per-group
	// copula refits, empty for none
	GroupColumn string

	// Tree enables the phylogenetic blend when present
	Tree *phylo.Tree
	// DefaultDistricts are fitted when detection selects no district
	DefaultDistricts []copula.DefaultDistrict
}

// RunResult collects everything a run produced, already persisted
type RunResult struct {
	RunID     core.RunID
	Summaries []report.MetricSummary
	DSep      []report.DSepRecord
	Districts []report.DistrictRecord
	Blends    []report.BlendRecord
	Stability []report.CoefficientStability
	Recipe    *recipe.Recipe
}

// Run executes the full pipeline over every requested axis
func (e *Engine) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	for _, axis := range in.Axes {
		if err := ValidateAxis(axis); err != nil {
			return nil, err
		}
	}
	if err := in.Data.Require(e.builder.RawColumns()...); err != nil {
		return nil, errors.Wrap(err, "input frame incomplete")
	}
	ctrl := e.controller()
	if err := ctrl.Validate(in.Data.Len()); err != nil {
		return nil, err
	}

	runID := core.NewRunID()
	e.log.Info("[Engine] run %s: %d species, axes %v", runID, in.Data.Len(), in.Axes)

	// Full-data features, fitted once and reused by every full-data stage
	params, err := e.builder.Fit(in.Data)
	if err != nil {
		return nil, err
	}
	full, err := e.builder.Apply(params, in.Data)
	if err != nil {
		return nil, err
	}

	residuals := copula.NewResidualTable(full.Species)
	if in.GroupColumn != "" && full.HasLabel(in.GroupColumn) {
		labels, _ := full.Label(in.GroupColumn)
		canon := canonicalGroups(labels)
		if err := full.SetLabel(in.GroupColumn, canon); err != nil {
			return nil, err
		}
		if err := residuals.SetGroups(canon); err != nil {
			return nil, err
		}
	}

	result := &RunResult{RunID: runID}
	rec := e.newRecipe(runID, params)

	// a partially covering tree degrades to the covered species; the
	// neighbor predictor already hands off-tree species the training mean
	var dist *phylo.DistanceMatrix
	if in.Tree != nil {
		covered := make([]string, 0, len(full.Species))
		for _, sp := range full.Species {
			if in.Tree.HasTip(sp) {
				covered = append(covered, sp)
			}
		}
		if missing := len(full.Species) - len(covered); missing > 0 {
			e.log.Warn("[Engine] tree covers %d/%d species, %d off-tree species fall back to the training mean",
				len(covered), len(full.Species), missing)
		}
		if len(covered) > 0 {
			dist, err = in.Tree.Cophenetic(covered)
			if err != nil {
				return nil, err
			}
		} else {
			e.log.Warn("[Engine] tree shares no tips with the data, skipping phylogenetic blending")
		}
	}

	for _, axis := range in.Axes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		form := FormFor(axis, in.Kind, in.Cluster)

		// Cross-validated assessment
		eval, err := ctrl.Evaluate(in.Data, form)
		if err != nil {
			e.log.Warn("[Engine] axis %s evaluation failed: %v", axis, err)
			continue
		}
		if err := e.store.SaveFoldMetrics(ctx, runID, eval.PerFold); err != nil {
			return nil, errors.StoreError("fold metrics", err)
		}
		if err := e.store.SavePredictions(ctx, runID, eval.Predictions); err != nil {
			return nil, errors.StoreError("predictions", err)
		}
		if err := e.store.SaveSummaries(ctx, runID, []report.MetricSummary{eval.Summary}); err != nil {
			return nil, errors.StoreError("summaries", err)
		}
		result.Summaries = append(result.Summaries, eval.Summary)

		// Full-data refit feeds residual dependency detection and the recipe
		fitted, outcome, err := meanstruct.Fit(full, form)
		if err != nil || !outcome.Usable() {
			e.log.Warn("[Engine] axis %s full fit unusable: %s", axis, outcome.Reason)
			continue
		}
		res, err := fitted.Residuals(full)
		if err != nil {
			return nil, err
		}
		if err := residuals.SetAxis(axis, res); err != nil {
			return nil, err
		}
		rec.Models = append(rec.Models, modelCoefficients(axis, fitted))

		// Independence claims on the fitted structure
		if err := e.runDSep(ctx, runID, full, axis, in.GroupColumn, result); err != nil {
			return nil, err
		}

		// Phylogenetic blend
		if dist != nil {
			blend, err := e.searchAlpha(in.Data, form, dist)
			if err != nil {
				e.log.Warn("[Engine] axis %s blend search failed: %v", axis, err)
			} else {
				if err := e.store.SaveBlends(ctx, runID, []report.BlendRecord{blend}); err != nil {
					return nil, errors.StoreError("blends", err)
				}
				result.Blends = append(result.Blends, blend)
			}
		}

		// Optional coefficient stability
		if e.cfg.Bootstrap.Enabled {
			runner := &bootstrap.Runner{
				Replicates: e.cfg.Bootstrap.Replicates,
				Seed:       e.cfg.Resampling.Seed,
				Workers:    e.cfg.Resampling.Workers,
				Builder:    e.builder,
				Log:        e.log,
			}
			stab, err := runner.Stability(in.Data, form)
			if err != nil {
				e.log.Warn("[Engine] axis %s bootstrap failed: %v", axis, err)
			} else {
				if err := e.store.SaveStability(ctx, runID, stab); err != nil {
					return nil, errors.StoreError("stability", err)
				}
				result.Stability = append(result.Stability, stab...)
			}
		}
	}

	// Residual dependency across axes
	detector := copula.Detector{
		RhoMin:       e.cfg.Dependency.RhoMin,
		FDRQ:         e.cfg.Dependency.FDRQ,
		MinGroupRows: e.cfg.Dependency.MinGroupSize,
	}
	dep := detector.DetectAndFit(residuals, in.DefaultDistricts, e.cfg.Dependency.ShrinkK, e.log)
	if err := e.store.SavePairCorrelations(ctx, runID, dep.Pairs); err != nil {
		return nil, errors.StoreError("pair correlations", err)
	}
	if err := e.store.SaveDistricts(ctx, runID, dep.Districts); err != nil {
		return nil, errors.StoreError("districts", err)
	}
	result.Districts = dep.Districts

	meta := &recipe.CopulaMetadata{RunID: runID.String(), CreatedAt: time.Now().UTC(), Districts: dep.Districts}
	if err := e.store.SaveCopulaMetadata(ctx, meta); err != nil {
		return nil, errors.StoreError("copula metadata", err)
	}
	if err := e.store.SaveRecipe(ctx, rec); err != nil {
		return nil, errors.StoreError("recipe", err)
	}
	result.Recipe = rec

	e.log.Info("[Engine] run %s complete: %d summaries, %d districts", runID, len(result.Summaries), len(result.Districts))
	return result, nil
}

// runDSep runs the pooled and, when a group column is present, the grouped
// independence tests for one axis.
// canonicalGroups resolves raw grouping labels onto the closed category set,
// so every grouped stage splits on the same spelling regardless of how the
// source table wrote the labels.
func canonicalGroups(raw []string) []string {
	cats := dataset.ResolveGroups(raw)
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = c.String()
	}
	return out
}

func (e *Engine) runDSep(ctx context.Context, runID core.RunID, full *dataset.Frame, axis, groupColumn string, result *RunResult) error {
	claims := DefaultClaims(axis)
	pooled, err := dsep.Test(full, claims)
	if err != nil {
		e.log.Warn("[Engine] axis %s d-sep failed: %v", axis, err)
		return nil
	}
	claimRows, dsepRow := pooled.Records(axis)
	if err := e.store.SaveClaims(ctx, runID, claimRows); err != nil {
		return errors.StoreError("claims", err)
	}
	if err := e.store.SaveDSep(ctx, runID, []report.DSepRecord{dsepRow}); err != nil {
		return errors.StoreError("dsep", err)
	}
	result.DSep = append(result.DSep, dsepRow)

	if groupColumn == "" || !full.HasLabel(groupColumn) {
		return nil
	}
	grouped, err := dsep.TestGrouped(full, claims, groupColumn)
	if err != nil {
		e.log.Warn("[Engine] axis %s grouped d-sep failed: %v", axis, err)
		return nil
	}
	names := make([]string, 0, len(grouped.Groups))
	for name := range grouped.Groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var groupClaims []report.ClaimRecord
	var groupRows []report.DSepRecord
	for _, name := range names {
		cr, dr := grouped.Groups[name].Records(axis + "/" + name)
		groupClaims = append(groupClaims, cr...)
		groupRows = append(groupRows, dr)
	}
	groupRows = append(groupRows, report.DSepRecord{
		Group:  axis + "/omnibus",
		C:      grouped.C,
		DF:     grouped.DF,
		PValue: grouped.PValue,
		Claims: len(claims) * len(grouped.Groups),
	})
	if err := e.store.SaveClaims(ctx, runID, groupClaims); err != nil {
		return errors.StoreError("grouped claims", err)
	}
	if err := e.store.SaveDSep(ctx, runID, groupRows); err != nil {
		return errors.StoreError("grouped dsep", err)
	}
	result.DSep = append(result.DSep, groupRows...)
	return nil
}

// controller builds the resampling controller from configuration
func (e *Engine) controller() *resample.Controller {
	return &resample.Controller{
		Folds:    e.cfg.Resampling.Folds,
		Repeats:  e.cfg.Resampling.Repeats,
		Bins:     e.cfg.Resampling.Bins,
		Seed:     e.cfg.Resampling.Seed,
		MinTrain: e.cfg.Resampling.MinTrain,
		MinTest:  e.cfg.Resampling.MinTest,
		Workers:  e.cfg.Resampling.Workers,
		Builder:  e.builder,
		Log:      e.log,
	}
}

// newRecipe seeds the reproduction artifact from the fitted feature params
func (e *Engine) newRecipe(runID core.RunID, params *features.Params) *recipe.Recipe {
	rec := &recipe.Recipe{
		RunID:     runID.String(),
		CreatedAt: time.Now().UTC(),
		Offsets:   params.Offsets,
		Centers:   params.Centers,
		Scales:    params.Scales,
	}
	for _, comp := range e.builder.Composites {
		rec.Composites = append(rec.Composites, recipe.Composite{
			Name:      comp.Name,
			Inputs:    append([]string(nil), comp.Inputs...),
			Loadings:  append([]float64(nil), params.Loadings[comp.Name]...),
			Reference: comp.Reference,
		})
	}
	return rec
}

// modelCoefficients flattens a fitted model into its recipe form
func modelCoefficients(axis string, m *meanstruct.Model) recipe.ModelCoefficients {
	out := recipe.ModelCoefficients{Target: axis}
	for _, c := range m.Coefficients() {
		if c.Name == "(Intercept)" {
			out.Intercept = c.Estimate
			continue
		}
		out.Names = append(out.Names, c.Name)
		out.Values = append(out.Values, c.Estimate)
	}
	return out
}
