// Package ports defines the storage interfaces the engine writes through.
// Adapters implement them against Postgres or in-memory maps.
package ports

import (
	"context"

	"phylosem/domain/core"
	"phylosem/domain/recipe"
	"phylosem/domain/report"
)

// ArtifactStore persists everything a run produces. Each batch is keyed by
// the run that produced it; writes within one run are append-only.
type ArtifactStore interface {
	// Cross-validation output
	SaveFoldMetrics(ctx context.Context, runID core.RunID, rows []report.FoldMetrics) error
	SavePredictions(ctx context.Context, runID core.RunID, rows []report.FoldPrediction) error
	SaveSummaries(ctx context.Context, runID core.RunID, rows []report.MetricSummary) error

	// Structural diagnostics
	SaveClaims(ctx context.Context, runID core.RunID, rows []report.ClaimRecord) error
	SaveDSep(ctx context.Context, runID core.RunID, rows []report.DSepRecord) error

	// Residual dependency output
	SavePairCorrelations(ctx context.Context, runID core.RunID, rows []report.PairCorrelation) error
	SaveDistricts(ctx context.Context, runID core.RunID, rows []report.DistrictRecord) error

	// Phylogenetic blending and bootstrap output
	SaveBlends(ctx context.Context, runID core.RunID, rows []report.BlendRecord) error
	SaveStability(ctx context.Context, runID core.RunID, rows []report.CoefficientStability) error

	// Reproduction artifacts
	SaveRecipe(ctx context.Context, r *recipe.Recipe) error
	GetRecipe(ctx context.Context, runID core.RunID) (*recipe.Recipe, error)
	SaveCopulaMetadata(ctx context.Context, m *recipe.CopulaMetadata) error
	GetCopulaMetadata(ctx context.Context, runID core.RunID) (*recipe.CopulaMetadata, error)
}
