// Package postgres implements the artifact store against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"phylosem/domain/core"
	"phylosem/domain/recipe"
	"phylosem/domain/report"
	"phylosem/ports"
)

// artifactStore implements ports.ArtifactStore
type artifactStore struct {
	db *sqlx.DB
}

// NewArtifactStore wraps an existing connection pool
func NewArtifactStore(db *sqlx.DB) ports.ArtifactStore {
	return &artifactStore{db: db}
}

// Connect opens a pool against the given URL and verifies it
func Connect(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the artifact tables when they do not exist
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS fold_metrics (
	run_id TEXT NOT NULL,
	axis TEXT NOT NULL,
	repeat INT NOT NULL,
	fold INT NOT NULL,
	n INT NOT NULL,
	r2 DOUBLE PRECISION NOT NULL,
	rmse DOUBLE PRECISION NOT NULL,
	mae DOUBLE PRECISION NOT NULL,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fold_predictions (
	run_id TEXT NOT NULL,
	species TEXT NOT NULL,
	axis TEXT NOT NULL,
	repeat INT NOT NULL,
	fold INT NOT NULL,
	observed DOUBLE PRECISION NOT NULL,
	predicted DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS metric_summaries (
	run_id TEXT NOT NULL,
	axis TEXT NOT NULL,
	cells INT NOT NULL,
	skipped INT NOT NULL,
	r2_mean DOUBLE PRECISION NOT NULL,
	r2_sd DOUBLE PRECISION NOT NULL,
	rmse_mean DOUBLE PRECISION NOT NULL,
	rmse_sd DOUBLE PRECISION NOT NULL,
	mae_mean DOUBLE PRECISION NOT NULL,
	mae_sd DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS dsep_claims (
	run_id TEXT NOT NULL,
	grp TEXT NOT NULL DEFAULT '',
	claim TEXT NOT NULL,
	n INT NOT NULL,
	coefficient DOUBLE PRECISION NOT NULL,
	t_value DOUBLE PRECISION NOT NULL,
	p_value DOUBLE PRECISION NOT NULL,
	skipped BOOLEAN NOT NULL,
	skip_reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS dsep_results (
	run_id TEXT NOT NULL,
	grp TEXT NOT NULL DEFAULT '',
	c DOUBLE PRECISION NOT NULL,
	df INT NOT NULL,
	p_value DOUBLE PRECISION NOT NULL,
	claims INT NOT NULL
);

CREATE TABLE IF NOT EXISTS pair_correlations (
	run_id TEXT NOT NULL,
	axis_a TEXT NOT NULL,
	axis_b TEXT NOT NULL,
	n INT NOT NULL,
	r DOUBLE PRECISION NOT NULL,
	p_value DOUBLE PRECISION NOT NULL,
	adj_p DOUBLE PRECISION NOT NULL,
	selected BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS districts (
	run_id TEXT NOT NULL,
	axis_a TEXT NOT NULL,
	axis_b TEXT NOT NULL,
	family TEXT NOT NULL,
	rho DOUBLE PRECISION NOT NULL,
	n INT NOT NULL,
	log_lik DOUBLE PRECISION NOT NULL,
	aic DOUBLE PRECISION NOT NULL,
	is_default BOOLEAN NOT NULL,
	groups JSONB
);

CREATE TABLE IF NOT EXISTS blends (
	run_id TEXT NOT NULL,
	axis TEXT NOT NULL,
	alpha DOUBLE PRECISION NOT NULL,
	r2_sem DOUBLE PRECISION NOT NULL,
	r2_phylo DOUBLE PRECISION NOT NULL,
	r2_blend DOUBLE PRECISION NOT NULL,
	x_exponent DOUBLE PRECISION NOT NULL,
	k_trunc INT NOT NULL
);

CREATE TABLE IF NOT EXISTS coefficient_stability (
	run_id TEXT NOT NULL,
	axis TEXT NOT NULL,
	term TEXT NOT NULL,
	estimate DOUBLE PRECISION NOT NULL,
	boot_mean DOUBLE PRECISION NOT NULL,
	boot_sd DOUBLE PRECISION NOT NULL,
	replicates INT NOT NULL
);

CREATE TABLE IF NOT EXISTS recipes (
	run_id TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	payload JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS copula_metadata (
	run_id TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	payload JSONB NOT NULL
);
`

func (s *artifactStore) SaveFoldMetrics(ctx context.Context, runID core.RunID, rows []report.FoldMetrics) error {
	return s.insertBatch(ctx, len(rows), func(tx *sqlx.Tx) error {
		query := `INSERT INTO fold_metrics (run_id, axis, repeat, fold, n, r2, rmse, mae, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, query, runID, r.Axis, r.Repeat, r.Fold, r.N, r.R2, r.RMSE, r.MAE, r.Status); err != nil {
				return fmt.Errorf("failed to insert fold metrics: %w", err)
			}
		}
		return nil
	})
}

func (s *artifactStore) SavePredictions(ctx context.Context, runID core.RunID, rows []report.FoldPrediction) error {
	return s.insertBatch(ctx, len(rows), func(tx *sqlx.Tx) error {
		query := `INSERT INTO fold_predictions (run_id, species, axis, repeat, fold, observed, predicted)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, query, runID, r.Species, r.Axis, r.Repeat, r.Fold, r.Observed, r.Predicted); err != nil {
				return fmt.Errorf("failed to insert prediction: %w", err)
			}
		}
		return nil
	})
}

func (s *artifactStore) SaveSummaries(ctx context.Context, runID core.RunID, rows []report.MetricSummary) error {
	return s.insertBatch(ctx, len(rows), func(tx *sqlx.Tx) error {
		query := `INSERT INTO metric_summaries (run_id, axis, cells, skipped, r2_mean, r2_sd, rmse_mean, rmse_sd, mae_mean, mae_sd)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, query, runID, r.Axis, r.Cells, r.Skipped,
				r.R2Mean, r.R2SD, r.RMSEMean, r.RMSESD, r.MAEMean, r.MAESD); err != nil {
				return fmt.Errorf("failed to insert summary: %w", err)
			}
		}
		return nil
	})
}

func (s *artifactStore) SaveClaims(ctx context.Context, runID core.RunID, rows []report.ClaimRecord) error {
	return s.insertBatch(ctx, len(rows), func(tx *sqlx.Tx) error {
		query := `INSERT INTO dsep_claims (run_id, grp, claim, n, coefficient, t_value, p_value, skipped, skip_reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, query, runID, r.Group, r.Claim, r.N,
				r.Coefficient, r.TValue, r.PValue, r.Skipped, r.SkipReason); err != nil {
				return fmt.Errorf("failed to insert claim: %w", err)
			}
		}
		return nil
	})
}

func (s *artifactStore) SaveDSep(ctx context.Context, runID core.RunID, rows []report.DSepRecord) error {
	return s.insertBatch(ctx, len(rows), func(tx *sqlx.Tx) error {
		query := `INSERT INTO dsep_results (run_id, grp, c, df, p_value, claims)
			VALUES ($1, $2, $3, $4, $5, $6)`
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, query, runID, r.Group, r.C, r.DF, r.PValue, r.Claims); err != nil {
				return fmt.Errorf("failed to insert dsep result: %w", err)
			}
		}
		return nil
	})
}

func (s *artifactStore) SavePairCorrelations(ctx context.Context, runID core.RunID, rows []report.PairCorrelation) error {
	return s.insertBatch(ctx, len(rows), func(tx *sqlx.Tx) error {
		query := `INSERT INTO pair_correlations (run_id, axis_a, axis_b, n, r, p_value, adj_p, selected)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, query, runID, r.AxisA, r.AxisB, r.N, r.R, r.PValue, r.AdjP, r.Selected); err != nil {
				return fmt.Errorf("failed to insert pair correlation: %w", err)
			}
		}
		return nil
	})
}

func (s *artifactStore) SaveDistricts(ctx context.Context, runID core.RunID, rows []report.DistrictRecord) error {
	return s.insertBatch(ctx, len(rows), func(tx *sqlx.Tx) error {
		query := `INSERT INTO districts (run_id, axis_a, axis_b, family, rho, n, log_lik, aic, is_default, groups)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		for _, r := range rows {
			groupsJSON, err := json.Marshal(r.Groups)
			if err != nil {
				return fmt.Errorf("failed to marshal district groups: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, runID, r.AxisA, r.AxisB, r.Family,
				r.Rho, r.N, r.LogLik, r.AIC, r.Default, groupsJSON); err != nil {
				return fmt.Errorf("failed to insert district: %w", err)
			}
		}
		return nil
	})
}

func (s *artifactStore) SaveBlends(ctx context.Context, runID core.RunID, rows []report.BlendRecord) error {
	return s.insertBatch(ctx, len(rows), func(tx *sqlx.Tx) error {
		query := `INSERT INTO blends (run_id, axis, alpha, r2_sem, r2_phylo, r2_blend, x_exponent, k_trunc)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, query, runID, r.Axis, r.Alpha,
				r.R2SEM, r.R2Phylo, r.R2Blend, r.XExponent, r.KTrunc); err != nil {
				return fmt.Errorf("failed to insert blend: %w", err)
			}
		}
		return nil
	})
}

func (s *artifactStore) SaveStability(ctx context.Context, runID core.RunID, rows []report.CoefficientStability) error {
	return s.insertBatch(ctx, len(rows), func(tx *sqlx.Tx) error {
		query := `INSERT INTO coefficient_stability (run_id, axis, term, estimate, boot_mean, boot_sd, replicates)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, query, runID, r.Axis, r.Term,
				r.Estimate, r.BootMean, r.BootSD, r.Replicates); err != nil {
				return fmt.Errorf("failed to insert stability row: %w", err)
			}
		}
		return nil
	})
}

func (s *artifactStore) SaveRecipe(ctx context.Context, r *recipe.Recipe) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal recipe: %w", err)
	}
	query := `INSERT INTO recipes (run_id, created_at, payload) VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO UPDATE SET created_at = EXCLUDED.created_at, payload = EXCLUDED.payload`
	if _, err := s.db.ExecContext(ctx, query, r.RunID, r.CreatedAt, payload); err != nil {
		return fmt.Errorf("failed to save recipe: %w", err)
	}
	return nil
}

func (s *artifactStore) GetRecipe(ctx context.Context, runID core.RunID) (*recipe.Recipe, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM recipes WHERE run_id = $1`, runID).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("recipe not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	var r recipe.Recipe
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe: %w", err)
	}
	return &r, nil
}

func (s *artifactStore) SaveCopulaMetadata(ctx context.Context, m *recipe.CopulaMetadata) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal copula metadata: %w", err)
	}
	query := `INSERT INTO copula_metadata (run_id, created_at, payload) VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO UPDATE SET created_at = EXCLUDED.created_at, payload = EXCLUDED.payload`
	if _, err := s.db.ExecContext(ctx, query, m.RunID, m.CreatedAt, payload); err != nil {
		return fmt.Errorf("failed to save copula metadata: %w", err)
	}
	return nil
}

func (s *artifactStore) GetCopulaMetadata(ctx context.Context, runID core.RunID) (*recipe.CopulaMetadata, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM copula_metadata WHERE run_id = $1`, runID).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("copula metadata not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to get copula metadata: %w", err)
	}
	var m recipe.CopulaMetadata
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal copula metadata: %w", err)
	}
	return &m, nil
}

// insertBatch runs one write batch in a transaction; empty batches are no-ops
func (s *artifactStore) insertBatch(ctx context.Context, n int, fn func(tx *sqlx.Tx) error) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
