package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"phylosem/internal/errors"
)

// Config represents the complete engine configuration
type Config struct {
	Resampling ResamplingConfig
	Dependency DependencyConfig
	Phylo      PhyloConfig
	Bootstrap  BootstrapConfig
	Database   DatabaseConfig
}

// ResamplingConfig controls the repeated stratified cross-validation loop
type ResamplingConfig struct {
	Folds    int
	Repeats  int
	Bins     int // quantile bins for response stratification
	Seed     int64
	MinTrain int // folds with fewer training rows are skipped
	MinTest  int // folds with fewer test rows are skipped
	Workers  int // parallel fold workers; folds are mutually independent
}

// DependencyConfig controls residual-dependency detection and copula fitting
type DependencyConfig struct {
	RhoMin       float64 // minimum |r| for a candidate district
	FDRQ         float64 // Benjamini-Hochberg adjusted p threshold
	MinGroupSize int     // groups below this are excluded from per-group fits
	ShrinkK      float64 // shrinkage constant in n/(n+k)
}

// PhyloConfig controls the phylogenetic neighbor predictor and blending
type PhyloConfig struct {
	XExponent float64   // inverse-distance power
	KTrunc    int       // nearest-neighbor truncation, 0 = use all
	AlphaGrid []float64 // candidate mixing coefficients
}

// BootstrapConfig controls optional coefficient-stability estimation
type BootstrapConfig struct {
	Replicates int
	Enabled    bool
}

// DatabaseConfig holds the optional artifact store connection
type DatabaseConfig struct {
	URL     string
	Enabled bool
}

// Load reads configuration from the environment (and .env when present) and
// validates it. Invalid values are configuration errors and fail fast.
func Load() (*Config, error) {
	// Missing .env is fine; explicit environment variables still apply
	_ = godotenv.Load()

	cfg := &Config{
		Resampling: ResamplingConfig{
			Folds:    envInt("PHYLOSEM_FOLDS", 10),
			Repeats:  envInt("PHYLOSEM_REPEATS", 5),
			Bins:     envInt("PHYLOSEM_STRAT_BINS", 5),
			Seed:     int64(envInt("PHYLOSEM_SEED", 42)),
			MinTrain: envInt("PHYLOSEM_MIN_TRAIN", 30),
			MinTest:  envInt("PHYLOSEM_MIN_TEST", 3),
			Workers:  envInt("PHYLOSEM_WORKERS", 4),
		},
		Dependency: DependencyConfig{
			RhoMin:       envFloat("PHYLOSEM_RHO_MIN", 0.2),
			FDRQ:         envFloat("PHYLOSEM_FDR_Q", 0.05),
			MinGroupSize: envInt("PHYLOSEM_MIN_GROUP", 10),
			ShrinkK:      envFloat("PHYLOSEM_SHRINK_K", 50),
		},
		Phylo: PhyloConfig{
			XExponent: envFloat("PHYLOSEM_X_EXPONENT", 2),
			KTrunc:    envInt("PHYLOSEM_K_TRUNC", 0),
			AlphaGrid: envFloatList("PHYLOSEM_ALPHA_GRID", []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}),
		},
		Bootstrap: BootstrapConfig{
			Replicates: envInt("PHYLOSEM_BOOT_REPS", 200),
			Enabled:    envBool("PHYLOSEM_BOOT", false),
		},
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"),
			Enabled: os.Getenv("DATABASE_URL") != "",
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Resampling.Folds < 2 {
		return errors.ConfigInvalid("PHYLOSEM_FOLDS must be at least 2")
	}
	if c.Resampling.Repeats < 1 {
		return errors.ConfigInvalid("PHYLOSEM_REPEATS must be at least 1")
	}
	if c.Resampling.Bins < 1 {
		return errors.ConfigInvalid("PHYLOSEM_STRAT_BINS must be at least 1")
	}
	if c.Resampling.Workers < 1 {
		return errors.ConfigInvalid("PHYLOSEM_WORKERS must be at least 1")
	}
	if c.Dependency.FDRQ <= 0 || c.Dependency.FDRQ >= 1 {
		return errors.ConfigInvalid("PHYLOSEM_FDR_Q must be in (0,1)")
	}
	if c.Dependency.RhoMin < 0 || c.Dependency.RhoMin > 1 {
		return errors.ConfigInvalid("PHYLOSEM_RHO_MIN must be in [0,1]")
	}
	if c.Dependency.ShrinkK < 0 {
		return errors.ConfigInvalid("PHYLOSEM_SHRINK_K must be non-negative")
	}
	if c.Phylo.XExponent <= 0 {
		return errors.ConfigInvalid("PHYLOSEM_X_EXPONENT must be positive")
	}
	if c.Phylo.KTrunc < 0 {
		return errors.ConfigInvalid("PHYLOSEM_K_TRUNC must be non-negative")
	}
	for _, a := range c.Phylo.AlphaGrid {
		if a < 0 || a > 1 {
			return errors.ConfigInvalid("PHYLOSEM_ALPHA_GRID values must be in [0,1]")
		}
	}
	if c.Bootstrap.Enabled && c.Bootstrap.Replicates < 1 {
		return errors.ConfigInvalid("PHYLOSEM_BOOT_REPS must be at least 1")
	}
	return nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envFloatList(key string, def []float64) []float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return def
		}
		out = append(out, f)
	}
	return out
}
