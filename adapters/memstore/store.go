// Package memstore implements the artifact store in process memory. It backs
// development runs and tests where no database is configured.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"phylosem/domain/core"
	"phylosem/domain/recipe"
	"phylosem/domain/report"
	"phylosem/ports"
)

// Store keeps every artifact batch keyed by run ID. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	FoldMetrics  map[core.RunID][]report.FoldMetrics
	Predictions  map[core.RunID][]report.FoldPrediction
	Summaries    map[core.RunID][]report.MetricSummary
	Claims       map[core.RunID][]report.ClaimRecord
	DSep         map[core.RunID][]report.DSepRecord
	Correlations map[core.RunID][]report.PairCorrelation
	Districts    map[core.RunID][]report.DistrictRecord
	Blends       map[core.RunID][]report.BlendRecord
	Stability    map[core.RunID][]report.CoefficientStability
	Recipes      map[core.RunID]*recipe.Recipe
	Copulas      map[core.RunID]*recipe.CopulaMetadata
}

// New creates an empty store
func New() *Store {
	return &Store{
		FoldMetrics:  make(map[core.RunID][]report.FoldMetrics),
		Predictions:  make(map[core.RunID][]report.FoldPrediction),
		Summaries:    make(map[core.RunID][]report.MetricSummary),
		Claims:       make(map[core.RunID][]report.ClaimRecord),
		DSep:         make(map[core.RunID][]report.DSepRecord),
		Correlations: make(map[core.RunID][]report.PairCorrelation),
		Districts:    make(map[core.RunID][]report.DistrictRecord),
		Blends:       make(map[core.RunID][]report.BlendRecord),
		Stability:    make(map[core.RunID][]report.CoefficientStability),
		Recipes:      make(map[core.RunID]*recipe.Recipe),
		Copulas:      make(map[core.RunID]*recipe.CopulaMetadata),
	}
}

var _ ports.ArtifactStore = (*Store)(nil)

func (s *Store) SaveFoldMetrics(_ context.Context, runID core.RunID, rows []report.FoldMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FoldMetrics[runID] = append(s.FoldMetrics[runID], rows...)
	return nil
}

func (s *Store) SavePredictions(_ context.Context, runID core.RunID, rows []report.FoldPrediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Predictions[runID] = append(s.Predictions[runID], rows...)
	return nil
}

func (s *Store) SaveSummaries(_ context.Context, runID core.RunID, rows []report.MetricSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Summaries[runID] = append(s.Summaries[runID], rows...)
	return nil
}

func (s *Store) SaveClaims(_ context.Context, runID core.RunID, rows []report.ClaimRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Claims[runID] = append(s.Claims[runID], rows...)
	return nil
}

func (s *Store) SaveDSep(_ context.Context, runID core.RunID, rows []report.DSepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DSep[runID] = append(s.DSep[runID], rows...)
	return nil
}

func (s *Store) SavePairCorrelations(_ context.Context, runID core.RunID, rows []report.PairCorrelation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Correlations[runID] = append(s.Correlations[runID], rows...)
	return nil
}

func (s *Store) SaveDistricts(_ context.Context, runID core.RunID, rows []report.DistrictRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Districts[runID] = append(s.Districts[runID], rows...)
	return nil
}

func (s *Store) SaveBlends(_ context.Context, runID core.RunID, rows []report.BlendRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Blends[runID] = append(s.Blends[runID], rows...)
	return nil
}

func (s *Store) SaveStability(_ context.Context, runID core.RunID, rows []report.CoefficientStability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stability[runID] = append(s.Stability[runID], rows...)
	return nil
}

func (s *Store) SaveRecipe(_ context.Context, r *recipe.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Recipes[core.RunID(r.RunID)] = r
	return nil
}

func (s *Store) GetRecipe(_ context.Context, runID core.RunID) (*recipe.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.Recipes[runID]
	if !ok {
		return nil, fmt.Errorf("recipe not found: %s", runID)
	}
	return r, nil
}

func (s *Store) SaveCopulaMetadata(_ context.Context, m *recipe.CopulaMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Copulas[core.RunID(m.RunID)] = m
	return nil
}

func (s *Store) GetCopulaMetadata(_ context.Context, runID core.RunID) (*recipe.CopulaMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.Copulas[runID]
	if !ok {
		return nil, fmt.Errorf("copula metadata not found: %s", runID)
	}
	return m, nil
}
