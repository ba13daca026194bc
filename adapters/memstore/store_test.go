package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"phylosem/domain/core"
	"phylosem/domain/recipe"
	"phylosem/domain/report"
)

func TestBatchesAccumulatePerRun(t *testing.T) {
	s := New()
	ctx := context.Background()
	runA := core.NewRunID()
	runB := core.NewRunID()

	if err := s.SaveFoldMetrics(ctx, runA, []report.FoldMetrics{{Axis: "L", Fold: 0}}); err != nil {
		t.Fatalf("SaveFoldMetrics: %v", err)
	}
	if err := s.SaveFoldMetrics(ctx, runA, []report.FoldMetrics{{Axis: "L", Fold: 1}}); err != nil {
		t.Fatalf("SaveFoldMetrics: %v", err)
	}
	if err := s.SaveFoldMetrics(ctx, runB, []report.FoldMetrics{{Axis: "M", Fold: 0}}); err != nil {
		t.Fatalf("SaveFoldMetrics: %v", err)
	}

	if len(s.FoldMetrics[runA]) != 2 {
		t.Errorf("run A should hold 2 rows, got %d", len(s.FoldMetrics[runA]))
	}
	if len(s.FoldMetrics[runB]) != 1 {
		t.Errorf("run B should hold 1 row, got %d", len(s.FoldMetrics[runB]))
	}
}

func TestRecipeRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	runID := core.NewRunID()

	rec := &recipe.Recipe{
		RunID:     runID.String(),
		CreatedAt: time.Now().UTC(),
		Offsets:   map[string]float64{"lma": 0.01},
	}
	if err := s.SaveRecipe(ctx, rec); err != nil {
		t.Fatalf("SaveRecipe: %v", err)
	}

	got, err := s.GetRecipe(ctx, runID)
	if err != nil {
		t.Fatalf("GetRecipe: %v", err)
	}
	if got.Offsets["lma"] != 0.01 {
		t.Errorf("round trip lost data: %+v", got)
	}

	if _, err := s.GetRecipe(ctx, core.NewRunID()); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestConcurrentWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	runID := core.NewRunID()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.SavePredictions(ctx, runID, []report.FoldPrediction{{Axis: "L"}})
		}()
	}
	wg.Wait()

	if len(s.Predictions[runID]) != 50 {
		t.Errorf("expected 50 rows, got %d", len(s.Predictions[runID]))
	}
}
