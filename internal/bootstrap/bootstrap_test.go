package bootstrap

import (
	"math"
	"testing"

	"phylosem/domain/model"
	"phylosem/internal/features"
	"phylosem/internal/meanstruct"
	"phylosem/internal/testkit"
)

func TestStabilityTracksFullEstimate(t *testing.T) {
	data := testkit.Generate(testkit.DefaultConfig())
	r := &Runner{
		Replicates: 60,
		Seed:       9,
		Workers:    4,
		Builder:    features.Default(),
	}

	rows, err := r.Stability(data, meanstruct.CompositeForm("M"))
	if err != nil {
		t.Fatalf("Stability: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("expected stability rows")
	}

	for _, row := range rows {
		if row.Replicates < 50 {
			t.Errorf("term %s: only %d replicates completed", row.Term, row.Replicates)
		}
		if row.BootSD < 0 {
			t.Errorf("term %s: negative sd", row.Term)
		}
		// planted signal is strong, so bootstrap means stay near the estimates
		if math.Abs(row.BootMean-row.Estimate) > 4*row.BootSD+0.05 {
			t.Errorf("term %s: boot mean %.3f far from estimate %.3f (sd %.3f)",
				row.Term, row.BootMean, row.Estimate, row.BootSD)
		}
	}
}

func TestStabilityDeterministicPerSeed(t *testing.T) {
	data := testkit.Generate(testkit.DefaultConfig())
	run := func() float64 {
		r := &Runner{Replicates: 20, Seed: 5, Workers: 2, Builder: features.Default()}
		rows, err := r.Stability(data, meanstruct.CompositeForm("L"))
		if err != nil {
			t.Fatalf("Stability: %v", err)
		}
		return rows[0].BootMean
	}
	if run() != run() {
		t.Error("same seed should reproduce the bootstrap")
	}
}

func TestStabilityClusterResampling(t *testing.T) {
	data := testkit.Generate(testkit.DefaultConfig())
	form := meanstruct.WithRandomIntercept(meanstruct.CompositeForm("N"), "family")

	r := &Runner{Replicates: 30, Seed: 3, Workers: 4, Builder: features.Default()}
	rows, err := r.Stability(data, form)
	if err != nil {
		t.Fatalf("Stability: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("expected stability rows for the mixed form")
	}
}

func TestStabilityRejectsUnfittableForm(t *testing.T) {
	data := testkit.Generate(testkit.DefaultConfig())
	form := model.FormSpec{Target: "absent", Terms: []model.Term{model.Linear(features.ColLES)}}
	if _, err := (&Runner{Replicates: 5, Seed: 1, Builder: features.Default()}).Stability(data, form); err == nil {
		t.Error("expected error for missing target")
	}
}
