package testkit

import (
	"strings"
	"testing"

	"phylosem/internal/features"
)

func TestGenerateProducesCompleteFrame(t *testing.T) {
	f := Generate(DefaultConfig())
	if f.Len() != 200 {
		t.Fatalf("expected 200 species, got %d", f.Len())
	}

	required := append(features.Default().RawColumns(), "L", "T", "M", "N", "R")
	if err := f.Require(required...); err != nil {
		t.Fatalf("generated frame incomplete: %v", err)
	}

	for _, raw := range features.Default().RawColumns() {
		col, _ := f.Numeric(raw)
		for i, v := range col {
			if v <= 0 {
				t.Fatalf("trait %s row %d: expected positive value, got %v", raw, i, v)
			}
		}
	}

	if !f.HasLabel("family") || !f.HasLabel("woodiness") {
		t.Error("expected family and woodiness labels")
	}
}

func TestGenerateDeterministicPerSeed(t *testing.T) {
	a := Generate(GeneratorConfig{Species: 50, Seed: 3, Clusters: 4, NoiseSD: 0.5})
	b := Generate(GeneratorConfig{Species: 50, Seed: 3, Clusters: 4, NoiseSD: 0.5})

	ya, _ := a.Numeric("L")
	yb, _ := b.Numeric("L")
	for i := range ya {
		if ya[i] != yb[i] {
			t.Fatal("same seed should reproduce the community")
		}
	}
}

func TestBalancedNewickCoversAllSpecies(t *testing.T) {
	f := Generate(GeneratorConfig{Species: 7, Seed: 1, NoiseSD: 0.5})
	nw := BalancedNewick(f.Species)
	if !strings.HasSuffix(nw, ";") {
		t.Error("newick string must terminate with a semicolon")
	}
	for _, sp := range f.Species {
		if !strings.Contains(nw, sp) {
			t.Errorf("species %s missing from tree", sp)
		}
	}
}
