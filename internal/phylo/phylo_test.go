package phylo

import (
	"errors"
	"math"
	"testing"

	"phylosem/domain/core"
)

func TestParseNewick(t *testing.T) {
	tree, err := ParseNewick("((Quercus robur:1,Fagus_sylvatica:1):1,Pinus sylvestris:2);")
	if err != nil {
		t.Fatalf("ParseNewick: %v", err)
	}
	tips := tree.Tips()
	if len(tips) != 3 {
		t.Fatalf("expected 3 tips, got %v", tips)
	}
	for _, label := range []string{"quercus_robur", "Fagus sylvatica", "PINUS SYLVESTRIS"} {
		if !tree.HasTip(label) {
			t.Errorf("tip lookup failed for %q", label)
		}
	}
}

func TestParseNewickSpacedLabels(t *testing.T) {
	// interior spaces are part of the label, whitespace around delimiters is not
	tree, err := ParseNewick("(Quercus robur :1, Fagus sylvatica:1);")
	if err != nil {
		t.Fatalf("ParseNewick: %v", err)
	}
	for _, label := range []string{"quercus_robur", "fagus_sylvatica"} {
		if !tree.HasTip(label) {
			t.Errorf("tip lookup failed for %q", label)
		}
	}
}

func TestParseNewickMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"unterminated clade", "((a:1,b:1;"},
		{"trailing garbage", "(a:1,b:1);extra"},
		{"bad branch length", "(a:x,b:1);"},
		{"negative branch length", "(a:-1,b:1);"},
		{"duplicate tip", "(a:1,a:1);"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNewick(tt.in)
			if !errors.Is(err, core.ErrMalformedTree) {
				t.Errorf("expected ErrMalformedTree, got %v", err)
			}
		})
	}
}

func TestCopheneticDistances(t *testing.T) {
	tree, err := ParseNewick("((A:1,B:1):1,C:2);")
	if err != nil {
		t.Fatalf("ParseNewick: %v", err)
	}
	m, err := tree.Cophenetic([]string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("Cophenetic: %v", err)
	}

	tests := []struct {
		a, b string
		want float64
	}{
		{"A", "B", 2},
		{"A", "C", 4},
		{"B", "C", 4},
		{"A", "A", 0},
	}
	for _, tt := range tests {
		got, ok := m.Distance(tt.a, tt.b)
		if !ok {
			t.Fatalf("Distance(%s,%s) not found", tt.a, tt.b)
		}
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Distance(%s,%s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCopheneticMissingTip(t *testing.T) {
	tree, _ := ParseNewick("(A:1,B:1);")
	_, err := tree.Cophenetic([]string{"A", "Z"})
	if !errors.Is(err, core.ErrTipNotFound) {
		t.Errorf("expected ErrTipNotFound, got %v", err)
	}
}

func TestSubsetDropsAbsentTips(t *testing.T) {
	tree, _ := ParseNewick("((A:1,B:1):1,C:2);")
	m, err := tree.Cophenetic([]string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("Cophenetic: %v", err)
	}
	sub := m.Subset([]string{"A", "C", "Z"})
	if len(sub.Labels) != 2 {
		t.Fatalf("expected 2 labels, got %v", sub.Labels)
	}
	d, ok := sub.Distance("A", "C")
	if !ok || d != 4 {
		t.Errorf("Distance(A,C) = %v ok=%v, want 4", d, ok)
	}
}

func TestPredictorExcludesSelf(t *testing.T) {
	tree, _ := ParseNewick("((A:1,B:1):1,(C:1,D:1):1);")
	m, err := tree.Cophenetic([]string{"A", "B", "C", "D"})
	if err != nil {
		t.Fatalf("Cophenetic: %v", err)
	}

	// A=10, B=20, C=30, D=40; all tips are training donors
	p := NewPredictor(m, []string{"A", "B", "C", "D"}, []float64{10, 20, 30, 40}, 2, 0)

	// prediction for A must ignore A's own value: B at distance 2,
	// C and D at distance 4 each -> weights 1/4, 1/16, 1/16
	want := (20.0/4 + 30.0/16 + 40.0/16) / (1.0/4 + 1.0/16 + 1.0/16)
	got := p.Predict("A")
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Predict(A) = %v, want %v", got, want)
	}
	if got == 10 {
		t.Error("prediction must not reuse the species' own response")
	}
}

func TestPredictorTruncation(t *testing.T) {
	tree, _ := ParseNewick("((A:1,B:1):1,(C:1,D:1):1);")
	m, _ := tree.Cophenetic([]string{"A", "B", "C", "D"})

	p := NewPredictor(m, []string{"A", "B", "C", "D"}, []float64{10, 20, 30, 40}, 2, 1)
	// with k=1, only the nearest donor B contributes
	if got := p.Predict("A"); got != 20 {
		t.Errorf("Predict(A) with k=1 = %v, want 20", got)
	}
}

func TestPredictorZeroDistanceDonorGetsZeroWeight(t *testing.T) {
	tree, _ := ParseNewick("((A:0,B:0):1,C:1);")
	m, err := tree.Cophenetic([]string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("Cophenetic: %v", err)
	}

	// B sits at patristic distance 0 from A so its weight is zero; C at
	// distance 2 is the only contributing donor
	p := NewPredictor(m, []string{"B", "C"}, []float64{10, 1}, 2, 0)
	if got := p.Predict("A"); got != 1 {
		t.Errorf("Predict(A) = %v, want 1", got)
	}

	// with every donor at distance zero the prediction is the training mean
	q := NewPredictor(m, []string{"B"}, []float64{10}, 2, 0)
	if got := q.Predict("A"); got != 10 {
		t.Errorf("Predict(A) with no positive-distance donor = %v, want train mean 10", got)
	}
}

func TestPredictorFallsBackToTrainMean(t *testing.T) {
	tree, _ := ParseNewick("((A:1,B:1):1,(C:1,D:1):1);")
	m, _ := tree.Cophenetic([]string{"A", "B", "C", "D"})

	p := NewPredictor(m, []string{"A", "B"}, []float64{10, 20}, 2, 0)
	if got := p.Predict("unknown species"); got != 15 {
		t.Errorf("species outside the tree should get the training mean, got %v", got)
	}
}

func TestPredictorSkipsNonFiniteResponses(t *testing.T) {
	tree, _ := ParseNewick("((A:1,B:1):1,(C:1,D:1):1);")
	m, _ := tree.Cophenetic([]string{"A", "B", "C", "D"})

	p := NewPredictor(m, []string{"A", "B", "C"}, []float64{10, math.NaN(), 30}, 2, 0)
	// B is not a donor; A's prediction uses C only
	if got := p.Predict("A"); got != 30 {
		t.Errorf("Predict(A) = %v, want 30", got)
	}
}

func TestBlendBoundariesExact(t *testing.T) {
	sem := []float64{1, 2, 3}
	phy := []float64{4, 5, 6}

	for i, v := range Blend(sem, phy, 0) {
		if v != sem[i] {
			t.Errorf("alpha=0 must reproduce structural predictions exactly")
		}
	}
	for i, v := range Blend(sem, phy, 1) {
		if v != phy[i] {
			t.Errorf("alpha=1 must reproduce neighbor predictions exactly")
		}
	}
	mid := Blend(sem, phy, 0.5)
	if math.Abs(mid[0]-2.5) > 1e-12 {
		t.Errorf("alpha=0.5 blend = %v, want 2.5", mid[0])
	}
}
