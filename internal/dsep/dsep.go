// Package dsep tests the conditional-independence claims implied by a fixed
// causal topology, combining per-claim p-values with Fisher's method.
package dsep

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"phylosem/domain/dataset"
	"phylosem/domain/model"
	"phylosem/domain/report"
	"phylosem/internal/meanstruct"
)

// MinGroupRows is the smallest group entering grouped tests; smaller groups
// are skipped and their row counts recorded for audit.
const MinGroupRows = 10

// pFloor keeps log(p) finite for numerically zero p-values
const pFloor = 1e-16

// Claim states that A and B are independent given the conditioning set
type Claim struct {
	A            string
	B            string
	Conditioning []string
}

// String renders the claim in the conventional "A _||_ B | {Z}" form
func (c Claim) String() string {
	if len(c.Conditioning) == 0 {
		return fmt.Sprintf("%s _||_ %s", c.A, c.B)
	}
	return fmt.Sprintf("%s _||_ %s | %v", c.A, c.B, c.Conditioning)
}

// ClaimResult carries the per-claim regression outcome
type ClaimResult struct {
	Claim       Claim
	Group       string
	N           int
	Coefficient float64
	TValue      float64
	PValue      float64
	Skipped     bool
	Reason      string
}

// fitLinear fits a purely linear equation through the mean-structure fitter
func fitLinear(f *dataset.Frame, form model.FormSpec) (*meanstruct.Model, model.FitOutcome, error) {
	return meanstruct.Fit(f, form)
}

// Result is the combined test: C = -2 Σ log p over k claims is chi-squared
// with 2k degrees of freedom under the null.
type Result struct {
	C      float64
	DF     int
	PValue float64
	Claims []ClaimResult
}

// Test evaluates all claims on the full dataset. Each claim regresses B on
// the conditioning set plus A and reads the two-sided p-value of A's slope;
// an empty conditioning set reduces to a plain correlation test.
func Test(f *dataset.Frame, claims []Claim) (*Result, error) {
	res := &Result{}
	for _, claim := range claims {
		cr, err := testClaim(f, claim)
		if err != nil {
			return nil, err
		}
		res.Claims = append(res.Claims, cr)
	}
	res.combine()
	return res, nil
}

func (r *Result) combine() {
	k := 0
	c := 0.0
	for _, cr := range r.Claims {
		if cr.Skipped {
			continue
		}
		p := cr.PValue
		if p < pFloor {
			p = pFloor
		}
		if p > 1 {
			p = 1
		}
		c += -2 * math.Log(p)
		k++
	}
	r.C = c
	r.DF = 2 * k
	if k == 0 {
		r.PValue = math.NaN()
		return
	}
	chi := distuv.ChiSquared{K: float64(r.DF)}
	r.PValue = chi.Survival(c)
}

func testClaim(f *dataset.Frame, claim Claim) (ClaimResult, error) {
	out := ClaimResult{Claim: claim}

	columns := append([]string{claim.B, claim.A}, claim.Conditioning...)
	if err := f.Require(columns...); err != nil {
		return out, err
	}
	rows, err := f.CompleteCases(columns...)
	if err != nil {
		return out, err
	}
	out.N = len(rows)
	if len(rows) < MinGroupRows {
		out.Skipped = true
		out.Reason = fmt.Sprintf("%d complete rows", len(rows))
		return out, nil
	}

	if len(claim.Conditioning) == 0 {
		return correlationClaim(f, claim, rows)
	}

	sub := f.Subset(rows)
	terms := make([]model.Term, 0, len(claim.Conditioning)+1)
	for _, z := range claim.Conditioning {
		terms = append(terms, model.Linear(z))
	}
	terms = append(terms, model.Linear(claim.A))
	fitted, outcome, err := fitLinear(sub, model.FormSpec{Target: claim.B, Terms: terms})
	if err != nil {
		return out, err
	}
	if !outcome.Usable() {
		out.Skipped = true
		out.Reason = outcome.Reason
		return out, nil
	}
	coef, ok := fitted.Coefficient(claim.A)
	if !ok || math.IsNaN(coef.PValue) {
		out.Skipped = true
		out.Reason = "coefficient not estimable"
		return out, nil
	}
	out.Coefficient = coef.Estimate
	out.TValue = coef.TValue
	out.PValue = coef.PValue
	return out, nil
}

// correlationClaim is the unconditional special case: a Pearson correlation
// t-test between A and B.
func correlationClaim(f *dataset.Frame, claim Claim, rows []int) (ClaimResult, error) {
	out := ClaimResult{Claim: claim, N: len(rows)}
	a, err := f.Numeric(claim.A)
	if err != nil {
		return out, err
	}
	b, err := f.Numeric(claim.B)
	if err != nil {
		return out, err
	}
	var xs, ys []float64
	for _, i := range rows {
		xs = append(xs, a[i])
		ys = append(ys, b[i])
	}
	r := pearson(xs, ys)
	n := float64(len(xs))
	if math.Abs(r) >= 1 {
		out.Coefficient = r
		out.PValue = 0
		out.TValue = math.Inf(1)
		return out, nil
	}
	t := r * math.Sqrt((n-2)/(1-r*r))
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 2}
	out.Coefficient = r
	out.TValue = t
	out.PValue = 2 * tDist.Survival(math.Abs(t))
	return out, nil
}

func pearson(x, y []float64) float64 {
	n := float64(len(x))
	if n == 0 {
		return 0
	}
	var sx, sy, sxy, sx2, sy2 float64
	for i := range x {
		sx += x[i]
		sy += y[i]
		sxy += x[i] * y[i]
		sx2 += x[i] * x[i]
		sy2 += y[i] * y[i]
	}
	den := math.Sqrt((n*sx2 - sx*sx) * (n*sy2 - sy*sy))
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}

// Records flattens the result for the artifact store
func (r *Result) Records(group string) ([]report.ClaimRecord, report.DSepRecord) {
	claims := make([]report.ClaimRecord, 0, len(r.Claims))
	used := 0
	for _, cr := range r.Claims {
		rec := report.ClaimRecord{
			Group:       group,
			Claim:       cr.Claim.String(),
			N:           cr.N,
			Coefficient: cr.Coefficient,
			TValue:      cr.TValue,
			PValue:      cr.PValue,
			Skipped:     cr.Skipped,
			SkipReason:  cr.Reason,
		}
		claims = append(claims, rec)
		if !cr.Skipped {
			used++
		}
	}
	return claims, report.DSepRecord{Group: group, C: r.C, DF: r.DF, PValue: r.PValue, Claims: used}
}
