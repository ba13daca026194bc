package dsep

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"phylosem/domain/dataset"
)

// GroupedResult is the omnibus test across strata: per-group Fisher
// statistics summed, with degrees of freedom summed accordingly.
type GroupedResult struct {
	Groups  map[string]*Result
	Skipped map[string]int // group -> row count, for groups excluded from the omnibus
	C       float64
	DF      int
	PValue  float64
}

// TestGrouped splits the rows by group label, runs the d-separation test
// within each sufficiently large group, and sums C and df across groups.
// Groups under MinGroupRows rows are skipped but stay visible for audit.
func TestGrouped(f *dataset.Frame, claims []Claim, groupColumn string) (*GroupedResult, error) {
	labels, err := f.Label(groupColumn)
	if err != nil {
		return nil, err
	}

	byGroup := make(map[string][]int)
	for i, label := range labels {
		if label == "" {
			continue
		}
		byGroup[label] = append(byGroup[label], i)
	}

	out := &GroupedResult{
		Groups:  make(map[string]*Result),
		Skipped: make(map[string]int),
	}

	names := make([]string, 0, len(byGroup))
	for name := range byGroup {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rows := byGroup[name]
		if len(rows) < MinGroupRows {
			out.Skipped[name] = len(rows)
			continue
		}
		res, err := Test(f.Subset(rows), claims)
		if err != nil {
			return nil, err
		}
		if res.DF == 0 {
			out.Skipped[name] = len(rows)
			continue
		}
		out.Groups[name] = res
		out.C += res.C
		out.DF += res.DF
	}

	if out.DF == 0 {
		out.PValue = math.NaN()
		return out, nil
	}
	chi := distuv.ChiSquared{K: float64(out.DF)}
	out.PValue = chi.Survival(out.C)
	return out, nil
}
