package copula

import (
	"phylosem/domain/report"
	"phylosem/internal"
)

// DefaultDistrict is a caller-supplied fallback axis pair, fitted when
// detection finds no district of its own.
type DefaultDistrict struct {
	AxisA string
	AxisB string
}

// Result bundles the screening table and the fitted districts
type Result struct {
	Pairs     []report.PairCorrelation
	Districts []report.DistrictRecord
}

// DetectAndFit runs the full pipeline: pairwise screening, FDR adjustment,
// greedy district matching, a Gaussian copula fit per district, and grouped
// refits when the table carries group labels. When detection selects nothing,
// the caller-supplied defaults are fitted instead and flagged as such.
func (d Detector) DetectAndFit(t *ResidualTable, defaults []DefaultDistrict, shrinkK float64, log *internal.Logger) Result {
	if log == nil {
		log = internal.DefaultLogger
	}
	pairs := BenjaminiHochberg(d.Correlations(t), d.FDRQ)
	matched := d.Districts(pairs)

	res := Result{Pairs: pairs}
	for _, p := range matched {
		xs, ys, _ := t.pairComplete(p.AxisA, p.AxisB)
		fit, err := FitGaussian(p.AxisA, p.AxisB, xs, ys)
		if err != nil {
			log.Warn("[Copula] district %s~%s dropped: %v", p.AxisA, p.AxisB, err)
			continue
		}
		groups := GroupedFits(t, fit, shrinkK, d.minGroupRows())
		res.Districts = append(res.Districts, fit.Record(false, groups))
	}
	if len(res.Districts) > 0 {
		return res
	}

	for _, def := range defaults {
		xs, ys, _ := t.pairComplete(def.AxisA, def.AxisB)
		fit, err := FitGaussian(def.AxisA, def.AxisB, xs, ys)
		if err != nil {
			log.Warn("[Copula] default district %s~%s dropped: %v", def.AxisA, def.AxisB, err)
			continue
		}
		groups := GroupedFits(t, fit, shrinkK, d.minGroupRows())
		res.Districts = append(res.Districts, fit.Record(true, groups))
	}
	return res
}
