package features

import (
	"math"

	"github.com/montanaflynn/stats"

	"phylosem/domain/dataset"
	apperrors "phylosem/internal/errors"
)

const minLogOffset = 1e-6

// Params holds everything fitted on a training partition. Applying the same
// Params to any frame reproduces the training-time transform exactly, which
// is what keeps test folds leak-free.
type Params struct {
	Offsets  map[string]float64   // per raw variable
	Centers  map[string]float64   // per derived variable entering a composite
	Scales   map[string]float64   // per derived variable entering a composite
	Loadings map[string][]float64 // per composite, aligned with its Inputs
}

// Fit computes offsets, standardization, and composite rotations from the
// training rows only.
func (s Spec) Fit(train *dataset.Frame) (*Params, error) {
	if err := train.Require(s.RawColumns()...); err != nil {
		return nil, err
	}

	p := &Params{
		Offsets:  make(map[string]float64),
		Centers:  make(map[string]float64),
		Scales:   make(map[string]float64),
		Loadings: make(map[string][]float64),
	}

	// Log offsets from the training distribution of each raw variable
	derived := make(map[string][]float64, len(s.Logs))
	for _, lt := range s.Logs {
		raw, err := train.Numeric(lt.Raw)
		if err != nil {
			return nil, err
		}
		offset := logOffset(raw)
		p.Offsets[lt.Raw] = offset
		derived[lt.Derived] = logColumn(raw, offset)
	}

	// Standardization parameters per composite input
	for _, comp := range s.Composites {
		for _, input := range comp.Inputs {
			if _, done := p.Centers[input]; done {
				continue
			}
			col, ok := derived[input]
			if !ok {
				return nil, apperrors.MissingColumn(input)
			}
			center, scale := centerScale(col)
			p.Centers[input] = center
			p.Scales[input] = scale
		}
	}

	// First-principal-component loadings per composite, on standardized
	// complete training rows
	for _, comp := range s.Composites {
		cols := make([][]float64, len(comp.Inputs))
		for i, input := range comp.Inputs {
			cols[i] = standardize(derived[input], p.Centers[input], p.Scales[input])
		}
		loadings, err := firstComponent(cols)
		if err != nil {
			return nil, apperrors.Wrapf(err, "composite %s", comp.Name)
		}
		refIdx := indexOf(comp.Inputs, comp.Reference)
		if refIdx >= 0 && loadings[refIdx] < 0 {
			for i := range loadings {
				loadings[i] = -loadings[i]
			}
		}
		p.Loadings[comp.Name] = loadings
	}

	return p, nil
}

// Apply adds the derived log columns and composite axes to a frame using
// previously fitted Params. No statistic is recomputed from the frame.
func (s Spec) Apply(p *Params, f *dataset.Frame) (*dataset.Frame, error) {
	if err := f.Require(s.RawColumns()...); err != nil {
		return nil, err
	}
	out := f.Clone()

	for _, lt := range s.Logs {
		raw, err := out.Numeric(lt.Raw)
		if err != nil {
			return nil, err
		}
		if err := out.SetNumeric(lt.Derived, logColumn(raw, p.Offsets[lt.Raw])); err != nil {
			return nil, err
		}
	}

	for _, comp := range s.Composites {
		loadings := p.Loadings[comp.Name]
		axis := make([]float64, out.Len())
		for i := range axis {
			sum := 0.0
			ok := true
			for j, input := range comp.Inputs {
				col, err := out.Numeric(input)
				if err != nil {
					return nil, err
				}
				z := (col[i] - p.Centers[input]) / p.Scales[input]
				if math.IsNaN(z) || math.IsInf(z, 0) {
					ok = false
					break
				}
				sum += loadings[j] * z
			}
			if ok {
				axis[i] = sum
			} else {
				axis[i] = math.NaN()
			}
		}
		if err := out.SetNumeric(comp.Name, axis); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Build fits on train and applies the training transform to both partitions
func (s Spec) Build(train, test *dataset.Frame) (*dataset.Frame, *dataset.Frame, *Params, error) {
	params, err := s.Fit(train)
	if err != nil {
		return nil, nil, nil, err
	}
	trainOut, err := s.Apply(params, train)
	if err != nil {
		return nil, nil, nil, err
	}
	var testOut *dataset.Frame
	if test != nil {
		testOut, err = s.Apply(params, test)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return trainOut, testOut, params, nil
}

// logOffset computes max(1e-6, 1e-3 * median(positive values)). A variable
// with no positive values falls back to the floor constant.
func logOffset(raw []float64) float64 {
	var positive []float64
	for _, v := range raw {
		if v > 0 && !math.IsInf(v, 0) {
			positive = append(positive, v)
		}
	}
	if len(positive) == 0 {
		return minLogOffset
	}
	median, err := stats.Median(positive)
	if err != nil || math.IsNaN(median) {
		return minLogOffset
	}
	return math.Max(minLogOffset, 1e-3*median)
}

func logColumn(raw []float64, offset float64) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		shifted := v + offset
		if math.IsNaN(v) || math.IsInf(v, 0) || shifted <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Log10(shifted)
	}
	return out
}

// centerScale returns the training mean and sample sd of the finite values,
// substituting 1 for a zero or non-finite sd to avoid division errors.
func centerScale(col []float64) (float64, float64) {
	var finite []float64
	for _, v := range col {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, 1
	}
	mean, _ := stats.Mean(finite)
	sd, err := stats.StandardDeviationSample(finite)
	if err != nil || sd == 0 || math.IsNaN(sd) || math.IsInf(sd, 0) {
		sd = 1
	}
	return mean, sd
}

func standardize(col []float64, center, scale float64) []float64 {
	out := make([]float64, len(col))
	for i, v := range col {
		out[i] = (v - center) / scale
	}
	return out
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
