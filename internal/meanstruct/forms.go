package meanstruct

import (
	"phylosem/domain/model"
	"phylosem/internal/features"
)

// Candidate mean structures per target axis. The three families mirror the
// structural equations compared during model selection: the composite form,
// the deconstructed form with SIZE split into its constituent traits, and
// the semi-nonlinear form with a penalized smooth of height.

// CompositeForm is y ~ LES + SIZE + logSSD plus any extra terms
func CompositeForm(target string, extras ...model.Term) model.FormSpec {
	terms := []model.Term{
		model.Linear(features.ColLES),
		model.Linear(features.ColSIZE),
		model.Linear(features.ColLogSSD),
	}
	return model.FormSpec{Target: target, Terms: append(terms, extras...)}
}

// DeconstructedForm replaces the SIZE composite with its constituent
// log-scale traits: y ~ LES + logH + logSM + logSSD
func DeconstructedForm(target string, extras ...model.Term) model.FormSpec {
	terms := []model.Term{
		model.Linear(features.ColLES),
		model.Linear(features.ColLogH),
		model.Linear(features.ColLogSM),
		model.Linear(features.ColLogSSD),
	}
	return model.FormSpec{Target: target, Terms: append(terms, extras...)}
}

// SemiNonlinearForm keeps the linear terms but replaces the height slope
// with a penalized smooth; withTensor adds a tensor-product smooth between
// LES and logSSD.
func SemiNonlinearForm(target string, basisDim int, withTensor bool) model.FormSpec {
	terms := []model.Term{
		model.Linear(features.ColLES),
		model.Smooth(features.ColLogH, basisDim),
		model.Linear(features.ColLogSM),
		model.Linear(features.ColLogSSD),
	}
	if withTensor {
		terms = append(terms, model.Tensor(features.ColLES, features.ColLogSSD, tensorBasisDim))
	}
	return model.FormSpec{Target: target, Terms: terms}
}

// WithRandomIntercept adds a per-cluster random intercept to any form
func WithRandomIntercept(form model.FormSpec, clusterColumn string) model.FormSpec {
	out := form
	out.Terms = append(append([]model.Term(nil), form.Terms...), model.RandomIntercept(clusterColumn))
	return out
}
