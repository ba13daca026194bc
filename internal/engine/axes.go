// Package engine orchestrates a full run: feature construction,
// cross-validated mean structures, independence tests, residual dependency
// detection, phylogenetic blending, and artifact persistence.
package engine

import (
	"phylosem/domain/core"
	"phylosem/domain/model"
	"phylosem/internal/dsep"
	"phylosem/internal/features"
	"phylosem/internal/meanstruct"
)

// The recognized indicator axes: light, temperature, moisture, nutrients,
// and soil reaction.
var validAxes = map[string]bool{
	"L": true,
	"T": true,
	"M": true,
	"N": true,
	"R": true,
}

// ValidateAxis rejects unrecognized target axis labels before any fitting
func ValidateAxis(axis string) error {
	if !validAxes[axis] {
		return core.InvalidTargetError(axis)
	}
	return nil
}

// FormKind selects the mean-structure family fitted per axis
type FormKind int

const (
	// FormComposite regresses on the LES and SIZE axes plus logSSD
	FormComposite FormKind = iota
	// FormDeconstructed replaces SIZE with its raw constituents
	FormDeconstructed
	// FormSemiNonlinear adds a height smooth and an LES by logSSD surface
	FormSemiNonlinear
)

// FormFor builds the mean structure for one axis. A non-empty cluster column
// adds a random intercept.
func FormFor(axis string, kind FormKind, cluster string) model.FormSpec {
	var form model.FormSpec
	switch kind {
	case FormDeconstructed:
		form = meanstruct.DeconstructedForm(axis)
	case FormSemiNonlinear:
		form = meanstruct.SemiNonlinearForm(axis, 0, true)
	default:
		form = meanstruct.CompositeForm(axis)
	}
	if cluster != "" {
		form = meanstruct.WithRandomIntercept(form, cluster)
	}
	return form
}

// DefaultClaims is the basis set of conditional-independence claims implied
// by the composite structure: each trait left out of an axis' mean structure
// must be independent of the response given the included predictors.
func DefaultClaims(axis string) []dsep.Claim {
	conditioning := []string{features.ColLES, features.ColSIZE, features.ColLogSSD}
	return []dsep.Claim{
		{A: features.ColLogLA, B: axis, Conditioning: conditioning},
		{A: features.ColLogLMA, B: axis, Conditioning: conditioning},
		{A: features.ColLogNmass, B: axis, Conditioning: conditioning},
	}
}
