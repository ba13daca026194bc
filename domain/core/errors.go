package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Configuration errors: terminate a run before any fitting starts
	ErrMissingColumn = errors.New("required column missing")
	ErrInvalidTarget = errors.New("invalid target axis")
	ErrTooFewRows    = errors.New("too few rows for requested fold count")

	// Per-unit failures: caught locally, the unit is skipped or degraded
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrDegenerateFit    = errors.New("degenerate model fit")
	ErrSingularDesign   = errors.New("singular design matrix")

	// Phylogeny errors
	ErrTipNotFound   = errors.New("tip label not found in tree")
	ErrMalformedTree = errors.New("malformed tree")
)

// MissingColumnError names the column a fitting step required but did not find
func MissingColumnError(column string) error {
	return fmt.Errorf("%w: %s", ErrMissingColumn, column)
}

// InvalidTargetError names the unrecognized target axis label
func InvalidTargetError(target string) error {
	return fmt.Errorf("%w: %s", ErrInvalidTarget, target)
}

// InsufficientDataError reports how many rows a step needed versus got
func InsufficientDataError(need, got int) error {
	return fmt.Errorf("%w: need %d rows, got %d", ErrInsufficientData, need, got)
}

// TipNotFoundError names the tip label absent from the tree
func TipNotFoundError(label string) error {
	return fmt.Errorf("%w: %s", ErrTipNotFound, label)
}
