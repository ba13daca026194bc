package model

// FitStatus distinguishes "the richer form fit" from "fell back" without
// callers having to inspect error text.
type FitStatus int

const (
	// FitOK means the requested form was fit as specified
	FitOK FitStatus = iota
	// FitDegraded means a simpler form was substituted (e.g. mixed-effects
	// fell back to plain regression) and the unit still produced a model
	FitDegraded
	// FitFailed means the unit produced no usable model and was skipped
	FitFailed
)

// String names the status
func (s FitStatus) String() string {
	switch s {
	case FitOK:
		return "ok"
	case FitDegraded:
		return "degraded"
	default:
		return "failed"
	}
}

// FitOutcome records how a single fit unit resolved
type FitOutcome struct {
	Status FitStatus `json:"status"`
	Reason string    `json:"reason,omitempty"`
}

// Usable reports whether the unit produced a model at all
func (o FitOutcome) Usable() bool {
	return o.Status != FitFailed
}

func OK() FitOutcome {
	return FitOutcome{Status: FitOK}
}

func Degraded(reason string) FitOutcome {
	return FitOutcome{Status: FitDegraded, Reason: reason}
}

func Failed(reason string) FitOutcome {
	return FitOutcome{Status: FitFailed, Reason: reason}
}
