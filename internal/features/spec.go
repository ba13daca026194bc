// Package features derives log-scale traits and principal-component
// composite axes, fitting every statistic on the training partition only and
// projecting held-out rows with the training parameters.
package features

// Canonical column names shared across the engine
const (
	ColSpecies  = "species"
	ColLeafArea = "leaf_area"
	ColHeight   = "plant_height"
	ColSeedMass = "seed_mass"
	ColStemDens = "ssd"
	ColLMA      = "lma"
	ColNmass    = "nmass"

	ColLogLA    = "logLA"
	ColLogH     = "logH"
	ColLogSM    = "logSM"
	ColLogSSD   = "logSSD"
	ColLogLMA   = "logLMA"
	ColLogNmass = "logNmass"

	// Composite axes
	ColLES  = "LES"
	ColSIZE = "SIZE"
)

// LogTransform maps a raw trait onto its log-scale derived column
type LogTransform struct {
	Raw     string
	Derived string
}

// CompositeSpec describes one principal-component composite. Reference is
// the input whose loading must come out positive; if the raw first component
// loads it negatively, the whole loading vector is negated.
type CompositeSpec struct {
	Name      string
	Inputs    []string
	Reference string
}

// Spec is the full feature-construction plan
type Spec struct {
	Logs       []LogTransform
	Composites []CompositeSpec
}

// Default returns the canonical plan: six log traits, the leaf-economics
// axis anchored on logNmass, and the size axis anchored on logH.
func Default() Spec {
	return Spec{
		Logs: []LogTransform{
			{Raw: ColLeafArea, Derived: ColLogLA},
			{Raw: ColHeight, Derived: ColLogH},
			{Raw: ColSeedMass, Derived: ColLogSM},
			{Raw: ColStemDens, Derived: ColLogSSD},
			{Raw: ColLMA, Derived: ColLogLMA},
			{Raw: ColNmass, Derived: ColLogNmass},
		},
		Composites: []CompositeSpec{
			{Name: ColLES, Inputs: []string{ColLogLMA, ColLogNmass}, Reference: ColLogNmass},
			{Name: ColSIZE, Inputs: []string{ColLogH, ColLogSM}, Reference: ColLogH},
		},
	}
}

// RawColumns lists the raw trait columns the plan requires
func (s Spec) RawColumns() []string {
	out := make([]string, 0, len(s.Logs))
	for _, lt := range s.Logs {
		out = append(out, lt.Raw)
	}
	return out
}
