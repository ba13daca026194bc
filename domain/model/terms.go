package model

import "fmt"

// TermKind tags the role of one model term. Formulas are never assembled as
// strings; fitters consume these descriptors directly.
type TermKind int

const (
	// TermLinear is a plain slope on one column
	TermLinear TermKind = iota
	// TermInteraction is the product of two columns
	TermInteraction
	// TermSmooth is a penalized spline of one column
	TermSmooth
	// TermTensor is a penalized tensor-product smooth of two columns
	TermTensor
	// TermRandomIntercept is a per-cluster random intercept on a label column
	TermRandomIntercept
)

// String names the term kind
func (k TermKind) String() string {
	switch k {
	case TermLinear:
		return "linear"
	case TermInteraction:
		return "interaction"
	case TermSmooth:
		return "smooth"
	case TermTensor:
		return "tensor"
	case TermRandomIntercept:
		return "random-intercept"
	default:
		return "unknown"
	}
}

// Term describes a single model term
type Term struct {
	Kind      TermKind `json:"kind"`
	Variables []string `json:"variables"`           // columns (labels for random intercepts)
	BasisDim  int      `json:"basis_dim,omitempty"` // basis cap for smooths; 0 uses the default
}

// Name gives a stable display name for the term, used in coefficient tables
func (t Term) Name() string {
	switch t.Kind {
	case TermLinear:
		return t.Variables[0]
	case TermInteraction:
		return t.Variables[0] + ":" + t.Variables[1]
	case TermSmooth:
		return fmt.Sprintf("s(%s)", t.Variables[0])
	case TermTensor:
		return fmt.Sprintf("te(%s,%s)", t.Variables[0], t.Variables[1])
	case TermRandomIntercept:
		return fmt.Sprintf("(1|%s)", t.Variables[0])
	default:
		return "?"
	}
}

// Term constructors

func Linear(column string) Term {
	return Term{Kind: TermLinear, Variables: []string{column}}
}

func Interaction(a, b string) Term {
	return Term{Kind: TermInteraction, Variables: []string{a, b}}
}

func Smooth(column string, basisDim int) Term {
	return Term{Kind: TermSmooth, Variables: []string{column}, BasisDim: basisDim}
}

func Tensor(a, b string, basisDim int) Term {
	return Term{Kind: TermTensor, Variables: []string{a, b}, BasisDim: basisDim}
}

func RandomIntercept(labelColumn string) Term {
	return Term{Kind: TermRandomIntercept, Variables: []string{labelColumn}}
}

// FormSpec is one candidate mean structure for a target axis
type FormSpec struct {
	Target string `json:"target"`
	Terms  []Term `json:"terms"`
}

// Cluster returns the random-intercept label column, or "" when the form has
// no random effect
func (s FormSpec) Cluster() string {
	for _, t := range s.Terms {
		if t.Kind == TermRandomIntercept {
			return t.Variables[0]
		}
	}
	return ""
}

// FixedTerms returns the terms that enter the design matrix
func (s FormSpec) FixedTerms() []Term {
	out := make([]Term, 0, len(s.Terms))
	for _, t := range s.Terms {
		if t.Kind != TermRandomIntercept {
			out = append(out, t)
		}
	}
	return out
}

// NumericColumns lists every numeric column the form consumes, target included
func (s FormSpec) NumericColumns() []string {
	seen := map[string]bool{s.Target: true}
	out := []string{s.Target}
	for _, t := range s.Terms {
		if t.Kind == TermRandomIntercept {
			continue
		}
		for _, v := range t.Variables {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// HasSmooth reports whether the form carries any penalized term
func (s FormSpec) HasSmooth() bool {
	for _, t := range s.Terms {
		if t.Kind == TermSmooth || t.Kind == TermTensor {
			return true
		}
	}
	return false
}
