package meanstruct

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"phylosem/domain/core"
	"phylosem/domain/dataset"
	"phylosem/domain/model"
)

// penaltyBlock marks a run of design columns under a smoothness penalty
type penaltyBlock struct {
	start int
	size  int
	s     *mat.Dense
}

// basisSet stores the training-fitted spline bases keyed by term name, so
// prediction re-expands new data with the training knots.
type basisSet struct {
	smooth map[string]*splineBasis    // smooth term name -> basis
	tensor map[string][2]*splineBasis // tensor term name -> marginal bases
}

func newBasisSet() *basisSet {
	return &basisSet{
		smooth: make(map[string]*splineBasis),
		tensor: make(map[string][2]*splineBasis),
	}
}

// fitBases constructs spline bases from the training rows of each penalized term
func fitBases(f *dataset.Frame, rows []int, terms []model.Term) (*basisSet, error) {
	bases := newBasisSet()
	for _, t := range terms {
		switch t.Kind {
		case model.TermSmooth:
			col, err := f.Numeric(t.Variables[0])
			if err != nil {
				return nil, err
			}
			b, err := newSplineBasis(gather(col, rows), basisDim(t.BasisDim, defaultBasisDim))
			if err != nil {
				return nil, err
			}
			bases.smooth[t.Name()] = b
		case model.TermTensor:
			dim := basisDim(t.BasisDim, tensorBasisDim)
			var pair [2]*splineBasis
			for i := 0; i < 2; i++ {
				col, err := f.Numeric(t.Variables[i])
				if err != nil {
					return nil, err
				}
				b, err := newSplineBasis(gather(col, rows), dim)
				if err != nil {
					return nil, err
				}
				pair[i] = b
			}
			bases.tensor[t.Name()] = pair
		}
	}
	return bases, nil
}

// designRow expands one observation into a design row (intercept included).
// Any non-finite input yields a nil row.
func designRow(f *dataset.Frame, i int, terms []model.Term, bases *basisSet) ([]float64, error) {
	row := []float64{1}
	for _, t := range terms {
		switch t.Kind {
		case model.TermLinear:
			v, err := value(f, t.Variables[0], i)
			if err != nil {
				return nil, err
			}
			if math.IsNaN(v) {
				return nil, nil
			}
			row = append(row, v)
		case model.TermInteraction:
			a, err := value(f, t.Variables[0], i)
			if err != nil {
				return nil, err
			}
			b, err := value(f, t.Variables[1], i)
			if err != nil {
				return nil, err
			}
			if math.IsNaN(a) || math.IsNaN(b) {
				return nil, nil
			}
			row = append(row, a*b)
		case model.TermSmooth:
			v, err := value(f, t.Variables[0], i)
			if err != nil {
				return nil, err
			}
			if math.IsNaN(v) {
				return nil, nil
			}
			row = append(row, bases.smooth[t.Name()].Eval(v)...)
		case model.TermTensor:
			a, err := value(f, t.Variables[0], i)
			if err != nil {
				return nil, err
			}
			b, err := value(f, t.Variables[1], i)
			if err != nil {
				return nil, err
			}
			if math.IsNaN(a) || math.IsNaN(b) {
				return nil, nil
			}
			pair := bases.tensor[t.Name()]
			ra := pair[0].Eval(a)
			rb := pair[1].Eval(b)
			for _, va := range ra {
				for _, vb := range rb {
					row = append(row, va*vb)
				}
			}
		}
	}
	return row, nil
}

// columnNames lists the design column names (intercept first), expanding
// penalized terms into indexed basis columns.
func columnNames(terms []model.Term) []string {
	names := []string{"(Intercept)"}
	for _, t := range terms {
		switch t.Kind {
		case model.TermLinear, model.TermInteraction:
			names = append(names, t.Name())
		case model.TermSmooth:
			dim := basisDim(t.BasisDim, defaultBasisDim)
			for j := 0; j < dim-1; j++ {
				names = append(names, basisName(t.Name(), j))
			}
		case model.TermTensor:
			dim := basisDim(t.BasisDim, tensorBasisDim)
			for j := 0; j < (dim-1)*(dim-1); j++ {
				names = append(names, basisName(t.Name(), j))
			}
		}
	}
	return names
}

func basisName(term string, j int) string {
	return term + "." + strconv.Itoa(j+1)
}

// basisDim resolves a requested basis dimension against the family default
// and the floor a cubic basis needs
func basisDim(requested, fallback int) int {
	dim := requested
	if dim == 0 {
		dim = fallback
	}
	if dim < splineDegree+1 {
		dim = splineDegree + 1
	}
	return dim
}

// buildDesign assembles the design matrix over the given rows and the
// penalty blocks aligned with its columns.
func buildDesign(f *dataset.Frame, rows []int, terms []model.Term, bases *basisSet) (*mat.Dense, []penaltyBlock, error) {
	var blocks []penaltyBlock
	col := 1
	for _, t := range terms {
		switch t.Kind {
		case model.TermLinear, model.TermInteraction:
			col++
		case model.TermSmooth:
			b := bases.smooth[t.Name()]
			blocks = append(blocks, penaltyBlock{start: col, size: b.Cols(), s: b.Penalty()})
			col += b.Cols()
		case model.TermTensor:
			pair := bases.tensor[t.Name()]
			size := pair[0].Cols() * pair[1].Cols()
			blocks = append(blocks, penaltyBlock{
				start: col,
				size:  size,
				s:     tensorPenalty(pair[0].Penalty(), pair[1].Penalty()),
			})
			col += size
		}
	}
	width := col

	x := mat.NewDense(len(rows), width, nil)
	for r, i := range rows {
		row, err := designRow(f, i, terms, bases)
		if err != nil {
			return nil, nil, err
		}
		if row == nil || len(row) != width {
			// complete-case selection upstream should prevent this
			return nil, nil, core.ErrDegenerateFit
		}
		x.SetRow(r, row)
	}
	return x, blocks, nil
}

func value(f *dataset.Frame, column string, i int) (float64, error) {
	col, err := f.Numeric(column)
	if err != nil {
		return 0, err
	}
	return col[i], nil
}

func gather(col []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = col[r]
	}
	return out
}
