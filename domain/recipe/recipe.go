// Package recipe holds the serialized artifacts that let a fitted run be
// reproduced outside the fitting process: feature-construction parameters,
// per-target mean-structure coefficients, and copula district metadata.
package recipe

import (
	"encoding/json"
	"io"
	"time"

	"phylosem/domain/report"
)

// Composite describes one principal-component axis: which standardized
// derived features it combines and with what loadings. Reference names the
// feature whose loading is forced positive by the sign convention.
type Composite struct {
	Name      string    `json:"name"`
	Inputs    []string  `json:"inputs"`
	Loadings  []float64 `json:"loadings"`
	Reference string    `json:"reference"`
}

// ModelCoefficients is the flat coefficient vector of one target's fitted
// mean structure. Smooth terms serialize their basis coefficients under the
// expanded column names.
type ModelCoefficients struct {
	Target    string    `json:"target"`
	Intercept float64   `json:"intercept"`
	Names     []string  `json:"names"`
	Values    []float64 `json:"values"`
}

// Recipe is the composite/model recipe artifact
type Recipe struct {
	RunID      string              `json:"run_id"`
	CreatedAt  time.Time           `json:"created_at"`
	Offsets    map[string]float64  `json:"offsets"` // log offsets per raw variable
	Centers    map[string]float64  `json:"centers"` // training means per derived variable
	Scales     map[string]float64  `json:"scales"`  // training sds per derived variable
	Composites []Composite         `json:"composites"`
	Models     []ModelCoefficients `json:"models"`
}

// CopulaMetadata is the copula metadata artifact
type CopulaMetadata struct {
	RunID     string                  `json:"run_id"`
	CreatedAt time.Time               `json:"created_at"`
	Districts []report.DistrictRecord `json:"districts"`
}

// Encode writes the recipe as indented JSON
func (r *Recipe) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// DecodeRecipe reads a recipe back
func DecodeRecipe(rd io.Reader) (*Recipe, error) {
	var r Recipe
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Encode writes the copula metadata as indented JSON
func (m *CopulaMetadata) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// DecodeCopulaMetadata reads copula metadata back
func DecodeCopulaMetadata(rd io.Reader) (*CopulaMetadata, error) {
	var m CopulaMetadata
	if err := json.NewDecoder(rd).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}
