package encode

import (
	"image"
	"slices"
	"strconv"
	"strings"
)

type DType string

const (
	DTypeNumeric     DType = "numeric"
	DTypeCategorical DType = "categorical"
	DTypeText        DType = "text"
	DTypeNumpy       DType = "numpy"
	DTypeImage       DType = "image"
)

// Shape is the declared dimensions of a feature.
type Shape []int

func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders the shape as a tuple, e.g. (100, 10, 3) or (1,).
func (s Shape) String() string {
	if len(s) == 1 {
		return "(" + strconv.Itoa(s[0]) + ",)"
	}
	dims := make([]string, len(s))
	for i, d := range s {
		dims[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(dims, ", ") + ")"
}

// FeatureSpec declares the name, type and shape of one input or output slot
// of a deployment.
type FeatureSpec struct {
	Name  string `json:"name"`
	DType DType  `json:"dtype"`
	Shape Shape  `json:"shape"`
}

// Clone returns a deep copy so the shape can be handed out safely.
func (f FeatureSpec) Clone() FeatureSpec {
	return FeatureSpec{
		Name:  f.Name,
		DType: f.DType,
		Shape: slices.Clone(f.Shape),
	}
}

// CloneSpecs deep copies a slice of specs.
func CloneSpecs(specs []FeatureSpec) []FeatureSpec {
	out := make([]FeatureSpec, len(specs))
	for i, s := range specs {
		out[i] = s.Clone()
	}
	return out
}

// DataItem maps feature names to raw values.
type DataItem map[string]any

// Image is an in-memory image tagged with the format it is encoded in,
// e.g. "PNG" or "JPEG".
type Image struct {
	Image  image.Image
	Format string
}
