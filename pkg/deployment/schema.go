package deployment

import (
	"fmt"
	"math"

	"github.com/alexandersjoberg/sidekick/pkg/encode"
	"github.com/tidwall/gjson"
)

const (
	schemaFile           = "openapi.json"
	inputPropertiesPath  = "components.schemas.input-row.properties"
	outputPropertiesPath = "components.schemas.output-row-batch.properties.rows.properties"
	extensionPath        = "extensions.x-peltarion"
)

// parseSchema reads the input and output feature specs from an openapi
// document, keeping the order in which properties are declared.
func parseSchema(body []byte) (in []encode.FeatureSpec, out []encode.FeatureSpec, err error) {
	if !gjson.ValidBytes(body) {
		return nil, nil, fmt.Errorf("%w: not valid JSON", ErrSchema)
	}
	in, err = featureSpecs(gjson.GetBytes(body, inputPropertiesPath), inputPropertiesPath)
	if err != nil {
		return nil, nil, err
	}
	out, err = featureSpecs(gjson.GetBytes(body, outputPropertiesPath), outputPropertiesPath)
	if err != nil {
		return nil, nil, err
	}
	return in, out, nil
}

func featureSpecs(properties gjson.Result, path string) ([]encode.FeatureSpec, error) {
	if !properties.IsObject() {
		return nil, fmt.Errorf("%w: %s not found", ErrSchema, path)
	}
	specs := make([]encode.FeatureSpec, 0)
	var err error
	properties.ForEach(func(key, value gjson.Result) bool {
		var spec encode.FeatureSpec
		spec, err = featureSpec(key.String(), value.Get(extensionPath))
		if err != nil {
			return false
		}
		specs = append(specs, spec)
		return true
	})
	if err != nil {
		return nil, err
	}
	return specs, nil
}

func featureSpec(name string, ext gjson.Result) (encode.FeatureSpec, error) {
	dtype := ext.Get("type")
	if dtype.Type != gjson.String {
		return encode.FeatureSpec{}, fmt.Errorf("%w: feature %s has no type", ErrSchema, name)
	}
	dims := ext.Get("shape")
	if !dims.IsArray() {
		return encode.FeatureSpec{}, fmt.Errorf("%w: feature %s has no shape", ErrSchema, name)
	}
	shape := make(encode.Shape, 0)
	for _, d := range dims.Array() {
		if d.Type != gjson.Number || d.Num < 0 || d.Num != math.Trunc(d.Num) {
			return encode.FeatureSpec{}, fmt.Errorf("%w: feature %s has invalid shape %s", ErrSchema, name, dims.Raw)
		}
		shape = append(shape, int(d.Num))
	}
	spec := encode.FeatureSpec{Name: name, DType: encode.DType(dtype.String()), Shape: shape}
	// unknown dtypes fail here rather than on the first prediction
	if _, err := encode.GetEncoder(spec.DType, spec.Shape); err != nil {
		return encode.FeatureSpec{}, fmt.Errorf("feature %s: %w", name, err)
	}
	return spec, nil
}
