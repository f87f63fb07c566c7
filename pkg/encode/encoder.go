// Package encode converts typed feature values to and from the JSON wire
// format used by deployments.
//
// There is a fixed set of five encoders, one per DType. Scalar encoders put
// values on the wire unchanged; binary encoders (numpy arrays and images)
// travel as base64 data URLs.
package encode

import (
	"fmt"
	"strings"
)

// Encoder validates, encodes and decodes values of one DType.
type Encoder interface {
	DType() DType
	// Expects lists the Go types accepted by CheckType.
	Expects() []string
	CheckType(value any) error
	CheckShape(value any, shape Shape) error
	EncodeJSON(value any) (any, error)
	DecodeJSON(encoded any) (any, error)
	FileExtension(value any) (string, error)
}

// BinaryEncoder is an Encoder whose wire form is a data URL.
type BinaryEncoder interface {
	Encoder
	MediaType(value any) (string, error)
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

var (
	NumericEncoder     Encoder       = numericEncoder{}
	CategoricalEncoder Encoder       = categoricalEncoder{}
	TextEncoder        Encoder       = textEncoder{}
	NumpyEncoder       BinaryEncoder = numpyEncoder{}
	ImageEncoder       BinaryEncoder = imageEncoder{}

	encoders = map[DType]Encoder{
		DTypeNumeric:     NumericEncoder,
		DTypeCategorical: CategoricalEncoder,
		DTypeText:        TextEncoder,
		DTypeNumpy:       NumpyEncoder,
		DTypeImage:       ImageEncoder,
	}

	fileExtensionEncoders = map[string]BinaryEncoder{
		"npy":  NumpyEncoder,
		"png":  ImageEncoder,
		"jpg":  ImageEncoder,
		"jpeg": ImageEncoder,
	}
)

// GetEncoder returns the encoder for a declared dtype and shape. A numeric
// feature holding more than one scalar is encoded as a numpy array.
func GetEncoder(dtype DType, shape Shape) (Encoder, error) {
	if dtype == DTypeNumeric && (len(shape) > 1 || (len(shape) == 1 && shape[0] > 1)) {
		return NumpyEncoder, nil
	}
	enc, ok := encoders[dtype]
	if !ok {
		return nil, &UnknownDTypeError{DType: dtype}
	}
	return enc, nil
}

// EncodeFeature checks the value against the feature spec and returns its
// wire form.
func EncodeFeature(value any, spec FeatureSpec) (any, error) {
	enc, err := GetEncoder(spec.DType, spec.Shape)
	if err != nil {
		return nil, err
	}
	if err := enc.CheckType(value); err != nil {
		return nil, fmt.Errorf("feature %s: %w", spec.Name, err)
	}
	if err := enc.CheckShape(value, spec.Shape); err != nil {
		return nil, fmt.Errorf("feature %s: %w", spec.Name, err)
	}
	encoded, err := enc.EncodeJSON(value)
	if err != nil {
		return nil, fmt.Errorf("feature %s: %w", spec.Name, err)
	}
	return encoded, nil
}

// DecodeFeature turns a wire value back into a typed value and checks it
// against the feature spec.
func DecodeFeature(encoded any, spec FeatureSpec) (any, error) {
	enc, err := GetEncoder(spec.DType, spec.Shape)
	if err != nil {
		return nil, err
	}
	value, err := enc.DecodeJSON(encoded)
	if err != nil {
		return nil, fmt.Errorf("feature %s: %w", spec.Name, err)
	}
	if err := enc.CheckType(value); err != nil {
		return nil, fmt.Errorf("feature %s: %w", spec.Name, err)
	}
	if err := enc.CheckShape(value, spec.Shape); err != nil {
		return nil, fmt.Errorf("feature %s: %w", spec.Name, err)
	}
	return value, nil
}

// EncoderForExtension returns the binary encoder handling files with the
// given extension (with or without the leading dot).
func EncoderForExtension(ext string) (BinaryEncoder, bool) {
	enc, ok := fileExtensionEncoders[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return enc, ok
}

// EncoderForValue returns the encoder whose accepted types include value.
// Numeric values always map to the scalar encoder.
func EncoderForValue(value any) (Encoder, bool) {
	for _, dtype := range []DType{DTypeNumeric, DTypeCategorical, DTypeText, DTypeNumpy, DTypeImage} {
		if encoders[dtype].CheckType(value) == nil {
			return encoders[dtype], true
		}
	}
	return nil, false
}
