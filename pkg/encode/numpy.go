package encode

import (
	"github.com/alexandersjoberg/sidekick/pkg/npy"
)

type numpyEncoder struct{}

func (numpyEncoder) DType() DType { return DTypeNumpy }

func (numpyEncoder) Expects() []string { return []string{"npy.Array"} }

func (e numpyEncoder) CheckType(value any) error {
	if _, ok := asArray(value); !ok {
		return newTypeError(e, value)
	}
	return nil
}

func (e numpyEncoder) CheckShape(value any, shape Shape) error {
	arr, ok := asArray(value)
	if !ok {
		return newTypeError(e, value)
	}
	if !Shape(arr.Shape).Equal(shape) {
		return &ShapeError{DType: DTypeNumpy, Expected: shape, Actual: Shape(arr.Shape)}
	}
	return nil
}

func (e numpyEncoder) EncodeJSON(value any) (any, error) {
	return encodeBinaryJSON(e, value)
}

func (e numpyEncoder) DecodeJSON(encoded any) (any, error) {
	return decodeBinaryJSON(e, encoded)
}

func (numpyEncoder) FileExtension(any) (string, error) { return npy.FileExtension, nil }

func (numpyEncoder) MediaType(any) (string, error) { return npy.MediaType, nil }

func (e numpyEncoder) Encode(value any) ([]byte, error) {
	arr, ok := asArray(value)
	if !ok {
		return nil, newTypeError(e, value)
	}
	return npy.Marshal(arr)
}

func (numpyEncoder) Decode(data []byte) (any, error) {
	return npy.Unmarshal(data)
}

func asArray(value any) (npy.Array, bool) {
	switch v := value.(type) {
	case npy.Array:
		return v, true
	case *npy.Array:
		if v != nil {
			return *v, true
		}
	}
	return npy.Array{}, false
}
