package encode

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

type numericEncoder struct{}

func (numericEncoder) DType() DType { return DTypeNumeric }

func (numericEncoder) Expects() []string {
	return []string{"int", "float64", "float32", "json.Number"}
}

func (e numericEncoder) CheckType(value any) error {
	switch value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return nil
	}
	return newTypeError(e, value)
}

func (numericEncoder) CheckShape(any, Shape) error { return nil }

func (numericEncoder) EncodeJSON(value any) (any, error) { return value, nil }

func (numericEncoder) DecodeJSON(encoded any) (any, error) { return encoded, nil }

func (numericEncoder) FileExtension(any) (string, error) { return "", nil }

// categoricalEncoder handles maps from category label to probability.
type categoricalEncoder struct{}

func (categoricalEncoder) DType() DType { return DTypeCategorical }

func (categoricalEncoder) Expects() []string {
	return []string{"map[string]float64"}
}

func (e categoricalEncoder) CheckType(value any) error {
	if _, err := toCategories(value); err != nil {
		return newTypeError(e, value)
	}
	return nil
}

func (categoricalEncoder) CheckShape(value any, shape Shape) error {
	categories, err := toCategories(value)
	if err != nil {
		return err
	}
	if len(shape) == 0 || len(categories) != shape[0] {
		return &ShapeError{DType: DTypeCategorical, Expected: shape, Actual: Shape{len(categories)}}
	}
	return nil
}

func (categoricalEncoder) EncodeJSON(value any) (any, error) { return value, nil }

func (e categoricalEncoder) DecodeJSON(encoded any) (any, error) {
	categories, err := toCategories(encoded)
	if err != nil {
		return encoded, nil
	}
	return categories, nil
}

func (categoricalEncoder) FileExtension(any) (string, error) { return "", nil }

// toCategories normalises a decoded JSON object into map[string]float64.
func toCategories(value any) (map[string]float64, error) {
	switch v := value.(type) {
	case map[string]float64:
		return v, nil
	case map[string]any:
		out := make(map[string]float64, len(v))
		for label, p := range v {
			f, err := toFloat64(p)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", label, err)
			}
			out[label] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T is not a category map", ErrType, value)
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	}
	return 0, fmt.Errorf("%w: %T is not a number", ErrType, value)
}

type textEncoder struct{}

func (textEncoder) DType() DType { return DTypeText }

func (textEncoder) Expects() []string { return []string{"string"} }

func (e textEncoder) CheckType(value any) error {
	if _, ok := value.(string); !ok {
		return newTypeError(e, value)
	}
	return nil
}

// CheckShape never fails. Text longer than the declared length is only logged.
func (textEncoder) CheckShape(value any, shape Shape) error {
	s, _ := value.(string)
	if len(shape) > 0 && shape[0] > 0 {
		if n := utf8.RuneCountInString(s); n > shape[0] {
			log.Warn().Msgf("Text of length %d is longer than the declared length %d", n, shape[0])
		}
	}
	return nil
}

func (textEncoder) EncodeJSON(value any) (any, error) { return value, nil }

func (textEncoder) DecodeJSON(encoded any) (any, error) { return encoded, nil }

func (textEncoder) FileExtension(any) (string, error) { return "", nil }
