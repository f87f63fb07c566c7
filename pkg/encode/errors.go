package encode

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownDType         = errors.New("unknown dtype")
	ErrType                 = errors.New("unexpected type")
	ErrShape                = errors.New("unexpected shape")
	ErrInvalidDataURL       = errors.New("not a valid data URL")
	ErrMediaType            = errors.New("not a valid media type")
	ErrMissingImageFormat   = errors.New("no format set on image, please specify one")
	ErrUnsupportedImageType = errors.New("unsupported image format")
)

type UnknownDTypeError struct {
	DType DType
}

func (e *UnknownDTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownDType, e.DType)
}

func (e *UnknownDTypeError) Unwrap() error {
	return ErrUnknownDType
}

// TypeError is returned when a value is not one of the Go types an encoder
// accepts.
type TypeError struct {
	Expected []string
	Actual   string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("expected %s but received %s", strings.Join(e.Expected, " or "), e.Actual)
}

func (e *TypeError) Unwrap() error {
	return ErrType
}

type ShapeError struct {
	DType    DType
	Expected Shape
	Actual   Shape
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s expected shape %s, got %s", e.DType, e.Expected, e.Actual)
}

func (e *ShapeError) Unwrap() error {
	return ErrShape
}

type MediaTypeError struct {
	Expected string
	Actual   string
}

func (e *MediaTypeError) Error() string {
	return fmt.Sprintf("%s, expected %s but got %s", ErrMediaType, e.Expected, e.Actual)
}

func (e *MediaTypeError) Unwrap() error {
	return ErrMediaType
}

func newTypeError(enc Encoder, value any) *TypeError {
	return &TypeError{Expected: enc.Expects(), Actual: fmt.Sprintf("%T", value)}
}
