package deployment

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFeature    = errors.New("item is missing feature")
	ErrMalformedResponse = errors.New("malformed prediction response")
	ErrServer            = errors.New("deployment returned an error")
	ErrSchema            = errors.New("invalid deployment schema")
)

// MissingFeatureError names a declared feature absent from an input item or
// a response row.
type MissingFeatureError struct {
	Name string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingFeature, e.Name)
}

func (e *MissingFeatureError) Unwrap() error {
	return ErrMissingFeature
}

// ServerError carries the errorCode and errorMessage of a failed prediction.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServerError) Unwrap() error {
	return ErrServer
}
