package encode

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeDataURL wraps data as data:<mediaType>;base64,<payload>.
func EncodeDataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL splits a data URL into its media type and decoded payload.
func ParseDataURL(url string) (string, []byte, error) {
	header, payload, ok := strings.Cut(url, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	_, description, ok := strings.Cut(header, ":")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mediaType, _, ok := strings.Cut(description, ";")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mediaType, data, nil
}

func encodeBinaryJSON(enc BinaryEncoder, value any) (any, error) {
	mediaType, err := enc.MediaType(value)
	if err != nil {
		return nil, err
	}
	data, err := enc.Encode(value)
	if err != nil {
		return nil, err
	}
	return EncodeDataURL(mediaType, data), nil
}

func decodeBinaryJSON(enc BinaryEncoder, encoded any) (any, error) {
	url, ok := encoded.(string)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrInvalidDataURL, encoded)
	}
	declared, data, err := ParseDataURL(url)
	if err != nil {
		return nil, err
	}
	value, err := enc.Decode(data)
	if err != nil {
		return nil, err
	}
	expected, err := enc.MediaType(value)
	if err != nil {
		return nil, err
	}
	if declared != expected {
		return nil, &MediaTypeError{Expected: expected, Actual: declared}
	}
	return value, nil
}
