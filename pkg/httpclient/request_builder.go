package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

type RequestBuilder struct {
	url         string
	path        string
	method      string
	headers     map[string]string
	body        []byte
	contentType string
	err         error
	ctx         context.Context
}

func NewHttpRequestBuilder() *RequestBuilder {
	return &RequestBuilder{
		headers: make(map[string]string),
	}
}

// WithURL sets the absolute base URL for the request
func (h *RequestBuilder) WithURL(url string) *RequestBuilder {
	h.url = url
	return h
}

// WithPath sets the path appended to the base URL
func (h *RequestBuilder) WithPath(path string) *RequestBuilder {
	h.path = path
	return h
}

// WithMethod sets the method for the request
func (h *RequestBuilder) WithMethod(method string) *RequestBuilder {
	h.method = method
	return h
}

// WithHeader adds the header for the request
func (h *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	h.headers[key] = value
	return h
}

// WithBody sets a raw body and its content type
func (h *RequestBuilder) WithBody(body []byte, contentType string) *RequestBuilder {
	h.body = body
	h.contentType = contentType
	return h
}

// WithJSONBody marshals body as the request payload
func (h *RequestBuilder) WithJSONBody(body any) *RequestBuilder {
	requestBody, err := json.Marshal(body)
	if err != nil {
		h.err = err
		return h
	}
	return h.WithBody(requestBody, HeaderValueApplicationJson)
}

// WithContext sets the context for the request
func (h *RequestBuilder) WithContext(ctx context.Context) *RequestBuilder {
	h.ctx = ctx
	return h
}

// Build validates the builder and returns the http request
func (h *RequestBuilder) Build() (*http.Request, error) {
	if h.err != nil {
		return nil, h.err
	}
	if len(h.url) == 0 {
		return nil, errors.New("url is required")
	}
	if len(h.method) == 0 {
		return nil, errors.New("method is required")
	}
	if h.ctx == nil {
		return nil, errors.New("context is required, pass context.Background() if not required")
	}
	var body io.Reader
	if h.body != nil {
		body = bytes.NewReader(h.body)
	}
	req, err := http.NewRequestWithContext(h.ctx, h.method, joinURL(h.url, h.path), body)
	if err != nil {
		return nil, err
	}
	for key, value := range h.headers {
		req.Header.Set(key, value)
	}
	if h.contentType != "" {
		req.Header.Set(HeaderContentType, h.contentType)
	}
	return req, nil
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// DoJSON builds and sends the request, decoding a non-empty response body
// into out when out is not nil.
func (h *HTTPClient) DoJSON(builder *RequestBuilder, out any) error {
	req, err := builder.Build()
	if err != nil {
		return err
	}
	resp, err := h.Do(req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Body, out)
}
