package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/alexandersjoberg/sidekick/pkg/metric"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	Version   = "0.9.0"
	UserAgent = "sidekick/" + Version

	HeaderAuthorization = "Authorization"
	HeaderUserAgent     = "User-Agent"
	HeaderRequestID     = "X-Request-Id"
	HeaderContentType   = "Content-Type"

	HeaderValueApplicationJson = "application/json"
)

var (
	defaultTimeout          = 60000 // in milliseconds
	defaultDialTimeout      = 30000 // in milliseconds
	defaultKeepAliveTimeout = 30000 // in milliseconds
	defaultIdleConnTimeout  = 90000 // in milliseconds
	defaultMaxIdleConns     = 100
	defaultRetryDelay       = 200 // in milliseconds
)

type Config struct {
	// URL is the base endpoint, requests are resolved relative to it.
	URL            string
	Token          string
	TimeoutInMs    int
	MaxRetries     int
	RetryDelayInMs int
	CBConfig       *CBConfig
	Transport      *TransportConfig
}

type TransportConfig struct {
	DialTimeoutInMs      int
	MaxIdleConns         int
	MaxIdleConnsPerHost  int
	IdleConnTimeoutInMs  int
	KeepAliveTimeoutInMs int
}

// Response is a fully read HTTP response with a 2xx status code.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type HTTPClient struct {
	CoreClient     *http.Client
	Endpoint       string
	service        string
	token          string
	retryPolicy    retrypolicy.RetryPolicy[*Response]
	circuitBreaker circuitbreaker.CircuitBreaker[*Response]
}

type pathPattern struct {
	regex       *regexp.Regexp
	replacement string
}

var patterns = []pathPattern{
	{
		regex:       regexp.MustCompile(`/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`),
		replacement: "/{uuid}",
	},
	{
		regex:       regexp.MustCompile(`/[0-9a-fA-F]{24}`),
		replacement: "/{objectId}",
	},
	{
		regex:       regexp.MustCompile(`/\d+`),
		replacement: "/{id}",
	},
}

// NewConnFromConfig builds a client for one remote service. service is used
// to tag metrics and logs.
func NewConnFromConfig(config *Config, service string) *HTTPClient {
	var cb circuitbreaker.CircuitBreaker[*Response]
	if config.CBConfig != nil && config.CBConfig.Enabled {
		cb = newCircuitBreaker(config.CBConfig)
	}
	return &HTTPClient{
		CoreClient:     getHTTPClient(config),
		Endpoint:       config.URL,
		service:        service,
		token:          config.Token,
		retryPolicy:    newRetryPolicy(config, service),
		circuitBreaker: cb,
	}
}

func getHTTPClient(config *Config) *http.Client {
	timeout := config.TimeoutInMs
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Transport: getHttpTransportFromConfig(config.Transport),
		Timeout:   time.Duration(timeout) * time.Millisecond,
	}
}

func getHttpTransportFromConfig(transport *TransportConfig) *http.Transport {
	if transport == nil {
		transport = &TransportConfig{
			DialTimeoutInMs:      defaultDialTimeout,
			KeepAliveTimeoutInMs: defaultKeepAliveTimeout,
			MaxIdleConns:         defaultMaxIdleConns,
			MaxIdleConnsPerHost:  defaultMaxIdleConns,
			IdleConnTimeoutInMs:  defaultIdleConnTimeout,
		}
	}
	transporter := http.DefaultTransport.(*http.Transport).Clone()
	transporter.DialContext = (&net.Dialer{
		Timeout:   time.Duration(transport.DialTimeoutInMs) * time.Millisecond,
		KeepAlive: time.Duration(transport.KeepAliveTimeoutInMs) * time.Millisecond,
	}).DialContext
	transporter.MaxIdleConns = transport.MaxIdleConns
	transporter.MaxIdleConnsPerHost = transport.MaxIdleConnsPerHost
	transporter.IdleConnTimeout = time.Duration(transport.IdleConnTimeoutInMs) * time.Millisecond
	return transporter
}

// newRetryPolicy retries transport failures only. Status code errors, an open
// circuit and context cancellation are returned straight away.
func newRetryPolicy(config *Config, service string) retrypolicy.RetryPolicy[*Response] {
	delay := config.RetryDelayInMs
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	maxRetries := config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return retrypolicy.Builder[*Response]().
		HandleIf(func(_ *Response, err error) bool {
			if err == nil {
				return false
			}
			var statusErr *StatusError
			if errors.As(err, &statusErr) || errors.Is(err, circuitbreaker.ErrOpen) {
				return false
			}
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}).
		WithMaxRetries(maxRetries).
		WithDelay(time.Duration(delay) * time.Millisecond).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[*Response]) {
			log.Warn().Err(e.LastError()).Msgf("Retrying %s request, attempt %d", service, e.Attempts())
			metric.Incr(metric.ExternalApiRetryCount, metric.BuildTag(metric.NewTag(metric.TagExternalService, service)))
		}).
		Build()
}

// NewRequest starts a request against the client's endpoint.
func (h *HTTPClient) NewRequest(ctx context.Context) *RequestBuilder {
	return NewHttpRequestBuilder().WithContext(ctx).WithURL(h.Endpoint)
}

// Do sends the request with the client's headers, retrying transport errors.
// A non-2xx response is returned as a *StatusError.
func (h *HTTPClient) Do(req *http.Request) (*Response, error) {
	policies := []failsafe.Policy[*Response]{h.retryPolicy}
	if h.circuitBreaker != nil {
		policies = append(policies, h.circuitBreaker)
	}
	return failsafe.NewExecutor[*Response](policies...).
		WithContext(req.Context()).
		Get(func() (*Response, error) {
			attempt, err := cloneRequest(req)
			if err != nil {
				return nil, err
			}
			return h.do(attempt)
		})
}

func (h *HTTPClient) do(req *http.Request) (*Response, error) {
	if h.token != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+h.token)
	}
	req.Header.Set(HeaderUserAgent, UserAgent)
	req.Header.Set(HeaderRequestID, uuid.New().String())

	startTime := time.Now()
	resp, err := h.CoreClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			log.Error().Err(err).Msg("Request timed out")
			h.emitMetrics(req, startTime, http.StatusGatewayTimeout)
		} else {
			//keeping this 0 as status code as we are not able to get the status code from error
			h.emitMetrics(req, startTime, 0)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	h.emitMetrics(req, startTime, resp.StatusCode)
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w", req.Method, req.URL.Redacted(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	log.Debug().Msgf("%s %s returned %d (request id %s)", req.Method, req.URL.Redacted(), resp.StatusCode, req.Header.Get(HeaderRequestID))
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// cloneRequest gives every attempt its own headers and a fresh body.
func cloneRequest(req *http.Request) (*http.Request, error) {
	attempt := req.Clone(req.Context())
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		attempt.Body = body
	}
	return attempt, nil
}

func (h *HTTPClient) emitMetrics(req *http.Request, startTime time.Time, statusCode int) {
	genericPath := getNormalizedPath(req.URL.Path)
	tags := metric.BuildExternalHTTPServiceTags(h.service, genericPath, req.Method, statusCode)
	metric.TimingWithStart(metric.ExternalApiRequestLatency, startTime, tags)
	metric.Incr(metric.ExternalApiRequestCount, tags)
}

func getNormalizedPath(path string) string {
	normalizedPath := path
	for _, pattern := range patterns {
		normalizedPath = pattern.regex.ReplaceAllString(normalizedPath, pattern.replacement)
	}
	return normalizedPath
}
