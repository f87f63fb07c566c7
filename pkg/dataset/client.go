// Package dataset uploads local files into a new dataset and waits until the
// dataset API has processed all of them.
package dataset

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexandersjoberg/sidekick/pkg/httpclient"
	"github.com/alexandersjoberg/sidekick/pkg/metric"
	"github.com/rs/zerolog/log"
)

const serviceName = "dataset"

type Client struct {
	client       *httpclient.HTTPClient
	url          string
	maxWorkers   int
	pollInterval time.Duration
	reporter     ProgressReporter
}

type createWrapperRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createWrapperResponse struct {
	DatasetWrapperID string `json:"datasetWrapperId"`
}

type uploadFileResponse struct {
	UploadID string `json:"uploadId"`
}

type uploadStatusResponse struct {
	UploadStatuses []UploadJob `json:"uploadStatuses"`
}

// NewFromEnv reads the SIDEKICK_DATASET_* configuration.
func NewFromEnv() (*Client, error) {
	conf, err := getClientConfigs(Prefix)
	if err != nil {
		return nil, err
	}
	return New(conf)
}

func New(conf *Config) (*Client, error) {
	if valid, err := validConfigs(conf); !valid {
		return nil, err
	}
	base := normalizeURL(conf.URL)
	return &Client{
		client: httpclient.NewConnFromConfig(&httpclient.Config{
			URL:         base,
			Token:       conf.Token,
			TimeoutInMs: conf.TimeoutInMs,
			MaxRetries:  conf.MaxRetries,
			CBConfig:    conf.CBConfig,
		}, serviceName),
		url:          base,
		maxWorkers:   conf.MaxWorkers,
		pollInterval: time.Duration(conf.PollIntervalInMs) * time.Millisecond,
		reporter:     logReporter{},
	}, nil
}

// URL returns the base URL without a trailing slash.
func (c *Client) URL() string {
	return c.url
}

// SetProgressReporter replaces the default reporter, which logs. The reporter
// is called from several goroutines while staging.
func (c *Client) SetProgressReporter(reporter ProgressReporter) {
	if reporter == nil {
		reporter = logReporter{}
	}
	c.reporter = reporter
}

// CreateWrapper creates the container that uploaded files are added to and
// returns its id.
func (c *Client) CreateWrapper(ctx context.Context, name, description string) (string, error) {
	var resp createWrapperResponse
	err := c.client.DoJSON(c.client.NewRequest(ctx).
		WithMethod(http.MethodPost).
		WithJSONBody(createWrapperRequest{Name: name, Description: description}), &resp)
	if err != nil {
		return "", fmt.Errorf("failed to create dataset wrapper: %w", err)
	}
	if resp.DatasetWrapperID == "" {
		return "", fmt.Errorf("%w: datasetWrapperId missing", ErrMalformedResponse)
	}
	return resp.DatasetWrapperID, nil
}

// UploadFile sends one file to the wrapper and returns the id of the job
// processing it. The whole file is read into memory.
func (c *Client) UploadFile(ctx context.Context, wrapperID, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	contentType, ok := contentTypes[ext]
	if !ok {
		return "", &UnsupportedExtensionError{Paths: []string{path}}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &FilesNotFoundError{Paths: []string{path}}
		}
		return "", err
	}

	log.Debug().Msgf("Uploading file %s", path)
	var resp uploadFileResponse
	err = c.client.DoJSON(c.client.NewRequest(ctx).
		WithMethod(http.MethodPost).
		WithPath(url.PathEscape(wrapperID)+"/upload").
		WithBody(data, contentType), &resp)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}
	if resp.UploadID == "" {
		return "", fmt.Errorf("%w: uploadId missing for %s", ErrMalformedResponse, path)
	}

	tags := metric.BuildTag(metric.NewTag(metric.TagFileExtension, strings.TrimPrefix(ext, ".")))
	metric.Incr(metric.UploadFileCount, tags)
	metric.Count(metric.UploadFileBytes, int64(len(data)), tags)
	return resp.UploadID, nil
}

// GetStatus returns the current state of every job in the wrapper.
func (c *Client) GetStatus(ctx context.Context, wrapperID string) ([]UploadJob, error) {
	var resp uploadStatusResponse
	err := c.client.DoJSON(c.client.NewRequest(ctx).
		WithMethod(http.MethodGet).
		WithPath(url.PathEscape(wrapperID)+"/uploads"), &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to get upload status: %w", err)
	}
	return resp.UploadStatuses, nil
}

// CompleteUpload finalizes the wrapper once every job has succeeded.
func (c *Client) CompleteUpload(ctx context.Context, wrapperID string) error {
	err := c.client.DoJSON(c.client.NewRequest(ctx).
		WithMethod(http.MethodPost).
		WithPath(url.PathEscape(wrapperID)+"/upload_complete").
		WithHeader(httpclient.HeaderContentType, httpclient.HeaderValueApplicationJson), nil)
	if err != nil {
		return fmt.Errorf("failed to complete upload: %w", err)
	}
	return nil
}

// Upload stages paths into a new wrapper, waits for every job to succeed
// and completes the upload. The wrapper is left incomplete when a job fails.
func (c *Client) Upload(ctx context.Context, paths []string, name, description string) (*Session, error) {
	startTime := time.Now()
	session, err := c.upload(ctx, paths, name, description)
	outcome := metric.TagValueOutcomeSuccess
	if err != nil {
		outcome = metric.TagValueOutcomeFailure
	}
	metric.TimingWithStart(metric.UploadSessionLatency, startTime,
		metric.BuildTag(metric.NewTag(metric.TagOutcome, outcome)))
	return session, err
}

func (c *Client) upload(ctx context.Context, paths []string, name, description string) (*Session, error) {
	session, err := c.Stage(ctx, paths, name, description)
	if err != nil {
		return nil, err
	}
	if err := c.Wait(ctx, session); err != nil {
		return nil, err
	}
	if err := c.CompleteUpload(ctx, session.WrapperID); err != nil {
		return nil, err
	}
	log.Info().Msgf("Uploaded %d files to dataset wrapper %s", len(session.Jobs), session.WrapperID)
	return session, nil
}
