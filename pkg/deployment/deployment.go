// Package deployment is a client for model deployments. It discovers the
// input and output features of a deployment from its schema and sends typed
// items for prediction in batches.
package deployment

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/alexandersjoberg/sidekick/pkg/encode"
	"github.com/alexandersjoberg/sidekick/pkg/httpclient"
	"github.com/alexandersjoberg/sidekick/pkg/metric"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const serviceName = "deployment"

type Deployment struct {
	client      *httpclient.HTTPClient
	batchSize   int
	limiter     *rate.Limiter
	inputSpecs  []encode.FeatureSpec
	outputSpecs []encode.FeatureSpec
}

// NewFromEnv reads the SIDEKICK_DEPLOYMENT_* configuration and connects to
// the deployment.
func NewFromEnv(ctx context.Context) (*Deployment, error) {
	conf, err := getClientConfigs(Prefix)
	if err != nil {
		return nil, err
	}
	return New(ctx, conf)
}

// New fetches the deployment schema once and returns a client for it. A
// schema with an unknown feature type is rejected here.
func New(ctx context.Context, conf *Config) (*Deployment, error) {
	if valid, err := validConfigs(conf); !valid {
		return nil, err
	}
	client := httpclient.NewConnFromConfig(&httpclient.Config{
		URL:         conf.URL,
		Token:       conf.Token,
		TimeoutInMs: conf.TimeoutInMs,
		MaxRetries:  conf.MaxRetries,
		CBConfig:    conf.CBConfig,
	}, serviceName)

	schemaURL, err := resolveSchemaURL(conf.URL)
	if err != nil {
		return nil, err
	}
	req, err := client.NewRequest(ctx).WithURL(schemaURL).WithMethod(http.MethodGet).Build()
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deployment schema: %w", err)
	}
	inputSpecs, outputSpecs, err := parseSchema(resp.Body)
	if err != nil {
		return nil, err
	}
	log.Debug().Msgf("Deployment %s has %d input and %d output features", conf.URL, len(inputSpecs), len(outputSpecs))

	d := &Deployment{
		client:      client,
		batchSize:   conf.BatchSize,
		inputSpecs:  inputSpecs,
		outputSpecs: outputSpecs,
	}
	if conf.MaxRequestsPerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(conf.MaxRequestsPerSecond), 1)
	}
	return d, nil
}

// resolveSchemaURL returns the location of openapi.json relative to the
// prediction URL, the way a browser resolves a relative link.
func resolveSchemaURL(deploymentURL string) (string, error) {
	base, err := url.Parse(deploymentURL)
	if err != nil {
		return "", fmt.Errorf("deployment url is invalid: %w", err)
	}
	return base.ResolveReference(&url.URL{Path: schemaFile}).String(), nil
}

// InputSpecs returns a copy of the input features in declared order.
func (d *Deployment) InputSpecs() []encode.FeatureSpec {
	return encode.CloneSpecs(d.inputSpecs)
}

// OutputSpecs returns a copy of the output features in declared order.
func (d *Deployment) OutputSpecs() []encode.FeatureSpec {
	return encode.CloneSpecs(d.outputSpecs)
}

// Predict sends a single item.
func (d *Deployment) Predict(ctx context.Context, item encode.DataItem) (encode.DataItem, error) {
	items, err := d.PredictMany(ctx, []encode.DataItem{item})
	if err != nil {
		return nil, err
	}
	if len(items) != 1 {
		return nil, fmt.Errorf("%w: expected 1 row, got %d", ErrMalformedResponse, len(items))
	}
	return items[0], nil
}

// PredictMany sends items in batches and returns the predictions in the
// order of the items.
func (d *Deployment) PredictMany(ctx context.Context, items []encode.DataItem) ([]encode.DataItem, error) {
	return d.PredictLazy(ctx, slices.Values(items)).Collect()
}

// PredictLazy reads items in batches of the configured size, sending the
// next batch only once every prediction of the previous one has been
// consumed. Batches are sent one at a time and predictions keep the order of
// the items.
func (d *Deployment) PredictLazy(ctx context.Context, items iter.Seq[encode.DataItem]) *Predictions {
	pull, stop := iter.Pull(items)
	var (
		batch     *Predictions
		exhausted bool
	)
	return newPredictions(func() (encode.DataItem, bool, error) {
		for {
			if batch != nil {
				if batch.Next() {
					return batch.Item(), true, nil
				}
				if err := batch.Err(); err != nil {
					return nil, false, err
				}
				batch = nil
			}
			if exhausted {
				return nil, false, nil
			}
			chunk := make([]encode.DataItem, 0, d.batchSize)
			for len(chunk) < d.batchSize {
				item, ok := pull()
				if !ok {
					exhausted = true
					break
				}
				chunk = append(chunk, item)
			}
			if len(chunk) == 0 {
				return nil, false, nil
			}
			var err error
			if batch, err = d.predictBatch(ctx, chunk); err != nil {
				return nil, false, err
			}
		}
	}, stop)
}

func (d *Deployment) predictBatch(ctx context.Context, chunk []encode.DataItem) (*Predictions, error) {
	request, err := BuildRequest(chunk, d.inputSpecs)
	if err != nil {
		return nil, err
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	tags := metric.BuildTag(metric.NewTag(metric.TagExternalService, serviceName))
	metric.Histogram(metric.PredictionBatchSize, float64(len(chunk)), tags)

	startTime := time.Now()
	req, err := d.client.NewRequest(ctx).WithMethod(http.MethodPost).WithJSONBody(request).Build()
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	metric.TimingWithStart(metric.PredictionBatchLatency, startTime, tags)
	log.Debug().Msgf("Predicted batch of %d items in %s", len(chunk), time.Since(startTime))
	return ParseResponse(resp.Body, d.outputSpecs)
}
