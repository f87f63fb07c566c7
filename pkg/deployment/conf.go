package deployment

import (
	"fmt"
	"net/url"

	"github.com/alexandersjoberg/sidekick/pkg/config"
	"github.com/alexandersjoberg/sidekick/pkg/httpclient"
)

const (
	Prefix = "SIDEKICK_DEPLOYMENT_"

	URL                  = "URL"
	Token                = "TOKEN"
	BatchSize            = "BATCH_SIZE"
	TimeoutMS            = "TIMEOUT_MS"
	MaxRetries           = "MAX_RETRIES"
	MaxRequestsPerSecond = "MAX_REQUESTS_PER_SECOND"

	DefaultBatchSize   = 128
	DefaultMaxRetries  = 3
	DefaultTimeoutInMs = 60000
)

type Config struct {
	// URL is the prediction endpoint. The schema is read from openapi.json
	// next to it.
	URL         string
	Token       string
	BatchSize   int
	TimeoutInMs int
	MaxRetries  int
	// MaxRequestsPerSecond limits batch requests, 0 means unlimited.
	MaxRequestsPerSecond float64
	CBConfig             *httpclient.CBConfig
}

// DefaultConfig returns a config for url and token with every other field
// set to its default.
func DefaultConfig(url, token string) *Config {
	return &Config{
		URL:         url,
		Token:       token,
		BatchSize:   DefaultBatchSize,
		TimeoutInMs: DefaultTimeoutInMs,
		MaxRetries:  DefaultMaxRetries,
	}
}

func getClientConfigs(prefix string) (*Config, error) {
	conf := &Config{
		URL:                  config.GetString(prefix, URL, ""),
		Token:                config.GetString(prefix, Token, ""),
		BatchSize:            config.GetInt(prefix, BatchSize, DefaultBatchSize),
		TimeoutInMs:          config.GetInt(prefix, TimeoutMS, DefaultTimeoutInMs),
		MaxRetries:           config.GetInt(prefix, MaxRetries, DefaultMaxRetries),
		MaxRequestsPerSecond: config.GetFloat64(prefix, MaxRequestsPerSecond, 0),
		CBConfig:             httpclient.BuildCBConfig(prefix, "deployment"),
	}
	if valid, err := validConfigs(conf); !valid {
		return nil, err
	}
	return conf, nil
}

func validConfigs(configs *Config) (bool, error) {
	if configs == nil {
		return false, fmt.Errorf("deployment config is nil")
	}
	if u, err := url.Parse(configs.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return false, fmt.Errorf("deployment url is invalid, configured value: %v", configs.URL)
	}
	if configs.BatchSize <= 0 {
		return false, fmt.Errorf("deployment batch size is invalid, configured value: %v", configs.BatchSize)
	}
	if configs.TimeoutInMs <= 0 {
		return false, fmt.Errorf("deployment timeout is invalid, configured value: %v", configs.TimeoutInMs)
	}
	if configs.MaxRetries < 0 {
		return false, fmt.Errorf("deployment max retries is invalid, configured value: %v", configs.MaxRetries)
	}
	if configs.MaxRequestsPerSecond < 0 {
		return false, fmt.Errorf("deployment max requests per second is invalid, configured value: %v",
			configs.MaxRequestsPerSecond)
	}
	return true, nil
}
