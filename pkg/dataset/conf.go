package dataset

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/alexandersjoberg/sidekick/pkg/config"
	"github.com/alexandersjoberg/sidekick/pkg/httpclient"
)

const (
	Prefix = "SIDEKICK_DATASET_"

	URL            = "URL"
	Token          = "TOKEN"
	MaxWorkers     = "MAX_WORKERS"
	PollIntervalMS = "POLL_INTERVAL_MS"
	TimeoutMS      = "TIMEOUT_MS"
	MaxRetries     = "MAX_RETRIES"

	DefaultMaxWorkers       = 10
	DefaultPollIntervalInMs = 1000
	DefaultTimeoutInMs      = 60000
	DefaultMaxRetries       = 3
)

type Config struct {
	// URL is the dataset API base, a trailing slash is ignored.
	URL              string
	Token            string
	MaxWorkers       int
	PollIntervalInMs int
	TimeoutInMs      int
	MaxRetries       int
	CBConfig         *httpclient.CBConfig
}

// DefaultConfig returns a config for url and token with every other field
// set to its default.
func DefaultConfig(url, token string) *Config {
	return &Config{
		URL:              url,
		Token:            token,
		MaxWorkers:       DefaultMaxWorkers,
		PollIntervalInMs: DefaultPollIntervalInMs,
		TimeoutInMs:      DefaultTimeoutInMs,
		MaxRetries:       DefaultMaxRetries,
	}
}

func getClientConfigs(prefix string) (*Config, error) {
	conf := &Config{
		URL:              config.GetString(prefix, URL, ""),
		Token:            config.GetString(prefix, Token, ""),
		MaxWorkers:       config.GetInt(prefix, MaxWorkers, DefaultMaxWorkers),
		PollIntervalInMs: config.GetInt(prefix, PollIntervalMS, DefaultPollIntervalInMs),
		TimeoutInMs:      config.GetInt(prefix, TimeoutMS, DefaultTimeoutInMs),
		MaxRetries:       config.GetInt(prefix, MaxRetries, DefaultMaxRetries),
		CBConfig:         httpclient.BuildCBConfig(prefix, "dataset"),
	}
	if valid, err := validConfigs(conf); !valid {
		return nil, err
	}
	return conf, nil
}

func validConfigs(configs *Config) (bool, error) {
	if configs == nil {
		return false, fmt.Errorf("dataset config is nil")
	}
	if u, err := url.Parse(configs.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return false, fmt.Errorf("dataset url is invalid, configured value: %v", configs.URL)
	}
	if configs.MaxWorkers <= 0 {
		return false, fmt.Errorf("dataset max workers is invalid, configured value: %v", configs.MaxWorkers)
	}
	if configs.PollIntervalInMs < 0 {
		return false, fmt.Errorf("dataset poll interval is invalid, configured value: %v", configs.PollIntervalInMs)
	}
	if configs.TimeoutInMs <= 0 {
		return false, fmt.Errorf("dataset timeout is invalid, configured value: %v", configs.TimeoutInMs)
	}
	if configs.MaxRetries < 0 {
		return false, fmt.Errorf("dataset max retries is invalid, configured value: %v", configs.MaxRetries)
	}
	return true, nil
}

func normalizeURL(rawURL string) string {
	return strings.TrimRight(rawURL, "/")
}
