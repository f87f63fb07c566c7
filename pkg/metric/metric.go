package metric

import (
	"strconv"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	ExternalApiRequestCount   = "external_api_request_count"
	ExternalApiRequestLatency = "external_api_request_latency"
	ExternalApiRetryCount     = "external_api_retry_count"

	UploadFileCount        = "dataset_upload_file_count"
	UploadFileBytes        = "dataset_upload_file_bytes"
	UploadJobOutcomeCount  = "dataset_upload_job_outcome_count"
	UploadPollCount        = "dataset_upload_poll_count"
	UploadFilesInFlight    = "dataset_upload_files_in_flight"
	UploadSessionLatency   = "dataset_upload_session_latency"
	PredictionBatchSize    = "deployment_prediction_batch_size"
	PredictionBatchLatency = "deployment_prediction_batch_latency"

	defaultStatsDAddress = "localhost:8125"

	addressKey      = "SIDEKICK_METRIC_ADDRESS"
	samplingRateKey = "SIDEKICK_METRIC_SAMPLING_RATE"
	envKey          = "SIDEKICK_ENV"
)

var (
	// it is safe to use one client from multiple goroutines simultaneously
	statsDClient statsd.ClientInterface = &statsd.NoOpClient{}
	// by default full sampling
	samplingRate = 1.0
	appName      = "sidekick"
	initialized  = false
	once         sync.Once
)

// Init initializes the metrics client. Until Init is called every metric is
// dropped by a no-op client.
func Init() {
	if initialized {
		log.Debug().Msgf("Metrics already initialized!")
		return
	}
	once.Do(func() {
		address := defaultStatsDAddress
		if viper.IsSet(addressKey) {
			address = viper.GetString(addressKey)
		}
		if viper.IsSet(samplingRateKey) {
			samplingRate = viper.GetFloat64(samplingRateKey)
		}
		globalTags := getGlobalTags()

		client, err := statsd.New(
			address,
			statsd.WithTags(globalTags),
		)
		if err != nil {
			log.Error().Err(err).Msgf("StatsD client initialization failed, metrics disabled")
			return
		}
		statsDClient = client
		log.Info().Msgf("Metrics client initialized with statsd address - %s, global tags - %v, and "+
			"sampling rate - %f", address, globalTags, samplingRate)
		initialized = true
	})
}

// SetClient replaces the statsd client, e.g. with a mock in tests.
func SetClient(client statsd.ClientInterface) {
	statsDClient = client
}

func getGlobalTags() []string {
	env := viper.GetString(envKey)
	if len(env) == 0 {
		log.Debug().Msgf("%s is not set", envKey)
	}
	return []string{
		TagAsString(TagEnv, env),
		TagAsString(TagService, appName),
	}
}

// Timing sends timing information
func Timing(name string, value time.Duration, tags []string) {
	err := statsDClient.Timing(name, value, tags, samplingRate)
	if err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd timing")
	}
}

// TimingWithStart is a handy func when we want to measure latency of a function
// Can be used as 'defer metric.TimingWithStart("metric_name", time.Now(), []string{})' at the start of the function
func TimingWithStart(name string, startTime time.Time, tags []string) {
	Timing(name, time.Since(startTime), tags)
}

// Count Increases metric counter by value
func Count(name string, value int64, tags []string) {
	err := statsDClient.Count(name, value, tags, samplingRate)
	if err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd count")
	}
}

// Incr Increases metric counter by 1
func Incr(name string, tags []string) {
	Count(name, 1, tags)
}

// Gauge records the current value of name
func Gauge(name string, value float64, tags []string) {
	err := statsDClient.Gauge(name, value, tags, samplingRate)
	if err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd gauge")
	}
}

func Histogram(name string, value float64, tags []string) {
	err := statsDClient.Histogram(name, value, tags, samplingRate)
	if err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd histogram")
	}
}

func BuildExternalHTTPServiceTags(service, path, method string, statusCode int) []string {
	return BuildTag(
		NewTag(TagCommunicationProtocol, TagValueCommunicationProtocolHttp),
		NewTag(TagExternalService, service),
		NewTag(TagPath, path),
		NewTag(TagMethod, method),
		NewTag(TagHttpStatusCode, strconv.Itoa(statusCode)),
	)
}
