package httpclient

import (
	"time"

	"github.com/alexandersjoberg/sidekick/pkg/config"
	"github.com/alexandersjoberg/sidekick/pkg/metric"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	CBEnabled                  = "CB_ENABLED"
	CBFailureRateThreshold     = "CB_FAILURE_RATE_THRESHOLD"
	CBFailureRateMinimumWindow = "CB_FAILURE_RATE_MINIMUM_WINDOW"
	CBFailureRateWindowInMs    = "CB_FAILURE_RATE_WINDOW_MS"
	CBSuccessRatioThreshold    = "CB_SUCCESS_RATIO_THRESHOLD"
	CBSuccessWindow            = "CB_SUCCESS_WINDOW"
	CBWithDelayInMs            = "CB_DELAY_MS"

	cbStateChanged = "circuit_breaker_state_changed"
)

// CBConfig configures an optional circuit breaker in front of a service.
// The breaker opens when FailureRateThreshold percent of at least
// FailureRateMinimumWindow executions fail within FailureRateWindowInMs, and
// closes again once SuccessRatioThreshold of SuccessWindow trial executions
// in the half-open state succeed.
type CBConfig struct {
	Enabled                  bool
	Name                     string
	FailureRateThreshold     int
	FailureRateMinimumWindow int
	FailureRateWindowInMs    int
	SuccessRatioThreshold    int
	SuccessWindow            int
	WithDelayInMs            int
}

// BuildCBConfig reads <envPrefix>CB_* keys. A disabled breaker needs no
// other keys; an enabled one panics when a threshold is missing.
func BuildCBConfig(envPrefix, name string) *CBConfig {
	cbConfig := CBConfig{Enabled: false, Name: name}
	if !config.GetBool(envPrefix, CBEnabled, false) {
		return &cbConfig
	}
	for _, key := range []string{CBFailureRateThreshold, CBFailureRateMinimumWindow, CBFailureRateWindowInMs,
		CBSuccessRatioThreshold, CBSuccessWindow, CBWithDelayInMs} {
		if !viper.IsSet(envPrefix + key) {
			log.Panic().Msgf("%s%s not set", envPrefix, key)
		}
	}
	cbConfig.Enabled = true
	cbConfig.FailureRateThreshold = viper.GetInt(envPrefix + CBFailureRateThreshold)
	cbConfig.FailureRateMinimumWindow = viper.GetInt(envPrefix + CBFailureRateMinimumWindow)
	cbConfig.FailureRateWindowInMs = viper.GetInt(envPrefix + CBFailureRateWindowInMs)
	cbConfig.SuccessRatioThreshold = viper.GetInt(envPrefix + CBSuccessRatioThreshold)
	cbConfig.SuccessWindow = viper.GetInt(envPrefix + CBSuccessWindow)
	cbConfig.WithDelayInMs = viper.GetInt(envPrefix + CBWithDelayInMs)
	return &cbConfig
}

func newCircuitBreaker(config *CBConfig) circuitbreaker.CircuitBreaker[*Response] {
	return circuitbreaker.Builder[*Response]().
		WithFailureRateThreshold(uint(config.FailureRateThreshold), uint(config.FailureRateMinimumWindow), time.Duration(config.FailureRateWindowInMs)*time.Millisecond).
		WithSuccessThresholdRatio(uint(config.SuccessRatioThreshold), uint(config.SuccessWindow)).
		WithDelay(time.Duration(config.WithDelayInMs) * time.Millisecond).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			log.Debug().Msgf("Circuit Breaker '%s' changed state from %s to %s", config.Name, event.OldState, event.NewState)
			metric.Incr(cbStateChanged, metric.BuildTag(
				metric.NewTag(metric.TagExternalService, config.Name),
				metric.NewTag("from", event.OldState.String()),
				metric.NewTag("to", event.NewState.String()),
			))
		}).
		Build()
}
