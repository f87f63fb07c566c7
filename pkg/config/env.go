package config

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	initialized = false
	once        sync.Once
)

// InitEnv makes every environment variable visible through viper.
func InitEnv() {
	if initialized {
		log.Debug().Msg("Env already initialized!")
		return
	}
	once.Do(func() {
		viper.AutomaticEnv()
		initialized = true
		log.Info().Msg("Env initialized!")
	})
}

// GetString returns the value of prefix+key, or def when the key is not set.
func GetString(prefix, key, def string) string {
	if viper.IsSet(prefix + key) {
		return viper.GetString(prefix + key)
	}
	return def
}

// GetInt returns the value of prefix+key, or def when the key is not set.
func GetInt(prefix, key string, def int) int {
	if viper.IsSet(prefix + key) {
		return viper.GetInt(prefix + key)
	}
	return def
}

// GetFloat64 returns the value of prefix+key, or def when the key is not set.
func GetFloat64(prefix, key string, def float64) float64 {
	if viper.IsSet(prefix + key) {
		return viper.GetFloat64(prefix + key)
	}
	return def
}

// GetBool returns the value of prefix+key, or def when the key is not set.
func GetBool(prefix, key string, def bool) bool {
	if viper.IsSet(prefix + key) {
		return viper.GetBool(prefix + key)
	}
	return def
}
