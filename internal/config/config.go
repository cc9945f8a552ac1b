package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Bayesian network engine.
	RscriptPath   string
	RSourcePath   string // R file defining the bayes_net_predict* functions
	ModelPath     string // default fitted network (.rds) when a request names none
	SDPath        string // default node standard deviations (.csv)
	EngineTimeout time.Duration
	EngineRetries int
	CacheSize     int

	// Forecast publishing. Empty KafkaBrokers disables publishing.
	KafkaBrokers       []string
	KafkaForecastTopic string
}

// PublishEnabled reports whether forecasts should be written to Kafka.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	engineTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("ENGINE_TIMEOUT", "60s"))
	if err != nil || engineTimeout <= 0 {
		return nil, errors.New("invalid ENGINE_TIMEOUT")
	}

	engineRetries, err := strconv.Atoi(sharedcfg.EnvOrDefault("ENGINE_RETRIES", "0"))
	if err != nil || engineRetries < 0 || engineRetries > 5 {
		return nil, errors.New("invalid ENGINE_RETRIES: must be between 0 and 5")
	}

	cacheSize, err := strconv.Atoi(sharedcfg.EnvOrDefault("FORECAST_CACHE_SIZE", "128"))
	if err != nil || cacheSize < 0 {
		return nil, errors.New("invalid FORECAST_CACHE_SIZE: must be a non-negative integer")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RscriptPath:   sharedcfg.EnvOrDefault("RSCRIPT_PATH", "Rscript"),
		RSourcePath:   sharedcfg.EnvOrDefault("BN_R_SOURCE", "bayes_net_utils.R"),
		ModelPath:     os.Getenv("BN_MODEL_PATH"),
		SDPath:        os.Getenv("BN_SD_PATH"),
		EngineTimeout: engineTimeout,
		EngineRetries: engineRetries,
		CacheSize:     cacheSize,

		KafkaBrokers:       brokers,
		KafkaForecastTopic: sharedcfg.EnvOrDefault("KAFKA_FORECAST_TOPIC", "bloom-forecasts"),
	}

	if cfg.RscriptPath == "" {
		return nil, errors.New("RSCRIPT_PATH is required")
	}
	if cfg.RSourcePath == "" {
		return nil, errors.New("BN_R_SOURCE is required")
	}
	if cfg.PublishEnabled() && cfg.KafkaForecastTopic == "" {
		return nil, errors.New("KAFKA_FORECAST_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}
