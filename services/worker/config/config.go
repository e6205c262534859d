package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the worker service.
type Config struct {
	LogLevel          string
	MetricsAddr       string
	RedisAddr         string
	JobsQueue         string
	ResultsQueue      string
	PollInterval      time.Duration
	VisibilityTimeout time.Duration
	BatchSize         int
	MaxDeliveries     int
	TranslateTimeout  time.Duration
	RateLimit         int
	RateWindow        time.Duration
	OTelEndpoint      string

	TranslatorEndpoint string
	TranslatorRegion   string
	TranslatorKey      string
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:          v.GetString("log_level"),
		MetricsAddr:       v.GetString("metrics_addr"),
		RedisAddr:         v.GetString("redis_addr"),
		JobsQueue:         v.GetString("jobs_queue"),
		ResultsQueue:      v.GetString("results_queue"),
		PollInterval:      v.GetDuration("poll_interval"),
		VisibilityTimeout: v.GetDuration("visibility_timeout"),
		BatchSize:         v.GetInt("batch_size"),
		MaxDeliveries:     v.GetInt("max_deliveries"),
		TranslateTimeout:  v.GetDuration("translate_timeout"),
		RateLimit:         v.GetInt("rate_limit"),
		RateWindow:        v.GetDuration("rate_window"),
		OTelEndpoint:      v.GetString("otel_endpoint"),

		TranslatorEndpoint: v.GetString("translator_endpoint"),
		TranslatorRegion:   v.GetString("translator_region"),
		TranslatorKey:      v.GetString("translator_key"),
	}
}
