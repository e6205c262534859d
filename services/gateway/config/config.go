package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the gateway service.
type Config struct {
	LogLevel        string
	HTTPPort        string
	MetricsAddr     string
	PublicBaseURL   string
	RedisAddr       string
	PostgresDSN     string
	JobsQueue       string
	ResultsQueue    string
	DefaultLanguage string
	MaxBodyBytes    int64
	TaskRetention   time.Duration
	OTelEndpoint    string

	TranslatorEndpoint string
	TranslatorRegion   string
	TranslatorKey      string
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:        v.GetString("log_level"),
		HTTPPort:        v.GetString("http_port"),
		MetricsAddr:     v.GetString("metrics_addr"),
		PublicBaseURL:   v.GetString("public_base_url"),
		RedisAddr:       v.GetString("redis_addr"),
		PostgresDSN:     v.GetString("postgres_dsn"),
		JobsQueue:       v.GetString("jobs_queue"),
		ResultsQueue:    v.GetString("results_queue"),
		DefaultLanguage: v.GetString("default_language"),
		MaxBodyBytes:    v.GetInt64("max_body_bytes"),
		TaskRetention:   v.GetDuration("task_retention"),
		OTelEndpoint:    v.GetString("otel_endpoint"),

		TranslatorEndpoint: v.GetString("translator_endpoint"),
		TranslatorRegion:   v.GetString("translator_region"),
		TranslatorKey:      v.GetString("translator_key"),
	}
}
