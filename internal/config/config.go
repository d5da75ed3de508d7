// Package config provides configuration management for the event processor.
// All settings come from environment variables (optionally via a .env file),
// with defaults suitable for production.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DLQSuffix is appended to QUEUE_URL when DLQ_URL is not set explicitly.
const DLQSuffix = "-dlq"

// Config holds all configuration for the event processor
type Config struct {
	Queue    QueueConfig
	AWS      AWSConfig
	Report   ReportConfig
	Metrics  MetricsConfig
	Redis    RedisConfig
	Database DatabaseConfig
}

// QueueConfig holds queue URLs and SQS polling/retry tuning
type QueueConfig struct {
	// URL is the primary appointment-event queue URL (required)
	URL string `json:"url" yaml:"url"`
	// DLQURL is the dead-letter queue URL; defaults to URL + "-dlq"
	DLQURL string `json:"dlq_url" yaml:"dlq_url"`
	// MaxMessages is the receive batch size (SQS caps this at 10)
	MaxMessages int `json:"max_messages" yaml:"max_messages"`
	// WaitTime is the long-polling wait on the primary queue in seconds
	WaitTime int `json:"wait_time" yaml:"wait_time"`
	// DLQWaitTime is the long-polling wait on the DLQ in seconds
	DLQWaitTime int `json:"dlq_wait_time" yaml:"dlq_wait_time"`
	// VisibilityTimeout is how long a received message stays hidden, in seconds
	VisibilityTimeout int `json:"visibility_timeout" yaml:"visibility_timeout"`
	// IdleDelay is the pause after an empty receive, in seconds
	IdleDelay int `json:"idle_delay" yaml:"idle_delay"`
	// DLQInterval is the period between DLQ reprocessing passes, in seconds
	DLQInterval int `json:"dlq_interval" yaml:"dlq_interval"`
	// RetryMaxAttempts bounds retries of transient receive/delete/send failures
	RetryMaxAttempts int `json:"retry_max_attempts" yaml:"retry_max_attempts"`
}

// AWSConfig holds AWS credentials and region
type AWSConfig struct {
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	Region          string `json:"region" yaml:"region"`
	// Endpoint overrides the SQS endpoint (LocalStack and friends)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// ReportConfig holds report generation settings
type ReportConfig struct {
	// Environment is stamped on every produced report record
	Environment string `json:"environment" yaml:"environment"`
}

// CloudWatchConfig holds CloudWatch metrics settings
type CloudWatchConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// PrometheusConfig holds Prometheus metrics settings
type PrometheusConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Subsystem string `json:"subsystem" yaml:"subsystem"`
	// Addr is the listen address for the /metrics endpoint
	Addr string `json:"addr" yaml:"addr"`
}

// MetricsConfig groups the metrics backends
type MetricsConfig struct {
	CloudWatch CloudWatchConfig `json:"cloudwatch" yaml:"cloudwatch"`
	Prometheus PrometheusConfig `json:"prometheus" yaml:"prometheus"`
}

// RedisConfig holds Redis connection settings for the queue URL cache.
// Redis is optional; an empty Host disables it.
type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// DatabaseConfig holds database settings for the failure audit trail.
// The database is optional; an empty Host disables it.
type DatabaseConfig struct {
	Driver   string `json:"driver" yaml:"driver"` // mysql, postgres
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Database string `json:"database" yaml:"database"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Queue: QueueConfig{
			MaxMessages:       10,
			WaitTime:          20,
			DLQWaitTime:       5,
			VisibilityTimeout: 300,
			IdleDelay:         2,
			DLQInterval:       60,
			RetryMaxAttempts:  3,
		},
		AWS: AWSConfig{
			Region: "us-east-2",
		},
		Report: ReportConfig{
			Environment: "production",
		},
		Metrics: MetricsConfig{
			CloudWatch: CloudWatchConfig{
				Enabled:   false,
				Namespace: "PetClinic/EventProcessor",
			},
			Prometheus: PrometheusConfig{
				Enabled:   false,
				Namespace: "petclinic",
				Subsystem: "event_processor",
				Addr:      ":9090",
			},
		},
		Redis: RedisConfig{
			Port: 6379,
		},
		Database: DatabaseConfig{
			Driver: "mysql",
			Port:   3306,
		},
	}
}

// Validate checks that mandatory settings are present. A missing QUEUE_URL is
// a fatal start-up error: the caller is expected to exit non-zero.
func (c *Config) Validate() error {
	if c.Queue.URL == "" {
		return errors.New("QUEUE_URL is required but not set")
	}
	if c.Queue.MaxMessages < 1 || c.Queue.MaxMessages > 10 {
		return errors.New("SQS_MAX_MESSAGES must be between 1 and 10")
	}
	if c.Queue.VisibilityTimeout < 30 {
		return errors.New("SQS_VISIBILITY_TIMEOUT must be at least 30 seconds")
	}
	return nil
}

// RedisEnabled reports whether a Redis cache is configured
func (c *Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

// DatabaseEnabled reports whether the failure audit database is configured
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Host != ""
}

// GetIdleDelay returns the idle pause as a duration
func (c *Config) GetIdleDelay() time.Duration {
	return time.Duration(c.Queue.IdleDelay) * time.Second
}

// GetDLQInterval returns the DLQ reprocessing period as a duration
func (c *Config) GetDLQInterval() time.Duration {
	return time.Duration(c.Queue.DLQInterval) * time.Second
}

// Helper functions using Viper

func getViperString(key, defaultValue string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getViperBool(key string, defaultValue bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return defaultValue
}

func getViperInt(key string, defaultValue int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return defaultValue
}

// LoadDotEnv loads environment variables from a .env file using Viper
func LoadDotEnv() error {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")

	// Automatically read environment variables
	viper.AutomaticEnv()

	// Read .env file - it's okay if it doesn't exist
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

// Load loads configuration from .env file and environment variables
func Load() *Config {
	_ = LoadDotEnv()
	return LoadFromViper()
}

// LoadFromViper loads configuration from Viper (after .env is loaded)
func LoadFromViper() *Config {
	viper.AutomaticEnv()
	cfg := DefaultConfig()

	// Queue config
	cfg.Queue.URL = strings.TrimSpace(getViperString("QUEUE_URL", ""))
	cfg.Queue.DLQURL = strings.TrimSpace(getViperString("DLQ_URL", ""))
	if cfg.Queue.DLQURL == "" && cfg.Queue.URL != "" {
		cfg.Queue.DLQURL = cfg.Queue.URL + DLQSuffix
	}
	cfg.Queue.MaxMessages = getViperInt("SQS_MAX_MESSAGES", cfg.Queue.MaxMessages)
	cfg.Queue.WaitTime = getViperInt("SQS_WAIT_TIME", cfg.Queue.WaitTime)
	cfg.Queue.DLQWaitTime = getViperInt("SQS_DLQ_WAIT_TIME", cfg.Queue.DLQWaitTime)
	cfg.Queue.VisibilityTimeout = getViperInt("SQS_VISIBILITY_TIMEOUT", cfg.Queue.VisibilityTimeout)
	cfg.Queue.IdleDelay = getViperInt("SQS_IDLE_DELAY_SECONDS", cfg.Queue.IdleDelay)
	cfg.Queue.DLQInterval = getViperInt("DLQ_REPROCESS_INTERVAL_SECONDS", cfg.Queue.DLQInterval)
	cfg.Queue.RetryMaxAttempts = getViperInt("QUEUE_RETRY_MAX_ATTEMPTS", cfg.Queue.RetryMaxAttempts)

	// AWS config
	cfg.AWS.AccessKeyID = getViperString("AWS_ACCESS_KEY_ID", cfg.AWS.AccessKeyID)
	cfg.AWS.SecretAccessKey = getViperString("AWS_SECRET_ACCESS_KEY", cfg.AWS.SecretAccessKey)
	cfg.AWS.Region = getViperString("REGION", getViperString("AWS_DEFAULT_REGION", cfg.AWS.Region))
	cfg.AWS.Endpoint = getViperString("AWS_ENDPOINT_URL", cfg.AWS.Endpoint)

	// Report config
	cfg.Report.Environment = getViperString("ENVIRONMENT_TAG", cfg.Report.Environment)

	// Metrics
	cfg.Metrics.CloudWatch.Enabled = getViperBool("CLOUDWATCH_ENABLED", cfg.Metrics.CloudWatch.Enabled)
	if ns := getViperString("CLOUDWATCH_NAMESPACE", ""); ns != "" {
		cfg.Metrics.CloudWatch.Namespace = ns
	}
	cfg.Metrics.Prometheus.Enabled = getViperBool("PROMETHEUS_ENABLED", cfg.Metrics.Prometheus.Enabled)
	if ns := getViperString("PROMETHEUS_NAMESPACE", ""); ns != "" {
		cfg.Metrics.Prometheus.Namespace = ns
	}
	cfg.Metrics.Prometheus.Addr = getViperString("PROMETHEUS_ADDR", cfg.Metrics.Prometheus.Addr)

	// Redis config
	cfg.Redis.Host = getViperString("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = getViperInt("REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.Password = getViperString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getViperInt("REDIS_DB", cfg.Redis.DB)

	// Database config
	cfg.Database.Driver = getViperString("DB_CONNECTION", cfg.Database.Driver)
	cfg.Database.Host = getViperString("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getViperInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Database = getViperString("DB_DATABASE", cfg.Database.Database)
	cfg.Database.Username = getViperString("DB_USERNAME", cfg.Database.Username)
	cfg.Database.Password = getViperString("DB_PASSWORD", cfg.Database.Password)

	return cfg
}
