// Package config loads the runtime settings from a config file and the
// environment. Every option has a default; a bare process only needs the
// store endpoints.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration of a worker process.
type Config struct {
	WorkerConcurrency  int    `mapstructure:"worker-concurrency"`
	TaskTimeoutSeconds int    `mapstructure:"task-timeout-seconds"`
	RetryMaxAttempts   int    `mapstructure:"retry-max-attempts"`
	RetryBaseSeconds   int    `mapstructure:"retry-base-seconds"`
	RetryCapSeconds    int    `mapstructure:"retry-cap-seconds"`
	KositTimeoutSecs   int    `mapstructure:"kosit-timeout-seconds"`
	MonetaryTolerance  string `mapstructure:"monetary-tolerance"`
	AssetsDir          string `mapstructure:"assets-dir"`

	MetadataDSN string `mapstructure:"metadata-dsn"`
	ERPDSN      string `mapstructure:"erp-dsn"`

	Blob  BlobConfig  `mapstructure:"blob"`
	Queue QueueConfig `mapstructure:"queue"`
}

type BlobConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKey       string `mapstructure:"access-key"`
	SecretKey       string `mapstructure:"secret-key"`
	UseSSL          bool   `mapstructure:"use-ssl"`
	RawBucket       string `mapstructure:"raw-bucket"`
	ProcessedBucket string `mapstructure:"processed-bucket"`
}

type QueueConfig struct {
	RedisAddr     string `mapstructure:"redis-addr"`
	RedisPassword string `mapstructure:"redis-password"`
	Name          string `mapstructure:"name"`
}

// TaskTimeout returns the per-transaction deadline.
func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSeconds) * time.Second
}

// KositTimeout returns the bound on one semantic validation run.
func (c *Config) KositTimeout() time.Duration {
	return time.Duration(c.KositTimeoutSecs) * time.Second
}

// Tolerance parses the monetary tolerance; an unparsable value falls back
// to the default of two cents.
func (c *Config) Tolerance() decimal.Decimal {
	t, err := decimal.NewFromString(c.MonetaryTolerance)
	if err != nil || t.LessThanOrEqual(decimal.Zero) {
		return decimal.RequireFromString("0.02")
	}
	return t
}

// Load reads the optional config file and the IIEV_* environment. An absent
// file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("worker-concurrency", 4)
	v.SetDefault("task-timeout-seconds", 600)
	v.SetDefault("retry-max-attempts", 5)
	v.SetDefault("retry-base-seconds", 60)
	v.SetDefault("retry-cap-seconds", 600)
	v.SetDefault("kosit-timeout-seconds", 120)
	v.SetDefault("monetary-tolerance", "0.02")
	v.SetDefault("assets-dir", "assets/validation")
	v.SetDefault("blob.raw-bucket", "raw-invoices")
	v.SetDefault("blob.processed-bucket", "processed-invoices")
	v.SetDefault("blob.use-ssl", true)
	v.SetDefault("queue.redis-addr", "localhost:6379")
	v.SetDefault("queue.name", "invoice-tasks")

	v.SetEnvPrefix("IIEV")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("iiev")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/iiev")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
