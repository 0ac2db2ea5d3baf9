// Package config loads runtime configuration for the server from
// environment variables (and an optional config file), following the
// same defaults-then-override pattern the rest of the stack uses.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the store server.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Topics  TopicsConfig  `mapstructure:"topics"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig contains network-level settings for the TCP listener and
// its accept-side resource guard.
type ServerConfig struct {
	Host               string  `mapstructure:"host"`
	Port               int     `mapstructure:"port"`
	MaxConnections     int     `mapstructure:"max_connections"`
	AcceptRatePerSec   float64 `mapstructure:"accept_rate_per_sec"`
	AcceptBurst        int     `mapstructure:"accept_burst"`
	AcceptGraceTimeout time.Duration `mapstructure:"accept_grace_timeout"`
}

// StoreConfig controls the key/value engine.
type StoreConfig struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// TopicsConfig controls publish/subscribe broadcaster sizing.
type TopicsConfig struct {
	BroadcastCapacity int `mapstructure:"broadcast_capacity"`
}

// JobsConfig controls the built-in job registry's scheduling intervals.
type JobsConfig struct {
	MetricsSampleInterval   time.Duration `mapstructure:"metrics_sample_interval"`
	StaleTopicSweepInterval time.Duration `mapstructure:"stale_topic_sweep_interval"`
}

// LoggingConfig controls zap logger level/encoding.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig controls the Prometheus/admin HTTP listener.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load reads configuration from environment variables prefixed INSDB_ and
// an optional insomniadb.yaml, falling back to the defaults below.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 6379)
	v.SetDefault("server.max_connections", 10000)
	v.SetDefault("server.accept_rate_per_sec", 500.0)
	v.SetDefault("server.accept_burst", 1000)
	v.SetDefault("server.accept_grace_timeout", 100*time.Millisecond)

	v.SetDefault("store.default_ttl", 0)

	v.SetDefault("topics.broadcast_capacity", 1024)

	v.SetDefault("jobs.metrics_sample_interval", 5*time.Second)
	v.SetDefault("jobs.stale_topic_sweep_interval", 60*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9090")

	v.SetConfigName("insomniadb")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("INSDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}

	if cfg.Topics.BroadcastCapacity <= 0 {
		cfg.Topics.BroadcastCapacity = 1024
	}
	if cfg.Server.MaxConnections <= 0 {
		cfg.Server.MaxConnections = 10000
	}

	return cfg, nil
}
