// Package config loads pipeline configuration from CLI flags layered
// over environment variables and built-in defaults.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the ticker pipeline.
type Config struct {
	Product       string
	Output        string
	Feed          FeedConfig
	EMA           EMAConfig
	Pipeline      PipelineConfig
	Observability ObservabilityConfig
}

// FeedConfig describes the upstream ticker feed the Transport stage dials.
type FeedConfig struct {
	URL               string
	HandshakeTimeout  time.Duration
	ReadLimitBytes    int64
}

// EMAConfig carries the time-gate interval shared by both EMA instances.
type EMAConfig struct {
	Interval time.Duration
}

// PipelineConfig carries ring sizing and flush cadence knobs.
type PipelineConfig struct {
	RingACapacity int
	RingBCapacity int
	FlushInterval time.Duration
	DrainTimeout  time.Duration
}

// ObservabilityConfig configures the logger, metrics registry, and the
// optional Redis pub/sub tap of persisted records.
type ObservabilityConfig struct {
	ServiceName string
	LogLevel    string
	LogFormat   string
	MetricsAddr string
	MetricsPort int
	RedisAddr   string
	RedisTopic  string
}

// Load parses CLI flags, falling back to environment variables and then
// built-in defaults. flag.Parse is called on args (typically os.Args[1:]).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("tickerpipe", flag.ContinueOnError)

	product := fs.String("product", getEnv("TICKERPIPE_PRODUCT", "BTC-USD"), "exchange product ID to subscribe to")
	output := fs.String("output", getEnv("TICKERPIPE_OUTPUT", "ticker_data.csv"), "path of the append-only CSV log")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Product: *product,
		Output:  *output,
		Feed: FeedConfig{
			URL:              getEnv("TICKERPIPE_FEED_URL", "wss://ws-feed.exchange.example/ticker"),
			HandshakeTimeout: getDurationEnv("TICKERPIPE_HANDSHAKE_TIMEOUT", 10*time.Second),
			ReadLimitBytes:   int64(getIntEnv("TICKERPIPE_READ_LIMIT_BYTES", 1<<20)),
		},
		EMA: EMAConfig{
			Interval: getDurationEnv("TICKERPIPE_EMA_INTERVAL", 5*time.Second),
		},
		Pipeline: PipelineConfig{
			RingACapacity: getIntEnv("TICKERPIPE_RING_A_CAPACITY", 1024),
			RingBCapacity: getIntEnv("TICKERPIPE_RING_B_CAPACITY", 256),
			FlushInterval: getDurationEnv("TICKERPIPE_FLUSH_INTERVAL", 10*time.Millisecond),
			DrainTimeout:  getDurationEnv("TICKERPIPE_DRAIN_TIMEOUT", 5*time.Second),
		},
		Observability: ObservabilityConfig{
			ServiceName: getEnv("TICKERPIPE_SERVICE_NAME", "tickerpipe"),
			LogLevel:    getEnv("TICKERPIPE_LOG_LEVEL", "info"),
			LogFormat:   getEnv("TICKERPIPE_LOG_FORMAT", "json"),
			MetricsAddr: getEnv("TICKERPIPE_METRICS_ADDR", "127.0.0.1"),
			MetricsPort: getIntEnv("TICKERPIPE_METRICS_PORT", 9090),
			RedisAddr:   getEnv("TICKERPIPE_REDIS_ADDR", ""),
			RedisTopic:  getEnv("TICKERPIPE_REDIS_TOPIC", "tickerpipe.records"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Product == "" {
		return fmt.Errorf("product must not be empty")
	}
	if c.Output == "" {
		return fmt.Errorf("output path must not be empty")
	}
	if c.Pipeline.RingACapacity < 2 || c.Pipeline.RingACapacity&(c.Pipeline.RingACapacity-1) != 0 {
		return fmt.Errorf("ring A capacity must be a power of two >= 2, got %d", c.Pipeline.RingACapacity)
	}
	if c.Pipeline.RingBCapacity < 2 || c.Pipeline.RingBCapacity&(c.Pipeline.RingBCapacity-1) != 0 {
		return fmt.Errorf("ring B capacity must be a power of two >= 2, got %d", c.Pipeline.RingBCapacity)
	}
	if c.EMA.Interval <= 0 {
		return fmt.Errorf("EMA interval must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
