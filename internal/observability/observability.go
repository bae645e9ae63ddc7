package observability

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/marketpulse/tickerpipe/internal/config"
)

// Provider bundles the logger, metrics registry, and optional Redis tap the
// pipeline's stages share.
type Provider struct {
	Logger  *Logger
	Metrics *MetricsProvider

	redisClient *redis.Client
	redisTopic  string
}

// NewProvider builds the observability Provider from pipeline configuration.
func NewProvider(cfg config.ObservabilityConfig) (*Provider, error) {
	logger := NewLogger(cfg)

	metrics, err := NewMetricsProvider(MetricsConfig{
		ServiceName: cfg.ServiceName,
		Namespace:   "tickerpipe",
		Addr:        cfg.MetricsAddr,
		Port:        cfg.MetricsPort,
		Enabled:     true,
	})
	if err != nil {
		return nil, err
	}

	p := &Provider{Logger: logger, Metrics: metrics}

	if cfg.RedisAddr != "" {
		p.redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		p.redisTopic = cfg.RedisTopic
		if p.redisTopic == "" {
			p.redisTopic = "tickerpipe.records"
		}
	}

	return p, nil
}

// PublishRecord best-effort publishes a persisted row to the configured
// Redis channel, for operators who want a live tap of the output stream
// without tailing the CSV file. This is a sidecar, never on the hot path:
// a publish failure or disabled Redis is silently ignored.
func (p *Provider) PublishRecord(ctx context.Context, row string) {
	if p.redisClient == nil {
		return
	}
	_ = p.redisClient.Publish(ctx, p.redisTopic, row).Err()
}

// Start logs process start-up; metrics server start-up is driven by the
// caller so it can be skipped in tests.
func (p *Provider) Start(ctx context.Context, serviceName, version string) {
	p.Logger.Info(ctx, "observability provider started", map[string]interface{}{
		"service": serviceName,
		"version": version,
	})
}

// Stop logs process shutdown.
func (p *Provider) Stop(ctx context.Context) {
	p.Logger.Info(ctx, "observability provider stopped", nil)
}
