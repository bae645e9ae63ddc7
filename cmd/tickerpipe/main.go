// Command tickerpipe runs the ticker ingestion pipeline: dial the upstream
// feed, decode ticker events, compute interval-gated EMAs, and append rows
// to a CSV log, until SIGINT/SIGTERM triggers orderly shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marketpulse/tickerpipe/internal/config"
	"github.com/marketpulse/tickerpipe/internal/observability"
	"github.com/marketpulse/tickerpipe/internal/pipeline"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "tickerpipe: configuration error: %v\n", err)
		return 1
	}

	obs, err := observability.NewProvider(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tickerpipe: observability setup failed: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs.Start(ctx, cfg.Observability.ServiceName, version)
	defer obs.Stop(ctx)

	go func() {
		if err := obs.Metrics.StartMetricsServer(cfg.Observability.MetricsAddr, cfg.Observability.MetricsPort); err != nil {
			obs.Logger.Warn(ctx, "metrics server stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	p := pipeline.New(cfg, obs)
	if err := p.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tickerpipe: startup failed: %v\n", err)
		return 1
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- p.Wait() }()

	select {
	case <-ctx.Done():
	case err := <-waitErr:
		obs.Logger.Error(ctx, "transport read loop ended, shutting down", err)
	}

	p.Shutdown(context.Background())
	return 0
}
