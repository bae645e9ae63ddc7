// Package pipeline implements the Orchestrator: brings stages up in
// reverse-dependency (leaves-first) order, owns the shutdown sequence, and
// tags each run with a session ID for log correlation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marketpulse/tickerpipe/internal/compute"
	"github.com/marketpulse/tickerpipe/internal/config"
	"github.com/marketpulse/tickerpipe/internal/ingress"
	"github.com/marketpulse/tickerpipe/internal/observability"
	"github.com/marketpulse/tickerpipe/internal/persistence"
	"github.com/marketpulse/tickerpipe/internal/record"
	"github.com/marketpulse/tickerpipe/internal/ring"
	"github.com/marketpulse/tickerpipe/internal/transport"
)

// Pipeline wires the five logical components together for one run.
type Pipeline struct {
	sessionID uuid.UUID

	cfg *config.Config
	obs *observability.Provider

	client     *transport.Client
	ingressSt  *ingress.Stage
	computeSt  *compute.Stage
	persistSt  *persistence.Stage

	readErr chan error
}

// New constructs a Pipeline from cfg and obs, but does not start anything.
func New(cfg *config.Config, obs *observability.Provider) *Pipeline {
	return &Pipeline{
		sessionID: uuid.New(),
		cfg:       cfg,
		obs:       obs,
		readErr:   make(chan error, 1),
	}
}

// Start brings stages up leaves-first: Rings, then the EMA-engine-owning
// Compute stage and the file-backed Persistence stage are constructed (and
// Persistence's file is opened and header written) before either is
// spawned; only once Persistence is confirmed ready does Ingress begin
// accepting frames. This ordering exists so that early frames always have
// somewhere to go — starting Ingress first risks Ring-A dropping-newest
// before anything downstream can drain it.
func (p *Pipeline) Start(ctx context.Context) error {
	ringA := ring.New[*record.Record](p.cfg.Pipeline.RingACapacity)
	ringB := ring.New[*record.Record](p.cfg.Pipeline.RingBCapacity)

	p.obs.Logger.Info(ctx, "pipeline starting", map[string]interface{}{
		"session_id": p.sessionID.String(),
		"product":    p.cfg.Product,
		"output":     p.cfg.Output,
	})

	persistSt, err := persistence.Open(p.cfg.Output, p.cfg.Pipeline.FlushInterval, ringB, p.obs)
	if err != nil {
		return fmt.Errorf("pipeline: persistence not ready, aborting startup: %w", err)
	}
	p.persistSt = persistSt

	p.computeSt = compute.New(ringA, ringB, p.cfg.EMA.Interval, p.obs)

	go p.persistSt.Run(ctx)
	go p.computeSt.Run(ctx)

	p.ingressSt = ingress.New(ringA, p.obs)

	p.client = transport.New(transport.Config{
		URL:              p.cfg.Feed.URL,
		Product:          p.cfg.Product,
		HandshakeTimeout: p.cfg.Feed.HandshakeTimeout,
		ReadLimitBytes:   p.cfg.Feed.ReadLimitBytes,
	}, p.obs.Logger)

	if err := p.client.Dial(ctx); err != nil {
		return fmt.Errorf("pipeline: transport dial failed: %w", err)
	}

	go func() {
		p.readErr <- p.client.ReadLoop(ctx, func(frame []byte) {
			p.ingressSt.OnFrame(ctx, frame)
		})
	}()

	return nil
}

// Wait blocks until the transport read loop ends, fatally or because ctx
// was cancelled, and returns the reason.
func (p *Pipeline) Wait() error {
	return <-p.readErr
}

// Shutdown executes the cooperative shutdown sequence: stop accepting
// frames, signal Compute to drain Ring-A then exit, wait for Compute to
// actually join, only then signal Persistence to drain Ring-B and exit.
// Persistence must not be signaled until Compute has stopped producing into
// Ring-B — Compute is Ring-B's only producer, and Persistence's own exit
// check only looks at Ring-B's instantaneous emptiness, so signaling it
// early would let it exit while Compute still has residual Ring-A records
// left to push downstream, losing them silently. The whole join (both
// stages, in sequence) is still bounded by one DrainTimeout. In-flight
// records still in a Ring once the timeout elapses are lost — documented,
// not retried.
func (p *Pipeline) Shutdown(ctx context.Context) {
	p.obs.Logger.Info(ctx, "pipeline shutting down", map[string]interface{}{
		"session_id": p.sessionID.String(),
	})

	_ = p.client.Close()

	p.computeSt.Shutdown()

	joined := make(chan struct{})
	go func() {
		p.computeSt.Wait()
		p.persistSt.Shutdown()
		p.persistSt.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(p.cfg.Pipeline.DrainTimeout):
		p.obs.Logger.Warn(ctx, "drain timeout elapsed, proceeding with shutdown", nil)
	}

	if err := p.persistSt.Close(); err != nil {
		p.obs.Logger.Error(ctx, "error closing persistence file", err)
	}

	p.obs.Logger.Info(ctx, "pipeline stopped", map[string]interface{}{
		"session_id":        p.sessionID.String(),
		"ingress_drops":     p.ingressSt.Drops(),
		"persistence_drops": p.computeSt.Drops(),
		"records_persisted": p.persistSt.Written(),
	})
}

// SessionID returns this run's session identifier.
func (p *Pipeline) SessionID() uuid.UUID {
	return p.sessionID
}
