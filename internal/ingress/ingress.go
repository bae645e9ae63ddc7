// Package ingress implements the Ingress stage: decode one frame, build a
// Record, and hand it off to Ring-A. It never blocks downstream.
package ingress

import (
	"context"
	"sync/atomic"

	"github.com/marketpulse/tickerpipe/internal/decoder"
	"github.com/marketpulse/tickerpipe/internal/observability"
	"github.com/marketpulse/tickerpipe/internal/record"
	"github.com/marketpulse/tickerpipe/internal/ring"
)

// Stage decodes transport frames and enqueues Records into Ring-A. It is
// driven by the transport collaborator's read loop, on that loop's own
// goroutine; OnFrame must never block.
type Stage struct {
	ringA   *ring.Ring[*record.Record]
	metrics *observability.MetricsProvider
	logger  *observability.StageLogger

	drops uint64
}

// New constructs an Ingress stage writing into ringA.
func New(ringA *ring.Ring[*record.Record], obs *observability.Provider) *Stage {
	return &Stage{
		ringA:   ringA,
		metrics: obs.Metrics,
		logger:  observability.NewStageLogger(obs.Logger, "ingress"),
	}
}

// OnFrame decodes raw, rejects anything that isn't a ticker event, builds a
// Record, and pushes it into Ring-A. On overrun it applies drop-newest: the
// push simply fails and the frame is lost, counted via ingress_drops.
func (s *Stage) OnFrame(ctx context.Context, raw []byte) {
	fields, err := decoder.DecodeFrame(raw)
	if err != nil {
		s.metrics.IncDecodeErrors()
		s.logger.LocalError(ctx, "frame decode failed", err)
		return
	}

	r, err := record.FromDecoded(fields)
	if err != nil {
		s.metrics.IncDecodeErrors()
		return
	}

	if !s.ringA.TryPush(r) {
		total := atomic.AddUint64(&s.drops, 1)
		s.metrics.IncIngressDrops()
		s.logger.Drop(ctx, "drop-newest", total)
		return
	}

	s.metrics.SetQueueDepth("ring_a", s.ringA.Len())
}

// Drops returns the number of frames lost to Ring-A overrun so far.
func (s *Stage) Drops() uint64 {
	return atomic.LoadUint64(&s.drops)
}
