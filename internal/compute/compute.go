// Package compute implements the Compute stage: drain Ring-A, update both
// EMAs on each Record, and hand off to Ring-B under the drop-oldest overrun
// policy.
package compute

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marketpulse/tickerpipe/internal/capability"
	"github.com/marketpulse/tickerpipe/internal/ema"
	"github.com/marketpulse/tickerpipe/internal/observability"
	"github.com/marketpulse/tickerpipe/internal/record"
	"github.com/marketpulse/tickerpipe/internal/ring"
)

// idleSleep bounds how long the stage pauses when Ring-A is empty, so the
// loop cooperatively yields instead of busy-spinning a whole core.
const idleSleep = 200 * time.Microsecond

// Stage is the dedicated, single-threaded Compute task.
type Stage struct {
	ringA *ring.Ring[*record.Record]
	ringB *ring.Ring[*record.Record]

	emaPrice *ema.Engine
	emaMid   *ema.Engine

	metrics  *observability.MetricsProvider
	logger   *observability.StageLogger
	affinity capability.Affinity

	shutdown int32
	drops    uint64

	wg sync.WaitGroup
}

// New constructs a Compute stage reading from ringA and writing to ringB.
func New(ringA, ringB *ring.Ring[*record.Record], interval time.Duration, obs *observability.Provider) *Stage {
	return &Stage{
		ringA:    ringA,
		ringB:    ringB,
		emaPrice: ema.New(interval),
		emaMid:   ema.New(interval),
		metrics:  obs.Metrics,
		logger:   observability.NewStageLogger(obs.Logger, "compute"),
		affinity: capability.Default(),
	}
}

// Run drives the main loop until Shutdown is called and Ring-A has drained.
// Callers run Run in its own goroutine and use Wait to join it.
func (s *Stage) Run(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.affinity.Apply(); err != nil {
		s.logger.LocalError(ctx, "affinity hint "+s.affinity.Name()+" not applied", err)
	}

	for {
		drained := s.drainOnce(ctx)

		if atomic.LoadInt32(&s.shutdown) == 1 && s.ringA.IsEmpty() {
			return
		}
		if !drained {
			time.Sleep(idleSleep)
		}
	}
}

// drainOnce pops everything currently available on Ring-A and reports
// whether it popped at least one Record.
func (s *Stage) drainOnce(ctx context.Context) bool {
	popped := false
	for {
		r, ok := s.ringA.TryPop()
		if !ok {
			break
		}
		popped = true
		s.processOne(ctx, r)
	}
	return popped
}

func (s *Stage) processOne(ctx context.Context, r *record.Record) {
	start := time.Now()

	if price, err := strconv.ParseFloat(r.Price, 64); err == nil {
		r.PriceEMA = s.emaPrice.Update(price, r.EventTime)
		r.MidPriceEMA = s.emaMid.Update(r.MidPrice, r.EventTime)
	} else {
		s.metrics.IncParseErrors()
	}

	s.metrics.ObserveEMAUpdate(ctx, time.Since(start))

	if !s.ringB.TryPush(r) {
		// Persistence is slower than compute: make room by discarding the
		// oldest pending row. Ring-B is SPSC with Compute as the only
		// producer, so the push after the drop must now succeed.
		s.ringB.TryPop()
		s.ringB.TryPush(r)

		total := atomic.AddUint64(&s.drops, 1)
		s.metrics.IncPersistenceDrops()
		s.logger.Drop(ctx, "drop-oldest", total)
	}

	s.metrics.SetQueueDepth("ring_b", s.ringB.Len())
}

// Shutdown requests the loop exit once Ring-A is drained.
func (s *Stage) Shutdown() {
	atomic.StoreInt32(&s.shutdown, 1)
}

// Wait blocks until Run has returned.
func (s *Stage) Wait() {
	s.wg.Wait()
}

// Drops returns the number of records evicted from Ring-B so far.
func (s *Stage) Drops() uint64 {
	return atomic.LoadUint64(&s.drops)
}
