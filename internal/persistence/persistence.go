// Package persistence implements the Persistence stage: durable append of
// Records as header-then-rows text. Flush cadence is time-based rather than
// per-record, grounded on the producer/consumer pack's periodic-flush
// batcher pattern (time.Ticker driving the buffered-writer flush, not every
// write). The stage never calls fsync; durability beyond the flush is left to
// the OS.
package persistence

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marketpulse/tickerpipe/internal/observability"
	"github.com/marketpulse/tickerpipe/internal/record"
	"github.com/marketpulse/tickerpipe/internal/ring"
)

// idleSleep bounds how long the stage pauses when Ring-B is empty.
const idleSleep = 200 * time.Microsecond

// Stage is the dedicated Persistence task: one writer, one file.
type Stage struct {
	ringB *ring.Ring[*record.Record]

	file   *os.File
	writer *bufio.Writer

	flushInterval time.Duration

	metrics *observability.MetricsProvider
	logger  *observability.StageLogger
	obs     *observability.Provider

	shutdown int32
	written  uint64

	wg sync.WaitGroup
}

// Open opens path in append mode and writes the header if the file is
// currently empty. A failure here is fatal at startup: the caller must
// abort bring-up rather than start Compute with nowhere for records to go.
func Open(path string, flushInterval time.Duration, ringB *ring.Ring[*record.Record], obs *observability.Provider) (*Stage, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("persistence: stat %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	if info.Size() == 0 {
		if _, err := w.WriteString(record.Header() + "\n"); err != nil {
			f.Close()
			return nil, fmt.Errorf("persistence: write header: %w", err)
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return nil, fmt.Errorf("persistence: flush header: %w", err)
		}
	}

	return &Stage{
		ringB:         ringB,
		file:          f,
		writer:        w,
		flushInterval: flushInterval,
		metrics:       obs.Metrics,
		logger:        observability.NewStageLogger(obs.Logger, "persistence"),
		obs:           obs,
	}, nil
}

// Run drives the main loop: drain Ring-B, write rows, flush on a time-based
// cadence. Callers run Run in its own goroutine and use Wait to join it.
func (s *Stage) Run(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush(ctx)
		default:
		}

		r, ok := s.ringB.TryPop()
		if !ok {
			if atomic.LoadInt32(&s.shutdown) == 1 {
				s.drainRemaining(ctx)
				s.flush(ctx)
				return
			}
			time.Sleep(idleSleep)
			continue
		}

		s.writeRow(ctx, r)
	}
}

func (s *Stage) drainRemaining(ctx context.Context) {
	for {
		r, ok := s.ringB.TryPop()
		if !ok {
			return
		}
		s.writeRow(ctx, r)
	}
}

func (s *Stage) writeRow(ctx context.Context, r *record.Record) {
	row := r.ToRow()
	if _, err := s.writer.WriteString(row + "\n"); err != nil {
		s.metrics.IncWriteErrors()
		s.logger.LocalError(ctx, "row write failed", err)
		return
	}
	atomic.AddUint64(&s.written, 1)
	s.metrics.IncRecordsPersisted()
	s.obs.PublishRecord(ctx, row)
}

func (s *Stage) flush(ctx context.Context) {
	if err := s.writer.Flush(); err != nil {
		s.metrics.IncWriteErrors()
		s.logger.LocalError(ctx, "flush failed", err)
	}
}

// Shutdown requests the loop drain Ring-B to exhaustion, flush, and exit.
// Callers must only call this once Compute (Ring-B's sole producer) has
// actually stopped — Run's exit check only looks at Ring-B's instantaneous
// emptiness, so signaling Shutdown while Compute is still draining Ring-A
// would let this stage exit while records are still inbound.
func (s *Stage) Shutdown() {
	atomic.StoreInt32(&s.shutdown, 1)
}

// Wait blocks until Run has returned.
func (s *Stage) Wait() {
	s.wg.Wait()
}

// Close flushes and closes the underlying file. Safe to call after Wait.
func (s *Stage) Close() error {
	_ = s.writer.Flush()
	return s.file.Close()
}

// Written returns the number of rows successfully written so far.
func (s *Stage) Written() uint64 {
	return atomic.LoadUint64(&s.written)
}
