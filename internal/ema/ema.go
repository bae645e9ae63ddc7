// Package ema implements a time-gated exponential moving average. Samples
// are admitted on event time, not wall clock, so replaying the same frame
// sequence always yields the same series regardless of scheduler jitter.
package ema

import (
	"sync"
	"time"
)

// state is a sum type over Uninitialized | Initialized{value, lastUpdate},
// per the spec's explicit re-architecture guidance: a bare `initialized
// bool` alongside separately-settable value/lastUpdate fields invites torn
// reads between the flag and its payload. Collapsing them into one struct
// that is replaced atomically under the engine's lock removes that window.
type state struct {
	initialized bool
	value       float64
	lastUpdate  time.Time
}

// Engine holds one time-gated EMA. Construct with New: the zero value is
// Uninitialized but has a zero interval and zero alpha, so after its first
// sample its value never changes.
type Engine struct {
	mu       sync.Mutex
	interval time.Duration
	alpha    float64
	s        state
}

// New constructs an Engine with the given gating interval. alpha is derived
// as 2 / (interval.Seconds() + 1), fixed for the engine's lifetime.
func New(interval time.Duration) *Engine {
	return &Engine{
		interval: interval,
		alpha:    2 / (interval.Seconds() + 1),
	}
}

// Update applies a new (sample, now) pair and returns the resulting value.
//
//  1. If uninitialized: value = sample, last update = now; returns sample.
//  2. Else if now - last update < interval: returns the unchanged prior
//     value; state is not mutated (the sample is dropped by the time gate).
//  3. Else: value = alpha*sample + (1-alpha)*value; last update = now;
//     returns the new value.
func (e *Engine) Update(sample float64, now time.Time) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.s.initialized {
		e.s = state{initialized: true, value: sample, lastUpdate: now}
		return e.s.value
	}

	if now.Sub(e.s.lastUpdate) < e.interval {
		return e.s.value
	}

	next := e.alpha*sample + (1-e.alpha)*e.s.value
	e.s = state{initialized: true, value: next, lastUpdate: now}
	return next
}

// Value returns the current value (0 if uninitialized) and whether the
// engine has seen at least one sample, as a single consistent snapshot.
func (e *Engine) Value() (value float64, initialized bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.value, e.s.initialized
}

// Reset clears the engine back to Uninitialized.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s = state{}
}
