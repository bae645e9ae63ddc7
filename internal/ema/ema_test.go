package ema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngine_FirstSampleIdentity(t *testing.T) {
	e := New(5 * time.Second)
	now := time.Unix(0, 0)
	got := e.Update(42.0, now)
	assert.Equal(t, 42.0, got)

	v, initialized := e.Value()
	assert.True(t, initialized)
	assert.Equal(t, 42.0, v)
}

func TestEngine_TimeGateRejectsEarlyUpdate(t *testing.T) {
	e := New(5 * time.Second)
	t0 := time.Unix(0, 0)
	e.Update(100.0, t0)

	got := e.Update(200.0, t0.Add(100*time.Millisecond))
	assert.Equal(t, 100.0, got, "sample inside the gate window must not mutate state")

	v, _ := e.Value()
	assert.Equal(t, 100.0, v)
}

func TestEngine_RecurrenceAfterGatePasses(t *testing.T) {
	e := New(5 * time.Second)
	t0 := time.Unix(0, 0)
	e.Update(100.0, t0)

	got := e.Update(200.0, t0.Add(6*time.Second))
	// alpha = 2/(5+1) = 1/3; (1/3)*200 + (2/3)*100 = 133.33333333...
	assert.InDelta(t, 133.33333333, got, 1e-8)
}

func TestEngine_UninitializedBeforeFirstSample(t *testing.T) {
	e := New(5 * time.Second)
	v, initialized := e.Value()
	assert.False(t, initialized)
	assert.Equal(t, 0.0, v)
}

func TestEngine_ResetClearsState(t *testing.T) {
	e := New(5 * time.Second)
	e.Update(42.0, time.Unix(0, 0))
	e.Reset()

	_, initialized := e.Value()
	assert.False(t, initialized)
}

func TestEngine_GateBoundaryIsInclusive(t *testing.T) {
	e := New(5 * time.Second)
	t0 := time.Unix(0, 0)
	e.Update(100.0, t0)

	// exactly one interval later: not "< interval", so the update applies.
	got := e.Update(200.0, t0.Add(5*time.Second))
	assert.InDelta(t, 133.33333333, got, 1e-8)
}
