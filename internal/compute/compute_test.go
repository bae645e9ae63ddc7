package compute

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/marketpulse/tickerpipe/internal/config"
	"github.com/marketpulse/tickerpipe/internal/observability"
	"github.com/marketpulse/tickerpipe/internal/record"
	"github.com/marketpulse/tickerpipe/internal/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStage(t *testing.T, ringACap, ringBCap int, interval time.Duration) (*Stage, *ring.Ring[*record.Record], *ring.Ring[*record.Record]) {
	t.Helper()
	ringA := ring.New[*record.Record](ringACap)
	ringB := ring.New[*record.Record](ringBCap)
	obs, err := observability.NewProvider(config.ObservabilityConfig{ServiceName: "test", LogLevel: "error", LogFormat: "text"})
	require.NoError(t, err)
	return New(ringA, ringB, interval, obs), ringA, ringB
}

func tickerRecord(price float64, mid float64, eventTime time.Time) *record.Record {
	return &record.Record{
		Type:      "ticker",
		ProductID: "BTC-USD",
		Price:     strconv.FormatFloat(price, 'f', -1, 64),
		MidPrice:  mid,
		EventTime: eventTime,
	}
}

func TestStage_TimeGatedEMA(t *testing.T) {
	stage, ringA, ringB := newTestStage(t, 8, 8, 5*time.Second)
	t0 := time.Unix(0, 0)

	r1 := tickerRecord(100.0, 100.0, t0)
	require.True(t, ringA.TryPush(r1))
	stage.drainOnce(context.Background())

	r2 := tickerRecord(200.0, 200.0, t0.Add(6*time.Second))
	require.True(t, ringA.TryPush(r2))
	stage.drainOnce(context.Background())

	out1, ok := ringB.TryPop()
	require.True(t, ok)
	assert.InDelta(t, 100.0, out1.PriceEMA, 1e-8)

	out2, ok := ringB.TryPop()
	require.True(t, ok)
	assert.InDelta(t, 133.33333333, out2.PriceEMA, 1e-8)
}

func TestStage_GateRejection(t *testing.T) {
	stage, ringA, ringB := newTestStage(t, 8, 8, 5*time.Second)
	t0 := time.Unix(0, 0)

	require.True(t, ringA.TryPush(tickerRecord(100.0, 100.0, t0)))
	stage.drainOnce(context.Background())
	require.True(t, ringA.TryPush(tickerRecord(200.0, 200.0, t0.Add(100*time.Millisecond))))
	stage.drainOnce(context.Background())

	_, _ = ringB.TryPop()
	out2, ok := ringB.TryPop()
	require.True(t, ok)
	assert.InDelta(t, 100.0, out2.PriceEMA, 1e-8)
}

func TestStage_RingBOverrunDropsOldest(t *testing.T) {
	stage, ringA, ringB := newTestStage(t, 128, 8, time.Nanosecond)
	t0 := time.Unix(0, 0)

	for i := 0; i < 100; i++ {
		r := tickerRecord(float64(i), float64(i), t0.Add(time.Duration(i)*time.Second))
		require.True(t, ringA.TryPush(r))
	}
	stage.drainOnce(context.Background())

	assert.Equal(t, ringB.Cap(), ringB.Len())
	assert.Equal(t, uint64(100-ringB.Cap()), stage.Drops())

	var got []string
	for {
		r, ok := ringB.TryPop()
		if !ok {
			break
		}
		got = append(got, r.Price)
	}
	assert.Len(t, got, ringB.Cap())
	// Drop-oldest keeps the most recent Cap() records, in order.
	assert.Equal(t, []string{"93", "94", "95", "96", "97", "98", "99"}, got)
}

func TestStage_ParseErrorLeavesEMAUnchangedButRecordFlows(t *testing.T) {
	stage, ringA, ringB := newTestStage(t, 8, 8, 5*time.Second)
	bad := &record.Record{Type: "ticker", ProductID: "BTC-USD", Price: "not-a-number", EventTime: time.Unix(0, 0)}
	require.True(t, ringA.TryPush(bad))
	stage.drainOnce(context.Background())

	out, ok := ringB.TryPop()
	require.True(t, ok)
	assert.Equal(t, 0.0, out.PriceEMA)
}
