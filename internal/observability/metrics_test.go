package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsProvider_CountersIncrement(t *testing.T) {
	mp, err := NewMetricsProvider(MetricsConfig{Enabled: true})
	require.NoError(t, err)

	mp.IngressDrops.Add(4)
	require.InDelta(t, 4, testutil.ToFloat64(mp.IngressDrops), 0)

	mp.SetQueueDepth("a", 17)
	require.InDelta(t, 17, testutil.ToFloat64(mp.QueueDepth.WithLabelValues("a")), 0)
}

func TestMetricsProvider_Disabled(t *testing.T) {
	mp, err := NewMetricsProvider(MetricsConfig{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, mp.IngressDrops)

	// No-op without panicking.
	mp.SetQueueDepth("b", 3)
}
