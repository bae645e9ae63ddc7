package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsProvider exposes the pipeline's Prometheus counters, gauges, and
// histograms. Unlike the teacher's MetricsProvider this talks to
// client_golang directly rather than through an OpenTelemetry meter: a
// single-process ingestion pipeline has no distributed metrics backend to
// hand readings to, so the OTel meter/exporter indirection buys nothing here
// (see DESIGN.md).
type MetricsProvider struct {
	registry *prometheus.Registry

	IngressDrops     prometheus.Counter
	PersistenceDrops prometheus.Counter
	DecodeErrors     prometheus.Counter
	ParseErrors      prometheus.Counter
	WriteErrors      prometheus.Counter
	QueueDepth       *prometheus.GaugeVec
	EMAUpdateLatency prometheus.Histogram
	RecordsPersisted prometheus.Counter
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	ServiceName string
	Namespace   string
	Addr        string
	Port        int
	Enabled     bool
}

// NewMetricsProvider creates a new metrics provider registered on its own registry.
func NewMetricsProvider(cfg MetricsConfig) (*MetricsProvider, error) {
	if !cfg.Enabled {
		return &MetricsProvider{}, nil
	}

	registry := prometheus.NewRegistry()
	ns := cfg.Namespace
	if ns == "" {
		ns = "tickerpipe"
	}

	mp := &MetricsProvider{
		registry: registry,
		IngressDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "ingress_drops_total",
			Help: "Records dropped by Ring-A's drop-newest overrun policy.",
		}),
		PersistenceDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "persistence_drops_total",
			Help: "Records evicted from Ring-B by the drop-oldest overrun policy.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "ingress_decode_errors_total",
			Help: "Frames rejected because they failed to decode or were not a ticker event.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "compute_parse_errors_total",
			Help: "Records whose trade price failed to parse; EMA left unchanged.",
		}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "persistence_write_errors_total",
			Help: "Mid-stream write failures to the CSV log.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "stage_queue_depth",
			Help: "Approximate occupancy of a hand-off ring.",
		}, []string{"ring"}),
		EMAUpdateLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "ema_update_latency_seconds",
			Help:    "Wall-clock time spent updating both EMAs for one record.",
			Buckets: prometheus.ExponentialBuckets(1e-7, 4, 10),
		}),
		RecordsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "records_persisted_total",
			Help: "Records successfully appended to the CSV log.",
		}),
	}

	for _, c := range []prometheus.Collector{
		mp.IngressDrops, mp.PersistenceDrops, mp.DecodeErrors, mp.ParseErrors,
		mp.WriteErrors, mp.QueueDepth, mp.EMAUpdateLatency, mp.RecordsPersisted,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return mp, nil
}

// IncIngressDrops counts one Ring-A drop-newest eviction.
func (mp *MetricsProvider) IncIngressDrops() {
	if mp.IngressDrops != nil {
		mp.IngressDrops.Inc()
	}
}

// IncPersistenceDrops counts one Ring-B drop-oldest eviction.
func (mp *MetricsProvider) IncPersistenceDrops() {
	if mp.PersistenceDrops != nil {
		mp.PersistenceDrops.Inc()
	}
}

// IncDecodeErrors counts one rejected (malformed or non-ticker) frame.
func (mp *MetricsProvider) IncDecodeErrors() {
	if mp.DecodeErrors != nil {
		mp.DecodeErrors.Inc()
	}
}

// IncParseErrors counts one record whose trade price failed to parse.
func (mp *MetricsProvider) IncParseErrors() {
	if mp.ParseErrors != nil {
		mp.ParseErrors.Inc()
	}
}

// IncWriteErrors counts one mid-stream CSV write failure.
func (mp *MetricsProvider) IncWriteErrors() {
	if mp.WriteErrors != nil {
		mp.WriteErrors.Inc()
	}
}

// IncRecordsPersisted counts one record successfully appended to the log.
func (mp *MetricsProvider) IncRecordsPersisted() {
	if mp.RecordsPersisted != nil {
		mp.RecordsPersisted.Inc()
	}
}

// ObserveEMAUpdate records the latency of one Compute-stage EMA update pass.
func (mp *MetricsProvider) ObserveEMAUpdate(_ context.Context, d time.Duration) {
	if mp.EMAUpdateLatency == nil {
		return
	}
	mp.EMAUpdateLatency.Observe(d.Seconds())
}

// SetQueueDepth records the current occupancy of a named ring.
func (mp *MetricsProvider) SetQueueDepth(ring string, depth int) {
	if mp.QueueDepth == nil {
		return
	}
	mp.QueueDepth.WithLabelValues(ring).Set(float64(depth))
}

// StartMetricsServer starts the Prometheus metrics HTTP server. It blocks;
// callers run it in its own goroutine.
func (mp *MetricsProvider) StartMetricsServer(addr string, port int) error {
	if mp.registry == nil {
		return fmt.Errorf("metrics not enabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(mp.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", addr, port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server.ListenAndServe()
}
