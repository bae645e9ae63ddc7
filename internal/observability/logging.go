package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/marketpulse/tickerpipe/internal/config"
	"go.opentelemetry.io/otel/trace"
)

// LogLevel is the severity of one entry. The pipeline only ever emits
// three: Info for orchestrator lifecycle events, Warn for recoverable
// anomalies (ring drops, a drain timeout), Error for a local failure a
// stage absorbed (decode/parse/write error, a fatal transport read).
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// rank orders levels for the minimum-level filter; higher is more severe.
var rank = map[LogLevel]int{
	LogLevelInfo:  0,
	LogLevelWarn:  1,
	LogLevelError: 2,
}

// stream returns the writer a level is destined for. Info is routine
// progress and goes to stdout; Warn and Error are steady-state diagnostics
// and go to stderr, per the pipeline's error-handling contract.
func (l LogLevel) stream() *os.File {
	if l == LogLevelInfo {
		return os.Stdout
	}
	return os.Stderr
}

// entry is one structured log line.
type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Service   string                 `json:"service"`
	Message   string                 `json:"message"`
	TraceID   string                 `json:"trace_id,omitempty"`
	SpanID    string                 `json:"span_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Logger emits structured log lines for orchestrator-level lifecycle
// events, tagged with an OpenTelemetry trace/span ID when ctx carries an
// active span. Per-stage events (ring drops, local decode/parse/write
// errors) go through StageLogger, which wraps a Logger with a fixed stage
// tag instead of duplicating this type per call site.
type Logger struct {
	serviceName string
	minLevel    LogLevel
	jsonFormat  bool
}

// NewLogger builds a Logger from observability configuration. An
// unrecognized level falls back to Info.
func NewLogger(cfg config.ObservabilityConfig) *Logger {
	level := LogLevel(cfg.LogLevel)
	if _, ok := rank[level]; !ok {
		level = LogLevelInfo
	}
	return &Logger{
		serviceName: cfg.ServiceName,
		minLevel:    level,
		jsonFormat:  cfg.LogFormat == "json",
	}
}

// Info logs a routine lifecycle event.
func (l *Logger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.write(ctx, LogLevelInfo, message, nil, fields)
}

// Warn logs a recoverable anomaly.
func (l *Logger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.write(ctx, LogLevelWarn, message, nil, fields)
}

// Error logs a local failure that was absorbed without terminating its stage.
func (l *Logger) Error(ctx context.Context, message string, err error, fields ...map[string]interface{}) {
	var f map[string]interface{}
	if len(fields) > 0 {
		f = fields[0]
	}
	l.write(ctx, LogLevelError, message, err, f)
}

func (l *Logger) write(ctx context.Context, level LogLevel, message string, err error, fields map[string]interface{}) {
	if rank[level] < rank[l.minLevel] {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Service:   l.serviceName,
		Message:   message,
		Fields:    fields,
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		e.TraceID = span.SpanContext().TraceID().String()
		e.SpanID = span.SpanContext().SpanID().String()
	}
	if err != nil {
		e.Error = err.Error()
	}

	out := level.stream()
	if l.jsonFormat {
		if data, marshalErr := json.Marshal(e); marshalErr == nil {
			fmt.Fprintln(out, string(data))
		}
		return
	}
	fmt.Fprintf(out, "[%s] %s %s: %s\n", e.Timestamp, e.Level, e.Service, e.Message)
}

// StageLogger logs pipeline-stage events: ring drops and local decode,
// parse, or write errors. It is the ingestion-domain replacement for a
// request-scoped logger that would otherwise need one wrapper type per
// cross-cutting concern — here there is exactly one event vocabulary per
// stage (drop, local error), so a single small type covers every stage.
type StageLogger struct {
	logger *Logger
	stage  string
}

// NewStageLogger creates a logger that tags every entry with its owning stage.
func NewStageLogger(logger *Logger, stage string) *StageLogger {
	return &StageLogger{logger: logger, stage: stage}
}

// Drop logs a record drop from a ring overrun, with the policy that resolved it.
func (sl *StageLogger) Drop(ctx context.Context, policy string, total uint64) {
	sl.logger.Warn(ctx, fmt.Sprintf("%s: record dropped (%s)", sl.stage, policy), map[string]interface{}{
		"stage":       sl.stage,
		"drop_policy": policy,
		"total_drops": total,
	})
}

// LocalError logs a decode/parse/write error absorbed locally (never fatal).
func (sl *StageLogger) LocalError(ctx context.Context, message string, err error) {
	sl.logger.Error(ctx, fmt.Sprintf("%s: %s", sl.stage, message), err, map[string]interface{}{
		"stage": sl.stage,
	})
}
