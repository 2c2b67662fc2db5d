// Package telemetry wraps goa.design/clue/log and OpenTelemetry so the rest
// of the watcher never imports those packages directly. Logging reads
// formatting/debug settings from the context the way clue/log expects
// (log.Context, log.WithFormat/log.WithDebug) — callers that never set one
// up still get safe, uninitialized-no-op behavior.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

// Logger emits structured log lines. All methods are best-effort; none
// return an error because logging must never interrupt the tailing loop.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, err error, keyvals ...any)
}

type clueLogger struct{}

// NewLogger returns a Logger backed by goa.design/clue/log.
func NewLogger() Logger { return clueLogger{} }

func (clueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, fielders(msg, keyvals)...)
}

func (clueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, fielders(msg, keyvals)...)
}

func (clueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fs := fielders(msg, keyvals)
	fs = append(fs, log.KV{K: "severity", V: "warning"})
	log.Warn(ctx, fs...)
}

func (clueLogger) Error(ctx context.Context, msg string, err error, keyvals ...any) {
	log.Error(ctx, err, fielders(msg, keyvals)...)
}

func fielders(msg string, keyvals []any) []log.Fielder {
	fs := make([]log.Fielder, 0, 1+len(keyvals)/2)
	fs = append(fs, log.KV{K: "msg", V: msg})
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, _ := keyvals[i].(string)
		if key == "" {
			continue
		}
		fs = append(fs, log.KV{K: key, V: keyvals[i+1]})
	}
	return fs
}

// Metrics records a counter of emitted activities per type; it records no
// rate-limiter wait metric. Safe to use with no configured MeterProvider — operations become no-ops.
type Metrics struct {
	meter metric.Meter
}

// NewMetrics constructs a Metrics recorder using the global OTEL
// MeterProvider. Configure a real provider via clue.ConfigureOpenTelemetry
// or leave it unconfigured for a safe no-op.
func NewMetrics() *Metrics {
	return &Metrics{meter: otel.Meter("github.com/boatri/linear-agent")}
}

// IncActivity increments the emitted-activity counter, tagged by activity type.
func (m *Metrics) IncActivity(ctx context.Context, activityType string) {
	if m == nil || m.meter == nil {
		return
	}
	counter, err := m.meter.Int64Counter("linear_agent_activities_emitted_total")
	if err != nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("type", activityType)))
}

// Tracer starts spans for journal record processing.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer constructs a Tracer using the global OTEL TracerProvider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer("github.com/boatri/linear-agent")}
}

// StartRecordSpan starts a span for processing one journal record.
func (t *Tracer) StartRecordSpan(ctx context.Context, recordType, sessionID string) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "journal.process_record", trace.WithAttributes(
		attribute.String("record.type", recordType),
		attribute.String("session.id", sessionID),
	))
}
