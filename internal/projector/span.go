package projector

import "go.opentelemetry.io/otel/trace"

// spanCloser abstracts the tiny bit of the OTEL span API the projector
// needs, so Handle can stay span-agnostic when no tracer is configured.
type spanCloser interface {
	End()
}

type noopSpan struct{}

func (noopSpan) End() {}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End() { s.span.End() }
