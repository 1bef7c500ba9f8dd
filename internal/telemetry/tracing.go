package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracing attribute keys used across the egress enforce path and the
// action gate's wait, namespaced under "crabpot." the same way the pack's
// telemetry package namespaces its own attributes.
const (
	AttrHost     = "crabpot.egress.host"
	AttrPort     = "crabpot.egress.port"
	AttrDecision = "crabpot.egress.decision"
	AttrDomain   = "crabpot.gate.domain"
	AttrApproved = "crabpot.gate.approved"
)

// Tracer wraps an otel tracer plus the provider needed to flush/shut it
// down. Enabled() reports false for a no-op tracer so callers can skip the
// (tiny) cost of span creation entirely when tracing is off.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// NewTracer builds a Tracer. exporter is "stdout" or "none"/"" (tracing
// disabled); CrabPot does not ship an OTLP exporter dependency, so "otlp"
// is not a supported value here.
func NewTracer(exporter string) (*Tracer, error) {
	switch exporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		otel.SetTracerProvider(tp)
		return &Tracer{tracer: tp.Tracer("crabpot"), provider: tp}, nil
	default:
		return &Tracer{tracer: otel.Tracer("crabpot")}, nil
	}
}

// Enabled reports whether spans started by this Tracer are actually
// exported anywhere.
func (t *Tracer) Enabled() bool {
	return t.provider != nil
}

// Shutdown flushes and stops the trace provider, if one is running.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// StartEnforceSpan starts a span around one egress admission check.
func (t *Tracer) StartEnforceSpan(ctx context.Context, host string, port int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "egress.enforce",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(AttrHost, host),
			attribute.Int(AttrPort, port),
		),
	)
}

// EndEnforceSpan records the resulting decision and closes the span.
func (t *Tracer) EndEnforceSpan(span trace.Span, decision string) {
	span.SetAttributes(attribute.String(AttrDecision, decision))
	span.End()
}

// StartGateWaitSpan starts a span around an action gate's wait for human
// approval of domain.
func (t *Tracer) StartGateWaitSpan(ctx context.Context, domain string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "actiongate.wait",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(AttrDomain, domain)),
	)
}

// EndGateWaitSpan records the human's decision and closes the span.
func (t *Tracer) EndGateWaitSpan(span trace.Span, approved bool) {
	span.SetAttributes(attribute.Bool(AttrApproved, approved))
	span.End()
}
