package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TraceConfig configures the tracer provider, grounded on the teacher's
// internal/observability/tracing.go.
type TraceConfig struct {
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64
}

// Tracer wraps an otel tracer with the spans this service emits.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer builds a Tracer and returns a shutdown func for the provider.
func NewTracer(cfg TraceConfig) (*Tracer, func(context.Context) error) {
	if cfg.SampleRatio <= 0 {
		cfg.SampleRatio = 1.0
	}
	res, _ := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	))
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(provider)
	return &Tracer{tracer: provider.Tracer("nexuscore")}, provider.Shutdown
}

// StartTurn traces a full conversation turn (retrieval + LLM call + tool
// dispatch + subtask spawn).
func (t *Tracer) StartTurn(ctx context.Context, conversationID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "turn.process", trace.WithAttributes(
		attribute.String("conversation.id", conversationID),
	))
}

// StartTaskExecution traces one scheduler-driven task execution.
func (t *Tracer) StartTaskExecution(ctx context.Context, taskID, kind string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "task.execute", trace.WithAttributes(
		attribute.String("task.id", taskID),
		attribute.String("task.kind", kind),
	))
}

// StartToolCall traces a single tool dispatch.
func (t *Tracer) StartToolCall(ctx context.Context, tool string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "tool.dispatch", trace.WithAttributes(attribute.String("tool.name", tool)))
}

// StartRetrievalStage traces one stage of the retrieval pipeline.
func (t *Tracer) StartRetrievalStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "retrieval."+stage)
}

// RecordError marks a span as failed and attaches the error.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// WithSpan runs fn inside a named span, recording duration and error status.
func WithSpan(ctx context.Context, tracer *Tracer, name string, fn func(context.Context, trace.Span) error) error {
	ctx, span := tracer.tracer.Start(ctx, name)
	defer span.End()
	start := time.Now()
	err := fn(ctx, span)
	span.SetAttributes(attribute.Float64("duration_ms", float64(time.Since(start).Milliseconds())))
	if err != nil {
		tracer.RecordError(span, err)
	}
	return err
}
