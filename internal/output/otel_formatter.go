package output

import (
	"context"

	"threadcatch/internal/attributes"
	"threadcatch/internal/stackcap"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OTELFormatter emits one OpenTelemetry span per catch so captures can
// be correlated with the rest of a trace. It is a pure formatting
// layer: expression evaluation is delegated to the attributes
// evaluator.
type OTELFormatter struct {
	tracer    trace.Tracer
	evaluator *attributes.Evaluator
}

// NewOTELFormatter creates a new OTELFormatter.
func NewOTELFormatter(tracer trace.Tracer, evaluator *attributes.Evaluator) *OTELFormatter {
	return &OTELFormatter{
		tracer:    tracer,
		evaluator: evaluator,
	}
}

// HandleCatch creates and ends the span for one capture.
func (f *OTELFormatter) HandleCatch(name string, snap *stackcap.Snapshot) error {
	_, span := f.tracer.Start(context.Background(), "thread.catch",
		trace.WithAttributes(
			attribute.String("thread.name", name),
			attribute.String("thread.writer", snap.ThreadName),
			attribute.Int("stack.depth", len(snap.Frames)),
			attribute.StringSlice("stack.frames", snap.Frames),
		))
	defer span.End()

	if f.evaluator != nil {
		span.SetAttributes(f.evaluator.Evaluate(attributes.CaptureContext{
			Thread: snap.ThreadName,
			Name:   name,
			Frames: snap.Frames,
			Depth:  len(snap.Frames),
		})...)
	}

	return nil
}
