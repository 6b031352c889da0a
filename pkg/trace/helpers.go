package trace

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var attributeCancelled = attribute.Bool("cancelled", true)

// RecordError marks span as failed. Cancellation is tagged on the span
// instead of being reported as an error.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attributeCancelled)
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
