package trace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentConnection starts a span that lives as long as one client
// connection. The caller ends it when the connection closes.
func InstrumentConnection(ctx context.Context, connID, remoteAddr string) (context.Context, trace.Span) {
	return StartSpan(ctx, "ws.connection",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(ConnectionAttrs(connID, remoteAddr)...),
	)
}

// InstrumentSessionJoin creates a span for one session:join request
func InstrumentSessionJoin(ctx context.Context, connID, sessionID, role string) (context.Context, trace.Span) {
	attrs := SessionAttrs(sessionID, role)
	attrs = append(attrs, attribute.String(AttrConnectionID, connID))
	return StartSpan(ctx, "session.join", trace.WithAttributes(attrs...))
}
