package trace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentRecognitionStart creates a span for opening a recognition stream.
func InstrumentRecognitionStart(ctx context.Context, provider, language string) (context.Context, trace.Span) {
	return StartSpan(ctx, "stt.stream.open",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrSTTProvider, provider),
			attribute.String(AttrSTTLanguage, language),
		),
	)
}

// InstrumentTranslation creates a span covering one streamed translation.
func InstrumentTranslation(ctx context.Context, provider, utteranceID, direction, text string) (context.Context, trace.Span) {
	attrs := UtteranceAttrs(utteranceID, direction)
	attrs = append(attrs,
		attribute.String(AttrTranslationProvider, provider),
		attribute.Int(AttrTextLength, len(text)),
	)
	return StartSpan(ctx, "translation.stream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// InstrumentSynthesis creates a span for one synthesis request.
func InstrumentSynthesis(ctx context.Context, provider, voice, utteranceID, text string) (context.Context, trace.Span) {
	return StartSpan(ctx, "tts.synthesize",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrTTSProvider, provider),
			attribute.String(AttrTTSVoice, voice),
			attribute.String(AttrUtteranceID, utteranceID),
			attribute.Int(AttrTextLength, len(text)),
		),
	)
}
