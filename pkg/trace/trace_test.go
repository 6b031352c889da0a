package trace

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func attrMap(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestInitializeAndShutdown(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Initialize(ctx, DefaultConfig(), nil))
	t.Cleanup(func() { _ = Shutdown(ctx) })

	err := Initialize(ctx, DefaultConfig(), nil)
	assert.Error(t, err, "second initialization must fail")

	spanCtx, span := StartSpan(ctx, "test.span")
	assert.True(t, oteltrace.SpanContextFromContext(spanCtx).IsValid())
	span.End()

	require.NoError(t, Shutdown(ctx))
	assert.NoError(t, Shutdown(ctx), "shutdown is idempotent")
}

func TestNewResourceMatchesSDKSchema(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment = "staging"

	res, err := newResource(cfg)
	require.NoError(t, err)
	assert.Equal(t, resource.Default().SchemaURL(), res.SchemaURL())

	attrs := make(map[attribute.Key]string)
	for _, kv := range res.Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "counseling-interpreter", attrs["service.name"])
	assert.Equal(t, "1.0.0", attrs["service.version"])
	assert.Equal(t, "staging", attrs["deployment.environment"])
}

func TestInitializeRejectsUnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExporterType = "jaeger"

	err := Initialize(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported exporter type")
}

func TestInstrumentSynthesis(t *testing.T) {
	recorder := recordSpans(t)

	_, span := InstrumentSynthesis(context.Background(), "azure", "zh-TW-HsiaoChenNeural", "utt-1", "你好")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "tts.synthesize", spans[0].Name())

	attrs := attrMap(spans[0])
	assert.Equal(t, "azure", attrs[AttrTTSProvider].AsString())
	assert.Equal(t, "zh-TW-HsiaoChenNeural", attrs[AttrTTSVoice].AsString())
	assert.Equal(t, "utt-1", attrs[AttrUtteranceID].AsString())
	assert.Equal(t, int64(len("你好")), attrs[AttrTextLength].AsInt64())
}

func TestInstrumentTranslation(t *testing.T) {
	recorder := recordSpans(t)

	_, span := InstrumentTranslation(context.Background(), "openai", "utt-2", "en-to-zh", "hello")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := attrMap(spans[0])
	assert.Equal(t, "openai", attrs[AttrTranslationProvider].AsString())
	assert.Equal(t, "en-to-zh", attrs[AttrDirection].AsString())
}

func TestRecordError(t *testing.T) {
	recorder := recordSpans(t)

	_, failed := InstrumentConnection(context.Background(), "conn-1", "127.0.0.1:5000")
	RecordError(failed, errors.New("reset by peer"))
	failed.End()

	_, cancelled := InstrumentSessionJoin(context.Background(), "conn-1", "room-1", "student")
	RecordError(cancelled, fmt.Errorf("join: %w", context.Canceled))
	cancelled.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "ws.connection", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "reset by peer", spans[0].Status().Description)
	assert.Equal(t, "127.0.0.1:5000", attrMap(spans[0])[AttrRemoteAddr].AsString())

	assert.Equal(t, "session.join", spans[1].Name())
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	attrs := attrMap(spans[1])
	assert.True(t, attrs["cancelled"].AsBool())
	assert.Equal(t, "room-1", attrs[AttrSessionID].AsString())
	assert.Equal(t, "conn-1", attrs[AttrConnectionID].AsString())
}
