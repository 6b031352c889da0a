// Package trace wires OpenTelemetry tracing for the interpreter: one span per
// client connection and per pipeline stage of each utterance.
package trace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracerName is the instrumentation scope of every span created here.
const TracerName = "github.com/realtime-ai/counseling-interpreter"

// Exporter names accepted in Config.ExporterType.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

var (
	mu             sync.RWMutex
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
)

// Config selects where spans go.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// ExporterType is "stdout", "otlp" or "none". With "none" spans are
	// still created so that trace ids propagate, but nothing is exported.
	ExporterType string
	// OTLPEndpoint is the gRPC collector address, e.g. "localhost:4317".
	OTLPEndpoint string
	SamplingRate float64
}

// DefaultConfig returns a configuration with exporting disabled.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "counseling-interpreter",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		ExporterType:   ExporterNone,
		OTLPEndpoint:   "localhost:4317",
		SamplingRate:   1.0,
	}
}

// Initialize installs the global tracer provider. It fails if called twice
// without an intervening Shutdown.
func Initialize(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mu.Lock()
	defer mu.Unlock()

	if tracerProvider != nil {
		return errors.New("tracer provider already initialized")
	}

	opts, err := providerOptions(ctx, cfg)
	if err != nil {
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(opts...)
	tracer = tracerProvider.Tracer(TracerName)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing initialized",
		zap.String("exporter", cfg.ExporterType),
		zap.Float64("sampling_rate", cfg.SamplingRate))
	return nil
}

// newResource describes this service on top of the SDK defaults. The semconv
// import must track the schema version of the sdk module or Merge fails.
func newResource(cfg *Config) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
}

func providerOptions(ctx context.Context, cfg *Config) ([]sdktrace.TracerProviderOption, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return opts, nil
}

// newExporter returns nil for ExporterNone.
func newExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case ExporterNone, "":
		return nil, nil
	case ExporterStdout:
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, nil
	case ExporterOTLP:
		exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		))
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}
}

// Shutdown flushes pending spans. It is a no-op when tracing was never
// initialized.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if tracerProvider == nil {
		return nil
	}
	err := tracerProvider.Shutdown(ctx)
	tracerProvider = nil
	tracer = nil
	if err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}

// StartSpan starts a span on the installed tracer, falling back to the
// global provider before Initialize.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	mu.RLock()
	t := tracer
	mu.RUnlock()

	if t == nil {
		t = otel.Tracer(TracerName)
	}
	return t.Start(ctx, spanName, opts...)
}
