package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/TheBitDrifter/pen/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Trace exporters understood by NewTracing. ExporterNone disables tracing.
const (
	ExporterNone   = ""
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

const defaultOTLPEndpoint = "localhost:4317"

// TracingConfig selects where tick spans go.
type TracingConfig struct {
	Exporter string
	// Endpoint of the OTLP/gRPC collector.
	Endpoint string
	// SampleRatio is the share of ticks traced; zero traces every tick.
	SampleRatio float64
	// Output receives stdout exporter spans, os.Stdout when nil.
	Output io.Writer
	// Attributes are attached to the trace resource, next to the service name.
	Attributes []attribute.KeyValue
}

// Validate rejects unknown exporters and ratios outside [0, 1].
func (c TracingConfig) Validate() error {
	switch c.Exporter {
	case ExporterNone, ExporterStdout, ExporterOTLP:
	default:
		return fmt.Errorf("unsupported tracing exporter %q", c.Exporter)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("trace sample ratio must be within [0, 1], got %v", c.SampleRatio)
	}
	return nil
}

// Tracing owns the tracer provider handed to the simulation.
type Tracing struct {
	Provider trace.TracerProvider
	shutdown func(context.Context) error
	log      logging.Logger
}

// NewTracing builds a provider for cfg. With tracing disabled the provider is
// a noop and Close does nothing.
func NewTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (*Tracing, error) {
	if log == nil {
		log = logging.Noop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Exporter == ExporterNone {
		return &Tracing{Provider: noop.NewTracerProvider(), log: log}, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		append([]attribute.KeyValue{attribute.String("service.name", "doofus")}, cfg.Attributes...)...,
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	ratio := cfg.SampleRatio
	if ratio == 0 {
		ratio = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(ratio)),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	log.Info(ctx, "tracing ticks",
		logging.String("exporter", cfg.Exporter),
		logging.Float("sample_ratio", ratio),
	)
	return &Tracing{Provider: tp, shutdown: tp.Shutdown, log: log}, nil
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	if cfg.Exporter == ExporterStdout {
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithoutTimestamps())
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOTLPEndpoint
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	))
}

// Close flushes pending spans, giving up after five seconds. Failures are
// logged, not returned: the run has already finished.
func (t *Tracing) Close(ctx context.Context) {
	if t == nil || t.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := t.shutdown(ctx); err != nil {
		t.log.Warn(ctx, "trace flush failed", logging.Err(err))
	}
}
