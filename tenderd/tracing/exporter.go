package tracing

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/xerrors"
)

const (
	ExporterNone = ""
	ExporterGRPC = "grpc"
	ExporterHTTP = "http"
)

// TracerOpts selects where spans go. The exporter endpoint comes from the
// standard OTEL_EXPORTER_OTLP_* environment variables.
type TracerOpts struct {
	Exporter string
	// SampleRatio is the fraction of root spans recorded. Zero records
	// every span.
	SampleRatio float64
}

type OtelTracerProvider interface {
	trace.TracerProvider
	Shutdown(context.Context) error
	ForceFlush(context.Context) error
}

// TracerProvider registers a global provider for service. The returned
// closer flushes pending spans and must be called on shutdown.
func TracerProvider(ctx context.Context, service string, opts TracerOpts) (OtelTracerProvider, func(context.Context) error, error) {
	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(service),
		)),
	}
	if opts.SampleRatio > 0 {
		providerOpts = append(providerOpts, sdktrace.WithSampler(
			sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio)),
		))
	}

	var exporter *otlptrace.Exporter
	switch opts.Exporter {
	case ExporterNone:
	case ExporterGRPC:
		exp, err := otlptrace.New(ctx, otlptracegrpc.NewClient(otlptracegrpc.WithInsecure()))
		if err != nil {
			return nil, nil, xerrors.Errorf("create otlp grpc exporter: %w", err)
		}
		exporter = exp
	case ExporterHTTP:
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithInsecure())
		if err != nil {
			return nil, nil, xerrors.Errorf("create otlp http exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, nil, xerrors.Errorf("unknown trace exporter %q", opts.Exporter)
	}
	if exporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(provider)
	// Export failures are not actionable at runtime.
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(error) {}))
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider, func(ctx context.Context) error {
		var merr error
		if err := provider.ForceFlush(ctx); err != nil {
			merr = multierror.Append(merr, xerrors.Errorf("flush spans: %w", err))
		}
		if exporter != nil {
			if err := exporter.Shutdown(ctx); err != nil {
				merr = multierror.Append(merr, xerrors.Errorf("shut down exporter: %w", err))
			}
		}
		if err := provider.Shutdown(ctx); err != nil {
			merr = multierror.Append(merr, xerrors.Errorf("shut down provider: %w", err))
		}
		return merr
	}, nil
}
