// Package telemetry wires OpenTelemetry tracing for the HTTP services.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

type Config struct {
	ServiceName string
	Exporter    string
	Endpoint    string
	Insecure    bool
	SampleRatio float64
	// Writer receives stdout spans; os.Stdout when nil.
	Writer io.Writer
}

// ConfigFromEnv reads the standard OTEL_* variables. An OTLP endpoint selects
// the OTLP exporter unless OTEL_TRACES_EXPORTER says otherwise.
func ConfigFromEnv(serviceName string) Config {
	cfg := Config{
		ServiceName: serviceName,
		Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:    os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") != "false",
		SampleRatio: 1,
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		cfg.ServiceName = name
	}

	cfg.Exporter = strings.ToLower(os.Getenv("OTEL_TRACES_EXPORTER"))
	if cfg.Exporter == "" {
		cfg.Exporter = ExporterNone
		if cfg.Endpoint != "" {
			cfg.Exporter = ExporterOTLP
		}
	}
	if os.Getenv("OTEL_SDK_DISABLED") == "true" {
		cfg.Exporter = ExporterNone
	}

	if arg := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); arg != "" {
		ratio, err := strconv.ParseFloat(arg, 64)
		if err != nil || ratio < 0 || ratio > 1 {
			log.Warnf("ignoring OTEL_TRACES_SAMPLER_ARG=%q", arg)
		} else {
			cfg.SampleRatio = ratio
		}
	}
	return cfg
}

// Setup installs a global tracer provider and propagator. The returned func
// flushes pending spans and must be called on shutdown.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("deployment.environment", environment()),
	)

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}

	switch cfg.Exporter {
	case ExporterNone, "":
	case ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithSyncer(exp))
	case ExporterOTLP:
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	log.Infof("tracing: exporter=%s service=%s", cfg.Exporter, cfg.ServiceName)
	return tp.Shutdown, nil
}

// Middleware traces every request under the given operation name. Call it
// after Setup so it picks up the installed provider.
func Middleware(operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, operation,
			otelhttp.WithSpanNameFormatter(func(op string, r *http.Request) string {
				return op + " " + r.Method
			}),
		)
	}
}

func environment() string {
	if env := os.Getenv("DEPLOYMENT_ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}
