// Package telemetry wires tracing, metrics and logging. Metrics are
// dual-exported: a Prometheus registry for pull-based scraping and an
// optional OTLP push.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// Global telemetry handles.
var (
	Tracer = otel.Tracer("github.com/frugalcloud/sweeper")
	Meter  = otel.Meter("github.com/frugalcloud/sweeper")

	// PrometheusRegistry backs the /metrics endpoint. InitOTEL replaces
	// it with the registry the OTEL exporter registers into.
	PrometheusRegistry = promclient.NewRegistry()

	RequestsDispatched metric.Int64Counter
	ScansSucceeded     metric.Int64Counter
	ScansFailed        metric.Int64Counter
	FindingsEmitted    metric.Int64Counter
	CostRowsJoined     metric.Int64Counter
	ScanDuration       metric.Float64Histogram
	SnapshotFindings   metric.Int64Gauge
)

// Instruments start against the global no-op meter so callers are safe
// before InitOTEL runs; InitOTEL rebinds them to the real provider.
func init() {
	_ = initInstruments()
}

// Config for OTEL initialization.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTELEndpoint   string
	Insecure       bool
}

// InitOTEL initializes tracing and metrics, returning a combined
// shutdown function.
func InitOTEL(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	cfg = applyConfigDefaults(cfg)

	res, err := createOTELResource(cfg)
	if err != nil {
		return nil, err
	}

	traceShutdown, err := setupTraceProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("failed to setup traces: %w", err)
	}

	metricShutdown, err := setupMetricProvider(ctx, cfg, res)
	if err != nil {
		_ = traceShutdown(ctx)
		return nil, fmt.Errorf("failed to setup metrics: %w", err)
	}

	if err := initInstruments(); err != nil {
		_ = traceShutdown(ctx)
		_ = metricShutdown(ctx)
		return nil, fmt.Errorf("failed to initialize instruments: %w", err)
	}

	return func(ctx context.Context) error {
		var err error
		if e := traceShutdown(ctx); e != nil {
			err = fmt.Errorf("trace shutdown failed: %w", e)
		}
		if e := metricShutdown(ctx); e != nil && err == nil {
			err = fmt.Errorf("metric shutdown failed: %w", e)
		}
		return err
	}, nil
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.OTELEndpoint == "" {
		cfg.OTELEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "sweeper"
	}
	return cfg
}

func createOTELResource(cfg Config) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func setupTraceProvider(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	if cfg.OTELEndpoint == "" {
		provider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		otel.SetTracerProvider(provider)
		otel.SetTextMapPropagator(propagation.TraceContext{})
		Tracer = provider.Tracer("github.com/frugalcloud/sweeper")
		return provider.Shutdown, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTELEndpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithDialOption(
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	Tracer = provider.Tracer("github.com/frugalcloud/sweeper")

	return provider.Shutdown, nil
}

// setupMetricProvider configures dual export: Prometheus pull plus
// optional OTLP push.
func setupMetricProvider(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	registry := promclient.NewRegistry()
	PrometheusRegistry = registry

	prometheusExporter, err := prometheus.New(
		prometheus.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	readers := []sdkmetric.Reader{prometheusExporter}

	if cfg.OTELEndpoint != "" {
		otlpReader, err := createOTLPReader(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric reader: %w", err)
		}
		readers = append(readers, otlpReader)
	}

	providerOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}
	for _, reader := range readers {
		providerOpts = append(providerOpts, sdkmetric.WithReader(reader))
	}

	provider := sdkmetric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(provider)
	Meter = provider.Meter("github.com/frugalcloud/sweeper")

	return provider.Shutdown, nil
}

func createOTLPReader(ctx context.Context, cfg Config) (sdkmetric.Reader, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.OTELEndpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		))
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	return sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(10*time.Second),
	), nil
}

func initInstruments() error {
	var err error

	RequestsDispatched, err = Meter.Int64Counter(
		"sweeper.requests.dispatched.total",
		metric.WithDescription("Scan requests claimed and dispatched"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	ScansSucceeded, err = Meter.Int64Counter(
		"sweeper.scans.succeeded.total",
		metric.WithDescription("Environment scans that replaced their snapshot"),
		metric.WithUnit("{scan}"),
	)
	if err != nil {
		return err
	}

	ScansFailed, err = Meter.Int64Counter(
		"sweeper.scans.failed.total",
		metric.WithDescription("Environment scans abandoned on error"),
		metric.WithUnit("{scan}"),
	)
	if err != nil {
		return err
	}

	FindingsEmitted, err = Meter.Int64Counter(
		"sweeper.findings.emitted.total",
		metric.WithDescription("Findings written to snapshots"),
		metric.WithUnit("{finding}"),
	)
	if err != nil {
		return err
	}

	CostRowsJoined, err = Meter.Int64Counter(
		"sweeper.cost.rows.joined.total",
		metric.WithDescription("Cost export rows loaded into join tables"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return err
	}

	ScanDuration, err = Meter.Float64Histogram(
		"sweeper.scan.duration.seconds",
		metric.WithDescription("Wall time of one environment scan"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	SnapshotFindings, err = Meter.Int64Gauge(
		"sweeper.snapshot.findings",
		metric.WithDescription("Findings in the latest snapshot per scope"),
		metric.WithUnit("{finding}"),
	)
	return err
}
