// Package metrics records transcription and cleanup counters through the
// OpenTelemetry metric API.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName    = "audioscribe"
	serviceVersion = "1.0.0"

	StatusOK    = "ok"
	StatusError = "error"
)

// Config controls the OTLP exporter. An empty Endpoint disables export.
type Config struct {
	Endpoint string
	Insecure bool
}

// Metrics holds the instruments used by the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	transcriptions metric.Int64Counter
	duration       metric.Float64Histogram
	swept          metric.Int64Counter
}

// New creates the instruments on meter
func New(meter metric.Meter) (*Metrics, error) {
	transcriptions, err := meter.Int64Counter(
		"audioscribe_transcriptions_total",
		metric.WithDescription("Transcribed files by outcome"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transcriptions counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"audioscribe_transcription_duration_seconds",
		metric.WithDescription("Time spent converting and transcribing one file"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	swept, err := meter.Int64Counter(
		"audioscribe_temp_files_swept_total",
		metric.WithDescription("Stale temp files removed by the sweeper"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating swept counter: %w", err)
	}

	return &Metrics{
		transcriptions: transcriptions,
		duration:       duration,
		swept:          swept,
	}, nil
}

// RecordTranscription counts one finished file
func (m *Metrics) RecordTranscription(ctx context.Context, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(attribute.String("status", status))
	m.transcriptions.Add(ctx, 1, opt)
	m.duration.Record(ctx, elapsed.Seconds(), opt)
}

// RecordSwept counts files removed by a sweep
func (m *Metrics) RecordSwept(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(ctx, int64(n))
}

// Setup installs the global meter provider and returns the instruments
// plus a shutdown func that flushes pending data. Without an endpoint the
// global (no-op) provider is left in place.
func Setup(ctx context.Context, cfg Config, logger *zap.Logger) (*Metrics, func(context.Context) error, error) {
	noShutdown := func(context.Context) error { return nil }

	if cfg.Endpoint == "" {
		m, err := New(otel.Meter(serviceName))
		return m, noShutdown, err
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, noShutdown, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, noShutdown, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	logger.Info("OTLP metrics exporter enabled", zap.String("endpoint", cfg.Endpoint))

	m, err := New(provider.Meter(serviceName))
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, noShutdown, err
	}
	return m, provider.Shutdown, nil
}
