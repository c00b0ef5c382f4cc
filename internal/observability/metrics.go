package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	meterScope         = "github.com/localpros/hub/internal/observability"
	defaultServiceName = "localpros-hub"
)

// latencyHistogramBoundaries are Prometheus-style buckets (seconds) for request
// and job execution duration histograms.
var latencyHistogramBoundaries = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 15, 60}

// HubMetrics is the single metrics interface for the hub (HTTP + job engine).
type HubMetrics interface {
	RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration)
	RecordJobCreated(ctx context.Context, kind string)
	RecordJobClaimed(ctx context.Context, kind string)
	RecordJobFinished(ctx context.Context, kind, outcome string, duration time.Duration)
	RecordJobContinuation(ctx context.Context, kind string, attempt int)
	RecordImageFetches(ctx context.Context, downloaded, failed, remaining int)
}

// Job outcome attribute values for job_runs_total.
const (
	JobOutcomeCompleted = "completed"
	JobOutcomeFailed    = "failed"
	JobOutcomeRateLimit = "rate_limited"
)

// MeterProviderShutdown is a metric.MeterProvider that can also be shut down,
// so callers can hand it to instrumentation and still flush it on exit.
type MeterProviderShutdown interface {
	metric.MeterProvider

	Shutdown(ctx context.Context) error
}

// MeterProviderConfig holds configuration for creating the MeterProvider and metrics.
type MeterProviderConfig struct {
	// ServiceName is used in the resource (default: localpros-hub).
	ServiceName string
}

// NewMeterProvider creates a MeterProvider with Prometheus exporter and returns the provider,
// an HTTP handler for /metrics, and HubMetrics that use the provider's Meter.
// Caller must call provider.Shutdown on exit. When metrics are disabled, pass nil for metrics at call sites.
func NewMeterProvider(_ context.Context, cfg MeterProviderConfig) (provider MeterProviderShutdown, metricsHandler http.Handler, metrics HubMetrics, err error) {
	serviceNameVal := cfg.ServiceName
	if serviceNameVal == "" {
		serviceNameVal = defaultServiceName
	}

	// Use a single resource to avoid Schema URL conflicts when merging with resource.Default().
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceNameVal),
	)

	reg := prometheus.NewRegistry()

	exporter, err := prometheusexporter.New(
		prometheusexporter.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "http.server.duration"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "hub_job_run_duration_seconds"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
		),
	)
	provider = mp
	meter := mp.Meter(meterScope)

	metrics, err = newMetricsFromMeter(meter)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create metrics instruments: %w", err)
	}

	metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return provider, metricsHandler, metrics, nil
}

func newMetricsFromMeter(meter metric.Meter) (*hubMetricsImpl, error) {
	requestCount, err := meter.Int64Counter(
		"http.server.request_count",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("request_count: %w", err)
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("http.server.duration: %w", err)
	}

	jobsCreated, err := meter.Int64Counter(
		"hub_jobs_created_total",
		metric.WithDescription("Jobs created per kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("hub_jobs_created_total: %w", err)
	}

	jobsClaimed, err := meter.Int64Counter(
		"hub_jobs_claimed_total",
		metric.WithDescription("Jobs claimed by a runner per kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("hub_jobs_claimed_total: %w", err)
	}

	jobRuns, err := meter.Int64Counter(
		"hub_job_runs_total",
		metric.WithDescription("Job run outcomes (completed, failed, rate_limited)"),
	)
	if err != nil {
		return nil, fmt.Errorf("hub_job_runs_total: %w", err)
	}

	jobRunDuration, err := meter.Float64Histogram(
		"hub_job_run_duration_seconds",
		metric.WithDescription("Job execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("hub_job_run_duration_seconds: %w", err)
	}

	jobContinuations, err := meter.Int64Counter(
		"hub_job_continuations_total",
		metric.WithDescription("Rate-limit continuation jobs scheduled per kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("hub_job_continuations_total: %w", err)
	}

	imageFetches, err := meter.Int64Counter(
		"hub_image_fetches_total",
		metric.WithDescription("Reviewer image fetch results (downloaded, failed, remaining)"),
	)
	if err != nil {
		return nil, fmt.Errorf("hub_image_fetches_total: %w", err)
	}

	return &hubMetricsImpl{
		requestCount:     requestCount,
		requestDuration:  requestDuration,
		jobsCreated:      jobsCreated,
		jobsClaimed:      jobsClaimed,
		jobRuns:          jobRuns,
		jobRunDuration:   jobRunDuration,
		jobContinuations: jobContinuations,
		imageFetches:     imageFetches,
	}, nil
}

type hubMetricsImpl struct {
	requestCount     metric.Int64Counter
	requestDuration  metric.Float64Histogram
	jobsCreated      metric.Int64Counter
	jobsClaimed      metric.Int64Counter
	jobRuns          metric.Int64Counter
	jobRunDuration   metric.Float64Histogram
	jobContinuations metric.Int64Counter
	imageFetches     metric.Int64Counter
}

func (m *hubMetricsImpl) RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration) {
	attrs := attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status_class", statusClass),
	)
	m.requestCount.Add(ctx, 1, metric.WithAttributeSet(attrs))

	durAttrs := attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
	)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(durAttrs))
}

func (m *hubMetricsImpl) RecordJobCreated(ctx context.Context, kind string) {
	m.jobsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *hubMetricsImpl) RecordJobClaimed(ctx context.Context, kind string) {
	m.jobsClaimed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *hubMetricsImpl) RecordJobFinished(ctx context.Context, kind, outcome string, duration time.Duration) {
	attrs := attribute.NewSet(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	m.jobRuns.Add(ctx, 1, metric.WithAttributeSet(attrs))

	durAttrs := attribute.NewSet(
		attribute.String("kind", kind),
	)
	m.jobRunDuration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(durAttrs))
}

func (m *hubMetricsImpl) RecordJobContinuation(ctx context.Context, kind string, attempt int) {
	m.jobContinuations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Int("attempt", attempt),
	))
}

func (m *hubMetricsImpl) RecordImageFetches(ctx context.Context, downloaded, failed, remaining int) {
	m.imageFetches.Add(ctx, int64(downloaded), metric.WithAttributes(attribute.String("result", "downloaded")))
	m.imageFetches.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("result", "failed")))
	m.imageFetches.Add(ctx, int64(remaining), metric.WithAttributes(attribute.String("result", "remaining")))
}
