// Package telemetry implements orchestrator.TelemetryRecorder on top of
// OpenTelemetry metrics, exported in Prometheus format.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/lokutor-ai/converso/pkg/orchestrator"
)

// Metrics implements orchestrator.TelemetryRecorder. It never returns
// errors to callers: a failed instrument write is dropped, since telemetry
// must never affect conversation behavior.
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	sessionsActive  metric.Int64UpDownCounter
	framesProcessed metric.Int64Counter
	frameDuration   metric.Float64Histogram
	interruptions   metric.Int64Counter
	turnLatency     metric.Float64Histogram
}

// NewMetrics builds the instrument set and a Prometheus registry to serve
// them from.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("telemetry: new exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("github.com/lokutor-ai/converso/pkg/orchestrator")

	m := &Metrics{registry: registry, provider: provider}

	if m.sessionsActive, err = meter.Int64UpDownCounter("converso_sessions_active",
		metric.WithDescription("Number of sessions currently tracked by the registry")); err != nil {
		return nil, err
	}
	if m.framesProcessed, err = meter.Int64Counter("converso_frames_processed_total",
		metric.WithDescription("Total audio frames processed")); err != nil {
		return nil, err
	}
	if m.frameDuration, err = meter.Float64Histogram("converso_frame_processing_ms",
		metric.WithDescription("Per-frame processing latency in milliseconds")); err != nil {
		return nil, err
	}
	if m.interruptions, err = meter.Int64Counter("converso_interruptions_total",
		metric.WithDescription("Total user barge-ins that cancelled an in-flight reply")); err != nil {
		return nil, err
	}
	if m.turnLatency, err = meter.Float64Histogram("converso_turn_latency_ms",
		metric.WithDescription("End-to-end latency from user silence to completed reply")); err != nil {
		return nil, err
	}

	return m, nil
}

// Handler serves the current metric snapshot in the Prometheus exposition
// format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and releases the underlying meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

func (m *Metrics) SessionStarted(sessionID string) {
	m.sessionsActive.Add(context.Background(), 1)
}

func (m *Metrics) SessionEnded(sessionID string) {
	m.sessionsActive.Add(context.Background(), -1)
}

func (m *Metrics) FrameProcessed(sessionID string, durationMS int64) {
	ctx := context.Background()
	m.framesProcessed.Add(ctx, 1)
	m.frameDuration.Record(ctx, float64(durationMS))
}

func (m *Metrics) Interrupted(sessionID string) {
	m.interruptions.Add(context.Background(), 1)
}

func (m *Metrics) TurnCompleted(sessionID string, latency orchestrator.LatencyBreakdown) {
	if total := latency.TotalMS(); total > 0 {
		m.turnLatency.Record(context.Background(), float64(total))
	}
}
