package astar

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/pdrpinto/gridastar"

// engineMetrics records one set of measurements per finished run.
type engineMetrics struct {
	runsTotal   metric.Int64Counter
	expansions  metric.Int64Histogram
	runDuration metric.Float64Histogram
	stepsTotal  metric.Int64Counter
}

func newEngineMetrics(provider metric.MeterProvider) (*engineMetrics, error) {
	meter := provider.Meter(instrumentationName)

	runsTotal, err := meter.Int64Counter(
		"astar_runs_total",
		metric.WithDescription("Search runs that reached a terminal state"),
	)
	if err != nil {
		return nil, err
	}

	expansions, err := meter.Int64Histogram(
		"astar_run_expansions",
		metric.WithDescription("Cells moved to the closed set per run"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"astar_run_duration_seconds",
		metric.WithDescription("Wall time from start to terminal state"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stepsTotal, err := meter.Int64Counter(
		"astar_steps_total",
		metric.WithDescription("Step calls that performed an expansion"),
	)
	if err != nil {
		return nil, err
	}

	return &engineMetrics{
		runsTotal:   runsTotal,
		expansions:  expansions,
		runDuration: runDuration,
		stepsTotal:  stepsTotal,
	}, nil
}

// noopEngineMetrics is used when instrument creation fails.
func noopEngineMetrics() *engineMetrics {
	metrics, _ := newEngineMetrics(noop.NewMeterProvider())
	return metrics
}

func (m *engineMetrics) recordStep(ctx context.Context) {
	m.stepsTotal.Add(ctx, 1)
}

func (m *engineMetrics) recordRun(ctx context.Context, outcome string, expanded int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.runsTotal.Add(ctx, 1, attrs)
	m.expansions.Record(ctx, int64(expanded), attrs)
	m.runDuration.Record(ctx, elapsed.Seconds(), attrs)
}
