package astar

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultIterationCap bounds the number of expansions in one run.
// It is a safety stop for runaway visualizations, not a search criterion.
const DefaultIterationCap = 5000

// ErrNoPath is returned by Search when the run ends without reaching the goal.
var ErrNoPath = errors.New("no path found")

// Manhattan is |x1-x2| + |y1-y2|, admissible and consistent on a
// 4-connected unit-cost grid.
func Manhattan(from Point, to Point) float64 {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return float64(dx + dy)
}

// Result contains the outcome of a search
type Result struct {
	Path          []Point
	TotalCost     float64
	ExpandedNodes int
	Found         bool
	State         State
}

// Options defines parameters for the engine and driver.
type Options struct {
	// IterationCap is the expansion count after which a run is forced to Failed.
	IterationCap   int
	Logger         *slog.Logger
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Option is a function that modifies Options.
type Option func(*Options)

// WithIterationCap overrides DefaultIterationCap. Values below 1 are ignored.
func WithIterationCap(iterationCap int) Option {
	return func(options *Options) {
		if iterationCap >= 1 {
			options.IterationCap = iterationCap
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(options *Options) { options.Logger = logger }
}

// WithMeterProvider sets where run metrics are recorded. Defaults to the
// global otel provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(options *Options) { options.MeterProvider = provider }
}

// WithTracerProvider sets where run spans are recorded. Defaults to the
// global otel provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(options *Options) { options.TracerProvider = provider }
}

func applyOptions(options []Option) Options {
	searchOptions := Options{
		IterationCap: DefaultIterationCap,
	}
	for _, option := range options {
		option(&searchOptions)
	}
	if searchOptions.Logger == nil {
		searchOptions.Logger = slog.Default()
	}
	if searchOptions.MeterProvider == nil {
		searchOptions.MeterProvider = otel.GetMeterProvider()
	}
	if searchOptions.TracerProvider == nil {
		searchOptions.TracerProvider = otel.GetTracerProvider()
	}
	return searchOptions
}

// Search runs a fresh engine over grid to completion.
//
// The grid's search fields hold the finished run afterwards. A run that ends
// without a path returns the partial Result together with ErrNoPath.
func Search(contextObject context.Context, grid *Grid, options ...Option) (Result, error) {
	engine := NewEngine(grid, options...)
	defer engine.Close()

	if err := engine.Start(contextObject); err != nil {
		return Result{}, err
	}
	state, err := engine.RunToCompletion(contextObject)
	if err != nil {
		return Result{State: state, ExpandedNodes: engine.Expanded()}, err
	}

	result := Result{
		ExpandedNodes: engine.Expanded(),
		State:         state,
	}
	if state != StateSucceeded {
		return result, ErrNoPath
	}
	result.Found = true
	result.Path = engine.Path()
	goal, _ := grid.Goal()
	if cell, ok := grid.CellAt(goal.X, goal.Y); ok {
		result.TotalCost = cell.G
	}
	return result, nil
}
