package astar

import (
	"container/heap"
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// State is the engine's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Outcome labels recorded on spans, metrics and logs when a run ends.
const (
	OutcomeSucceeded          = "succeeded"
	OutcomeFrontierExhausted  = "frontier_exhausted"
	OutcomeIterationCap       = "iteration_cap"
	OutcomeCancelled          = "cancelled"
	OutcomeInvariantViolation = "invariant_violation"
)

// Engine runs A* over a Grid one expansion at a time.
//
// The engine writes g, h, f and parent directly into the grid's cells and
// keeps the open and closed sets itself. It subscribes to the grid: an edit
// during a run cancels it, and an edit after a finished run discards the
// stale result and returns the engine to Idle.
type Engine struct {
	grid        *Grid
	options     Options
	logger      *slog.Logger
	metrics     *engineMetrics
	tracer      trace.Tracer
	unsubscribe func()

	state   State
	outcome string

	openSet     PriorityQueue
	openItems   []*PriorityQueueItem
	closed      []bool
	closedOrder []int
	path        []int
	inPath      []bool
	current     int
	iterations  int
	sequence    uint64

	runContext context.Context
	span       trace.Span
	startedAt  time.Time
}

// NewEngine creates an idle engine bound to grid. Call Close to detach it.
func NewEngine(grid *Grid, options ...Option) *Engine {
	engineOptions := applyOptions(options)

	metrics, err := newEngineMetrics(engineOptions.MeterProvider)
	if err != nil {
		engineOptions.Logger.Warn("astar metrics disabled", "error", err)
		metrics = noopEngineMetrics()
	}

	engine := &Engine{
		grid:    grid,
		options: engineOptions,
		logger:  engineOptions.Logger,
		metrics: metrics,
		tracer:  engineOptions.TracerProvider.Tracer(instrumentationName),
		current: noParent,
	}
	engine.unsubscribe = grid.Subscribe(engine.onGridChange)
	return engine
}

// Close detaches the engine from grid change notifications.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// Grid returns the grid the engine searches.
func (e *Engine) Grid() *Grid { return e.grid }

// State returns the current lifecycle state.
func (e *Engine) State() State { return e.state }

// Outcome returns the label of the last finished run, empty while idle or running.
func (e *Engine) Outcome() string { return e.outcome }

// Iterations returns how many expansions examined neighbors in this run.
func (e *Engine) Iterations() int { return e.iterations }

// Expanded returns the size of the closed set.
func (e *Engine) Expanded() int { return len(e.closedOrder) }

// IterationCap returns the configured safety bound.
func (e *Engine) IterationCap() int { return e.options.IterationCap }

// Start begins a new run from the grid's start to its goal.
//
// It returns ErrNoOp if a run is already in progress and ErrMissingEndpoint
// if the grid lacks a start or goal. contextObject parents the run's span.
func (e *Engine) Start(contextObject context.Context) error {
	if e.state == StateRunning {
		return ErrNoOp
	}
	if e.grid.start == noParent || e.grid.goal == noParent {
		return ErrMissingEndpoint
	}

	// --- Initialize state ---
	e.grid.resetScores()
	cellCount := e.grid.Len()
	e.openSet = make(PriorityQueue, 0)
	heap.Init(&e.openSet)
	e.openItems = make([]*PriorityQueueItem, cellCount)
	e.closed = make([]bool, cellCount)
	e.closedOrder = make([]int, 0)
	e.path = nil
	e.inPath = nil
	e.current = noParent
	e.iterations = 0
	e.sequence = 0
	e.outcome = ""

	startCell := &e.grid.cells[e.grid.start]
	goalPoint := e.grid.point(e.grid.goal)
	startCell.G = 0
	startCell.H = Manhattan(startCell.Point, goalPoint)
	startCell.F = startCell.H
	e.pushOpen(e.grid.start)

	e.runContext, e.span = e.tracer.Start(contextObject, "astar.run",
		trace.WithAttributes(
			attribute.String("astar.start", startCell.Point.String()),
			attribute.String("astar.goal", goalPoint.String()),
			attribute.Int("astar.cols", e.grid.Cols()),
			attribute.Int("astar.rows", e.grid.Rows()),
			attribute.Int("astar.iteration_cap", e.options.IterationCap),
		))
	e.startedAt = time.Now()
	e.state = StateRunning

	e.logger.Info("astar run started",
		"start", startCell.Point.String(),
		"goal", goalPoint.String(),
		"iteration_cap", e.options.IterationCap)
	return nil
}

// Step performs exactly one expansion and returns the resulting state.
// It returns ErrNoOp without doing anything unless the engine is Running.
func (e *Engine) Step() (State, error) {
	if e.state != StateRunning {
		return e.state, ErrNoOp
	}

	if e.openSet.Len() == 0 {
		e.finish(StateFailed, OutcomeFrontierExhausted)
		return e.state, nil
	}
	e.metrics.recordStep(e.runContext)

	currentItem := heap.Pop(&e.openSet).(*PriorityQueueItem)
	current := currentItem.Cell
	e.openItems[current] = nil
	e.closed[current] = true
	e.closedOrder = append(e.closedOrder, current)
	e.current = current

	// Goal check
	if current == e.grid.goal {
		path, err := reconstructIndices(e.grid, current)
		if err != nil {
			e.logger.Error("astar path reconstruction failed", "error", err)
			e.span.RecordError(err)
			e.finish(StateFailed, OutcomeInvariantViolation)
			return e.state, err
		}
		e.setPath(path)
		e.finish(StateSucceeded, OutcomeSucceeded)
		return e.state, nil
	}

	currentCell := &e.grid.cells[current]
	goalPoint := e.grid.point(e.grid.goal)
	for _, neighborIndex := range currentCell.neighbors {
		neighbor := &e.grid.cells[neighborIndex]
		if neighbor.Obstacle || e.closed[neighborIndex] {
			continue
		}

		tentativeG := currentCell.G + 1
		if item := e.openItems[neighborIndex]; item == nil {
			neighbor.Parent = current
			neighbor.G = tentativeG
			neighbor.H = Manhattan(neighbor.Point, goalPoint)
			neighbor.F = neighbor.G + neighbor.H
			e.pushOpen(neighborIndex)
		} else if tentativeG < neighbor.G {
			neighbor.Parent = current
			neighbor.G = tentativeG
			neighbor.F = neighbor.G + neighbor.H
			item.FCost = neighbor.F
			heap.Fix(&e.openSet, item.IndexInQueue)
		}
	}

	e.logger.Debug("astar step",
		"current", currentCell.Point.String(),
		"g", currentCell.G,
		"f", currentCell.F,
		"open", e.openSet.Len(),
		"closed", len(e.closedOrder))

	e.iterations++
	if e.iterations > e.options.IterationCap {
		e.logger.Warn("astar iteration cap exceeded", "cap", e.options.IterationCap)
		e.finish(StateFailed, OutcomeIterationCap)
	}
	return e.state, nil
}

// RunToCompletion calls Step until the run reaches a terminal state.
// If contextObject is cancelled first, the run is cancelled and the context
// error is returned.
func (e *Engine) RunToCompletion(contextObject context.Context) (State, error) {
	if e.state != StateRunning {
		return e.state, ErrNoOp
	}
	for !e.state.Terminal() {
		if err := contextObject.Err(); err != nil {
			_ = e.Cancel()
			return e.state, err
		}
		if _, err := e.Step(); err != nil {
			return e.state, err
		}
	}
	return e.state, nil
}

// Cancel stops a running search and discards its frontier. It is a no-op
// returning nil when the run already finished, and ErrNoOp when idle.
func (e *Engine) Cancel() error {
	switch {
	case e.state == StateRunning:
		e.finish(StateCancelled, OutcomeCancelled)
		e.discardRun()
		return nil
	case e.state.Terminal():
		return nil
	default:
		return ErrNoOp
	}
}

func (e *Engine) onGridChange(event ChangeEvent) {
	switch {
	case e.state == StateRunning:
		e.logger.Info("grid edited during run, cancelling",
			"change", event.Kind.String(),
			"point", event.Point.String())
		_ = e.Cancel()
	case e.state.Terminal() && e.state != StateCancelled:
		e.state = StateIdle
		e.outcome = ""
	}
	e.discardRun()
}

func (e *Engine) pushOpen(cell int) {
	item := &PriorityQueueItem{
		Cell:     cell,
		FCost:    e.grid.cells[cell].F,
		Sequence: e.sequence,
	}
	e.sequence++
	heap.Push(&e.openSet, item)
	e.openItems[cell] = item
}

func (e *Engine) setPath(path []int) {
	e.path = path
	e.inPath = make([]bool, e.grid.Len())
	for _, index := range path {
		e.inPath[index] = true
	}
}

// discardRun drops the frontier, closed set and path of the last run.
func (e *Engine) discardRun() {
	e.openSet = nil
	e.openItems = nil
	e.closed = nil
	e.closedOrder = nil
	e.path = nil
	e.inPath = nil
	e.current = noParent
}

func (e *Engine) finish(state State, outcome string) {
	e.state = state
	e.outcome = outcome
	elapsed := time.Since(e.startedAt)
	expanded := len(e.closedOrder)

	e.metrics.recordRun(e.runContext, outcome, expanded, elapsed)

	e.span.SetAttributes(
		attribute.String("astar.outcome", outcome),
		attribute.Int("astar.expanded", expanded),
		attribute.Int("astar.iterations", e.iterations),
		attribute.Int("astar.path_cells", len(e.path)),
	)
	if outcome == OutcomeInvariantViolation {
		e.span.SetStatus(codes.Error, outcome)
	}
	e.span.End()

	e.logger.Info("astar run finished",
		"state", state.String(),
		"outcome", outcome,
		"expanded", expanded,
		"iterations", e.iterations,
		"path_cells", len(e.path),
		"elapsed", elapsed)
}
