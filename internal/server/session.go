package server

import (
	"context"
	"sync"
	"time"

	astar "github.com/pdrpinto/gridastar"
)

// Session owns the one grid, engine and driver the host exposes.
//
// Thread Safety: every method takes the session lock, so REST handlers and a
// running animation can interleave. Grid edits made while an animation runs
// cancel the search, which ends the animation after its current step.
type Session struct {
	mu        sync.Mutex
	grid      *astar.Grid
	engine    *astar.Engine
	driver    *astar.Driver
	animating bool
}

// NewSession wraps grid with a fresh engine and driver.
func NewSession(grid *astar.Grid, driverConfig astar.DriverConfig, options ...astar.Option) *Session {
	return &Session{
		grid:   grid,
		engine: astar.NewEngine(grid, options...),
		driver: astar.NewDriver(driverConfig, options...),
	}
}

// Close detaches the engine from the grid.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Close()
}

func (s *Session) Resize(cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.Resize(cols, rows)
}

func (s *Session) SetObstacle(x, y int, value bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.SetObstacle(x, y, value)
}

func (s *Session) ToggleObstacle(x, y int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.ToggleObstacle(x, y)
}

func (s *Session) SetStart(x, y int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.SetStart(x, y)
}

func (s *Session) SetGoal(x, y int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.SetGoal(x, y)
}

// Start begins a run. ctx only parents the run's trace span.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Start(ctx)
}

func (s *Session) Step() (astar.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Step()
}

// RunToCompletion finishes the current run without pacing.
func (s *Session) RunToCompletion(ctx context.Context) (astar.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.RunToCompletion(ctx)
}

func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Cancel()
}

// Snapshot copies the grid and search state for rendering.
func (s *Session) Snapshot() astar.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot()
}

// DriverConfig returns the current pacing.
func (s *Session) DriverConfig() astar.DriverConfig {
	return s.driver.Config()
}

// SetDelay updates pacing; nil fields are left unchanged.
func (s *Session) SetDelay(enabled *bool, delay *time.Duration) astar.DriverConfig {
	if enabled != nil {
		s.driver.SetDelayEnabled(*enabled)
	}
	if delay != nil {
		s.driver.SetDelay(*delay)
	}
	return s.driver.Config()
}

// Animate starts a run if none is in progress and drives it to a terminal
// state, calling onFrame with a snapshot after each step. Only one animation
// runs at a time; a second call returns astar.ErrNoOp.
func (s *Session) Animate(ctx context.Context, onFrame func(astar.Snapshot)) (astar.State, error) {
	s.mu.Lock()
	if s.animating {
		state := s.engine.State()
		s.mu.Unlock()
		return state, astar.ErrNoOp
	}
	if s.engine.State() != astar.StateRunning {
		if err := s.engine.Start(ctx); err != nil {
			state := s.engine.State()
			s.mu.Unlock()
			return state, err
		}
	}
	s.animating = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.animating = false
		s.mu.Unlock()
	}()

	return s.driver.Run(ctx, astar.StepFunc(s.Step), func(astar.State) {
		if onFrame != nil {
			onFrame(s.Snapshot())
		}
	})
}
