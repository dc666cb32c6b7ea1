package astar

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine builds a grid with the given endpoints and obstacles and an
// engine bound to it.
func newTestEngine(t *testing.T, cols, rows int, start, goal Point, obstacles []Point, options ...Option) (*Grid, *Engine) {
	t.Helper()
	grid := newTestGrid(t, cols, rows)
	for _, p := range obstacles {
		require.True(t, grid.SetObstacle(p.X, p.Y, true))
	}
	require.True(t, grid.SetStart(start.X, start.Y))
	require.True(t, grid.SetGoal(goal.X, goal.Y))

	options = append([]Option{WithLogger(quietLogger())}, options...)
	engine := NewEngine(grid, options...)
	t.Cleanup(engine.Close)
	return grid, engine
}

func TestEngine_OpenGridPathMatchesManhattan(t *testing.T) {
	tests := []struct {
		name        string
		cols, rows  int
		start, goal Point
	}{
		{"corner to corner", 5, 5, Point{0, 0}, Point{4, 4}},
		{"reverse", 5, 5, Point{4, 4}, Point{0, 0}},
		{"same row", 7, 3, Point{0, 1}, Point{6, 1}},
		{"adjacent", 2, 2, Point{0, 0}, Point{1, 0}},
		{"tall", 3, 9, Point{2, 0}, Point{0, 8}},
		{"wide", 12, 4, Point{11, 3}, Point{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, engine := newTestEngine(t, tt.cols, tt.rows, tt.start, tt.goal, nil)
			require.NoError(t, engine.Start(context.Background()))

			state, err := engine.RunToCompletion(context.Background())
			require.NoError(t, err)
			assert.Equal(t, StateSucceeded, state)

			path := engine.Path()
			require.NotEmpty(t, path)
			assert.Equal(t, tt.start, path[0])
			assert.Equal(t, tt.goal, path[len(path)-1])
			assert.Equal(t, int(Manhattan(tt.start, tt.goal)), len(path)-1)
			assertOrthogonalSteps(t, path)
		})
	}
}

func assertOrthogonalSteps(t *testing.T, path []Point) {
	t.Helper()
	for i := 1; i < len(path); i++ {
		assert.Equal(t, 1.0, Manhattan(path[i-1], path[i]), "step %d: %v -> %v", i, path[i-1], path[i])
	}
}

func TestEngine_OpenGridCornerToCorner(t *testing.T) {
	grid, engine := newTestEngine(t, 5, 5, Point{0, 0}, Point{4, 4}, nil)
	require.NoError(t, engine.Start(context.Background()))

	var poppedF []float64
	for !engine.State().Terminal() {
		_, err := engine.Step()
		require.NoError(t, err)
		current, ok := engine.Current()
		require.True(t, ok)
		cell, _ := grid.CellAt(current.X, current.Y)
		poppedF = append(poppedF, cell.F)
	}
	require.Equal(t, StateSucceeded, engine.State())

	path := engine.Path()
	assert.Len(t, path, 9)

	previous := math.Inf(-1)
	for _, p := range path {
		cell, _ := grid.CellAt(p.X, p.Y)
		assert.GreaterOrEqual(t, cell.F, previous, "f along path at %v", p)
		previous = cell.F
	}
	for i := 1; i < len(poppedF); i++ {
		assert.GreaterOrEqual(t, poppedF[i], poppedF[i-1], "expansion %d", i)
	}

	goal, _ := grid.CellAt(4, 4)
	assert.Equal(t, 8.0, goal.G)
}

func TestEngine_WallSeparatesColumnsFails(t *testing.T) {
	wall := []Point{{1, 0}, {1, 1}, {1, 2}}
	_, engine := newTestEngine(t, 3, 3, Point{0, 1}, Point{2, 1}, wall)
	require.NoError(t, engine.Start(context.Background()))

	state, err := engine.RunToCompletion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, OutcomeFrontierExhausted, engine.Outcome())
	assert.Empty(t, engine.OpenSet())
	assert.Nil(t, engine.Path())
	assert.Less(t, engine.Iterations(), engine.IterationCap())
	assert.ElementsMatch(t, []Point{{0, 0}, {0, 1}, {0, 2}}, engine.ClosedSet())
}

func TestEngine_BlockedGoalFailsBeforeCap(t *testing.T) {
	// goal boxed in at the center
	box := []Point{{3, 2}, {3, 4}, {2, 3}, {4, 3}}
	_, engine := newTestEngine(t, 7, 7, Point{0, 0}, Point{3, 3}, box)
	require.NoError(t, engine.Start(context.Background()))

	state, err := engine.RunToCompletion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, OutcomeFrontierExhausted, engine.Outcome())
	assert.Empty(t, engine.OpenSet())
	assert.Equal(t, 49-4-1, engine.Expanded(), "every reachable cell is expanded once")
}

func TestEngine_EditWhileRunningCancels(t *testing.T) {
	grid, engine := newTestEngine(t, 6, 6, Point{0, 0}, Point{5, 5}, nil)
	require.NoError(t, engine.Start(context.Background()))
	_, err := engine.Step()
	require.NoError(t, err)
	_, err = engine.Step()
	require.NoError(t, err)

	require.True(t, grid.ToggleObstacle(3, 3))

	assert.Equal(t, StateCancelled, engine.State())
	assert.Equal(t, OutcomeCancelled, engine.Outcome())
	assert.Empty(t, engine.OpenSet())
	assert.Empty(t, engine.ClosedSet())
	cell, _ := grid.CellAt(0, 0)
	assert.True(t, math.IsInf(cell.G, 1), "scores are reset")

	state, err := engine.Step()
	assert.ErrorIs(t, err, ErrNoOp)
	assert.Equal(t, StateCancelled, state)

	require.NoError(t, engine.Start(context.Background()))
	state, err = engine.RunToCompletion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, state)
	assert.Len(t, engine.Path(), 11)
}

func TestEngine_UnchangedEditKeepsRunning(t *testing.T) {
	grid, engine := newTestEngine(t, 6, 6, Point{0, 0}, Point{5, 5}, nil)
	require.NoError(t, engine.Start(context.Background()))
	_, err := engine.Step()
	require.NoError(t, err)

	require.True(t, grid.SetObstacle(3, 3, false))
	require.True(t, grid.SetStart(0, 0))

	assert.Equal(t, StateRunning, engine.State())
	assert.Len(t, engine.ClosedSet(), 1)
	state, err := engine.RunToCompletion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, state)
	assert.Len(t, engine.Path(), 11)
}

func TestEngine_StartOnObstacleClearsIt(t *testing.T) {
	grid := newTestGrid(t, 4, 4)
	require.True(t, grid.SetObstacle(1, 2, true))
	require.True(t, grid.SetStart(1, 2))
	require.True(t, grid.SetGoal(3, 3))

	assert.Equal(t, CellStart, grid.CellTypeAt(1, 2))

	result, err := Search(context.Background(), grid, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, Point{1, 2}, result.Path[0])
}

func TestEngine_TieBreakIsInsertionOrder(t *testing.T) {
	_, engine := newTestEngine(t, 3, 3, Point{0, 0}, Point{2, 2}, nil)
	require.NoError(t, engine.Start(context.Background()))

	_, err := engine.Step()
	require.NoError(t, err)
	assert.Equal(t, []Point{{1, 0}, {0, 1}}, engine.OpenSet())

	_, err = engine.Step()
	require.NoError(t, err)
	assert.Equal(t, []Point{{0, 1}, {2, 0}, {1, 1}}, engine.OpenSet())

	state, err := engine.RunToCompletion(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, state)

	assert.Equal(t, []Point{
		{0, 0}, {1, 0}, {0, 1}, {2, 0}, {1, 1}, {0, 2}, {2, 1}, {1, 2}, {2, 2},
	}, engine.ClosedSet())
	assert.Equal(t, []Point{{0, 0}, {1, 0}, {2, 0}, {2, 1}, {2, 2}}, engine.Path())
	assert.Equal(t, 8, engine.Iterations())
	assert.Equal(t, 9, engine.Expanded())
}

func TestEngine_ClosedCellsAreMonotone(t *testing.T) {
	obstacles := []Point{{2, 0}, {2, 1}, {2, 2}, {2, 3}, {4, 2}, {4, 3}, {4, 4}, {4, 5}}
	grid, engine := newTestEngine(t, 7, 6, Point{0, 0}, Point{6, 0}, obstacles)
	require.NoError(t, engine.Start(context.Background()))

	closedG := make(map[Point]float64)
	for !engine.State().Terminal() {
		_, err := engine.Step()
		require.NoError(t, err)

		for p, g := range closedG {
			cell, _ := grid.CellAt(p.X, p.Y)
			assert.GreaterOrEqual(t, cell.G, g, "g of closed %v decreased", p)
			assert.False(t, engine.IsOpen(p.X, p.Y), "closed %v reopened", p)
		}
		for _, p := range engine.ClosedSet() {
			if _, seen := closedG[p]; !seen {
				cell, _ := grid.CellAt(p.X, p.Y)
				closedG[p] = cell.G
			}
		}
		assert.Len(t, closedG, engine.Expanded(), "a cell closes at most once")
	}
	assert.Equal(t, StateSucceeded, engine.State())
	assert.Len(t, engine.Path(), 15)
}

func TestEngine_IterationCap(t *testing.T) {
	box := []Point{{19, 18}, {19, 20}, {18, 19}, {20, 19}}
	_, engine := newTestEngine(t, 40, 40, Point{0, 0}, Point{19, 19}, box, WithIterationCap(10))
	require.NoError(t, engine.Start(context.Background()))

	state, err := engine.RunToCompletion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, OutcomeIterationCap, engine.Outcome())
	assert.Equal(t, 11, engine.Iterations())
	assert.NotEmpty(t, engine.OpenSet(), "cap stops the run with frontier left")
}

func TestEngine_DefaultIterationCap(t *testing.T) {
	_, engine := newTestEngine(t, 2, 2, Point{0, 0}, Point{1, 1}, nil, WithIterationCap(0))
	assert.Equal(t, DefaultIterationCap, engine.IterationCap())
}

func TestEngine_Commands(t *testing.T) {
	t.Run("start without endpoints", func(t *testing.T) {
		grid := newTestGrid(t, 3, 3)
		engine := NewEngine(grid, WithLogger(quietLogger()))
		defer engine.Close()

		assert.ErrorIs(t, engine.Start(context.Background()), ErrMissingEndpoint)
		grid.SetStart(0, 0)
		assert.ErrorIs(t, engine.Start(context.Background()), ErrMissingEndpoint)
		assert.Equal(t, StateIdle, engine.State())
	})

	t.Run("start while running", func(t *testing.T) {
		_, engine := newTestEngine(t, 3, 3, Point{0, 0}, Point{2, 2}, nil)
		require.NoError(t, engine.Start(context.Background()))
		assert.ErrorIs(t, engine.Start(context.Background()), ErrNoOp)
		assert.Equal(t, StateRunning, engine.State())
	})

	t.Run("step and run when idle", func(t *testing.T) {
		_, engine := newTestEngine(t, 3, 3, Point{0, 0}, Point{2, 2}, nil)
		state, err := engine.Step()
		assert.ErrorIs(t, err, ErrNoOp)
		assert.Equal(t, StateIdle, state)

		_, err = engine.RunToCompletion(context.Background())
		assert.ErrorIs(t, err, ErrNoOp)
	})

	t.Run("cancel", func(t *testing.T) {
		_, engine := newTestEngine(t, 3, 3, Point{0, 0}, Point{2, 2}, nil)
		assert.ErrorIs(t, engine.Cancel(), ErrNoOp, "idle")

		require.NoError(t, engine.Start(context.Background()))
		require.NoError(t, engine.Cancel())
		assert.Equal(t, StateCancelled, engine.State())
		assert.NoError(t, engine.Cancel(), "idempotent once terminal")

		_, err := engine.Step()
		assert.ErrorIs(t, err, ErrNoOp)
	})

	t.Run("cancel after success keeps result", func(t *testing.T) {
		_, engine := newTestEngine(t, 3, 3, Point{0, 0}, Point{2, 2}, nil)
		require.NoError(t, engine.Start(context.Background()))
		_, err := engine.RunToCompletion(context.Background())
		require.NoError(t, err)

		assert.NoError(t, engine.Cancel())
		assert.Equal(t, StateSucceeded, engine.State())
		assert.Len(t, engine.Path(), 5)
	})

	t.Run("restart after success", func(t *testing.T) {
		_, engine := newTestEngine(t, 3, 3, Point{0, 0}, Point{2, 2}, nil)
		require.NoError(t, engine.Start(context.Background()))
		_, err := engine.RunToCompletion(context.Background())
		require.NoError(t, err)

		require.NoError(t, engine.Start(context.Background()))
		assert.Equal(t, StateRunning, engine.State())
		assert.Nil(t, engine.Path())
		assert.Equal(t, []Point{{0, 0}}, engine.OpenSet())
	})
}

func TestEngine_EditAfterFinishReturnsToIdle(t *testing.T) {
	grid, engine := newTestEngine(t, 4, 4, Point{0, 0}, Point{3, 3}, nil)
	require.NoError(t, engine.Start(context.Background()))
	_, err := engine.RunToCompletion(context.Background())
	require.NoError(t, err)

	require.True(t, grid.SetGoal(3, 0))

	assert.Equal(t, StateIdle, engine.State())
	assert.Empty(t, engine.Outcome())
	assert.Nil(t, engine.Path())
	assert.False(t, engine.InPath(0, 0))
	_, ok := engine.Current()
	assert.False(t, ok)
}

func TestEngine_ResizeDuringRun(t *testing.T) {
	grid, engine := newTestEngine(t, 5, 5, Point{0, 0}, Point{2, 2}, nil)
	require.NoError(t, engine.Start(context.Background()))
	_, err := engine.Step()
	require.NoError(t, err)

	require.NoError(t, grid.Resize(3, 3))
	assert.Equal(t, StateCancelled, engine.State())

	require.NoError(t, engine.Start(context.Background()))
	state, err := engine.RunToCompletion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, state)
}

func TestEngine_RunToCompletionHonoursContext(t *testing.T) {
	_, engine := newTestEngine(t, 10, 10, Point{0, 0}, Point{9, 9}, nil)
	require.NoError(t, engine.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := engine.RunToCompletion(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCancelled, state)
}

func TestEngine_CorruptParentChainIsReported(t *testing.T) {
	grid, engine := newTestEngine(t, 3, 1, Point{0, 0}, Point{2, 0}, nil)
	require.NoError(t, engine.Start(context.Background()))
	_, err := engine.Step()
	require.NoError(t, err)

	// point start back at its child to form a loop
	grid.cells[0].Parent = 1

	_, err = engine.Step()
	require.NoError(t, err)
	state, err := engine.Step()
	assert.ErrorIs(t, err, ErrInternalInvariant)
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, OutcomeInvariantViolation, engine.Outcome())
}

func TestEngine_Snapshot(t *testing.T) {
	_, engine := newTestEngine(t, 3, 2, Point{0, 0}, Point{2, 1}, []Point{{1, 1}})
	require.NoError(t, engine.Start(context.Background()))
	_, err := engine.Step()
	require.NoError(t, err)

	snapshot := engine.Snapshot()
	assert.Equal(t, StateRunning, snapshot.State)
	assert.Equal(t, 3, snapshot.Cols)
	assert.Equal(t, 2, snapshot.Rows)
	assert.True(t, snapshot.HasStart)
	assert.True(t, snapshot.HasGoal)
	assert.Equal(t, Point{0, 0}, snapshot.Current)
	assert.Equal(t, 1, snapshot.Iterations)
	assert.Equal(t, []Point{{1, 0}, {0, 1}}, snapshot.Open)
	assert.Equal(t, []Point{{0, 0}}, snapshot.Closed)
	require.Len(t, snapshot.Cells, 6)

	startCell := snapshot.Cells[0]
	assert.Equal(t, CellStart, startCell.Type)
	assert.True(t, startCell.Closed)
	assert.Zero(t, startCell.G)
	assert.Equal(t, 3.0, startCell.H)

	right := snapshot.Cells[1]
	assert.True(t, right.Open)
	assert.True(t, right.HasParent)
	assert.Equal(t, Point{0, 0}, right.Parent)
	assert.Equal(t, 1.0, right.G)
	assert.Equal(t, 2.0, right.H)
	assert.Equal(t, 3.0, right.F)

	assert.Equal(t, CellObstacle, snapshot.Cells[4].Type)
	assert.Equal(t, CellGoal, snapshot.Cells[5].Type)

	_, err = engine.RunToCompletion(context.Background())
	require.NoError(t, err)
	done := engine.Snapshot()
	assert.Equal(t, StateSucceeded, done.State)
	assert.Equal(t, OutcomeSucceeded, done.Outcome)
	assert.Equal(t, []Point{{0, 0}, {1, 0}, {2, 0}, {2, 1}}, done.Path)
	assert.True(t, done.Cells[2].InPath)
	assert.False(t, done.Cells[3].InPath)
	assert.True(t, engine.InPath(2, 1))
	assert.False(t, engine.InPath(9, 9))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "succeeded", StateSucceeded.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.False(t, StateIdle.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.True(t, StateCancelled.Terminal())
}
