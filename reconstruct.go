package astar

import (
	"fmt"

	"github.com/pdrpinto/gridastar/internal"
)

// Reconstruct walks parent links from goal back to the start cell and returns
// the cells in start-to-goal order. It does not modify the grid, so calling it
// twice after the same run yields identical paths.
//
// A chain that ends anywhere but the grid's start cell, or that loops, is
// reported as ErrInternalInvariant.
func Reconstruct(grid *Grid, goal Point) ([]Point, error) {
	if !grid.inRange(goal.X, goal.Y) {
		return nil, fmt.Errorf("%w: goal %s out of range", ErrInternalInvariant, goal)
	}
	indices, err := reconstructIndices(grid, grid.index(goal.X, goal.Y))
	if err != nil {
		return nil, err
	}
	path := make([]Point, len(indices))
	for i, index := range indices {
		path[i] = grid.point(index)
	}
	return path, nil
}

func reconstructIndices(grid *Grid, goal int) ([]int, error) {
	indices, ok := internal.ReconstructPath(
		func(i int) int { return grid.cells[i].Parent },
		goal,
		len(grid.cells),
	)
	if !ok {
		return nil, fmt.Errorf("%w: parent chain from %s loops", ErrInternalInvariant, grid.point(goal))
	}
	if indices[0] != grid.start {
		return nil, fmt.Errorf("%w: parent chain from %s ends at %s, not at start",
			ErrInternalInvariant, grid.point(goal), grid.point(indices[0]))
	}
	return indices, nil
}
