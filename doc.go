// Package astar provides an A* search over an editable 2D grid, built to be
// watched one expansion at a time.
//
// It exposes three main entry points:
//
//   - Grid: cell storage, obstacles, start/goal markers and orthogonal adjacency.
//   - Engine: the search state machine. Step performs exactly one expansion so
//     a UI can render the frontier between calls; RunToCompletion drives it headless.
//   - Driver: a cooperative loop that calls Step, hands each state to an
//     observer and optionally waits a delay before the next step.
//
// Search is a convenience wrapper that runs a fresh Engine to completion.
//
// Cells live in a flat arena indexed by y*cols+x; parent links are arena
// indices, never pointers. Grid and Engine are not safe for concurrent use:
// a host that edits the grid from one goroutine and steps from another must
// serialize the calls itself.
package astar
