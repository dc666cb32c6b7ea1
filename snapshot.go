package astar

import "sort"

// CellSnapshot is the renderable state of one cell.
type CellSnapshot struct {
	Point     Point
	Type      CellType
	G         float64
	H         float64
	F         float64
	Parent    Point
	HasParent bool
	Open      bool
	Closed    bool
	InPath    bool
}

// Snapshot exposes everything a renderer needs for one frame. It is a copy
// and stays valid after further steps or edits.
type Snapshot struct {
	State      State
	Outcome    string
	Cols       int
	Rows       int
	Start      Point
	HasStart   bool
	Goal       Point
	HasGoal    bool
	Current    Point
	HasCurrent bool
	Iterations int
	Cells      []CellSnapshot
	Open       []Point
	Closed     []Point
	Path       []Point
}

// Snapshot copies the grid and search state.
func (e *Engine) Snapshot() Snapshot {
	grid := e.grid
	snapshot := Snapshot{
		State:      e.state,
		Outcome:    e.outcome,
		Cols:       grid.Cols(),
		Rows:       grid.Rows(),
		Iterations: e.iterations,
		Cells:      make([]CellSnapshot, grid.Len()),
		Open:       e.OpenSet(),
		Closed:     e.ClosedSet(),
		Path:       e.Path(),
	}
	snapshot.Start, snapshot.HasStart = grid.Start()
	snapshot.Goal, snapshot.HasGoal = grid.Goal()
	snapshot.Current, snapshot.HasCurrent = e.Current()

	for i := range grid.cells {
		cell := grid.cells[i]
		view := CellSnapshot{
			Point:     cell.Point,
			Type:      grid.CellTypeAt(cell.Point.X, cell.Point.Y),
			G:         cell.G,
			H:         cell.H,
			F:         cell.F,
			HasParent: cell.HasParent(),
			Open:      e.isOpen(i),
			Closed:    e.isClosed(i),
			InPath:    e.isInPath(i),
		}
		if view.HasParent {
			view.Parent = grid.point(cell.Parent)
		}
		snapshot.Cells[i] = view
	}
	return snapshot
}

// Current returns the cell expanded by the latest step.
func (e *Engine) Current() (Point, bool) {
	if e.current == noParent || e.current >= e.grid.Len() {
		return Point{}, false
	}
	return e.grid.point(e.current), true
}

// OpenSet returns the frontier in the order cells entered it.
func (e *Engine) OpenSet() []Point {
	items := make([]*PriorityQueueItem, len(e.openSet))
	copy(items, e.openSet)
	sort.Slice(items, func(i, j int) bool { return items[i].Sequence < items[j].Sequence })

	points := make([]Point, len(items))
	for i, item := range items {
		points[i] = e.grid.point(item.Cell)
	}
	return points
}

// ClosedSet returns the expanded cells in expansion order.
func (e *Engine) ClosedSet() []Point {
	points := make([]Point, len(e.closedOrder))
	for i, index := range e.closedOrder {
		points[i] = e.grid.point(index)
	}
	return points
}

// Path returns the start-to-goal path of a succeeded run, nil otherwise.
func (e *Engine) Path() []Point {
	if e.path == nil {
		return nil
	}
	points := make([]Point, len(e.path))
	for i, index := range e.path {
		points[i] = e.grid.point(index)
	}
	return points
}

// IsOpen reports whether (x, y) is in the frontier.
func (e *Engine) IsOpen(x, y int) bool {
	return e.grid.inRange(x, y) && e.isOpen(e.grid.index(x, y))
}

// IsClosed reports whether (x, y) was expanded in this run.
func (e *Engine) IsClosed(x, y int) bool {
	return e.grid.inRange(x, y) && e.isClosed(e.grid.index(x, y))
}

// InPath reports whether (x, y) lies on the found path.
func (e *Engine) InPath(x, y int) bool {
	return e.grid.inRange(x, y) && e.isInPath(e.grid.index(x, y))
}

func (e *Engine) isOpen(i int) bool {
	return i < len(e.openItems) && e.openItems[i] != nil
}

func (e *Engine) isClosed(i int) bool {
	return i < len(e.closed) && e.closed[i]
}

func (e *Engine) isInPath(i int) bool {
	return i < len(e.inPath) && e.inPath[i]
}
