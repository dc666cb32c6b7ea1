package astar

import (
	"fmt"
	"math"
)

// Point is a cell coordinate. X is the column, Y is the row.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String provides a string representation of Point
func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// CellType is what a renderer should draw for a cell, ignoring search state.
type CellType int

const (
	CellEmpty CellType = iota
	CellObstacle
	CellStart
	CellGoal
	// CellOutOfRange is reported for coordinates outside the grid.
	CellOutOfRange
)

func (t CellType) String() string {
	switch t {
	case CellEmpty:
		return "empty"
	case CellObstacle:
		return "obstacle"
	case CellStart:
		return "start"
	case CellGoal:
		return "goal"
	default:
		return "out_of_range"
	}
}

// noParent marks a cell without a parent link.
const noParent = -1

// Cell holds the obstacle flag and the transient search fields of one grid
// position. Parent is an arena index into the owning grid, noParent when unset.
type Cell struct {
	Point    Point
	Obstacle bool
	G        float64
	H        float64
	F        float64
	Parent   int

	neighbors []int
}

// HasParent reports whether the engine linked this cell to a predecessor.
func (c Cell) HasParent() bool { return c.Parent != noParent }

func (c *Cell) resetScores() {
	c.G = math.Inf(1)
	c.H = 0
	c.F = math.Inf(1)
	c.Parent = noParent
}

// ChangeKind identifies which grid command produced a ChangeEvent.
type ChangeKind int

const (
	ChangeResize ChangeKind = iota
	ChangeObstacle
	ChangeStart
	ChangeGoal
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeResize:
		return "resize"
	case ChangeObstacle:
		return "obstacle"
	case ChangeStart:
		return "start"
	default:
		return "goal"
	}
}

// ChangeEvent is delivered to subscribers after every accepted grid mutation.
// By the time it is delivered every cell's search fields are already reset.
type ChangeEvent struct {
	Kind  ChangeKind
	Point Point
}

// Grid owns a fixed-size arena of cells, their obstacle flags, the start and
// goal markers, and the orthogonal neighbor links.
type Grid struct {
	cols  int
	rows  int
	cells []Cell

	start int
	goal  int

	listeners      map[int]func(ChangeEvent)
	nextListenerID int
}

// NewGrid creates a grid with no obstacles and no start or goal.
func NewGrid(cols, rows int) (*Grid, error) {
	grid := &Grid{
		start:     noParent,
		goal:      noParent,
		listeners: make(map[int]func(ChangeEvent)),
	}
	if err := grid.allocate(cols, rows); err != nil {
		return nil, err
	}
	return grid, nil
}

// Cols returns the number of columns.
func (g *Grid) Cols() int { return g.cols }

// Rows returns the number of rows.
func (g *Grid) Rows() int { return g.rows }

// Len returns the number of cells.
func (g *Grid) Len() int { return len(g.cells) }

// Resize reallocates the cell arena and recomputes neighbor links.
// Obstacles are cleared. Start and goal survive if they are still in range.
func (g *Grid) Resize(cols, rows int) error {
	startPoint, hadStart := g.Start()
	goalPoint, hadGoal := g.Goal()

	if err := g.allocate(cols, rows); err != nil {
		return err
	}

	g.start, g.goal = noParent, noParent
	if hadStart && g.inRange(startPoint.X, startPoint.Y) {
		g.start = g.index(startPoint.X, startPoint.Y)
	}
	if hadGoal && g.inRange(goalPoint.X, goalPoint.Y) {
		g.goal = g.index(goalPoint.X, goalPoint.Y)
	}

	g.notify(ChangeEvent{Kind: ChangeResize, Point: Point{X: cols, Y: rows}})
	return nil
}

func (g *Grid) allocate(cols, rows int) error {
	if cols < 1 || rows < 1 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimension, cols, rows)
	}

	cells := make([]Cell, cols*rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			cell := &cells[y*cols+x]
			cell.Point = Point{X: x, Y: y}
			cell.resetScores()

			// right, left, down, up
			neighbors := make([]int, 0, 4)
			if x < cols-1 {
				neighbors = append(neighbors, y*cols+x+1)
			}
			if x > 0 {
				neighbors = append(neighbors, y*cols+x-1)
			}
			if y < rows-1 {
				neighbors = append(neighbors, (y+1)*cols+x)
			}
			if y > 0 {
				neighbors = append(neighbors, (y-1)*cols+x)
			}
			cell.neighbors = neighbors
		}
	}

	g.cols, g.rows, g.cells = cols, rows, cells
	return nil
}

// SetObstacle sets or clears the obstacle flag. It returns false, changing
// nothing, for out-of-range coordinates and for the current start or goal.
// Setting the value a cell already has is accepted without notifying.
func (g *Grid) SetObstacle(x, y int, value bool) bool {
	if !g.inRange(x, y) {
		return false
	}
	i := g.index(x, y)
	if i == g.start || i == g.goal {
		return false
	}
	if g.cells[i].Obstacle == value {
		return true
	}
	g.cells[i].Obstacle = value
	g.notify(ChangeEvent{Kind: ChangeObstacle, Point: Point{X: x, Y: y}})
	return true
}

// ToggleObstacle flips the obstacle flag under the same rules as SetObstacle.
func (g *Grid) ToggleObstacle(x, y int) bool {
	if !g.inRange(x, y) {
		return false
	}
	return g.SetObstacle(x, y, !g.cells[g.index(x, y)].Obstacle)
}

// SetStart moves the start marker, clearing any obstacle on the target cell.
// It returns false for out-of-range coordinates and for the goal cell.
func (g *Grid) SetStart(x, y int) bool {
	if !g.inRange(x, y) {
		return false
	}
	i := g.index(x, y)
	if i == g.goal {
		return false
	}
	if i == g.start {
		return true
	}
	g.cells[i].Obstacle = false
	g.start = i
	g.notify(ChangeEvent{Kind: ChangeStart, Point: Point{X: x, Y: y}})
	return true
}

// SetGoal moves the goal marker, clearing any obstacle on the target cell.
// It returns false for out-of-range coordinates and for the start cell.
func (g *Grid) SetGoal(x, y int) bool {
	if !g.inRange(x, y) {
		return false
	}
	i := g.index(x, y)
	if i == g.start {
		return false
	}
	if i == g.goal {
		return true
	}
	g.cells[i].Obstacle = false
	g.goal = i
	g.notify(ChangeEvent{Kind: ChangeGoal, Point: Point{X: x, Y: y}})
	return true
}

// CellAt returns a copy of the cell, or false if out of range.
func (g *Grid) CellAt(x, y int) (Cell, bool) {
	if !g.inRange(x, y) {
		return Cell{}, false
	}
	return g.cells[g.index(x, y)], true
}

// CellTypeAt reports how the cell should be drawn.
func (g *Grid) CellTypeAt(x, y int) CellType {
	if !g.inRange(x, y) {
		return CellOutOfRange
	}
	i := g.index(x, y)
	switch {
	case i == g.start:
		return CellStart
	case i == g.goal:
		return CellGoal
	case g.cells[i].Obstacle:
		return CellObstacle
	default:
		return CellEmpty
	}
}

// Start returns the start coordinates, or false if none is set.
func (g *Grid) Start() (Point, bool) {
	if g.start == noParent {
		return Point{}, false
	}
	return g.cells[g.start].Point, true
}

// Goal returns the goal coordinates, or false if none is set.
func (g *Grid) Goal() (Point, bool) {
	if g.goal == noParent {
		return Point{}, false
	}
	return g.cells[g.goal].Point, true
}

// Neighbors returns the in-range orthogonal neighbors of p, obstacles included,
// in right, left, down, up order.
func (g *Grid) Neighbors(p Point) []Point {
	if !g.inRange(p.X, p.Y) {
		return nil
	}
	links := g.cells[g.index(p.X, p.Y)].neighbors
	points := make([]Point, 0, len(links))
	for _, n := range links {
		points = append(points, g.cells[n].Point)
	}
	return points
}

// Subscribe registers fn to be called after every accepted mutation.
// The returned function removes the subscription.
func (g *Grid) Subscribe(fn func(ChangeEvent)) (unsubscribe func()) {
	id := g.nextListenerID
	g.nextListenerID++
	g.listeners[id] = fn
	return func() { delete(g.listeners, id) }
}

// resetScores puts every cell back to g=+Inf, h=0, f=+Inf with no parent.
func (g *Grid) resetScores() {
	for i := range g.cells {
		g.cells[i].resetScores()
	}
}

func (g *Grid) notify(event ChangeEvent) {
	g.resetScores()
	for _, fn := range g.listeners {
		fn(event)
	}
}

func (g *Grid) inRange(x, y int) bool {
	return x >= 0 && x < g.cols && y >= 0 && y < g.rows
}

func (g *Grid) index(x, y int) int { return y*g.cols + x }

func (g *Grid) point(i int) Point { return g.cells[i].Point }
