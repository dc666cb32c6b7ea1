package server

import (
	"math"

	astar "github.com/pdrpinto/gridastar"
)

// cellView is one cell on the wire. Scores are null while infinite, since
// JSON has no encoding for +Inf.
type cellView struct {
	X      int          `json:"x"`
	Y      int          `json:"y"`
	Type   string       `json:"type"`
	G      *float64     `json:"g"`
	H      float64      `json:"h"`
	F      *float64     `json:"f"`
	Parent *astar.Point `json:"parent,omitempty"`
	Open   bool         `json:"open,omitempty"`
	Closed bool         `json:"closed,omitempty"`
	InPath bool         `json:"inPath,omitempty"`
}

type delayView struct {
	Enabled bool   `json:"enabled"`
	Delay   string `json:"delay"`
	DelayMS int64  `json:"delayMs"`
}

type snapshotView struct {
	State      string        `json:"state"`
	Outcome    string        `json:"outcome,omitempty"`
	Cols       int           `json:"cols"`
	Rows       int           `json:"rows"`
	Start      *astar.Point  `json:"start"`
	Goal       *astar.Point  `json:"goal"`
	Current    *astar.Point  `json:"current,omitempty"`
	Iterations int           `json:"iterations"`
	Open       []astar.Point `json:"open"`
	Closed     []astar.Point `json:"closed"`
	Path       []astar.Point `json:"path,omitempty"`
	Cells      []cellView    `json:"cells"`
	Delay      delayView     `json:"delay"`
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func optionalPoint(p astar.Point, ok bool) *astar.Point {
	if !ok {
		return nil
	}
	return &p
}

func newDelayView(config astar.DriverConfig) delayView {
	return delayView{
		Enabled: config.DelayEnabled,
		Delay:   config.Delay.String(),
		DelayMS: config.Delay.Milliseconds(),
	}
}

func newSnapshotView(snapshot astar.Snapshot, driverConfig astar.DriverConfig) snapshotView {
	view := snapshotView{
		State:      snapshot.State.String(),
		Outcome:    snapshot.Outcome,
		Cols:       snapshot.Cols,
		Rows:       snapshot.Rows,
		Start:      optionalPoint(snapshot.Start, snapshot.HasStart),
		Goal:       optionalPoint(snapshot.Goal, snapshot.HasGoal),
		Current:    optionalPoint(snapshot.Current, snapshot.HasCurrent),
		Iterations: snapshot.Iterations,
		Open:       snapshot.Open,
		Closed:     snapshot.Closed,
		Path:       snapshot.Path,
		Cells:      make([]cellView, len(snapshot.Cells)),
		Delay:      newDelayView(driverConfig),
	}
	for i, cell := range snapshot.Cells {
		view.Cells[i] = cellView{
			X:      cell.Point.X,
			Y:      cell.Point.Y,
			Type:   cell.Type.String(),
			G:      finite(cell.G),
			H:      cell.H,
			F:      finite(cell.F),
			Parent: optionalPoint(cell.Parent, cell.HasParent),
			Open:   cell.Open,
			Closed: cell.Closed,
			InPath: cell.InPath,
		}
	}
	return view
}
