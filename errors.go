package astar

import "errors"

// Sentinel errors returned by grid and engine commands. Compare with errors.Is.
var (
	// ErrInvalidDimension is returned by Resize when cols or rows is below 1.
	ErrInvalidDimension = errors.New("invalid grid dimension")

	// ErrMissingEndpoint is returned by Start when the grid has no start or no goal.
	ErrMissingEndpoint = errors.New("start or goal not set")

	// ErrNoOp is returned for redundant commands: starting a run that is
	// already running, stepping an engine that is not running, cancelling an
	// idle engine.
	ErrNoOp = errors.New("command has no effect")

	// ErrInternalInvariant means the parent chain did not terminate at the
	// start cell. It indicates a bug and is never swallowed.
	ErrInternalInvariant = errors.New("internal invariant violation")
)
