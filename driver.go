package astar

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultStepDelay is the pause between animated steps.
const DefaultStepDelay = 20 * time.Millisecond

// Stepper advances a search by one expansion. *Engine implements it.
type Stepper interface {
	Step() (State, error)
}

// StepFunc adapts a function to Stepper, e.g. to take a lock around Engine.Step.
type StepFunc func() (State, error)

// Step calls f.
func (f StepFunc) Step() (State, error) { return f() }

// DriverConfig controls pacing between steps. The delay never changes which
// steps run or what they compute.
type DriverConfig struct {
	DelayEnabled bool          `json:"delay_enabled" yaml:"delay_enabled"`
	Delay        time.Duration `json:"delay" yaml:"delay"`
}

// DefaultDriverConfig returns an animated config using DefaultStepDelay.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{DelayEnabled: true, Delay: DefaultStepDelay}
}

// Driver is the cooperative animation loop: step, report, wait, repeat.
//
// Thread Safety: SetDelay, SetDelayEnabled and Config are safe to call while
// Run executes on another goroutine. The Stepper itself is only called from
// the goroutine running Run.
type Driver struct {
	mu      sync.Mutex
	config  DriverConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewDriver creates a driver. Only the logger option is used.
func NewDriver(config DriverConfig, options ...Option) *Driver {
	driverOptions := applyOptions(options)
	if config.Delay < 0 {
		config.Delay = 0
	}
	return &Driver{
		config:  config,
		limiter: rate.NewLimiter(rate.Every(config.Delay), 1),
		logger:  driverOptions.Logger,
	}
}

// Config returns the current pacing.
func (d *Driver) Config() DriverConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// SetDelay changes the pause between steps. Negative values become zero.
func (d *Driver) SetDelay(delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	d.mu.Lock()
	d.config.Delay = delay
	d.mu.Unlock()
	d.limiter.SetLimit(rate.Every(delay))
}

// SetDelayEnabled turns pacing on or off.
func (d *Driver) SetDelayEnabled(enabled bool) {
	d.mu.Lock()
	d.config.DelayEnabled = enabled
	d.mu.Unlock()
}

// Run steps until a terminal state, calling onStep after every step.
//
// A run cancelled from outside (for example by a grid edit) ends the loop
// with the Cancelled state and a nil error. contextObject cancellation stops
// the loop between steps and returns the context error; the engine is not
// cancelled, the caller decides what to do with it.
func (d *Driver) Run(contextObject context.Context, stepper Stepper, onStep func(State)) (State, error) {
	steps := 0
	lastState := StateRunning
	// Spend the burst token so the first pause is a full delay.
	d.limiter.Allow()
	for {
		if err := contextObject.Err(); err != nil {
			return lastState, err
		}

		state, err := stepper.Step()
		lastState = state
		if err != nil {
			if errors.Is(err, ErrNoOp) && state.Terminal() {
				d.logger.Debug("astar driver stopped by external cancel", "steps", steps, "state", state.String())
				if onStep != nil {
					onStep(state)
				}
				return state, nil
			}
			return state, err
		}
		steps++

		if onStep != nil {
			onStep(state)
		}
		if state.Terminal() {
			d.logger.Debug("astar driver finished", "steps", steps, "state", state.String())
			return state, nil
		}

		if err := d.pause(contextObject); err != nil {
			return state, err
		}
	}
}

// pause waits until Delay has passed since the previous step was allowed,
// so time spent inside Step counts toward the delay.
func (d *Driver) pause(contextObject context.Context) error {
	config := d.Config()
	if !config.DelayEnabled || config.Delay <= 0 {
		return nil
	}
	return d.limiter.Wait(contextObject)
}
