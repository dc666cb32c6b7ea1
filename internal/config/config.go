// Package config loads the vizweb host configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	astar "github.com/pdrpinto/gridastar"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level host configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Grid      GridConfig      `json:"grid" yaml:"grid"`
	Search    SearchConfig    `json:"search" yaml:"search"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	LogLevel  string          `json:"log_level" yaml:"log_level"`
}

// ServerConfig contains listener settings.
type ServerConfig struct {
	// Addr is tried first; when it is taken the host falls back to a free
	// loopback port.
	Addr string `json:"addr" yaml:"addr"`
}

// GridConfig is the initial grid. Unset Start and Goal default to the
// top-left and bottom-right corners of whatever size the grid ends up with.
type GridConfig struct {
	Cols  int          `json:"cols" yaml:"cols"`
	Rows  int          `json:"rows" yaml:"rows"`
	Start *astar.Point `json:"start,omitempty" yaml:"start,omitempty"`
	Goal  *astar.Point `json:"goal,omitempty" yaml:"goal,omitempty"`
	// Obstacles are painted after the markers; ones on start or goal are dropped.
	Obstacles []astar.Point `json:"obstacles,omitempty" yaml:"obstacles,omitempty"`
}

// SearchConfig contains engine and driver settings.
type SearchConfig struct {
	IterationCap int           `json:"iteration_cap" yaml:"iteration_cap"`
	DelayEnabled bool          `json:"delay_enabled" yaml:"delay_enabled"`
	Delay        time.Duration `json:"delay" yaml:"delay"`
}

// TelemetryConfig selects exporters.
type TelemetryConfig struct {
	ServiceName string `json:"service_name" yaml:"service_name"`
	// MetricExporter is "prometheus" or "none".
	MetricExporter string `json:"metric_exporter" yaml:"metric_exporter"`
	// TraceExporter is "stdout" or "none".
	TraceExporter string `json:"trace_exporter" yaml:"trace_exporter"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Grid: GridConfig{
			Cols: 40,
			Rows: 24,
		},
		Search: SearchConfig{
			IterationCap: astar.DefaultIterationCap,
			DelayEnabled: true,
			Delay:        astar.DefaultStepDelay,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "vizweb",
			MetricExporter: "prometheus",
			TraceExporter:  "none",
		},
		LogLevel: "info",
	}
}

// Load reads path on top of DefaultConfig. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enum values.
func (c Config) Validate() error {
	if c.Grid.Cols < 1 || c.Grid.Rows < 1 {
		return fmt.Errorf("%w: grid %dx%d", ErrInvalidConfig, c.Grid.Cols, c.Grid.Rows)
	}
	if err := c.Grid.validateCells(); err != nil {
		return err
	}
	if c.Search.IterationCap < 1 {
		return fmt.Errorf("%w: iteration_cap must be at least 1", ErrInvalidConfig)
	}
	if c.Search.Delay < 0 {
		return fmt.Errorf("%w: delay must not be negative", ErrInvalidConfig)
	}
	switch c.Telemetry.MetricExporter {
	case "prometheus", "none":
	default:
		return fmt.Errorf("%w: metric_exporter %q", ErrInvalidConfig, c.Telemetry.MetricExporter)
	}
	switch c.Telemetry.TraceExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("%w: trace_exporter %q", ErrInvalidConfig, c.Telemetry.TraceExporter)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Markers resolves the start and goal cells, filling unset ones with the
// grid corners.
func (g GridConfig) Markers() (start, goal astar.Point) {
	start = astar.Point{X: 0, Y: 0}
	if g.Start != nil {
		start = *g.Start
	}
	goal = astar.Point{X: g.Cols - 1, Y: g.Rows - 1}
	if g.Goal != nil {
		goal = *g.Goal
	}
	return start, goal
}

func (g GridConfig) inRange(p astar.Point) bool {
	return p.X >= 0 && p.X < g.Cols && p.Y >= 0 && p.Y < g.Rows
}

func (g GridConfig) validateCells() error {
	start, goal := g.Markers()
	if !g.inRange(start) {
		return fmt.Errorf("%w: start %s outside %dx%d grid", ErrInvalidConfig, start, g.Cols, g.Rows)
	}
	if !g.inRange(goal) {
		return fmt.Errorf("%w: goal %s outside %dx%d grid", ErrInvalidConfig, goal, g.Cols, g.Rows)
	}
	if start == goal {
		return fmt.Errorf("%w: start and goal share cell %s", ErrInvalidConfig, start)
	}
	for _, p := range g.Obstacles {
		if !g.inRange(p) {
			return fmt.Errorf("%w: obstacle %s outside %dx%d grid", ErrInvalidConfig, p, g.Cols, g.Rows)
		}
	}
	return nil
}

// DriverConfig returns the pacing part of the search settings.
func (c Config) DriverConfig() astar.DriverConfig {
	return astar.DriverConfig{DelayEnabled: c.Search.DelayEnabled, Delay: c.Search.Delay}
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, level)
	}
}
