package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pdrpinto/gridastar/internal/config"
	"github.com/pdrpinto/gridastar/internal/server"
	"github.com/pdrpinto/gridastar/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

var (
	configPath   string
	addr         string
	cols         int
	rows         int
	iterationCap int
	delay        time.Duration
	noDelay      bool
	logLevel     string

	rootCmd = &cobra.Command{
		Use:   "vizweb",
		Short: "Serve an A* grid search over HTTP and WebSocket",
		Long: `vizweb hosts one editable grid and an A* engine. Browsers paint
obstacles and move the markers through the REST endpoints and watch the
frontier grow one expansion per frame over /ws.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	flags.IntVar(&cols, "cols", 0, "grid columns")
	flags.IntVar(&rows, "rows", 0, "grid rows")
	flags.IntVar(&iterationCap, "iteration-cap", 0, "expansions before a run is forced to fail")
	flags.DurationVar(&delay, "delay", 0, "pause between animated steps")
	flags.BoolVar(&noDelay, "no-delay", false, "animate without pausing between steps")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

// loadConfig reads the file and applies any flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = addr
	}
	if flags.Changed("cols") {
		cfg.Grid.Cols = cols
	}
	if flags.Changed("rows") {
		cfg.Grid.Rows = rows
	}
	if flags.Changed("iteration-cap") {
		cfg.Search.IterationCap = iterationCap
	}
	if flags.Changed("delay") {
		cfg.Search.Delay = delay
	}
	if flags.Changed("no-delay") {
		cfg.Search.DelayEnabled = !noDelay
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	return cfg, cfg.Validate()
}

// listen tries the configured address first, then falls back to a random
// free loopback port.
func listen(address string) (net.Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err == nil {
		return ln, nil
	}
	slog.Warn("address unavailable, falling back to a free port", "addr", address, "error", err)
	return net.Listen("tcp", "127.0.0.1:0")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Init(ctx, cfg.Telemetry, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	srv, err := server.New(cfg, server.Options{
		Logger:         logger,
		MeterProvider:  providers.MeterProvider,
		TracerProvider: providers.TracerProvider,
		MetricsHandler: providers.MetricsHandler,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	ln, err := listen(cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	httpServer := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	logger.Info("vizweb serving", "url", fmt.Sprintf("http://localhost:%s", port),
		"grid", fmt.Sprintf("%dx%d", cfg.Grid.Cols, cfg.Grid.Rows))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
