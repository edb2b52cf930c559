package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	server "drift-and-dredge/server"
	"drift-and-dredge/server/internal/catalog"
	servernet "drift-and-dredge/server/internal/net"
	"drift-and-dredge/server/internal/observability"
	"drift-and-dredge/server/internal/telemetry"
	"drift-and-dredge/server/logging"
	loggingsinks "drift-and-dredge/server/logging/sinks"
)

// Config carries process-level settings, all read from the environment.
// Catalog paths and world tuning beyond the seed travel through the catalog
// overlay file and /world/reset rather than flags.
type Config struct {
	Addr             string        `env:"DRIFT_ADDR" envDefault:":8080"`
	TickRate         int           `env:"DRIFT_TICK_RATE" envDefault:"15"`
	Seed             string        `env:"DRIFT_SEED" envDefault:"drift"`
	CatalogPaths     []string      `env:"DRIFT_CATALOG_PATHS" envSeparator:","`
	ClientDir        string        `env:"DRIFT_CLIENT_DIR"`
	LogSinks         []string      `env:"DRIFT_LOG_SINKS" envSeparator:"," envDefault:"console"`
	LogFilePath      string        `env:"DRIFT_LOG_FILE" envDefault:"drift-events.jsonl"`
	ShutdownTimeout  time.Duration `env:"DRIFT_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	EnablePprofTrace bool          `env:"DRIFT_ENABLE_PPROF_TRACE" envDefault:"false"`
}

// ParseConfig loads configuration from environment variables.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Run parses the environment and serves until the context is canceled.
func Run(ctx context.Context) error {
	cfg, err := ParseConfig()
	if err != nil {
		return err
	}
	return RunWithConfig(ctx, cfg)
}

// RunWithConfig wires the logging router, catalogs, hub, and HTTP server,
// then serves until the context is canceled or the listener fails.
func RunWithConfig(ctx context.Context, cfg Config) error {
	logger := telemetry.WrapLogger(log.Default())

	logCfg := logging.DefaultConfig()
	logCfg.EnabledSinks = cfg.LogSinks
	logCfg.JSON.FilePath = cfg.LogFilePath

	var logFile *os.File
	named := make([]logging.NamedSink, 0, len(cfg.LogSinks))
	for _, name := range cfg.LogSinks {
		switch name {
		case "console":
			named = append(named, logging.NamedSink{Name: "console", Sink: loggingsinks.NewConsoleSink(os.Stdout, logCfg.Console)})
		case "json":
			file, err := os.OpenFile(logCfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			logFile = file
			named = append(named, logging.NamedSink{Name: "json", Sink: loggingsinks.NewJSON(file, logCfg.JSON.FlushInterval)})
		case "memory":
			named = append(named, logging.NamedSink{Name: "memory", Sink: loggingsinks.NewMemorySink()})
		default:
			logger.Printf("ignoring unknown log sink %q", name)
		}
	}

	router, err := logging.NewRouter(nil, logCfg, named)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
		if logFile != nil {
			logFile.Close()
		}
	}()

	paths := cfg.CatalogPaths
	if len(paths) == 0 {
		paths = catalog.DefaultPaths()
	}
	resolver, err := catalog.Load(paths...)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}

	metrics := &logging.Metrics{}

	hubCfg := server.DefaultHubConfig()
	hubCfg.TickRate = cfg.TickRate
	hubCfg.World.Seed = cfg.Seed
	hubCfg.Catalogs = resolver.Bundle()
	hubCfg.Logger = logger
	hubCfg.Metrics = telemetry.WrapMetrics(metrics)
	hubCfg.Publisher = router

	hub, err := server.NewHubWithConfig(hubCfg)
	if err != nil {
		return fmt.Errorf("failed to construct hub: %w", err)
	}

	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	defer close(stop)

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		ClientDir: cfg.ClientDir,
		Logger:    logger,
		Publisher: router,
		Metrics:   metrics,
		Observability: observability.Config{
			EnablePprofTrace: cfg.EnablePprofTrace,
		},
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Printf("server listening on %s", srv.Addr)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
