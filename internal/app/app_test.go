package app

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.TickRate != 15 {
		t.Fatalf("expected default tick rate 15, got %d", cfg.TickRate)
	}
	if cfg.Seed != "drift" {
		t.Fatalf("expected default seed %q, got %q", "drift", cfg.Seed)
	}
	if len(cfg.LogSinks) != 1 || cfg.LogSinks[0] != "console" {
		t.Fatalf("expected console sink default, got %v", cfg.LogSinks)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("expected 5s shutdown timeout, got %v", cfg.ShutdownTimeout)
	}
	if cfg.EnablePprofTrace {
		t.Fatalf("expected pprof tracing disabled by default")
	}
}

func TestParseConfigReadsEnvironment(t *testing.T) {
	t.Setenv("DRIFT_ADDR", ":9090")
	t.Setenv("DRIFT_TICK_RATE", "30")
	t.Setenv("DRIFT_SEED", "harbor-run")
	t.Setenv("DRIFT_CATALOG_PATHS", "overlay.json,extra.json")
	t.Setenv("DRIFT_LOG_SINKS", "console,memory")
	t.Setenv("DRIFT_SHUTDOWN_TIMEOUT", "250ms")
	t.Setenv("DRIFT_ENABLE_PPROF_TRACE", "true")

	cfg, err := ParseConfig()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("expected addr :9090, got %q", cfg.Addr)
	}
	if cfg.TickRate != 30 {
		t.Fatalf("expected tick rate 30, got %d", cfg.TickRate)
	}
	if cfg.Seed != "harbor-run" {
		t.Fatalf("expected seed %q, got %q", "harbor-run", cfg.Seed)
	}
	if len(cfg.CatalogPaths) != 2 || cfg.CatalogPaths[0] != "overlay.json" || cfg.CatalogPaths[1] != "extra.json" {
		t.Fatalf("expected two catalog paths, got %v", cfg.CatalogPaths)
	}
	if len(cfg.LogSinks) != 2 || cfg.LogSinks[1] != "memory" {
		t.Fatalf("expected console and memory sinks, got %v", cfg.LogSinks)
	}
	if cfg.ShutdownTimeout != 250*time.Millisecond {
		t.Fatalf("expected 250ms shutdown timeout, got %v", cfg.ShutdownTimeout)
	}
	if !cfg.EnablePprofTrace {
		t.Fatalf("expected pprof tracing enabled")
	}
}

func TestParseConfigRejectsMalformedValues(t *testing.T) {
	t.Setenv("DRIFT_TICK_RATE", "fast")

	if _, err := ParseConfig(); err == nil {
		t.Fatalf("expected parse failure for malformed tick rate")
	} else if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected wrapped parse error, got %v", err)
	}
}

func TestRunWithConfigShutsDownOnCancel(t *testing.T) {
	cfg := Config{
		Addr:            "127.0.0.1:0",
		TickRate:        15,
		Seed:            "app-smoke",
		LogSinks:        []string{"memory"},
		ShutdownTimeout: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunWithConfig(ctx, cfg)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected a clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("expected shutdown within 3s of cancel")
	}
}
