package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/hotaket/ollamabridge/internal/config"
	"github.com/hotaket/ollamabridge/internal/extract"
	"github.com/hotaket/ollamabridge/internal/notify"
	"github.com/hotaket/ollamabridge/internal/ollama"
	"github.com/hotaket/ollamabridge/internal/relay"
	"github.com/hotaket/ollamabridge/internal/search"
	"github.com/hotaket/ollamabridge/internal/webhook"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.Server.Debug)
	stopTracing := setupTracing(cfg.Server.TraceStdout)
	defer stopTracing()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := ollama.New(cfg.Ollama.URL, cfg.Ollama.Model, cfg.Ollama.Timeout)
	slog.Info("ollama configured", "url", cfg.Ollama.URL, "model", cfg.Ollama.Model, "timeout", cfg.Ollama.Timeout)

	var sender relay.Sender
	if cfg.Teams.WorkflowURL != "" {
		sender = notify.New(cfg.Teams.WorkflowURL)
		slog.Info("teams workflow configured")
	} else {
		slog.Warn("TEAMS_WORKFLOW_URL not set, answers will not be delivered")
	}

	var searcher *search.Searcher
	if cfg.Search.Enabled {
		if _, err := os.Stat(cfg.Search.Dir); err != nil {
			slog.Warn("search dir not accessible", "dir", cfg.Search.Dir, "error", err)
		}
		searcher = search.New(cfg.Search.Dir, cfg.Search.FileTypes, cfg.Search.MaxResults, cfg.Search.CacheTTL)
		slog.Info("search enabled",
			"dir", cfg.Search.Dir,
			"file_types", cfg.Search.FileTypes,
			"max_results", cfg.Search.MaxResults,
			"cache_ttl", cfg.Search.CacheTTL)

		watcher, err := search.NewWatcher(searcher)
		if err != nil {
			slog.Warn("search watcher unavailable", "error", err)
		} else if err := watcher.Start(ctx); err != nil {
			slog.Warn("search watcher failed to start", "error", err)
		} else {
			defer watcher.Stop()
		}
	} else {
		slog.Info("search disabled")
	}

	proc := relay.New(cfg, searcher, extract.NewService(), client, sender)
	srv := webhook.NewServer(cfg, proc, client)

	return srv.Run(ctx)
}

// setupTracing installs a stdout span exporter when enabled. Without it the
// pipeline's trace instrumentation stays a no-op.
func setupTracing(enabled bool) func() {
	if !enabled {
		return func() {}
	}
	exp, err := stdouttrace.New()
	if err != nil {
		slog.Warn("trace exporter unavailable", "error", err)
		return func() {}
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	slog.Info("trace export enabled", "exporter", "stdout")
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("trace shutdown failed", "error", err)
		}
	}
}
