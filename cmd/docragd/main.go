// Docragd is the docrag question answering daemon.
//
// It serves POST /ask, GET /health, GET /metrics and the browser client
// over HTTP. With the mcp subcommand it serves the ask_documents tool on
// stdio instead.
//
// Configuration is loaded from ./docrag.yaml or ~/.config/docrag/config.yaml
// and environment variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	docragd
//
//	# Configure via environment
//	SERVER_HTTP_PORT=9000 OLLAMA_MODEL=llama3.1:8b docragd
//
//	# Serve the MCP tool on stdio
//	docragd mcp
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/config"
	httpserver "github.com/fyrsmithlabs/docrag/internal/http"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/mcp"
	"github.com/fyrsmithlabs/docrag/internal/services"
	"github.com/fyrsmithlabs/docrag/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	flag.Parse()
	args := flag.Args()

	mode := "serve"
	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		case "mcp":
			mode = "mcp"
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  docragd           Start the HTTP server\n")
			fmt.Fprintf(os.Stderr, "  docragd mcp       Serve the MCP tool on stdio\n")
			fmt.Fprintf(os.Stderr, "  docragd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	if mode == "mcp" {
		err = runMCP(ctx)
	} else {
		err = run(ctx)
	}
	if err != nil {
		log.Fatalf("docragd: %v", err)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("docragd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// runtime holds what both modes set up before serving.
type runtime struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	registry  services.Registry
}

// setup loads configuration and builds the serving components. Logs go to
// stderr when toStderr is set, which keeps stdout free for the MCP protocol.
func setup(ctx context.Context, toStderr bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Observability, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := logging.New(cfg.Logging, toStderr, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if derr := tel.Degraded(); derr != nil {
		logger.Warn(ctx, "telemetry degraded, continuing without export", zap.Error(derr))
	}

	reg, err := services.Build(ctx, cfg, logger.Underlying())
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if n, err := reg.VectorStore().Count(ctx); err != nil {
		logger.Warn(ctx, "could not count indexed chunks", zap.Error(err))
	} else if n == 0 {
		logger.Warn(ctx, "vector index is empty, every question will get the fallback answer; run 'docrag ingest all'")
	} else {
		logger.Info(ctx, "vector index loaded", zap.Int("chunks", n))
	}

	return &runtime{cfg: cfg, logger: logger, telemetry: tel, registry: reg}, nil
}

// Close releases services and flushes telemetry and logs.
func (r *runtime) Close() {
	if err := r.registry.Close(); err != nil {
		r.logger.Warn(context.Background(), "closing services", zap.Error(err))
	}
	if err := r.telemetry.Shutdown(context.Background()); err != nil {
		r.logger.Warn(context.Background(), "telemetry shutdown", zap.Error(err))
	}
	_ = r.logger.Sync() // Best-effort sync on shutdown
}

// run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down within the configured timeout.
func run(ctx context.Context) error {
	rt, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.cfg
	rt.logger.Info(ctx, "Starting docragd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	srv, err := httpserver.NewServer(rt.registry.RAG(), rt.logger.Underlying().Named("http"), &httpserver.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		OllamaURL: cfg.Ollama.BaseURL,
		Model:     cfg.LLM.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	rt.logger.Info(context.Background(), "Server shutdown complete")
	return nil
}

// runMCP serves the ask_documents tool on stdio until the client
// disconnects or ctx is cancelled.
func runMCP(ctx context.Context) error {
	rt, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	server, err := mcp.NewServer(&mcp.Config{
		Name:    "docrag",
		Version: version,
		Logger:  rt.logger.Underlying().Named("mcp"),
	}, rt.registry.RAG())
	if err != nil {
		return fmt.Errorf("failed to create mcp server: %w", err)
	}

	fmt.Fprintf(os.Stderr, "docragd mcp mode started (model %s)\n", rt.cfg.LLM.Model)
	return server.Run(ctx)
}
