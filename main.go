package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/manim-mcp/internal/config"
	"github.com/wagnerlima/manim-mcp/internal/logging"
	"github.com/wagnerlima/manim-mcp/internal/render"
	"github.com/wagnerlima/manim-mcp/internal/server"
	"github.com/wagnerlima/manim-mcp/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	transport := flag.String("transport", "stdio", "Transport mode: stdio or http")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP port (only used with --transport http)")
	flag.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "Directory the renderer writes videos/ and images/ into")
	flag.StringVar(&cfg.CodeDir, "code-dir", cfg.CodeDir, "Directory for assembled scene sources")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for the render journal database")
	flag.IntVar(&cfg.TimeoutSeconds, "timeout", cfg.TimeoutSeconds, "Default render timeout in seconds (10-3600)")
	flag.StringVar(&cfg.Binary, "manim", cfg.Binary, "Renderer executable")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.Parse()

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting manim-mcp", "version", config.Version, "transport", *transport)

	if _, err := exec.LookPath(cfg.Binary); err != nil {
		logger.Warn("renderer not found, preview and render will fail until it is installed",
			"binary", cfg.Binary, "error", err)
	}

	journal, err := storage.OpenJournal(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open render journal: %w", err)
	}
	defer journal.Close()

	store := storage.NewProjectStore()

	renderer, err := render.New(render.Config{
		Binary:    cfg.Binary,
		CodeDir:   cfg.CodeDir,
		OutputDir: cfg.OutputDir,
		Timeout:   cfg.Timeout(),
		Logger:    logging.WithComponent(logger, "orchestrator"),
	}, store, journal)
	if err != nil {
		return fmt.Errorf("failed to initialise renderer: %w", err)
	}

	// Build the MCP server with all tools registered
	srv := server.New(server.Deps{
		Store:    store,
		Renderer: renderer,
		Journal:  journal,
		Logger:   logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch *transport {
	case "stdio":
		logger.Info("manim MCP server starting (stdio)")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case "http":
		return serveHTTP(ctx, cfg, srv, logger, startTime)
	default:
		return fmt.Errorf("unknown transport: %s (use stdio or http)", *transport)
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, srv *mcp.Server, logger *slog.Logger, startTime time.Time) error {
	router := server.NewRouter(server.RouterConfig{
		Server:      srv,
		BearerToken: cfg.BearerToken,
		Logger:      logging.WithComponent(logger, "http"),
		StartTime:   startTime,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("manim MCP server listening", "addr", httpServer.Addr, "auth", cfg.BearerToken != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	return nil
}
