package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/impermachat/server/internal/v1/config"
	"github.com/impermachat/server/internal/v1/logging"
	"github.com/impermachat/server/internal/v1/room"
	"github.com/impermachat/server/internal/v1/server"
	"github.com/impermachat/server/internal/v1/tracing"
	"github.com/impermachat/server/internal/v1/views"
)

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env"}
	var envLoaded bool
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		slog.Warn("No .env file found, relying on environment variables")
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Invalid environment", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx, cancelJanitor := context.WithCancel(context.Background())

	if cfg.OtelEnabled {
		tp, err := tracing.InitTracer(ctx, "impermachat", cfg.OtelCollectorAddr)
		if err != nil {
			slog.Error("Failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				slog.Error("Failed to shut down tracer provider", "error", err)
			}
		}()
	}

	renderer, err := views.NewRenderer()
	if err != nil {
		slog.Error("Failed to load templates", "error", err)
		os.Exit(1)
	}

	registry := room.NewRegistry()
	registry.Start(ctx)

	router := server.New(cfg, registry, renderer)

	listener, err := listen(cfg.Port)
	if err != nil {
		slog.Error("Failed to listen", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{Handler: router}

	// Start the server in a goroutine so it doesn't block.
	go func() {
		slog.Info("Chat server listening", "addr", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// Give in-flight requests 5 seconds to finish; SSE streams are
	// terminated by the shutdown. The janitor is cancelled after the
	// server stops accepting, and there is no state to flush.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		// SSE streams outlive the drain window; hard-close them, nothing
		// is persisted anyway
		slog.Error("Server forced to shutdown", "error", err)
		_ = srv.Close()
	}

	cancelJanitor()
	registry.Wait()

	slog.Info("Server exiting")
}

// listen prefers a socket inherited through the LISTEN_FDS activation
// protocol (first fd at 3) and falls back to binding 0.0.0.0:port.
func listen(port string) (net.Listener, error) {
	if l := activationListener(); l != nil {
		return l, nil
	}
	return net.Listen("tcp", "0.0.0.0:"+port)
}

func activationListener() net.Listener {
	if pid, err := strconv.Atoi(os.Getenv("LISTEN_PID")); err != nil || pid != os.Getpid() {
		return nil
	}
	if n, err := strconv.Atoi(os.Getenv("LISTEN_FDS")); err != nil || n < 1 {
		return nil
	}

	// fd 3 is the first activation socket by convention
	f := os.NewFile(uintptr(3), "listen-fd")
	if f == nil {
		return nil
	}
	l, err := net.FileListener(f)
	if err != nil {
		slog.Warn("Inherited fd is not a listener, falling back to TCP bind", "error", err)
		return nil
	}
	slog.Info("Using inherited activation socket")
	return l
}
