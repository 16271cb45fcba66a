package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/krishahir26/antibridge/internal/bridge"
	"github.com/krishahir26/antibridge/internal/config"
	"github.com/krishahir26/antibridge/internal/handlers"
)

var version = "dev"

func main() {
	cfg := config.Load()

	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("antibridge %s\n", version)
		os.Exit(0)
	}

	if len(os.Args) > 1 && os.Args[1] == "config" {
		config.HandleConfigCommand(cfg)
		os.Exit(0)
	}

	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		slog.Error("cannot create state dir", "err", err)
		os.Exit(1)
	}

	b, err := bridge.New(cfg)
	if err != nil {
		slog.Error("bridge init failed", "err", err)
		os.Exit(1)
	}

	// First attach is best effort; the IDE may not be running yet and
	// POST /connect retries on demand.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ConnectAttempts)*(cfg.ConnectDelay+10*time.Second))
		defer cancel()
		if b.Connect(ctx) {
			slog.Info("attached to IDE", "debugUrl", cfg.DebugURL)
		} else {
			slog.Warn("IDE not reachable yet", "debugUrl", cfg.DebugURL)
		}
	}()

	mux := http.NewServeMux()
	h := handlers.New(b, cfg)

	srv := &http.Server{
		Addr: cfg.ListenAddr(),
		Handler: handlers.LoggingMiddleware(
			handlers.RequestIDMiddleware(
				handlers.CorsMiddleware(
					handlers.AuthMiddleware(cfg, mux)))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownOnce := &sync.Once{}
	doShutdown := func() {
		shutdownOnce.Do(func() {
			slog.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				slog.Warn("server shutdown", "err", err)
			}
			if err := b.Close(); err != nil {
				slog.Warn("bridge close", "err", err)
			}
		})
	}

	h.RegisterRoutes(mux, doShutdown)
	setupSignalHandler(doShutdown)

	slog.Info("antibridge listening", "port", cfg.Port, "debugUrl", cfg.DebugURL)
	if cfg.Token != "" {
		slog.Info("auth enabled")
	} else {
		slog.Info("auth disabled (set BRIDGE_TOKEN to enable)")
	}

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server", "err", err)
		os.Exit(1)
	}
}

func setupSignalHandler(shutdownFn func()) {
	go func() {
		sig := make(chan os.Signal, 2)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		go shutdownFn()
		<-sig
		slog.Warn("force shutdown requested")
		os.Exit(130)
	}()
}
