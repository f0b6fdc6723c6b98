// Command server runs the notes REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/notes-api/internal/config"
	"github.com/kuitang/notes-api/internal/db"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
	"github.com/kuitang/notes-api/internal/ratelimit"
	"github.com/kuitang/notes-api/internal/realtime"
	"github.com/kuitang/notes-api/internal/server"
)

var version = "dev"

const storeOpenTimeout = 15 * time.Second

// app is the wired server with everything that needs closing on shutdown.
type app struct {
	handler http.Handler
	store   notes.Store
	limiter *ratelimit.RateLimiter
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	openCtx, cancel := context.WithTimeout(ctx, storeOpenTimeout)
	defer cancel()
	store, err := db.Open(openCtx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	opts := server.Options{
		Version:    version,
		BaseURL:    cfg.BaseURL,
		CORSOrigin: cfg.CORSOrigin,
		EnableMCP:  !cfg.NoMCP,
		Limiter:    ratelimit.NewRateLimiter(cfg.RateLimitConfig),
	}
	var svcOpts []notes.Option
	if !cfg.NoRealtime {
		opts.Hub = realtime.NewHub(obs.Pkg("realtime"))
		svcOpts = append(svcOpts, notes.WithPublisher(opts.Hub))
	}
	svc := notes.NewService(store, svcOpts...)

	return &app{
		handler: server.New(svc, opts).Router(),
		store:   store,
		limiter: opts.Limiter,
	}, nil
}

func (a *app) Close() error {
	a.limiter.Stop()
	return a.store.Close()
}

func run(ctx context.Context, args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(flags)
	if err != nil {
		return err
	}
	obs.Init(cfg.LogLevel)
	cfg.PrintStartupSummary(os.Stderr, version)
	logger := obs.Pkg("main")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("store_close_failed", "err", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting_down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
