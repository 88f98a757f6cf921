// covenantd serves the contract record-keeping engine over HTTP.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/covenantlabs/covenant/pkg/api"
	"github.com/covenantlabs/covenant/pkg/audit"
	"github.com/covenantlabs/covenant/pkg/config"
	"github.com/covenantlabs/covenant/pkg/eventlog"
	"github.com/covenantlabs/covenant/pkg/identity"
	"github.com/covenantlabs/covenant/pkg/registry"
	"github.com/covenantlabs/covenant/pkg/store"
)

func main() {
	profile := flag.String("profile", "", "path to a YAML configuration profile")
	flag.Parse()

	cfg, err := config.LoadWithProfile(*profile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	journal, cleanup, err := openJournal(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open journal", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	events := eventlog.New()
	if journal != nil {
		events.WithJournal(journal)
	}
	audit.NewLogger().Attach(events)

	reg := registry.New(events)
	clock := identity.NewLogicalClock()
	server := api.NewServer(reg, clock, logger)

	validator := api.NewJWTValidator([]byte(cfg.JWTSecret))
	if validator == nil {
		logger.Warn("JWT_SECRET not set; all authenticated endpoints will reject requests")
	}

	limiter := api.NewGlobalRateLimiter(cfg.RateRPS, cfg.RateBurst)
	idempotency := api.NewIdempotencyStore(24 * time.Hour)

	var handler http.Handler = server.Routes()
	handler = api.IdempotencyMiddleware(idempotency)(handler)
	handler = api.AuthMiddleware(validator)(handler)
	handler = limiter.Middleware(handler)
	handler = api.RequestIDMiddleware(handler)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("covenantd listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// openJournal selects the durable event sink from the database URL.
// Empty means memory-only; "postgres://" selects Postgres; anything else
// is treated as a SQLite file path.
func openJournal(databaseURL string) (store.Journal, func(), error) {
	noop := func() {}
	switch {
	case databaseURL == "":
		return nil, noop, nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		j, err := store.OpenPostgresJournal(databaseURL)
		if err != nil {
			return nil, noop, err
		}
		return j, func() { _ = j.Close() }, nil
	default:
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		j, err := store.OpenSQLiteJournal(path)
		if err != nil {
			return nil, noop, err
		}
		return j, func() { _ = j.Close() }, nil
	}
}
