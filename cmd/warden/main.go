// Command warden serves the agent autonomy governance API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/praxos-io/warden/pkg/agent"
	"github.com/praxos-io/warden/pkg/api"
	"github.com/praxos-io/warden/pkg/audit"
	"github.com/praxos-io/warden/pkg/config"
	"github.com/praxos-io/warden/pkg/governance"
	"github.com/praxos-io/warden/pkg/maturity"
	"github.com/praxos-io/warden/pkg/observability"
	"github.com/praxos-io/warden/pkg/promotion"
	"github.com/praxos-io/warden/pkg/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("warden exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	logger := slog.Default().With("component", "warden")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryOn,
		Insecure:       true,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	agents, err := openAgentStore(cfg, logger)
	if err != nil {
		return err
	}

	auditDB, err := sql.Open("sqlite", cfg.AuditDBPath)
	if err != nil {
		return err
	}
	defer auditDB.Close()

	auditStore, err := store.NewSQLiteAuditStore(auditDB)
	if err != nil {
		return err
	}
	sink := audit.NewAsync(auditStore, audit.AsyncConfig{})
	defer sink.Close()

	stats, err := store.NewSQLiteStatsStore(auditDB)
	if err != nil {
		return err
	}

	policy, err := loadPolicy(cfg, logger)
	if err != nil {
		return err
	}

	engine := governance.NewEngine(agents, policy, openCache(ctx, cfg, logger),
		governance.WithAuditSink(sink))
	evaluator := promotion.NewEvaluator(engine, stats, stats)

	if cfg.AdminJWTSecret == "" {
		logger.Warn("no admin JWT secret configured, administrative routes are disabled")
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(engine, evaluator, stats, obs, cfg.AdminJWTSecret).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func setupLogging(level string) {
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
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func openAgentStore(cfg *config.Config, logger *slog.Logger) (agent.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("no database configured, agent records are in-memory only")
		return store.NewMemoryAgentStore(), nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, err
	}
	logger.Info("agent store", "backend", "postgres")
	return store.NewPostgresAgentStore(db), nil
}

func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) governance.Cache {
	if cfg.RedisAddr == "" {
		return governance.NewMemoryCache()
	}

	cache := governance.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, 0)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		logger.Error("redis unreachable, falling back to in-process cache",
			"addr", cfg.RedisAddr, "error", err)
		return governance.NewMemoryCache()
	}
	logger.Info("decision cache", "backend", "redis", "addr", cfg.RedisAddr)
	return cache
}

func loadPolicy(cfg *config.Config, logger *slog.Logger) (governance.Policy, error) {
	if cfg.PolicyProfile == "" {
		return maturity.NewPolicy(), nil
	}
	profile, err := config.LoadProfile(cfg.PolicyProfile)
	if err != nil {
		return nil, err
	}
	logger.Info("policy profile loaded", "path", cfg.PolicyProfile,
		"name", profile.Name, "version", profile.Version)
	return profile.Policy(), nil
}
