// Command analytics runs the standalone search analytics service.
//
// It consumes search events from Kafka, aggregates them in memory (query
// volume, latency percentiles, cache hit rate, zero-result and degraded
// searches, intent and search-type mix), snapshots the aggregate to
// PostgreSQL, and serves GET /api/v1/analytics for dashboards.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 8081]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8081, "HTTP port for the analytics API")
	snapshotEvery := flag.Duration("snapshot-interval", time.Minute, "how often to persist aggregated stats")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", *port, "topic", cfg.Kafka.Topics.SearchEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	checker := health.NewChecker()

	// Snapshots are optional: without Postgres the aggregate restarts from zero.
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
	} else {
		defer db.Close()
		store := analytics.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure analytics schema", "error", err)
			os.Exit(1)
		}
		prev, err := store.LatestSnapshot(ctx)
		switch {
		case err != nil:
			slog.Warn("could not load previous snapshot", "error", err)
		case prev != nil:
			aggregator.Seed(*prev)
			slog.Info("aggregate restored from snapshot", "total_searches", prev.TotalSearches)
		}
		store.StartPeriodicSave(ctx, aggregator, *snapshotEvery)
		checker.Register("postgres", health.PingCheck(health.StatusDegraded, db.Ping))
	}

	kcfg := cfg.Kafka
	kcfg.ConsumerGroup += "-analytics"
	events := kafka.NewConsumer(kcfg, cfg.Kafka.Topics.SearchEvents, analytics.HandleEvent(aggregator))
	defer events.Close()
	go func() {
		if err := events.Start(ctx); err != nil {
			slog.Error("analytics consumer stopped", "error", err)
		}
	}()

	mux := http.NewServeMux()
	analytics.NewHandler(aggregator).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      middleware.Chain(mux, middleware.RequestID),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
