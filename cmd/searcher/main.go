// Command searcher runs the hybrid document search service.
//
// It builds the corpus index from PostgreSQL (refusing to serve until that
// succeeds), keeps it current from the document-changes Kafka topic, and
// serves the search API with Redis result caching, per-caller rate limits,
// Prometheus metrics and health probes.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/auth"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/concepts"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/enhancer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/personalize"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"build_limit", cfg.Index.BuildLimit,
		"concepts_enabled", cfg.Concepts.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to document store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	source := indexer.NewPostgresSource(db)
	if err := source.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure document schema", "error", err)
		os.Exit(1)
	}

	idx := index.New(index.WithWorkers(cfg.Index.BuildWorkers), index.WithMetrics(m))
	engine := indexer.NewEngine(idx, source, cfg.Index)
	defer engine.Shutdown()

	// Serving against an unbuilt index is not allowed.
	stats, err := engine.Init(ctx)
	if err != nil {
		slog.Error("corpus index failed to initialize", "error", err)
		os.Exit(1)
	}
	slog.Info("corpus index ready",
		"generation", stats.Generation,
		"indexed", stats.Indexed,
		"skipped", stats.Skipped,
		"truncated", stats.Truncated,
		"duration", stats.Duration,
	)
	if stats.Truncated {
		slog.Warn("initial build hit index.buildLimit; older documents are not searchable",
			"build_limit", cfg.Index.BuildLimit)
	}

	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		changes := consumer.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentChanges, consumer.HandleMessage(engine)))
		go func() {
			if err := changes.Start(ctx); err != nil {
				slog.Error("change consumer stopped", "error", err)
			}
		}()

		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, 10000, 100, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
		slog.Info("kafka wired",
			"changes_topic", cfg.Kafka.Topics.DocumentChanges,
			"events_topic", cfg.Kafka.Topics.SearchEvents,
		)
	} else {
		slog.Warn("kafka disabled: index changes apply only on rebuild, search events are not published")
	}

	var (
		redisClient *pkgredis.Client
		queryCache  *cache.QueryCache[*searcher.Response]
	)
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New[*searcher.Response](redisClient, cfg.Redis, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var extractor concepts.Extractor
	if cfg.Concepts.Enabled {
		llm, err := concepts.NewLLMExtractor(cfg.Concepts)
		if err != nil {
			slog.Warn("concept extractor unavailable, using local fallback", "error", err)
		} else {
			extractor = llm
		}
	}

	history := personalize.New(cfg.Personalization)
	svc := searcher.New(idx,
		enhancer.New(
			enhancer.WithAnalyzer(concepts.NewGuarded(extractor, cfg.Concepts, m)),
			enhancer.WithHistory(history, cfg.Personalization.BiasTerms),
		),
		executor.New(cfg.Search, executor.WithMetrics(m)),
		auth.VisibilityFilter,
		cfg.Search,
		searcher.WithCache(queryCache),
		searcher.WithTracker(collector),
		searcher.WithHistory(history),
		searcher.WithMetrics(m),
	)

	checker := health.NewChecker()
	checker.Register("corpus_index", health.ReadyCheck("corpus index not built", idx.Ready))
	checker.Register("postgres", health.PingCheck(health.StatusDegraded, db.Ping))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(health.StatusDegraded, redisClient.Ping))
	}

	mux := http.NewServeMux()
	handler.New(svc, history, engine, queryCache, cfg.Search, handler.WithAdmins(cfg.Auth.Admins)).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var tokens *auth.Tokens
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewTokens(cfg.Auth.JWTSecret)
	} else {
		slog.Warn("auth.jwtSecret not set: every caller is anonymous and sees only public documents")
	}
	limiter := auth.NewLimiter(cfg.Auth.RateLimitPerWindow, cfg.Auth.RateLimitWindow)
	defer limiter.Close()

	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Metrics(m),
		auth.Authenticate(tokens),
		auth.RateLimit(limiter),
		middleware.Timeout(cfg.Server.WriteTimeout),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
