// Command ingestion starts the document ingestion HTTP service.
//
// The service accepts jobs and candidates via POST /api/v1/{kind} (single
// item) and POST /api/v1/{kind}/batch, canonicalizes them, extracts skills,
// reconciles identity against the document store and publishes a
// document-changed event to Kafka for downstream cache invalidation.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/extractor"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/headers"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/identity"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/tenant"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/resilience"
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
	slog.Info("starting ingestion service", "port", cfg.Server.Port, "store", cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open document store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	registry, err := vocabulary.NewRegistry(cfg.Vocabulary.Dir)
	if err != nil {
		slog.Error("failed to load vocabulary", "dir", cfg.Vocabulary.Dir, "error", err)
		os.Exit(1)
	}
	if cfg.Vocabulary.Watch && cfg.Vocabulary.Dir != "" {
		watcher, err := vocabulary.NewWatcher(registry, cfg.Vocabulary.Debounce)
		if err != nil {
			slog.Error("failed to watch vocabulary", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("vocabulary watcher stopped", "error", err)
			}
		}()
	}

	mapper, err := headers.NewMapper(cfg.Ingestion.HeaderOverrides)
	if err != nil {
		slog.Error("invalid header overrides", "error", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	var publisher pipeline.EventPublisher
	checker := health.NewChecker()
	checker.Register("store", docs.Ping)
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentChanged)
		defer producer.Close()
		publisher = producer
		slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentChanged)
	} else {
		slog.Warn("kafka disabled, match caches rely on ttl expiry")
	}

	breaker := resilience.NewCircuitBreaker("document-events", resilience.CircuitBreakerConfig{
		OnStateChange: func(name string, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	pipe := pipeline.New(pipeline.Deps{
		Mapper:   mapper,
		Registry: registry,
		Extractor: extractor.New(registry, extractor.Options{
			Floor:           cfg.Ingestion.SkillFloor,
			Ceiling:         cfg.Ingestion.SkillCeiling,
			SyntheticTarget: cfg.Ingestion.SyntheticTarget,
			SyntheticMax:    cfg.Ingestion.SyntheticMax,
		}),
		Reconciler: identity.NewReconciler(docs, cfg.Ingestion.ConflictRetries, identity.WithMetrics(m)),
		Store:      docs,
		Publisher:  publisher,
		Breaker:    breaker,
		Metrics:    m,
	}, pipeline.Options{
		BatchConcurrency: cfg.Ingestion.BatchConcurrency,
		ItemTimeout:      cfg.Ingestion.ItemTimeout,
		MaxBatchSize:     cfg.Ingestion.MaxBatchSize,
	})

	h := handler.New(pipe, docs)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if cfg.Server.TenantRateLimit > 0 {
		limiter := tenant.NewLimiter(cfg.Server.TenantRateLimit, cfg.Server.RateLimitWindow)
		go limiter.Run(ctx)
		chain = tenant.RateLimit(limiter)(chain)
	}
	chain = tenant.Middleware(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

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
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
