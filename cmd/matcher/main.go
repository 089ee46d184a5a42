// Command matcher serves ranking, explanation and weight administration.
//
// Rankings are cached in Redis per tenant and dropped when the ingestion
// service announces a document change on Kafka, when an administrator changes
// the weights (the weight fingerprint is part of the key) or when the
// vocabulary is reloaded.
//
// Usage:
//
//	go run ./cmd/matcher [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/matching"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/matching/cache"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/matching/handler"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/tenant"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/weights"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/redis"
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
	slog.Info("starting matcher service", "port", cfg.Server.Port, "store", cfg.Store.Driver)

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

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	var matchCache *cache.MatchCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, match caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			matchCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("match cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	if matchCache != nil && cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentChanged, matchCache.HandleDocumentChanged)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("document-changed consumer stopped", "error", err)
			}
		}()
		slog.Info("cache invalidation consumer started", "topic", cfg.Kafka.Topics.DocumentChanged)
	}

	if cfg.Vocabulary.Watch && cfg.Vocabulary.Dir != "" {
		watcher, err := vocabulary.NewWatcher(registry, cfg.Vocabulary.Debounce)
		if err != nil {
			slog.Error("failed to watch vocabulary", "error", err)
			os.Exit(1)
		}
		if matchCache != nil {
			watcher.OnReload(func(*vocabulary.Vocabulary) {
				ictx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := matchCache.InvalidateAll(ictx); err != nil {
					slog.Error("failed to drop match cache after vocabulary reload", "error", err)
				}
			})
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("vocabulary watcher stopped", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("store", docs.Ping)
	checker.RegisterOptional("redis", func(ctx context.Context) error {
		if redisClient == nil {
			return fmt.Errorf("not configured")
		}
		return redisClient.Ping(ctx)
	})

	engine := matching.NewEngine(docs, registry, matching.Options{
		DefaultTopK: cfg.Matching.DefaultTopK,
		MaxTopK:     cfg.Matching.MaxTopK,
	}, m)
	ws := weights.NewService(docs, weights.FromConfig(cfg.Weights))
	h := handler.New(engine, matchCache, ws, cfg.Matching.DefaultMaxDistanceKm)

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

	slog.Info("matcher service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("matcher service stopped")
}
