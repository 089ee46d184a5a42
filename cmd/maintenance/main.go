// Command maintenance runs the quarantine sweep and skill recompute jobs on
// their cron specs. With -run it executes one job and exits.
//
// Usage:
//
//	go run ./cmd/maintenance [-config configs/development.yaml] [-run quarantine|recompute]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/extractor"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/maintenance"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	runOnce := flag.String("run", "", "run one job (quarantine or recompute) and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting maintenance service",
		"quarantine_spec", cfg.Maintenance.QuarantineSpec,
		"recompute_spec", cfg.Maintenance.RecomputeSpec,
	)

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
	if cfg.Metrics.Enabled && *runOnce == "" {
		m = metrics.New(nil)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	var publisher maintenance.EventPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentChanged)
		defer producer.Close()
		publisher = producer
	}

	ext := extractor.New(registry, extractor.Options{
		Floor:           cfg.Ingestion.SkillFloor,
		Ceiling:         cfg.Ingestion.SkillCeiling,
		SyntheticTarget: cfg.Ingestion.SyntheticTarget,
		SyntheticMax:    cfg.Ingestion.SyntheticMax,
	})
	scheduler := maintenance.NewScheduler(maintenance.NewJobs(docs, registry, ext, publisher), cfg.Maintenance, m)

	if *runOnce != "" {
		if err := scheduler.RunNow(ctx, *runOnce); err != nil {
			slog.Error("maintenance job failed", "job", *runOnce, "error", err)
			os.Exit(1)
		}
		slog.Info("maintenance job finished", "job", *runOnce)
		return
	}

	if cfg.Vocabulary.Watch && cfg.Vocabulary.Dir != "" {
		watcher, err := vocabulary.NewWatcher(registry, cfg.Vocabulary.Debounce)
		if err != nil {
			slog.Error("failed to watch vocabulary", "error", err)
			os.Exit(1)
		}
		watcher.OnReload(func(*vocabulary.Vocabulary) {
			slog.Info("vocabulary reloaded, scheduling skill recompute")
			scheduler.Trigger(maintenance.JobRecompute)
		})
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("vocabulary watcher stopped", "error", err)
			}
		}()
	}

	if err := scheduler.Start(ctx); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	slog.Info("maintenance service ready")

	<-ctx.Done()
	slog.Info("shutdown signal received")
	scheduler.Stop()
	slog.Info("maintenance service stopped")
}
