package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/metrics"
)

// Scheduler runs Jobs on cron specs. A job never overlaps with itself, no
// matter whether it was started by its spec, at startup or by Trigger.
type Scheduler struct {
	cron    *cron.Cron
	jobs    *Jobs
	cfg     config.MaintenanceConfig
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	running map[string]bool
	ctx     context.Context
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler. m may be nil.
func NewScheduler(jobs *Jobs, cfg config.MaintenanceConfig, m *metrics.Metrics) *Scheduler {
	logger := slog.Default().With("component", "maintenance-scheduler")
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		jobs:    jobs,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		running: make(map[string]bool),
		ctx:     context.Background(),
	}
}

// Start registers the configured jobs and starts the cron loop. Jobs run
// with ctx; cancelling it stops in-flight work at the next document.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	specs := []struct {
		name string
		spec string
	}{
		{JobQuarantine, s.cfg.QuarantineSpec},
		{JobRecompute, s.cfg.RecomputeSpec},
	}
	for _, j := range specs {
		if j.spec == "" {
			s.logger.Info("maintenance job disabled", "job", j.name)
			continue
		}
		name := j.name
		if _, err := s.cron.AddFunc(j.spec, func() { s.run(name) }); err != nil {
			return apperrors.Wrapf(err, "scheduling %s with spec %q", name, j.spec)
		}
		s.logger.Info("maintenance job scheduled", "job", name, "spec", j.spec)
	}
	s.cron.Start()

	if s.cfg.RunOnStart {
		s.Trigger(JobQuarantine)
		s.Trigger(JobRecompute)
	}
	return nil
}

// Trigger runs the named job in the background unless it is already running.
func (s *Scheduler) Trigger(name string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(name)
	}()
}

// Stop stops the cron loop and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("maintenance scheduler stopped")
}

// RunNow runs the named job synchronously with ctx and reports its error.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	return s.execute(ctx, name)
}

func (s *Scheduler) run(name string) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	_ = s.execute(ctx, name)
}

func (s *Scheduler) execute(ctx context.Context, name string) error {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		s.logger.Info("maintenance job still running, skipped", "job", name)
		s.record(name, "skipped")
		return nil
	}
	s.running[name] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	start := time.Now()
	var err error
	switch name {
	case JobQuarantine:
		var rep *QuarantineReport
		if rep, err = s.jobs.Quarantine(ctx); rep != nil {
			s.logger.Info("quarantine sweep done", "moved", rep.Moved, "tenants", len(rep.Tenants))
		}
	case JobRecompute:
		var rep *RecomputeReport
		if rep, err = s.jobs.Recompute(ctx); rep != nil {
			s.logger.Info("skill recompute done", "scanned", rep.Scanned, "updated", rep.Updated, "stale", rep.Stale)
		}
	default:
		err = apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown maintenance job %q", name)
	}
	if err != nil {
		s.logger.Error("maintenance job failed", "job", name, "duration", time.Since(start), "error", err)
		s.record(name, "error")
		return err
	}
	s.record(name, "ok")
	return nil
}

func (s *Scheduler) record(job, status string) {
	if s.metrics != nil {
		s.metrics.MaintenanceRunsTotal.WithLabelValues(job, status).Inc()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
