package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/identity"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/resilience"
)

// IngestBatch ingests every item with bounded concurrency. A failing item is
// reported and skipped; the batch itself only fails on an oversized request
// or a cancelled context. The run record is persisted before returning.
func (p *Pipeline) IngestBatch(ctx context.Context, tenantID string, kind talent.Kind, items []ingestion.IngestRequest) (*ingestion.BatchReport, error) {
	if len(items) > p.opts.MaxBatchSize {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "batch of %d exceeds limit %d", len(items), p.opts.MaxBatchSize)
	}
	run := &talent.IngestionRun{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Kind:      kind,
		StartedAt: p.now().UTC(),
		Total:     len(items),
	}

	var (
		mu      sync.Mutex
		results = make([]*itemResult, len(items))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.BatchConcurrency)
	for i := range items {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res, err := resilience.WithTimeout(gctx, p.opts.ItemTimeout, fmt.Sprintf("ingest item %d", i),
				func(ictx context.Context) (*itemResult, error) {
					return p.ingest(ictx, tenantID, kind, &items[i])
				})
			if err != nil && apperrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				err = apperrors.Wrapf(apperrors.ErrTimeout, "item %d after %v", i, p.opts.ItemTimeout)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.recordFailure(kind, err)
				run.Failures = append(run.Failures, talent.ItemFailure{Index: i, Reason: err.Error()})
				p.logger.Warn("batch item failed", "tenant_id", tenantID, "kind", kind, "index", i, "error", err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Wrap(err, "batch cancelled")
	}

	summarize(run, results)
	run.FinishedAt = p.now().UTC()
	run.DurationSec = run.FinishedAt.Sub(run.StartedAt).Seconds()
	if err := p.store.SaveRun(ctx, run); err != nil {
		p.logger.Error("failed to save ingestion run", "run_id", run.ID, "error", err)
	}

	p.logger.Info("batch ingested",
		"tenant_id", tenantID,
		"kind", kind,
		"run_id", run.ID,
		"total", run.Total,
		"created", run.Created,
		"updated", run.Updated,
		"unchanged", run.Unchanged,
		"failed", run.Failed,
		"duration_sec", run.DurationSec,
	)
	return &ingestion.BatchReport{
		RunID:     run.ID,
		Total:     run.Total,
		Created:   run.Created,
		Updated:   run.Updated,
		Unchanged: run.Unchanged,
		Failed:    run.Failed,
		Failures:  append([]talent.ItemFailure{}, run.Failures...),
	}, nil
}

// summarize fills the counters and skill statistics of run.
func summarize(run *talent.IngestionRun, results []*itemResult) {
	sort.Slice(run.Failures, func(i, j int) bool { return run.Failures[i].Index < run.Failures[j].Index })
	run.Failed = len(run.Failures)
	run.SkillHistogram = make(map[string]int)

	var docs, skills, withMandatory int
	for _, r := range results {
		if r == nil {
			continue
		}
		switch r.outcome.Action {
		case identity.ActionCreate:
			run.Created++
		case identity.ActionUpdate:
			run.Updated++
		case identity.ActionUnchanged:
			run.Unchanged++
		}
		docs++
		n := len(r.doc.SkillSet)
		skills += n
		run.SkillHistogram[strconv.Itoa(n)]++
		run.SyntheticTotal += len(r.doc.SyntheticSkills)
		if len(r.doc.MandatoryRequirements) > 0 {
			withMandatory++
		}
	}
	if docs > 0 {
		run.AvgSkills = round2(float64(skills) / float64(docs))
		run.MandatoryDetectRate = round2(float64(withMandatory) / float64(docs))
	}
	if skills > 0 {
		run.SyntheticRatio = round2(float64(run.SyntheticTotal) / float64(skills))
	}
}

func round2(x float64) float64 {
	return float64(int64(x*100+0.5)) / 100
}
