// Package maintenance runs the background jobs that keep stored documents
// consistent with current rules: moving jobs without an external id into
// quarantine, and recomputing derived skill and city fields after the
// vocabulary changes.
package maintenance

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/extractor"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/kafka"
)

const (
	JobQuarantine = "quarantine"
	JobRecompute  = "recompute"

	actionQuarantined = "quarantined"
	actionRecomputed  = "recomputed"
)

// EventPublisher announces tenant-wide changes so match caches drop them.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// QuarantineReport counts the jobs moved per tenant.
type QuarantineReport struct {
	Tenants map[string]int
	Moved   int
}

// RecomputeReport counts documents whose derived fields changed.
type RecomputeReport struct {
	Scanned int
	Updated int
	Stale   int
}

// Jobs holds the job bodies. Scheduler decides when they run.
type Jobs struct {
	store     store.Store
	registry  *vocabulary.Registry
	extractor *extractor.Extractor
	publisher EventPublisher
	now       func() time.Time
	logger    *slog.Logger
}

// NewJobs creates Jobs. pub may be nil.
func NewJobs(s store.Store, reg *vocabulary.Registry, ext *extractor.Extractor, pub EventPublisher) *Jobs {
	return &Jobs{
		store:     s,
		registry:  reg,
		extractor: ext,
		publisher: pub,
		now:       time.Now,
		logger:    slog.Default().With("component", "maintenance"),
	}
}

// Quarantine moves every job with an absent or blank external id out of the
// live table, tenant by tenant. A failing tenant does not stop the others;
// the first error is returned after all tenants ran.
func (j *Jobs) Quarantine(ctx context.Context) (*QuarantineReport, error) {
	tenants, err := j.store.Tenants(ctx, talent.KindJob)
	if err != nil {
		return nil, apperrors.Wrap(err, "listing job tenants")
	}
	report := &QuarantineReport{Tenants: make(map[string]int)}
	var firstErr error
	for _, tenantID := range tenants {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		moved, err := j.store.QuarantineJobsWithoutIdentity(ctx, tenantID, j.now())
		if err != nil {
			j.logger.Error("quarantine failed", "tenant_id", tenantID, "error", err)
			if firstErr == nil {
				firstErr = apperrors.Wrapf(err, "quarantining tenant %s", tenantID)
			}
			continue
		}
		if moved == 0 {
			continue
		}
		report.Tenants[tenantID] = moved
		report.Moved += moved
		j.logger.Info("jobs quarantined", "tenant_id", tenantID, "moved", moved)
		j.announce(ctx, tenantID, talent.KindJob, actionQuarantined)
	}
	return report, firstErr
}

// Recompute re-runs extraction and city resolution over every stored
// document with the current vocabulary and writes back the derived fields
// that changed. Content and
// identity are untouched, so no version snapshot is taken. Documents that
// changed underneath the job are counted as stale and left for the next run.
func (j *Jobs) Recompute(ctx context.Context) (*RecomputeReport, error) {
	report := &RecomputeReport{}
	for _, kind := range []talent.Kind{talent.KindJob, talent.KindCandidate} {
		tenants, err := j.store.Tenants(ctx, kind)
		if err != nil {
			return report, apperrors.Wrapf(err, "listing %s tenants", kind)
		}
		for _, tenantID := range tenants {
			updated, err := j.recomputeTenant(ctx, tenantID, kind, report)
			if err != nil {
				return report, err
			}
			if updated > 0 {
				j.announce(ctx, tenantID, kind, actionRecomputed)
			}
		}
	}
	j.logger.Info("skill recompute finished",
		"scanned", report.Scanned,
		"updated", report.Updated,
		"stale", report.Stale,
	)
	return report, nil
}

func (j *Jobs) recomputeTenant(ctx context.Context, tenantID string, kind talent.Kind, report *RecomputeReport) (int, error) {
	docs, err := j.store.List(ctx, tenantID, kind)
	if err != nil {
		return 0, apperrors.Wrapf(err, "listing %s for tenant %s", kind, tenantID)
	}
	v := j.registry.Current()
	var updated int
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		report.Scanned++
		next := doc.Clone()
		next.SetCity(v.ResolveCity(next.City))
		j.extractor.Extract(extractor.InputFrom(next)).Apply(next)
		if sameDerived(doc, next) {
			continue
		}
		next.UpdatedAt = j.now().Unix()
		if err := j.store.UpdateDerived(ctx, next); err != nil {
			if apperrors.Is(err, apperrors.ErrStale) || apperrors.Is(err, apperrors.ErrNotFound) {
				report.Stale++
				continue
			}
			return updated, apperrors.Wrapf(err, "updating %s %s", kind, doc.ID)
		}
		updated++
		report.Updated++
	}
	return updated, nil
}

func sameDerived(a, b *talent.Document) bool {
	return a.CityCanonical == b.CityCanonical &&
		slices.Equal(a.SkillSet, b.SkillSet) &&
		slices.Equal(a.MustSkills, b.MustSkills) &&
		slices.Equal(a.MandatoryRequirements, b.MandatoryRequirements) &&
		slices.Equal(a.SyntheticSkills, b.SyntheticSkills) &&
		slices.Equal(a.EscoSkills, b.EscoSkills) &&
		slices.Equal(a.Flags, b.Flags)
}

func (j *Jobs) announce(ctx context.Context, tenantID string, kind talent.Kind, action string) {
	if j.publisher == nil {
		return
	}
	err := j.publisher.Publish(ctx, kafka.Event{
		Key: tenantID,
		Value: ingestion.DocumentChangedEvent{
			TenantID:   tenantID,
			Kind:       kind,
			Action:     action,
			OccurredAt: j.now().UTC(),
		},
	})
	if err != nil {
		j.logger.Warn("failed to announce maintenance change", "tenant_id", tenantID, "action", action, "error", err)
	}
}
