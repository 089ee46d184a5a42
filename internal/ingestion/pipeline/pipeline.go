// Package pipeline turns raw ingestion payloads into stored documents. Each
// item is mapped onto the document schema, validated, scrubbed of contact
// details, enriched with canonical skills and reconciled against the store.
// Creates and updates are announced on Kafka so matcher caches can be
// dropped.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/extractor"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/headers"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/identity"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/scrub"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/resilience"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Options controls batch behaviour.
type Options struct {
	BatchConcurrency int
	ItemTimeout      time.Duration
	MaxBatchSize     int
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	mapper     *headers.Mapper
	registry   *vocabulary.Registry
	extractor  *extractor.Extractor
	reconciler *identity.Reconciler
	store      store.Store
	publisher  EventPublisher
	breaker    *resilience.CircuitBreaker
	metrics    *metrics.Metrics
	opts       Options
	now        func() time.Time
	logger     *slog.Logger
}

// Deps are the collaborators of a Pipeline. Publisher, Breaker and Metrics
// may be nil.
type Deps struct {
	Mapper     *headers.Mapper
	Registry   *vocabulary.Registry
	Extractor  *extractor.Extractor
	Reconciler *identity.Reconciler
	Store      store.Store
	Publisher  EventPublisher
	Breaker    *resilience.CircuitBreaker
	Metrics    *metrics.Metrics
}

// New creates a Pipeline.
func New(d Deps, opts Options) *Pipeline {
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 4
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 5000
	}
	breaker := d.Breaker
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("document-events", resilience.CircuitBreakerConfig{})
	}
	return &Pipeline{
		mapper:     d.Mapper,
		registry:   d.Registry,
		extractor:  d.Extractor,
		reconciler: d.Reconciler,
		store:      d.Store,
		publisher:  d.Publisher,
		breaker:    breaker,
		metrics:    d.Metrics,
		opts:       opts,
		now:        time.Now,
		logger:     slog.Default().With("component", "ingestion-pipeline"),
	}
}

// itemResult is one reconciled document plus what the batch report needs.
type itemResult struct {
	outcome *identity.Outcome
	doc     *talent.Document
}

// Ingest stores one document for the tenant.
func (p *Pipeline) Ingest(ctx context.Context, tenantID string, kind talent.Kind, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	res, err := p.ingest(ctx, tenantID, kind, req)
	if err != nil {
		p.recordFailure(kind, err)
		return nil, err
	}
	return response(res), nil
}

func (p *Pipeline) ingest(ctx context.Context, tenantID string, kind talent.Kind, req *ingestion.IngestRequest) (*itemResult, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "tenant id is required")
	}
	if err := validator.ValidateIngestRequest(req); err != nil {
		return nil, err
	}

	v := p.registry.Current()
	doc := p.buildDocument(v, tenantID, kind, req)
	flags, err := validator.ValidateDocument(doc)
	if err != nil {
		return nil, err
	}
	doc.Flags = append(doc.Flags, flags...)

	p.extractor.Extract(extractor.InputFrom(doc)).Apply(doc)
	doc.ContentHash = identity.ContentHash(identity.HashSource(doc))

	outcome, err := p.reconciler.Reconcile(ctx, doc)
	if err != nil {
		return nil, err
	}

	p.recordSuccess(kind, outcome)
	if outcome.Action != identity.ActionUnchanged {
		p.publishChange(ctx, outcome)
	}
	p.logger.Debug("document ingested",
		"tenant_id", tenantID,
		"kind", kind,
		"doc_id", outcome.DocumentID,
		"action", outcome.Action,
		"skills", len(outcome.Document.SkillSet),
		"attempts", outcome.Attempts,
	)
	return &itemResult{outcome: outcome, doc: outcome.Document}, nil
}

// buildDocument maps the payload onto a scrubbed document.
func (p *Pipeline) buildDocument(v *vocabulary.Vocabulary, tenantID string, kind talent.Kind, req *ingestion.IngestRequest) *talent.Document {
	fields := make(headers.Fields)
	var body string
	if strings.TrimSpace(req.Text) != "" {
		fields, body = p.mapper.ParseText(req.Text, kind)
	}
	for field, value := range p.mapper.MapRow(req.Fields, kind) {
		if strings.TrimSpace(value) != "" || !fields.Has(field) {
			fields[field] = value
		}
	}

	doc := &talent.Document{
		TenantID:         tenantID,
		Kind:             kind,
		Title:            scrub.Text(fields.Get(headers.FieldTitle)),
		City:             fields.Get(headers.FieldCity),
		Occupation:       scrub.Text(fields.Get(headers.FieldOccupation)),
		Profession:       scrub.Text(fields.Get(headers.FieldProfession)),
		RequirementsText: scrub.Text(fields.Get(headers.FieldRequirements)),
		Attributes:       map[string]string{},
	}
	if kind == talent.KindJob && fields.Has(headers.FieldExternalOrderID) {
		doc.ExternalID = talent.StringPtr(fields.Get(headers.FieldExternalOrderID))
	}

	var text []string
	for _, f := range []string{headers.FieldDescription, headers.FieldExperience, headers.FieldEducation, headers.FieldNotes} {
		if s := fields.Get(f); s != "" {
			text = append(text, s)
		}
	}
	if body != "" {
		text = append(text, body)
	}
	doc.FullText = scrub.Text(strings.Join(text, "\n"))
	if doc.FullText == "" && doc.RequirementsText == "" {
		doc.Flags = append(doc.Flags, talent.FlagEmptyText)
	}

	if strings.TrimSpace(doc.City) != "" {
		doc.SetCity(v.ResolveCity(doc.City))
	}

	for field, value := range fields {
		if _, slotted := slottedFields[field]; slotted || value == "" {
			continue
		}
		if field == headers.FieldExternalOrderID && kind == talent.KindJob {
			continue
		}
		doc.Attributes[field] = scrub.Text(strings.TrimSpace(value))
	}
	if len(doc.Attributes) == 0 {
		doc.Attributes = nil
	}
	return doc
}

// slottedFields have a dedicated document field or are dropped outright.
var slottedFields = map[string]struct{}{
	headers.FieldTitle:        {},
	headers.FieldCity:         {},
	headers.FieldOccupation:   {},
	headers.FieldProfession:   {},
	headers.FieldRequirements: {},
	headers.FieldDescription:  {},
	headers.FieldExperience:   {},
	headers.FieldEducation:    {},
	headers.FieldNotes:        {},
	headers.FieldEmail:        {},
	headers.FieldPhone:        {},
}

func (p *Pipeline) publishChange(ctx context.Context, outcome *identity.Outcome) {
	doc := outcome.Document
	p.announce(ctx, ingestion.DocumentChangedEvent{
		TenantID:    doc.TenantID,
		Kind:        doc.Kind,
		DocumentID:  doc.ID,
		Action:      string(outcome.Action),
		ContentHash: doc.ContentHash,
		OccurredAt:  p.now().UTC(),
	})
}

// announce publishes a change through the breaker. A failure is logged only:
// the write already happened and caches fall back to their ttl.
func (p *Pipeline) announce(ctx context.Context, ev ingestion.DocumentChangedEvent) {
	if p.publisher == nil {
		return
	}
	err := p.breaker.Execute(func() error {
		return p.publisher.Publish(ctx, kafka.Event{Key: ev.TenantID, Value: ev})
	})
	if err != nil {
		p.logger.Error("failed to publish document change, caches may serve stale ranks until ttl",
			"tenant_id", ev.TenantID,
			"doc_id", ev.DocumentID,
			"action", ev.Action,
			"error", err,
		)
	}
}

// Purge removes a document of the tenant for good and announces the removal.
// Version snapshots go with it.
func (p *Pipeline) Purge(ctx context.Context, tenantID string, kind talent.Kind, id string) error {
	if err := p.store.Purge(ctx, tenantID, kind, id); err != nil {
		return err
	}
	p.logger.Info("document purged", "tenant_id", tenantID, "kind", kind, "doc_id", id)
	if p.metrics != nil {
		p.metrics.IngestDocumentsTotal.WithLabelValues(string(kind), ingestion.ActionPurged).Inc()
	}
	p.announce(ctx, ingestion.DocumentChangedEvent{
		TenantID:   tenantID,
		Kind:       kind,
		DocumentID: id,
		Action:     ingestion.ActionPurged,
		OccurredAt: p.now().UTC(),
	})
	return nil
}

func (p *Pipeline) recordSuccess(kind talent.Kind, outcome *identity.Outcome) {
	if p.metrics == nil {
		return
	}
	p.metrics.IngestDocumentsTotal.WithLabelValues(string(kind), string(outcome.Action)).Inc()
	if outcome.Action == identity.ActionUnchanged {
		return
	}
	p.metrics.IngestSkillCount.WithLabelValues(string(kind)).Observe(float64(len(outcome.Document.SkillSet)))
	for _, s := range outcome.Document.SyntheticSkills {
		p.metrics.SyntheticSkillsTotal.WithLabelValues(s.Reason).Inc()
	}
}

func (p *Pipeline) recordFailure(kind talent.Kind, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.IngestFailuresTotal.WithLabelValues(string(kind), failureReason(err)).Inc()
}

func failureReason(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return "invalid"
	case apperrors.Is(err, apperrors.ErrIdentityConflict):
		return "identity_conflict"
	case apperrors.Is(err, apperrors.ErrTimeout), apperrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "error"
}

func response(r *itemResult) *ingestion.IngestResponse {
	doc := r.doc
	return &ingestion.IngestResponse{
		DocumentID:      r.outcome.DocumentID,
		Action:          string(r.outcome.Action),
		Attempts:        r.outcome.Attempts,
		SkillCount:      len(doc.SkillSet),
		SyntheticSkills: append([]talent.SyntheticSkill{}, doc.SyntheticSkills...),
		MustSkills:      append([]string{}, doc.MustSkills...),
		Flags:           append([]string{}, doc.Flags...),
	}
}
