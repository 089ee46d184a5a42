// Package identity decides whether an incoming document is new, an update of
// a stored one, or a repeat, and applies that decision to the store. The
// external id identifies a document first; the content hash of the scrubbed
// text is the fallback.
package identity

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/resilience"
)

// Action is the outcome of reconciling one document.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionUnchanged Action = "unchanged"
)

// ContentHash is the hex sha256 of already scrubbed text.
func ContentHash(scrubbed string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(scrubbed)))
}

// HashSource is the text a document's content hash is taken over: its
// scrubbed full text followed by its scrubbed requirements. Title, city and
// the other attributes do not take part, so two postings with the same text
// and no external id are one entity.
func HashSource(doc *talent.Document) string {
	parts := make([]string, 0, 2)
	for _, s := range []string{doc.FullText, doc.RequirementsText} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Outcome reports what Reconcile did.
type Outcome struct {
	Action     Action
	DocumentID string
	Attempts   int
	Document   *talent.Document
}

// Reconciler resolves identity against a Store.
type Reconciler struct {
	store      store.Store
	maxRetries int
	backoff    time.Duration
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *slog.Logger
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithMetrics counts conflict retries.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithBackoff sets the delay before the first retry.
func WithBackoff(d time.Duration) Option {
	return func(r *Reconciler) { r.backoff = d }
}

// NewReconciler makes at most attempts resolutions per document before
// reporting errors.ErrIdentityConflict.
func NewReconciler(s store.Store, attempts int, opts ...Option) *Reconciler {
	if attempts < 1 {
		attempts = 3
	}
	r := &Reconciler{
		store:      s,
		maxRetries: attempts,
		backoff:    10 * time.Millisecond,
		now:        time.Now,
		logger:     slog.Default().With("component", "reconciler"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reconcile stores doc, which must carry TenantID, Kind, ContentHash and its
// derived fields. ID and timestamps are assigned here. Losing a race to a
// concurrent writer (a uniqueness violation or a changed hash under a
// conditional update) re-runs the resolution.
func (r *Reconciler) Reconcile(ctx context.Context, doc *talent.Document) (*Outcome, error) {
	if doc.TenantID == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "document has no tenant")
	}
	var (
		out      *Outcome
		attempts int
	)
	err := resilience.Retry(ctx, "reconcile", resilience.RetryConfig{
		MaxAttempts:  r.maxRetries,
		InitialDelay: r.backoff,
		MaxDelay:     20 * r.backoff,
		ShouldRetry:  isConcurrencySignal,
		OnRetry: func(int, error) {
			if r.metrics != nil {
				r.metrics.IdentityConflictRetries.Inc()
			}
		},
	}, func() error {
		attempts++
		var err error
		out, err = r.resolve(ctx, doc)
		return err
	})
	if err != nil {
		if isConcurrencySignal(err) {
			r.logger.Warn("identity conflict persisted",
				"tenant_id", doc.TenantID,
				"kind", doc.Kind,
				"external_order_id", doc.ExternalIDValue(),
				"attempts", attempts,
				"error", err,
			)
			return nil, apperrors.Wrapf(apperrors.ErrIdentityConflict, "after %d attempts: %v", attempts, err)
		}
		return nil, err
	}
	out.Attempts = attempts
	return out, nil
}

func (r *Reconciler) resolve(ctx context.Context, doc *talent.Document) (*Outcome, error) {
	ext := doc.ExternalIDValue()

	var byExt *talent.Document
	if ext != "" {
		found, err := r.store.FindByExternalID(ctx, doc.TenantID, doc.Kind, ext)
		switch {
		case err == nil:
			byExt = found
		case !apperrors.Is(err, apperrors.ErrNotFound):
			return nil, apperrors.Wrap(err, "looking up external id")
		}
	}

	hashMatches, err := r.store.FindByContentHash(ctx, doc.TenantID, doc.Kind, doc.ContentHash)
	if err != nil {
		return nil, apperrors.Wrap(err, "looking up content hash")
	}
	byHash := pickHashMatch(hashMatches, ext)

	target := byExt
	if target == nil {
		target = byHash
	}
	now := r.now()

	if target == nil {
		created := doc.Clone()
		created.ID = uuid.NewString()
		created.CreatedAt = now.Unix()
		created.UpdatedAt = now.Unix()
		if err := r.store.Insert(ctx, created); err != nil {
			return nil, err
		}
		return &Outcome{Action: ActionCreate, DocumentID: created.ID, Document: created}, nil
	}

	if target.ContentHash == doc.ContentHash {
		if ext != "" && !target.HasExternalID() {
			if err := r.store.AdoptExternalID(ctx, target.TenantID, target.Kind, target.ID, ext, now.Unix()); err != nil {
				return nil, err
			}
			target.ExternalID = talent.StringPtr(ext)
			target.UpdatedAt = now.Unix()
			r.logger.Info("external id adopted", "tenant_id", target.TenantID, "document_id", target.ID, "external_order_id", ext)
		}
		return &Outcome{Action: ActionUnchanged, DocumentID: target.ID, Document: target}, nil
	}

	next := doc.Clone()
	next.ID = target.ID
	next.TenantID = target.TenantID
	next.Kind = target.Kind
	next.CreatedAt = target.CreatedAt
	next.UpdatedAt = now.Unix()
	if !next.HasExternalID() && target.HasExternalID() {
		next.ExternalID = target.ExternalID
	}
	if err := r.store.ReplaceVersioned(ctx, target, next, now); err != nil {
		return nil, err
	}
	return &Outcome{Action: ActionUpdate, DocumentID: next.ID, Document: next}, nil
}

// pickHashMatch returns the first hash match that may be the same entity.
// A stored document whose external id differs from a non-empty incoming one
// is a different entity that happens to share the text. Unidentified
// documents are preferred.
func pickHashMatch(matches []*talent.Document, ext string) *talent.Document {
	var fallback *talent.Document
	for _, d := range matches {
		stored := d.ExternalIDValue()
		switch {
		case stored == "":
			return d
		case ext == "" || stored == ext:
			if fallback == nil {
				fallback = d
			}
		}
	}
	return fallback
}

// isConcurrencySignal matches the errors a lost race surfaces as.
var isConcurrencySignal = resilience.RetryOn(apperrors.ErrDuplicate, apperrors.ErrStale)
