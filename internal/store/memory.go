package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
)

type docKey struct {
	tenant string
	kind   talent.Kind
	id     string
}

// Memory is an in-process Store with the same uniqueness and tenant rules as
// Postgres. Documents are cloned on the way in and out. Writes fail once ctx
// is done, so a caller that gave up never has its write applied.
type Memory struct {
	mu         sync.RWMutex
	docs       map[docKey]*talent.Document
	versions   map[docKey][]talent.Snapshot
	quarantine map[string][]talent.QuarantineRecord
	runs       map[string][]talent.IngestionRun
	weights    *talent.Weights
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		docs:       make(map[docKey]*talent.Document),
		versions:   make(map[docKey][]talent.Snapshot),
		quarantine: make(map[string][]talent.QuarantineRecord),
		runs:       make(map[string][]talent.IngestionRun),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) FindByExternalID(_ context.Context, tenantID string, kind talent.Kind, externalID string) (*talent.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if externalID != "" {
		for k, d := range m.docs {
			if k.tenant == tenantID && k.kind == kind && d.ExternalID != nil && *d.ExternalID == externalID {
				return d.Clone(), nil
			}
		}
	}
	return nil, apperrors.Wrapf(apperrors.ErrNotFound, "external id %s", externalID)
}

func (m *Memory) FindByContentHash(_ context.Context, tenantID string, kind talent.Kind, hash string) ([]*talent.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*talent.Document
	for k, d := range m.docs {
		if k.tenant == tenantID && k.kind == kind && d.ContentHash == hash {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) Get(_ context.Context, tenantID string, kind talent.Kind, id string) (*talent.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[docKey{tenantID, kind, id}]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "%s %s", kind, id)
	}
	return d.Clone(), nil
}

func (m *Memory) List(_ context.Context, tenantID string, kind talent.Kind) ([]*talent.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*talent.Document
	for k, d := range m.docs {
		if k.tenant == tenantID && k.kind == kind {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Count(_ context.Context, tenantID string, kind talent.Kind) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k := range m.docs {
		if k.tenant == tenantID && k.kind == kind {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Insert(ctx context.Context, doc *talent.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := docKey{doc.TenantID, doc.Kind, doc.ID}
	if _, exists := m.docs[key]; exists {
		return apperrors.Wrapf(apperrors.ErrDuplicate, "%s %s", doc.Kind, doc.ID)
	}
	if err := m.checkUnique(doc, ""); err != nil {
		return err
	}
	m.docs[key] = doc.Clone()
	return nil
}

func (m *Memory) ReplaceVersioned(ctx context.Context, prev, next *talent.Document, versionedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := docKey{prev.TenantID, prev.Kind, prev.ID}
	stored, ok := m.docs[key]
	if !ok || stored.ContentHash != prev.ContentHash {
		return apperrors.Wrapf(apperrors.ErrStale, "%s %s", prev.Kind, prev.ID)
	}
	if err := m.checkUnique(next, prev.ID); err != nil {
		return err
	}
	m.versions[key] = append(m.versions[key], talent.Snapshot{
		ID:          uuid.NewString(),
		DocumentID:  prev.ID,
		TenantID:    prev.TenantID,
		Kind:        prev.Kind,
		Document:    *prev.Clone(),
		VersionedAt: versionedAt.UTC(),
	})
	m.docs[key] = next.Clone()
	return nil
}

func (m *Memory) AdoptExternalID(ctx context.Context, tenantID string, kind talent.Kind, id, externalID string, updatedAt int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.docs[docKey{tenantID, kind, id}]
	if !ok || stored.HasExternalID() {
		return apperrors.Wrapf(apperrors.ErrStale, "%s %s", kind, id)
	}
	candidate := stored.Clone()
	candidate.ExternalID = talent.StringPtr(externalID)
	if err := m.checkUnique(candidate, id); err != nil {
		return err
	}
	candidate.UpdatedAt = updatedAt
	m.docs[docKey{tenantID, kind, id}] = candidate
	return nil
}

func (m *Memory) UpdateDerived(ctx context.Context, doc *talent.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := docKey{doc.TenantID, doc.Kind, doc.ID}
	stored, ok := m.docs[key]
	if !ok || stored.ContentHash != doc.ContentHash {
		return apperrors.Wrapf(apperrors.ErrStale, "%s %s", doc.Kind, doc.ID)
	}
	m.docs[key] = doc.Clone()
	return nil
}

func (m *Memory) Versions(_ context.Context, tenantID string, kind talent.Kind, docID string) ([]talent.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.versions[docKey{tenantID, kind, docID}]
	out := make([]talent.Snapshot, len(src))
	for i, s := range src {
		out[i] = s
		out[i].Document = *s.Document.Clone()
	}
	return out, nil
}

func (m *Memory) Purge(ctx context.Context, tenantID string, kind talent.Kind, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := docKey{tenantID, kind, id}
	if _, ok := m.docs[key]; !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "%s %s", kind, id)
	}
	delete(m.docs, key)
	delete(m.versions, key)
	return nil
}

func (m *Memory) QuarantineJobsWithoutIdentity(ctx context.Context, tenantID string, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []docKey
	for k, d := range m.docs {
		if k.tenant == tenantID && k.kind == talent.KindJob && !d.HasExternalID() {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].id < keys[j].id })
	for _, k := range keys {
		m.quarantine[tenantID] = append(m.quarantine[tenantID], talent.QuarantineRecord{
			Document:      *m.docs[k],
			QuarantinedAt: now.UTC(),
		})
		delete(m.docs, k)
	}
	return len(keys), nil
}

func (m *Memory) ListQuarantine(_ context.Context, tenantID string) ([]talent.QuarantineRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]talent.QuarantineRecord(nil), m.quarantine[tenantID]...), nil
}

func (m *Memory) Tenants(_ context.Context, kind talent.Kind) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for k := range m.docs {
		if k.kind == kind {
			seen[k.tenant] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) SaveRun(ctx context.Context, run *talent.IngestionRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.TenantID] = append(m.runs[run.TenantID], *run)
	return nil
}

func (m *Memory) LatestRuns(_ context.Context, tenantID string, limit int) ([]talent.IngestionRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := m.runs[tenantID]
	out := make([]talent.IngestionRun, 0, len(runs))
	for i := len(runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, runs[i])
	}
	return out, nil
}

func (m *Memory) LoadWeights(context.Context) (*talent.Weights, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.weights == nil {
		return nil, nil
	}
	w := *m.weights
	return &w, nil
}

func (m *Memory) SaveWeights(ctx context.Context, w talent.Weights) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weights = &w
	return nil
}

// checkUnique enforces both partial unique indexes for doc, ignoring the
// document with id self. Callers hold the write lock.
func (m *Memory) checkUnique(doc *talent.Document, self string) error {
	ext := ""
	if doc.ExternalID != nil {
		ext = *doc.ExternalID
	}
	for k, d := range m.docs {
		if k.tenant != doc.TenantID || k.kind != doc.Kind || k.id == self {
			continue
		}
		other := ""
		if d.ExternalID != nil {
			other = *d.ExternalID
		}
		if ext != "" && other == ext {
			return apperrors.Wrapf(apperrors.ErrDuplicate, "external id %s", ext)
		}
		if ext == "" && other == "" && d.ContentHash == doc.ContentHash {
			return apperrors.Wrapf(apperrors.ErrDuplicate, "content hash %s", shortHash(doc.ContentHash))
		}
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return strings.TrimSpace(h)
}
