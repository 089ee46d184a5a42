// Package store is the document store gateway. Every read and write takes
// the tenant id explicitly; a document that exists under another tenant is
// reported as not found.
package store

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
)

// Store persists candidates, jobs and their side records.
//
// Uniqueness is enforced per (tenant, kind): a non-empty external id
// identifies at most one document, and at most one document without an
// external id carries a given content hash. Violations are reported as
// errors.ErrDuplicate; a conditional write that lost a race reports
// errors.ErrStale.
type Store interface {
	// FindByExternalID returns errors.ErrNotFound when no document matches.
	FindByExternalID(ctx context.Context, tenantID string, kind talent.Kind, externalID string) (*talent.Document, error)
	// FindByContentHash returns every document with the hash, oldest first.
	FindByContentHash(ctx context.Context, tenantID string, kind talent.Kind, hash string) ([]*talent.Document, error)
	Get(ctx context.Context, tenantID string, kind talent.Kind, id string) (*talent.Document, error)
	List(ctx context.Context, tenantID string, kind talent.Kind) ([]*talent.Document, error)
	Count(ctx context.Context, tenantID string, kind talent.Kind) (int, error)

	Insert(ctx context.Context, doc *talent.Document) error
	// ReplaceVersioned snapshots prev and overwrites it with next in one
	// transaction. The overwrite only applies while the stored content hash
	// still equals prev.ContentHash.
	ReplaceVersioned(ctx context.Context, prev, next *talent.Document, versionedAt time.Time) error
	// AdoptExternalID sets the external id of a document that has none.
	AdoptExternalID(ctx context.Context, tenantID string, kind talent.Kind, id, externalID string, updatedAt int64) error
	// UpdateDerived rewrites the derived skill fields and flags without
	// touching identity or content.
	UpdateDerived(ctx context.Context, doc *talent.Document) error
	Versions(ctx context.Context, tenantID string, kind talent.Kind, docID string) ([]talent.Snapshot, error)
	Purge(ctx context.Context, tenantID string, kind talent.Kind, id string) error

	// QuarantineJobsWithoutIdentity moves the tenant's jobs lacking an
	// external id into quarantine and returns how many moved.
	QuarantineJobsWithoutIdentity(ctx context.Context, tenantID string, now time.Time) (int, error)
	ListQuarantine(ctx context.Context, tenantID string) ([]talent.QuarantineRecord, error)
	Tenants(ctx context.Context, kind talent.Kind) ([]string, error)

	SaveRun(ctx context.Context, run *talent.IngestionRun) error
	LatestRuns(ctx context.Context, tenantID string, limit int) ([]talent.IngestionRun, error)

	// LoadWeights returns nil, nil when nothing was persisted yet.
	LoadWeights(ctx context.Context) (*talent.Weights, error)
	SaveWeights(ctx context.Context, w talent.Weights) error

	Ping(ctx context.Context) error
}
