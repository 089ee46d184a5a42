package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/postgres"
)

//go:embed schema.sql
var schema string

// Postgres stores documents in PostgreSQL. The full document is kept as JSONB
// next to the columns the unique indexes and lookups need.
type Postgres struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewPostgres wraps an open client.
func NewPostgres(db *postgres.Client) *Postgres {
	return &Postgres{
		db:     db,
		logger: slog.Default().With("component", "document-store"),
	}
}

// Migrate applies the schema. Statements are idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.DB.ExecContext(ctx, schema); err != nil {
		return apperrors.Wrap(err, "applying schema")
	}
	p.logger.Info("schema applied")
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *Postgres) FindByExternalID(ctx context.Context, tenantID string, kind talent.Kind, externalID string) (*talent.Document, error) {
	row := p.db.DB.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE tenant_id=$1 AND kind=$2 AND external_order_id=$3 AND external_order_id <> ''`,
		tenantID, string(kind), externalID)
	return scanDocument(row, "external id "+externalID)
}

func (p *Postgres) FindByContentHash(ctx context.Context, tenantID string, kind talent.Kind, hash string) ([]*talent.Document, error) {
	return p.queryDocuments(ctx,
		`SELECT data FROM documents WHERE tenant_id=$1 AND kind=$2 AND content_hash=$3 ORDER BY created_at, id`,
		tenantID, string(kind), hash)
}

func (p *Postgres) Get(ctx context.Context, tenantID string, kind talent.Kind, id string) (*talent.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "%s %s", kind, id)
	}
	row := p.db.DB.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE tenant_id=$1 AND kind=$2 AND id=$3`,
		tenantID, string(kind), id)
	return scanDocument(row, string(kind)+" "+id)
}

func (p *Postgres) List(ctx context.Context, tenantID string, kind talent.Kind) ([]*talent.Document, error) {
	return p.queryDocuments(ctx,
		`SELECT data FROM documents WHERE tenant_id=$1 AND kind=$2 ORDER BY id`,
		tenantID, string(kind))
}

func (p *Postgres) Count(ctx context.Context, tenantID string, kind talent.Kind) (int, error) {
	var n int
	err := p.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE tenant_id=$1 AND kind=$2`,
		tenantID, string(kind)).Scan(&n)
	if err != nil {
		return 0, apperrors.Wrap(err, "counting documents")
	}
	return n, nil
}

func (p *Postgres) Insert(ctx context.Context, doc *talent.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return apperrors.Wrap(err, "marshaling document")
	}
	_, err = p.db.DB.ExecContext(ctx,
		`INSERT INTO documents (id, tenant_id, kind, external_order_id, content_hash, city_canonical, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.TenantID, string(doc.Kind), nullableExternalID(doc.ExternalID),
		doc.ContentHash, doc.CityCanonical, data, doc.CreatedAt, doc.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return apperrors.Wrapf(apperrors.ErrDuplicate, "inserting %s", doc.Kind)
	}
	if err != nil {
		return apperrors.Wrap(err, "inserting document")
	}
	return nil
}

func (p *Postgres) ReplaceVersioned(ctx context.Context, prev, next *talent.Document, versionedAt time.Time) error {
	snapshot, err := json.Marshal(prev)
	if err != nil {
		return apperrors.Wrap(err, "marshaling snapshot")
	}
	data, err := json.Marshal(next)
	if err != nil {
		return apperrors.Wrap(err, "marshaling document")
	}
	return p.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_versions (id, document_id, tenant_id, kind, data, versioned_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), prev.ID, prev.TenantID, string(prev.Kind), snapshot, versionedAt.UTC(),
		); err != nil {
			return apperrors.Wrap(err, "inserting version snapshot")
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE documents SET external_order_id=$1, content_hash=$2, city_canonical=$3, data=$4, updated_at=$5
			WHERE tenant_id=$6 AND kind=$7 AND id=$8 AND content_hash=$9`,
			nullableExternalID(next.ExternalID), next.ContentHash, next.CityCanonical, data, next.UpdatedAt,
			prev.TenantID, string(prev.Kind), prev.ID, prev.ContentHash)
		if postgres.IsUniqueViolation(err) {
			return apperrors.Wrapf(apperrors.ErrDuplicate, "updating %s %s", prev.Kind, prev.ID)
		}
		if err != nil {
			return apperrors.Wrap(err, "updating document")
		}
		return requireOneRow(res, prev)
	})
}

func (p *Postgres) AdoptExternalID(ctx context.Context, tenantID string, kind talent.Kind, id, externalID string, updatedAt int64) error {
	res, err := p.db.DB.ExecContext(ctx,
		`UPDATE documents
		SET external_order_id=$1,
		    data=jsonb_set(data, '{external_order_id}', to_jsonb($1::text)) || jsonb_build_object('updated_at', $2::bigint),
		    updated_at=$2
		WHERE tenant_id=$3 AND kind=$4 AND id=$5 AND COALESCE(external_order_id, '') = ''`,
		externalID, updatedAt, tenantID, string(kind), id)
	if postgres.IsUniqueViolation(err) {
		return apperrors.Wrapf(apperrors.ErrDuplicate, "adopting external id %s", externalID)
	}
	if err != nil {
		return apperrors.Wrap(err, "adopting external id")
	}
	return requireOneRow(res, &talent.Document{ID: id, Kind: kind})
}

func (p *Postgres) UpdateDerived(ctx context.Context, doc *talent.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return apperrors.Wrap(err, "marshaling document")
	}
	res, err := p.db.DB.ExecContext(ctx,
		`UPDATE documents SET data=$1, city_canonical=$2
		WHERE tenant_id=$3 AND kind=$4 AND id=$5 AND content_hash=$6`,
		data, doc.CityCanonical, doc.TenantID, string(doc.Kind), doc.ID, doc.ContentHash)
	if err != nil {
		return apperrors.Wrap(err, "updating derived fields")
	}
	return requireOneRow(res, doc)
}

func (p *Postgres) Versions(ctx context.Context, tenantID string, kind talent.Kind, docID string) ([]talent.Snapshot, error) {
	if _, err := uuid.Parse(docID); err != nil {
		return nil, nil
	}
	rows, err := p.db.DB.QueryContext(ctx,
		`SELECT id, data, versioned_at FROM document_versions
		WHERE tenant_id=$1 AND kind=$2 AND document_id=$3 ORDER BY versioned_at, id`,
		tenantID, string(kind), docID)
	if err != nil {
		return nil, apperrors.Wrap(err, "listing versions")
	}
	defer rows.Close()

	var out []talent.Snapshot
	for rows.Next() {
		var (
			snap talent.Snapshot
			data []byte
		)
		if err := rows.Scan(&snap.ID, &data, &snap.VersionedAt); err != nil {
			return nil, apperrors.Wrap(err, "scanning version row")
		}
		if err := json.Unmarshal(data, &snap.Document); err != nil {
			return nil, apperrors.Wrap(err, "unmarshaling version")
		}
		snap.DocumentID = docID
		snap.TenantID = tenantID
		snap.Kind = kind
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (p *Postgres) Purge(ctx context.Context, tenantID string, kind talent.Kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.Wrapf(apperrors.ErrNotFound, "%s %s", kind, id)
	}
	return p.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE tenant_id=$1 AND kind=$2 AND id=$3`,
			tenantID, string(kind), id)
		if err != nil {
			return apperrors.Wrap(err, "purging document")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.Wrapf(apperrors.ErrNotFound, "%s %s", kind, id)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM document_versions WHERE tenant_id=$1 AND document_id=$2`,
			tenantID, id); err != nil {
			return apperrors.Wrap(err, "purging versions")
		}
		return nil
	})
}

func (p *Postgres) QuarantineJobsWithoutIdentity(ctx context.Context, tenantID string, now time.Time) (int, error) {
	var moved int
	err := p.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO quarantine (document_id, tenant_id, kind, data, quarantined_at)
			SELECT id, tenant_id, kind, data, $2 FROM documents
			WHERE tenant_id=$1 AND kind='job' AND COALESCE(TRIM(external_order_id), '') = ''
			ON CONFLICT (document_id) DO NOTHING`,
			tenantID, now.UTC())
		if err != nil {
			return apperrors.Wrap(err, "copying jobs to quarantine")
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM documents
			WHERE tenant_id=$1 AND kind='job' AND COALESCE(TRIM(external_order_id), '') = ''`,
			tenantID); err != nil {
			return apperrors.Wrap(err, "removing quarantined jobs")
		}
		n, _ := res.RowsAffected()
		moved = int(n)
		return nil
	})
	return moved, err
}

func (p *Postgres) ListQuarantine(ctx context.Context, tenantID string) ([]talent.QuarantineRecord, error) {
	rows, err := p.db.DB.QueryContext(ctx,
		`SELECT data, quarantined_at FROM quarantine WHERE tenant_id=$1 ORDER BY quarantined_at, document_id`,
		tenantID)
	if err != nil {
		return nil, apperrors.Wrap(err, "listing quarantine")
	}
	defer rows.Close()

	var out []talent.QuarantineRecord
	for rows.Next() {
		var (
			rec  talent.QuarantineRecord
			data []byte
		)
		if err := rows.Scan(&data, &rec.QuarantinedAt); err != nil {
			return nil, apperrors.Wrap(err, "scanning quarantine row")
		}
		if err := json.Unmarshal(data, &rec.Document); err != nil {
			p.logger.Warn("skipping corrupt quarantine record", "tenant_id", tenantID, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) Tenants(ctx context.Context, kind talent.Kind) ([]string, error) {
	rows, err := p.db.DB.QueryContext(ctx,
		`SELECT DISTINCT tenant_id FROM documents WHERE kind=$1 ORDER BY tenant_id`, string(kind))
	if err != nil {
		return nil, apperrors.Wrap(err, "listing tenants")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, apperrors.Wrap(err, "scanning tenant")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveRun(ctx context.Context, run *talent.IngestionRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return apperrors.Wrap(err, "marshaling ingestion run")
	}
	_, err = p.db.DB.ExecContext(ctx,
		`INSERT INTO ingestion_runs (id, tenant_id, kind, data, started_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.TenantID, string(run.Kind), data, run.StartedAt.UTC())
	if err != nil {
		return apperrors.Wrap(err, "saving ingestion run")
	}
	return nil
}

func (p *Postgres) LatestRuns(ctx context.Context, tenantID string, limit int) ([]talent.IngestionRun, error) {
	rows, err := p.db.DB.QueryContext(ctx,
		`SELECT data FROM ingestion_runs WHERE tenant_id=$1 ORDER BY started_at DESC LIMIT $2`,
		tenantID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "listing ingestion runs")
	}
	defer rows.Close()

	var out []talent.IngestionRun
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.Wrap(err, "scanning ingestion run")
		}
		var run talent.IngestionRun
		if err := json.Unmarshal(data, &run); err != nil {
			p.logger.Warn("skipping corrupt ingestion run", "tenant_id", tenantID, "error", err)
			continue
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (p *Postgres) LoadWeights(ctx context.Context) (*talent.Weights, error) {
	var data []byte
	err := p.db.DB.QueryRowContext(ctx, `SELECT data FROM weight_config WHERE id=1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "loading weights")
	}
	var w talent.Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, apperrors.Wrap(err, "unmarshaling weights")
	}
	return &w, nil
}

func (p *Postgres) SaveWeights(ctx context.Context, w talent.Weights) error {
	data, err := json.Marshal(w)
	if err != nil {
		return apperrors.Wrap(err, "marshaling weights")
	}
	_, err = p.db.DB.ExecContext(ctx,
		`INSERT INTO weight_config (id, data, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=EXCLUDED.updated_at`,
		data, w.UpdatedAt.UTC())
	if err != nil {
		return apperrors.Wrap(err, "saving weights")
	}
	return nil
}

func (p *Postgres) queryDocuments(ctx context.Context, query string, args ...any) ([]*talent.Document, error) {
	rows, err := p.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "querying documents")
	}
	defer rows.Close()

	var out []*talent.Document
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.Wrap(err, "scanning document row")
		}
		var doc talent.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, apperrors.Wrap(err, "unmarshaling document")
		}
		out = append(out, &doc)
	}
	return out, rows.Err()
}

func scanDocument(row *sql.Row, what string) (*talent.Document, error) {
	var data []byte
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "%s", what)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "querying document")
	}
	var doc talent.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrap(err, "unmarshaling document")
	}
	return &doc, nil
}

func requireOneRow(res sql.Result, doc *talent.Document) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return apperrors.Wrapf(apperrors.ErrStale, "%s %s", doc.Kind, doc.ID)
	}
	return nil
}

// nullableExternalID keeps the distinction between an absent id (NULL) and
// an empty one ('').
func nullableExternalID(id *string) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *id, Valid: true}
}
