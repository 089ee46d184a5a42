package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/tenant"
	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/logger"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
	maxBodyBytes     = 32 << 20
)

// Ingester writes documents. *pipeline.Pipeline implements it.
type Ingester interface {
	Ingest(ctx context.Context, tenantID string, kind talent.Kind, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error)
	IngestBatch(ctx context.Context, tenantID string, kind talent.Kind, items []ingestion.IngestRequest) (*ingestion.BatchReport, error)
	Purge(ctx context.Context, tenantID string, kind talent.Kind, id string) error
}

// Reader is the read side of store.Store the handler serves.
type Reader interface {
	Get(ctx context.Context, tenantID string, kind talent.Kind, id string) (*talent.Document, error)
	Count(ctx context.Context, tenantID string, kind talent.Kind) (int, error)
	Versions(ctx context.Context, tenantID string, kind talent.Kind, docID string) ([]talent.Snapshot, error)
	ListQuarantine(ctx context.Context, tenantID string) ([]talent.QuarantineRecord, error)
	LatestRuns(ctx context.Context, tenantID string, limit int) ([]talent.IngestionRun, error)
}

type Handler struct {
	ingester Ingester
	reader   Reader
	logger   *slog.Logger
}

func New(ing Ingester, reader Reader) *Handler {
	return &Handler{
		ingester: ing,
		reader:   reader,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

// Register mounts the ingestion routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/{kind}", h.Ingest)
	mux.HandleFunc("POST /api/v1/{kind}/batch", h.IngestBatch)
	mux.HandleFunc("GET /api/v1/{kind}/count", h.Count)
	mux.HandleFunc("GET /api/v1/{kind}/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/{kind}/{id}", h.Purge)
	mux.HandleFunc("GET /api/v1/{kind}/{id}/versions", h.Versions)
	mux.HandleFunc("GET /api/v1/runs", h.Runs)
	mux.HandleFunc("GET /api/v1/quarantine", h.Quarantine)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	tenantID, kind, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req ingestion.IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.ingester.Ingest(ctx, tenantID, kind, &req)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	log.Info("document ingested",
		"kind", kind,
		"doc_id", resp.DocumentID,
		"action", resp.Action,
		"skills", resp.SkillCount,
	)
	status := http.StatusOK
	if resp.Action == "create" {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	tenantID, kind, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req ingestion.BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		h.writeError(w, http.StatusBadRequest, "items must not be empty")
		return
	}

	report, err := h.ingester.IngestBatch(ctx, tenantID, kind, req.Items)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	log.Info("batch ingested",
		"kind", kind,
		"run_id", report.RunID,
		"total", report.Total,
		"failed", report.Failed,
	)
	h.writeJSON(w, http.StatusOK, report)
}

// Runs lists the tenant's most recent batch runs, newest first.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}
	runs, err := h.reader.LatestRuns(ctx, tenantID, limit)
	if err != nil {
		h.fail(w, logger.FromContext(ctx), err)
		return
	}
	if runs == nil {
		runs = []talent.IngestionRun{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// Get returns one stored document of the tenant.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, kind, ok := h.scope(w, r)
	if !ok {
		return
	}
	doc, err := h.reader.Get(ctx, tenantID, kind, r.PathValue("id"))
	if err != nil {
		h.fail(w, logger.FromContext(ctx), err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// Versions lists the snapshots of a document, oldest first.
func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, kind, ok := h.scope(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if _, err := h.reader.Get(ctx, tenantID, kind, id); err != nil {
		h.fail(w, logger.FromContext(ctx), err)
		return
	}
	versions, err := h.reader.Versions(ctx, tenantID, kind, id)
	if err != nil {
		h.fail(w, logger.FromContext(ctx), err)
		return
	}
	if versions == nil {
		versions = []talent.Snapshot{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"document_id": id, "versions": versions})
}

func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, kind, ok := h.scope(w, r)
	if !ok {
		return
	}
	n, err := h.reader.Count(ctx, tenantID, kind)
	if err != nil {
		h.fail(w, logger.FromContext(ctx), err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "count": n})
}

// Purge deletes a document and its versions. Answers 204.
func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, kind, ok := h.scope(w, r)
	if !ok {
		return
	}
	if err := h.ingester.Purge(ctx, tenantID, kind, r.PathValue("id")); err != nil {
		h.fail(w, logger.FromContext(ctx), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Quarantine lists the tenant's quarantined jobs.
func (h *Handler) Quarantine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}
	records, err := h.reader.ListQuarantine(ctx, tenantID)
	if err != nil {
		h.fail(w, logger.FromContext(ctx), err)
		return
	}
	if records == nil {
		records = []talent.QuarantineRecord{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"quarantine": records})
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (string, talent.Kind, bool) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing tenant")
		return "", "", false
	}
	kind, err := talent.ParseKind(r.PathValue("kind"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "unknown document kind")
		return "", "", false
	}
	return tenantID, kind, true
}

func (h *Handler) fail(w http.ResponseWriter, log *slog.Logger, err error) {
	var validationErr *validator.ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
		return
	}
	statusCode := apperrors.HTTPStatusCode(err)
	if statusCode >= http.StatusInternalServerError {
		log.Error("request failed", "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, "internal error")
		return
	}
	log.Warn("request rejected", "error", err, "status_code", statusCode)
	h.writeError(w, statusCode, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
