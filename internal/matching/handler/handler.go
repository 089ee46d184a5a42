package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/matching"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/matching/cache"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/tenant"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/weights"
	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/logger"
)

type Ranker interface {
	Rank(ctx context.Context, tenantID string, w talent.Weights, req matching.RankRequest) (*matching.RankResult, error)
	Explain(ctx context.Context, tenantID string, w talent.Weights, req matching.ExplainRequest) (*matching.Breakdown, error)
}

type Handler struct {
	ranker       Ranker
	cache        *cache.MatchCache
	weights      *weights.Service
	defaultMaxKm float64
	logger       *slog.Logger
}

// New creates a Handler. matchCache may be nil, in which case every rank
// request is computed.
func New(r Ranker, matchCache *cache.MatchCache, ws *weights.Service, defaultMaxKm float64) *Handler {
	return &Handler{
		ranker:       r,
		cache:        matchCache,
		weights:      ws,
		defaultMaxKm: defaultMaxKm,
		logger:       slog.Default().With("component", "match-handler"),
	}
}

// Register mounts the matcher routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/jobs/{id}/candidates", h.CandidatesForJob)
	mux.HandleFunc("GET /api/v1/candidates/{id}/jobs", h.JobsForCandidate)
	mux.HandleFunc("GET /api/v1/explain", h.Explain)
	mux.HandleFunc("GET /api/v1/weights", h.GetWeights)
	mux.HandleFunc("PUT /api/v1/weights", h.PutWeights)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) CandidatesForJob(w http.ResponseWriter, r *http.Request) {
	h.rank(w, r, matching.DirectionCandidates)
}

func (h *Handler) JobsForCandidate(w http.ResponseWriter, r *http.Request) {
	h.rank(w, r, matching.DirectionJobs)
}

func (h *Handler) rank(w http.ResponseWriter, r *http.Request, dir matching.Direction) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}
	q := r.URL.Query()
	req := matching.RankRequest{
		AnchorID:      r.PathValue("id"),
		Direction:     dir,
		MaxDistanceKm: h.defaultMaxKm,
	}
	if v := q.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "top_k must be a positive integer")
			return
		}
		req.TopK = n
	}
	var err error
	if req.CityFilter, req.MaxDistanceKm, err = h.cityParams(q.Get("city_filter"), q.Get("max_distance_km")); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wts, err := h.weights.Get(ctx)
	if err != nil {
		h.fail(w, log, "loading weights failed", err)
		return
	}

	var result *matching.RankResult
	cacheHit := false
	compute := func() (*matching.RankResult, error) {
		return h.ranker.Rank(ctx, tenantID, wts, req)
	}
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, tenantID, wts, req, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		h.fail(w, log, "rank failed", err)
		return
	}

	log.Info("rank completed",
		"anchor_id", req.AnchorID,
		"direction", dir,
		"returned", len(result.Results),
		"considered", result.Considered,
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}
	q := r.URL.Query()
	anchorID := strings.TrimSpace(q.Get("anchor_id"))
	counterpartID := strings.TrimSpace(q.Get("counterpart_id"))
	if anchorID == "" || counterpartID == "" {
		h.writeError(w, http.StatusBadRequest, "anchor_id and counterpart_id are required")
		return
	}
	dir := matching.DirectionCandidates
	if v := q.Get("direction"); v != "" {
		var err error
		if dir, err = matching.ParseDirection(v); err != nil {
			h.writeError(w, http.StatusBadRequest, "direction must be candidates or jobs")
			return
		}
	}
	req := matching.ExplainRequest{
		AnchorID:      anchorID,
		CounterpartID: counterpartID,
		Direction:     dir,
	}
	var err error
	if req.CityFilter, req.MaxDistanceKm, err = h.cityParams(q.Get("city_filter"), q.Get("max_distance_km")); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wts, err := h.weights.Get(ctx)
	if err != nil {
		h.fail(w, log, "loading weights failed", err)
		return
	}
	breakdown, err := h.ranker.Explain(ctx, tenantID, wts, req)
	if err != nil {
		h.fail(w, log, "explain failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, breakdown)
}

func (h *Handler) GetWeights(w http.ResponseWriter, r *http.Request) {
	wts, err := h.weights.Get(r.Context())
	if err != nil {
		h.fail(w, logger.FromContext(r.Context()), "loading weights failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, weightsBody(wts))
}

func (h *Handler) PutWeights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var u weights.Update
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	wts, err := h.weights.Set(ctx, u)
	if err != nil {
		h.fail(w, logger.FromContext(ctx), "updating weights failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, weightsBody(wts))
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":   hits,
		"misses": misses,
		"total":  hits + misses,
	})
}

// CacheInvalidate drops the caller tenant's cached rankings.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}
	if err := h.cache.InvalidateTenant(r.Context(), tenantID); err != nil {
		h.logger.Error("cache invalidation failed", "tenant_id", tenantID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) cityParams(filter, maxKm string) (bool, float64, error) {
	var cityFilter bool
	if filter != "" {
		b, err := strconv.ParseBool(filter)
		if err != nil {
			return false, 0, apperrors.New("city_filter must be a boolean")
		}
		cityFilter = b
	}
	km := h.defaultMaxKm
	if maxKm != "" {
		v, err := strconv.ParseFloat(maxKm, 64)
		if err != nil || v < 0 {
			return false, 0, apperrors.New("max_distance_km must be a non-negative number")
		}
		km = v
	}
	return cityFilter, km, nil
}

type weightsResponse struct {
	talent.Weights
	Fingerprint string `json:"fingerprint"`
}

func weightsBody(w talent.Weights) weightsResponse {
	return weightsResponse{Weights: w, Fingerprint: w.Fingerprint()}
}

func (h *Handler) fail(w http.ResponseWriter, log *slog.Logger, msg string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		log.Error(msg, "error", err, "status_code", status)
		h.writeError(w, status, msg)
		return
	}
	log.Warn(msg, "error", err, "status_code", status)
	var missing *apperrors.MissingDataError
	if apperrors.As(err, &missing) {
		h.writeJSON(w, status, map[string]any{
			"error":       "missing data",
			"document_id": missing.DocumentID,
			"fields":      missing.Fields,
		})
		return
	}
	h.writeError(w, status, err.Error())
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
