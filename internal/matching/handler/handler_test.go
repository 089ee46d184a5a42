package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/matching"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/matching/cache"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/tenant"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/weights"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (b *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (b *memBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

func (b *memBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range b.data {
		if strings.HasPrefix(k, prefix) {
			delete(b.data, k)
			n++
		}
	}
	return n, nil
}

type server struct {
	handler http.Handler
	cache   *cache.MatchCache
	store   *store.Memory
}

func newServer(t *testing.T) *server {
	t.Helper()
	v, err := vocabulary.Default()
	require.NoError(t, err)
	mem := store.NewMemory()
	docs := []*talent.Document{
		{ID: "job-1", TenantID: "t1", Kind: talent.KindJob, Title: "Data Analyst", CityCanonical: "tel_aviv",
			SkillSet: []string{"microsoft_excel", "python", "sql", "tableau"}, MustSkills: []string{"python", "sql"}},
		{ID: "job-2", TenantID: "t1", Kind: talent.KindJob, Title: "Data Analyst",
			SkillSet: []string{"python", "sql", "tableau"}},
		{ID: "cand-a", TenantID: "t1", Kind: talent.KindCandidate, Title: "data analyst", CityCanonical: "tel_aviv",
			SkillSet: []string{"python", "sql", "tableau"}},
		{ID: "cand-b", TenantID: "t1", Kind: talent.KindCandidate, Title: "accountant", CityCanonical: "haifa",
			SkillSet: []string{"python", "sql", "microsoft_excel"}},
	}
	for _, d := range docs {
		d.ContentHash = d.TenantID + "/" + d.ID
		require.NoError(t, mem.Insert(context.Background(), d))
	}

	engine := matching.NewEngine(mem, vocabulary.NewStaticRegistry(v), matching.Options{DefaultTopK: 10, MaxTopK: 50}, nil)
	mc := cache.New(&memBackend{data: make(map[string][]byte)}, time.Minute, nil)
	h := New(engine, mc, weights.NewService(mem, talent.DefaultWeights()), 0)
	mux := http.NewServeMux()
	h.Register(mux)
	return &server{handler: tenant.Middleware(mux), cache: mc, store: mem}
}

func (s *server) do(t *testing.T, method, target, tenantID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if tenantID != "" {
		req.Header.Set(tenant.Header, tenantID)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestCandidatesForJob(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/jobs/job-1/candidates?top_k=1", "t1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res matching.RankResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Results, 1)
	assert.Equal(t, "cand-a", res.Results[0].CounterpartID)
	assert.Equal(t, 2, res.Considered)

	hits, _ := s.cache.Stats()
	assert.Zero(t, hits)
	rec = s.do(t, http.MethodGet, "/api/v1/jobs/job-1/candidates?top_k=1", "t1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hits, _ = s.cache.Stats()
	assert.Equal(t, int64(1), hits)
}

func TestJobsForCandidate(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/candidates/cand-a/jobs", "t1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res matching.RankResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, matching.DirectionJobs, res.Direction)
	assert.Len(t, res.Results, 2)
}

func TestRankErrors(t *testing.T) {
	s := newServer(t)
	tests := []struct {
		name   string
		target string
		tenant string
		want   int
	}{
		{name: "no tenant", target: "/api/v1/jobs/job-1/candidates", want: http.StatusUnauthorized},
		{name: "other tenant", target: "/api/v1/jobs/job-1/candidates", tenant: "t2", want: http.StatusNotFound},
		{name: "unknown anchor", target: "/api/v1/jobs/nope/candidates", tenant: "t1", want: http.StatusNotFound},
		{name: "bad top_k", target: "/api/v1/jobs/job-1/candidates?top_k=0", tenant: "t1", want: http.StatusBadRequest},
		{name: "bad city filter", target: "/api/v1/jobs/job-1/candidates?city_filter=maybe", tenant: "t1", want: http.StatusBadRequest},
		{name: "negative distance", target: "/api/v1/jobs/job-1/candidates?max_distance_km=-1", tenant: "t1", want: http.StatusBadRequest},
		{name: "anchor without city", target: "/api/v1/jobs/job-2/candidates?city_filter=true", tenant: "t1", want: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.target, tt.tenant, "")
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRankMissingDataNamesFields(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/jobs/job-2/candidates?city_filter=true&max_distance_km=50", "t1", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		DocumentID string   `json:"document_id"`
		Fields     []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "job-2", body.DocumentID)
	assert.Equal(t, []string{"city_canonical"}, body.Fields)
}

func TestExplain(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/explain?anchor_id=job-1&counterpart_id=cand-a&direction=candidates", "t1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var b matching.Breakdown
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, "cand-a", b.CounterpartID)
	assert.Equal(t, []string{"python", "sql"}, b.MustSkills)
	assert.False(t, b.Excluded)

	rec = s.do(t, http.MethodGet, "/api/v1/explain?anchor_id=job-1", "t1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/explain?anchor_id=job-1&counterpart_id=cand-a&direction=sideways", "t1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeightsRoundTrip(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/weights", "t1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var before weightsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))
	assert.Equal(t, talent.DefaultWeights().Fingerprint(), before.Fingerprint)

	rec = s.do(t, http.MethodPut, "/api/v1/weights", "t1", `{"skill_weight":1,"title_weight":1,"distance_weight":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var after weightsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.InDelta(t, 0.5, after.Distance, 1e-9)
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)

	rec = s.do(t, http.MethodPut, "/api/v1/weights", "t1", `{"skill_weight":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPut, "/api/v1/weights", "t1", `{"bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/job-1/candidates", "t1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res matching.RankResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, after.Fingerprint, res.WeightsFingerprint)
}

func TestCacheInvalidate(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/jobs/job-1/candidates", "t1", "").Code)

	rec := s.do(t, http.MethodPost, "/api/v1/cache/invalidate", "t1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, ok := s.cache.Get(context.Background(), "t1", talent.DefaultWeights(), matching.RankRequest{
		AnchorID:  "job-1",
		Direction: matching.DirectionCandidates,
	})
	assert.False(t, ok)

	rec = s.do(t, http.MethodGet, "/api/v1/cache/stats", "t1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"misses"`)
}
