package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	id, ok := FromContext(WithTenant(context.Background(), "acme"))
	assert.True(t, ok)
	assert.Equal(t, "acme", id)

	_, ok = FromContext(WithTenant(context.Background(), ""))
	assert.False(t, ok)
}

func TestMiddleware(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		path   string
		header string
		want   int
		tenant string
	}{
		{name: "ok", path: "/api/v1/jobs", header: "acme", want: http.StatusNoContent, tenant: "acme"},
		{name: "missing", path: "/api/v1/jobs", want: http.StatusUnauthorized},
		{name: "glob", path: "/api/v1/jobs", header: "acme*", want: http.StatusUnauthorized},
		{name: "health exempt", path: "/health/live", want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(Header, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.tenant, seen)
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("tenant-1"))
	assert.True(t, Valid("Org.42_b"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("a b"))
	assert.False(t, Valid("-lead"))
	assert.False(t, Valid("a:b"))
}

func TestLimiterRefills(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("acme"))
	assert.True(t, l.Allow("acme"))
	assert.False(t, l.Allow("acme"))
	assert.True(t, l.Allow("globex"), "budgets are per tenant")

	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("acme"))
	assert.False(t, l.Allow("acme"))

	now = now.Add(10 * time.Minute)
	l.sweep()
	assert.Empty(t, l.buckets)
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	h := Middleware(RateLimit(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	send := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(Header, "acme")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusNoContent, send("/api/v1/runs").Code)
	limited := send("/api/v1/runs")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit of 1 requests per 1m0s exceeded"}`, limited.Body.String())
	assert.Equal(t, http.StatusNoContent, send("/health/live").Code)
}
