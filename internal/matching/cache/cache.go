// Package cache keeps rank results in Redis per tenant. Keys carry the
// weights fingerprint, so a weight change never serves a stale ordering, and
// a tenant's keys are dropped whenever one of its documents changes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/matching"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/redis"
)

const keyPrefix = "match:"

// Backend is the subset of *redis.Client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// MatchCache stores RankResults.
type MatchCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a MatchCache. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *MatchCache {
	return &MatchCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "match-cache"),
	}
}

// Get returns a cached result. Backend errors count as misses.
func (c *MatchCache) Get(ctx context.Context, tenantID string, w talent.Weights, req matching.RankRequest) (*matching.RankResult, bool) {
	key := BuildKey(tenantID, w, req)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result matching.RankResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "tenant_id", tenantID, "key", key)
	return &result, true
}

// Set stores result. Failures are logged only.
func (c *MatchCache) Set(ctx context.Context, tenantID string, w talent.Weights, req matching.RankRequest, result *matching.RankResult) {
	key := BuildKey(tenantID, w, req)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or computes it once for all
// concurrent callers with the same key. The bool reports a cache hit.
func (c *MatchCache) GetOrCompute(
	ctx context.Context,
	tenantID string,
	w talent.Weights,
	req matching.RankRequest,
	computeFn func() (*matching.RankResult, error),
) (*matching.RankResult, bool, error) {
	if result, ok := c.Get(ctx, tenantID, w, req); ok {
		return result, true, nil
	}
	key := BuildKey(tenantID, w, req)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, tenantID, w, req); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, tenantID, w, req, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*matching.RankResult), false, nil
}

// InvalidateTenant drops every cached result of the tenant.
func (c *MatchCache) InvalidateTenant(ctx context.Context, tenantID string) error {
	deleted, err := c.backend.FlushByPattern(ctx, tenantPattern(tenantID))
	if err != nil {
		return fmt.Errorf("invalidating cache for tenant %s: %w", tenantID, err)
	}
	c.logger.Info("cache invalidate", "tenant_id", tenantID, "keys_deleted", deleted)
	return nil
}

// InvalidateAll drops every cached result, used after a vocabulary reload.
func (c *MatchCache) InvalidateAll(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "scope", "all", "keys_deleted", deleted)
	return nil
}

// HandleDocumentChanged is a kafka.MessageHandler for DocumentChangedEvent.
func (c *MatchCache) HandleDocumentChanged(ctx context.Context, _ []byte, value []byte) error {
	event, err := kafka.DecodeJSON[ingestion.DocumentChangedEvent](value)
	if err != nil {
		return err
	}
	if event.TenantID == "" {
		return fmt.Errorf("%w: document change without tenant", kafka.ErrPoison)
	}
	return c.InvalidateTenant(ctx, event.TenantID)
}

// Stats returns hit and miss counts since start.
func (c *MatchCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *MatchCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *MatchCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey is match:<tenant>:<sha256 of the request and weights>.
func BuildKey(tenantID string, w talent.Weights, req matching.RankRequest) string {
	raw := fmt.Sprintf("%s|%s|top_k=%d|city=%t|max_km=%.3f|w=%s",
		req.AnchorID, req.Direction, req.TopK, req.CityFilter, req.MaxDistanceKm, w.Fingerprint())
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, tenantID, hash[:16])
}

func tenantPattern(tenantID string) string {
	return keyPrefix + escapeTenant(tenantID) + ":*"
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// escapeTenant keeps glob metacharacters in a tenant id from widening an
// invalidation pattern.
func escapeTenant(tenantID string) string {
	return globEscaper.Replace(tenantID)
}
