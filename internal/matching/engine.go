// Package matching ranks the counterparts of a job or candidate within one
// tenant. A composite score combines skill overlap, title similarity and
// city distance using the weights passed in by the caller.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/metrics"
)

// Direction names the kind being ranked.
type Direction string

const (
	// DirectionCandidates ranks candidates for a job anchor.
	DirectionCandidates Direction = "candidates"
	// DirectionJobs ranks jobs for a candidate anchor.
	DirectionJobs Direction = "jobs"
)

// ParseDirection accepts "candidates" or "jobs".
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionCandidates:
		return DirectionCandidates, nil
	case DirectionJobs:
		return DirectionJobs, nil
	}
	return "", apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown direction %q", s)
}

// AnchorKind is the kind of the document a direction ranks against.
func (d Direction) AnchorKind() talent.Kind {
	if d == DirectionJobs {
		return talent.KindCandidate
	}
	return talent.KindJob
}

// CounterpartKind is the kind a direction returns.
func (d Direction) CounterpartKind() talent.Kind {
	return d.AnchorKind().Counterpart()
}

// RankRequest selects an anchor and the ranking parameters.
type RankRequest struct {
	AnchorID      string    `json:"anchor_id"`
	Direction     Direction `json:"direction"`
	TopK          int       `json:"top_k"`
	CityFilter    bool      `json:"city_filter"`
	MaxDistanceKm float64   `json:"max_distance_km"`
}

// Match is one ranked counterpart.
type Match struct {
	CounterpartID     string   `json:"counterpart_id"`
	Title             string   `json:"title"`
	City              string   `json:"city_canonical,omitempty"`
	Score             float64  `json:"score"`
	SkillScore        float64  `json:"skill_score"`
	TitleSimilarity   float64  `json:"title_similarity"`
	DistanceComponent float64  `json:"distance_component"`
	DistanceKm        *float64 `json:"distance_km,omitempty"`
	SkillsOverlap     []string `json:"skills_overlap"`
	MustMatched       []string `json:"must_matched"`
	NeededMatched     []string `json:"needed_matched"`
	MissingMust       []string `json:"missing_must"`
}

// RankResult is the ordered response of Rank.
type RankResult struct {
	AnchorID           string    `json:"anchor_id"`
	Direction          Direction `json:"direction"`
	Results            []Match   `json:"results"`
	Considered         int       `json:"considered"`
	Excluded           int       `json:"excluded"`
	WeightsFingerprint string    `json:"weights_fingerprint"`
}

// ExplainRequest names one anchor/counterpart pair.
type ExplainRequest struct {
	AnchorID      string    `json:"anchor_id"`
	CounterpartID string    `json:"counterpart_id"`
	Direction     Direction `json:"direction"`
	CityFilter    bool      `json:"city_filter"`
	MaxDistanceKm float64   `json:"max_distance_km"`
}

// Breakdown is every value that went into one pair's score.
type Breakdown struct {
	Match
	AnchorID        string         `json:"anchor_id"`
	Direction       Direction      `json:"direction"`
	Weights         talent.Weights `json:"weights"`
	MustRatio       float64        `json:"must_ratio"`
	NeededRatio     float64        `json:"needed_ratio"`
	MustSkills      []string       `json:"must_skills"`
	EffectiveFloor  int            `json:"effective_floor"`
	FloorPolicy     FloorPolicy    `json:"floor_policy"`
	Excluded        bool           `json:"excluded"`
	ExclusionReason string         `json:"exclusion_reason,omitempty"`
	AnchorCity      string         `json:"anchor_city_canonical,omitempty"`
}

// Options bounds result sizes.
type Options struct {
	DefaultTopK int
	MaxTopK     int
}

// Engine runs rank and explain against a Store.
type Engine struct {
	store    store.Store
	registry *vocabulary.Registry
	opts     Options
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEngine creates an Engine. m may be nil.
func NewEngine(s store.Store, reg *vocabulary.Registry, opts Options, m *metrics.Metrics) *Engine {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 20
	}
	if opts.MaxTopK < opts.DefaultTopK {
		opts.MaxTopK = opts.DefaultTopK
	}
	return &Engine{
		store:    s,
		registry: reg,
		opts:     opts,
		metrics:  m,
		logger:   slog.Default().With("component", "matching-engine"),
	}
}

// Rank scores every counterpart of the anchor in the same tenant and returns
// the top K, ordered by score descending then counterpart id ascending.
func (e *Engine) Rank(ctx context.Context, tenantID string, w talent.Weights, req RankRequest) (*RankResult, error) {
	start := time.Now()
	res, err := e.rank(ctx, tenantID, w, req)
	if e.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = outcomeLabel(err)
		} else {
			e.metrics.RankResultsCount.Observe(float64(len(res.Results)))
		}
		e.metrics.RankRequestsTotal.WithLabelValues(string(req.Direction), outcome).Inc()
		e.metrics.RankLatency.WithLabelValues("compute").Observe(time.Since(start).Seconds())
	}
	return res, err
}

func (e *Engine) rank(ctx context.Context, tenantID string, w talent.Weights, req RankRequest) (*RankResult, error) {
	if err := validateParams(req.Direction, req.MaxDistanceKm); err != nil {
		return nil, err
	}
	topK := req.TopK
	if topK <= 0 {
		topK = e.opts.DefaultTopK
	}
	if topK > e.opts.MaxTopK {
		topK = e.opts.MaxTopK
	}

	anchor, err := e.store.Get(ctx, tenantID, req.Direction.AnchorKind(), req.AnchorID)
	if err != nil {
		return nil, err
	}
	v := e.registry.Current()
	if req.CityFilter {
		if _, ok := resolveCity(v, anchor); !ok {
			return nil, apperrors.MissingData(anchor.ID, "city_canonical")
		}
	}

	pool, err := e.store.List(ctx, tenantID, req.Direction.CounterpartKind())
	if err != nil {
		return nil, apperrors.Wrap(err, "loading counterparts")
	}

	params := scoreParams{weights: w, maxDistanceKm: req.MaxDistanceKm, cityFilter: req.CityFilter}
	out := &RankResult{
		AnchorID:           anchor.ID,
		Direction:          req.Direction,
		Results:            []Match{},
		Considered:         len(pool),
		WeightsFingerprint: w.Fingerprint(),
	}
	for _, c := range pool {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.TenantID != tenantID {
			continue
		}
		ps := scorePair(v, anchor, c, params)
		if skip, _ := ps.excluded(); skip {
			out.Excluded++
			continue
		}
		out.Results = append(out.Results, toMatch(ps, c))
	}
	sortMatches(out.Results)
	if len(out.Results) > topK {
		out.Results = out.Results[:topK]
	}

	e.logger.Debug("rank computed",
		"tenant_id", tenantID,
		"anchor_id", anchor.ID,
		"direction", req.Direction,
		"considered", out.Considered,
		"excluded", out.Excluded,
		"returned", len(out.Results),
	)
	return out, nil
}

// Explain returns the breakdown rank would compute for one pair.
func (e *Engine) Explain(ctx context.Context, tenantID string, w talent.Weights, req ExplainRequest) (*Breakdown, error) {
	if err := validateParams(req.Direction, req.MaxDistanceKm); err != nil {
		return nil, err
	}
	anchor, err := e.store.Get(ctx, tenantID, req.Direction.AnchorKind(), req.AnchorID)
	if err != nil {
		return nil, err
	}
	counterpart, err := e.store.Get(ctx, tenantID, req.Direction.CounterpartKind(), req.CounterpartID)
	if err != nil {
		return nil, err
	}
	v := e.registry.Current()
	if req.CityFilter {
		if _, ok := resolveCity(v, anchor); !ok {
			return nil, apperrors.MissingData(anchor.ID, "city_canonical")
		}
	}

	ps := scorePair(v, anchor, counterpart, scoreParams{
		weights:       w,
		maxDistanceKm: req.MaxDistanceKm,
		cityFilter:    req.CityFilter,
	})
	excluded, reason := ps.excluded()
	return &Breakdown{
		Match:           toMatch(ps, counterpart),
		AnchorID:        anchor.ID,
		Direction:       req.Direction,
		Weights:         w,
		MustRatio:       ps.MustRatio,
		NeededRatio:     ps.NeededRatio,
		MustSkills:      nonNil(ps.MustSkills),
		EffectiveFloor:  ps.EffectiveFloor,
		FloorPolicy:     Policy,
		Excluded:        excluded,
		ExclusionReason: reason,
		AnchorCity:      ps.AnchorCity,
	}, nil
}

func toMatch(ps pairScore, c *talent.Document) Match {
	return Match{
		CounterpartID:     ps.CounterpartID,
		Title:             c.Title,
		City:              c.CityCanonical,
		Score:             ps.Score,
		SkillScore:        ps.SkillScore,
		TitleSimilarity:   ps.TitleSimilarity,
		DistanceComponent: ps.DistanceComponent,
		DistanceKm:        ps.DistanceKm,
		SkillsOverlap:     nonNil(ps.Overlap),
		MustMatched:       nonNil(ps.MustMatched),
		NeededMatched:     nonNil(ps.NeededMatched),
		MissingMust:       nonNil(ps.MissingMust),
	}
}

func validateParams(d Direction, maxDistanceKm float64) error {
	if d != DirectionCandidates && d != DirectionJobs {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown direction %q", d)
	}
	if maxDistanceKm < 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "max_distance_km must not be negative")
	}
	return nil
}

func outcomeLabel(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case apperrors.Is(err, apperrors.ErrMissingData):
		return "missing_data"
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return "invalid"
	}
	return "error"
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// String renders a short description for logs.
func (r RankRequest) String() string {
	return fmt.Sprintf("%s/%s top_k=%d city_filter=%t max_km=%.1f", r.Direction, r.AnchorID, r.TopK, r.CityFilter, r.MaxDistanceKm)
}
