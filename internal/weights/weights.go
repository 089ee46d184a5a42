// Package weights owns the scoring weight configuration. Reads fall back to
// the configured defaults until an administrator stores a set; writes merge a
// partial update onto the current record, normalize it and persist it with
// last-writer-wins semantics.
package weights

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
)

// Update carries the raw values an administrator wants to change. Nil
// fields keep the current value.
type Update struct {
	Skill          *float64 `json:"skill_weight,omitempty"`
	Title          *float64 `json:"title_weight,omitempty"`
	Distance       *float64 `json:"distance_weight,omitempty"`
	MustCategory   *float64 `json:"must_category_weight,omitempty"`
	NeededCategory *float64 `json:"needed_category_weight,omitempty"`
	MinSkillFloor  *int     `json:"min_skill_floor,omitempty"`
}

// Empty reports whether u changes nothing.
func (u Update) Empty() bool {
	return u.Skill == nil && u.Title == nil && u.Distance == nil &&
		u.MustCategory == nil && u.NeededCategory == nil && u.MinSkillFloor == nil
}

// Service reads and writes the weight configuration.
type Service struct {
	store    store.Store
	defaults talent.Weights
	now      func() time.Time
	mu       sync.Mutex
	logger   *slog.Logger
}

// FromConfig converts the configured initial weights.
func FromConfig(cfg config.WeightsConfig) talent.Weights {
	return talent.Weights{
		Skill:          cfg.Skill,
		Title:          cfg.Title,
		Distance:       cfg.Distance,
		MustCategory:   cfg.MustCategory,
		NeededCategory: cfg.NeededCategory,
		MinSkillFloor:  cfg.MinSkillFloor,
	}
}

// NewService creates a Service. Invalid defaults fall back to the built-in
// weights.
func NewService(s store.Store, defaults talent.Weights) *Service {
	logger := slog.Default().With("component", "weights")
	norm, err := defaults.Normalize()
	if err != nil {
		logger.Warn("configured weights invalid, using built-in defaults", "error", err)
		norm = talent.DefaultWeights()
	}
	return &Service{
		store:    s,
		defaults: norm,
		now:      time.Now,
		logger:   logger,
	}
}

// Get returns the current normalized weights.
func (s *Service) Get(ctx context.Context) (talent.Weights, error) {
	stored, err := s.store.LoadWeights(ctx)
	if err != nil {
		return talent.Weights{}, apperrors.Wrap(err, "loading weights")
	}
	if stored == nil {
		return s.defaults, nil
	}
	return *stored, nil
}

// Set applies u to the current weights and persists the normalized result.
// Concurrent writers within this process are serialized; across processes
// the last write wins.
func (s *Service) Set(ctx context.Context, u Update) (talent.Weights, error) {
	if u.Empty() {
		return talent.Weights{}, apperrors.Wrap(apperrors.ErrInvalidInput, "no weight fields given")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx)
	if err != nil {
		return talent.Weights{}, err
	}
	next := merge(current, u)
	norm, err := next.Normalize()
	if err != nil {
		return talent.Weights{}, apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}
	norm.UpdatedAt = s.now().UTC()
	if err := s.store.SaveWeights(ctx, norm); err != nil {
		return talent.Weights{}, apperrors.Wrap(err, "saving weights")
	}
	s.logger.Info("weights updated",
		"skill", norm.Skill,
		"title", norm.Title,
		"distance", norm.Distance,
		"must_category", norm.MustCategory,
		"needed_category", norm.NeededCategory,
		"min_skill_floor", norm.MinSkillFloor,
		"fingerprint", norm.Fingerprint(),
	)
	return norm, nil
}

func merge(w talent.Weights, u Update) talent.Weights {
	if u.Skill != nil {
		w.Skill = *u.Skill
	}
	if u.Title != nil {
		w.Title = *u.Title
	}
	if u.Distance != nil {
		w.Distance = *u.Distance
	}
	if u.MustCategory != nil {
		w.MustCategory = *u.MustCategory
	}
	if u.NeededCategory != nil {
		w.NeededCategory = *u.NeededCategory
	}
	if u.MinSkillFloor != nil {
		w.MinSkillFloor = *u.MinSkillFloor
	}
	return w
}
