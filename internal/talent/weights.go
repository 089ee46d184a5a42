package talent

import (
	"crypto/sha256"
	"fmt"
	"math"
	"time"
)

// Weights is the scoring configuration passed into every rank and explain
// call. Once normalized, Skill+Title+Distance == 1 and
// MustCategory+NeededCategory == 1.
type Weights struct {
	Skill          float64   `json:"skill_weight"`
	Title          float64   `json:"title_weight"`
	Distance       float64   `json:"distance_weight"`
	MustCategory   float64   `json:"must_category_weight"`
	NeededCategory float64   `json:"needed_category_weight"`
	MinSkillFloor  int       `json:"min_skill_floor"`
	UpdatedAt      time.Time `json:"updated_at,omitzero"`
}

// DefaultWeights returns the normalized built-in weights.
func DefaultWeights() Weights {
	w, _ := Weights{
		Skill:          0.85,
		Title:          0.15,
		Distance:       0.35,
		MustCategory:   0.7,
		NeededCategory: 0.3,
		MinSkillFloor:  3,
	}.Normalize()
	return w
}

// Normalize divides each group by its sum. It rejects negative or non-finite
// values and groups that sum to zero.
func (w Weights) Normalize() (Weights, error) {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"skill_weight", w.Skill},
		{"title_weight", w.Title},
		{"distance_weight", w.Distance},
		{"must_category_weight", w.MustCategory},
		{"needed_category_weight", w.NeededCategory},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return Weights{}, fmt.Errorf("%s must be a non-negative number", f.name)
		}
	}
	if w.MinSkillFloor < 0 {
		return Weights{}, fmt.Errorf("min_skill_floor must not be negative")
	}
	composite := w.Skill + w.Title + w.Distance
	if composite == 0 {
		return Weights{}, fmt.Errorf("skill, title and distance weights sum to zero")
	}
	category := w.MustCategory + w.NeededCategory
	if category == 0 {
		return Weights{}, fmt.Errorf("must and needed category weights sum to zero")
	}
	out := w
	out.Skill = w.Skill / composite
	out.Title = w.Title / composite
	out.Distance = w.Distance / composite
	out.MustCategory = w.MustCategory / category
	out.NeededCategory = w.NeededCategory / category
	return out, nil
}

// Fingerprint identifies the scoring-relevant values; UpdatedAt is ignored.
func (w Weights) Fingerprint() string {
	raw := fmt.Sprintf("%.6f|%.6f|%.6f|%.6f|%.6f|%d",
		w.Skill, w.Title, w.Distance, w.MustCategory, w.NeededCategory, w.MinSkillFloor)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))[:16]
}
