package weights

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func TestGetReturnsDefaultsUntilSet(t *testing.T) {
	svc := NewService(store.NewMemory(), talent.DefaultWeights())
	w, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, talent.DefaultWeights(), w)
	assert.InDelta(t, 1.0, w.Skill+w.Title+w.Distance, 1e-9)
	assert.InDelta(t, 1.0, w.MustCategory+w.NeededCategory, 1e-9)
}

func TestSetMergesNormalizesAndPersists(t *testing.T) {
	mem := store.NewMemory()
	svc := NewService(mem, talent.DefaultWeights())
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	w, err := svc.Set(context.Background(), Update{
		Skill:    f64(2),
		Title:    f64(1),
		Distance: f64(1),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, w.Skill, 1e-9)
	assert.InDelta(t, 0.25, w.Title, 1e-9)
	assert.InDelta(t, 0.25, w.Distance, 1e-9)
	assert.InDelta(t, 0.7, w.MustCategory, 1e-9, "untouched pair keeps its value")
	assert.Equal(t, 3, w.MinSkillFloor)
	assert.Equal(t, svc.now(), w.UpdatedAt)

	fresh := NewService(mem, talent.DefaultWeights())
	got, err := fresh.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, w.Fingerprint(), got.Fingerprint())

	w, err = fresh.Set(context.Background(), Update{MustCategory: f64(1), NeededCategory: f64(1), MinSkillFloor: intp(0)})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, w.MustCategory, 1e-9)
	assert.InDelta(t, 0.5, w.Skill, 1e-9)
	assert.Equal(t, 0, w.MinSkillFloor)
}

func TestSetRejectsInvalid(t *testing.T) {
	svc := NewService(store.NewMemory(), talent.DefaultWeights())
	ctx := context.Background()

	cases := map[string]Update{
		"empty":        {},
		"negative":     {Skill: f64(-1)},
		"nan":          {Title: f64(math.NaN())},
		"inf":          {Distance: f64(math.Inf(1))},
		"zero triple":  {Skill: f64(0), Title: f64(0), Distance: f64(0)},
		"zero pair":    {MustCategory: f64(0), NeededCategory: f64(0)},
		"negative min": {MinSkillFloor: intp(-2)},
	}
	for name, u := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Set(ctx, u)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}

	w, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, talent.DefaultWeights(), w, "failed updates leave the record alone")
}

func TestNewServiceFallsBackOnInvalidDefaults(t *testing.T) {
	svc := NewService(store.NewMemory(), FromConfig(config.WeightsConfig{}))
	w, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, talent.DefaultWeights(), w)
}
