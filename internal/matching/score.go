package matching

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/vocabulary"
)

// FloorPolicy decides what happens to a pair whose skill overlap is below
// the effective floor.
type FloorPolicy string

// FloorExclude drops the pair from rank results; explain reports it as
// excluded with its component values intact.
const FloorExclude FloorPolicy = "exclude"

// Policy is the floor policy in force.
const Policy = FloorExclude

// pairScore is every intermediate value for one anchor/counterpart pair.
// Rank and Explain both read from it.
type pairScore struct {
	AnchorID          string
	CounterpartID     string
	Score             float64
	SkillScore        float64
	TitleSimilarity   float64
	DistanceComponent float64
	DistanceKm        *float64
	MustRatio         float64
	NeededRatio       float64
	Overlap           []string
	MustSkills        []string
	MustMatched       []string
	NeededMatched     []string
	MissingMust       []string
	EffectiveFloor    int
	BelowFloor        bool
	OutsideCityFilter bool
	AnchorCity        string
	CounterpartCity   string
}

// scoreParams are the per-request inputs that affect a pair's score.
type scoreParams struct {
	weights       talent.Weights
	maxDistanceKm float64
	cityFilter    bool
}

// scorePair computes the composite score for anchor against counterpart. It
// is the only scoring code path.
func scorePair(v *vocabulary.Vocabulary, anchor, counterpart *talent.Document, p scoreParams) pairScore {
	job, other := anchor, counterpart
	if anchor.Kind != talent.KindJob {
		job, other = counterpart, anchor
	}

	ps := pairScore{
		AnchorID:        anchor.ID,
		CounterpartID:   counterpart.ID,
		AnchorCity:      anchor.CityCanonical,
		CounterpartCity: counterpart.CityCanonical,
	}

	otherSkills := toSet(other.SkillSet)
	jobSkills := toSet(job.SkillSet)
	must := make(map[string]struct{})
	for _, s := range job.MustSkills {
		if _, ok := jobSkills[s]; ok {
			must[s] = struct{}{}
		}
	}
	var neededTotal int
	for s := range jobSkills {
		_, isMust := must[s]
		_, shared := otherSkills[s]
		if shared {
			ps.Overlap = append(ps.Overlap, s)
		}
		switch {
		case isMust && shared:
			ps.MustMatched = append(ps.MustMatched, s)
		case isMust:
			ps.MissingMust = append(ps.MissingMust, s)
		case shared:
			neededTotal++
			ps.NeededMatched = append(ps.NeededMatched, s)
		default:
			neededTotal++
		}
		if isMust {
			ps.MustSkills = append(ps.MustSkills, s)
		}
	}
	sort.Strings(ps.Overlap)
	sort.Strings(ps.MustSkills)
	sort.Strings(ps.MustMatched)
	sort.Strings(ps.NeededMatched)
	sort.Strings(ps.MissingMust)

	if len(must) > 0 {
		ps.MustRatio = float64(len(ps.MustMatched)) / float64(len(must))
	}
	if neededTotal > 0 {
		ps.NeededRatio = float64(len(ps.NeededMatched)) / float64(neededTotal)
	}
	wMust, wNeeded := p.weights.MustCategory, p.weights.NeededCategory
	switch {
	case len(must) == 0 && neededTotal == 0:
		ps.SkillScore = 0
	case len(must) == 0:
		ps.SkillScore = ps.NeededRatio
	case neededTotal == 0:
		ps.SkillScore = ps.MustRatio
	default:
		ps.SkillScore = (wMust*ps.MustRatio + wNeeded*ps.NeededRatio) / (wMust + wNeeded)
	}

	ps.EffectiveFloor = minInt(p.weights.MinSkillFloor, len(anchor.SkillSet), len(counterpart.SkillSet))
	ps.BelowFloor = len(ps.Overlap) < ps.EffectiveFloor

	ps.TitleSimilarity = titleSimilarity(v, anchor.Title, counterpart.Title)

	ac, aok := resolveCity(v, anchor)
	cc, cok := resolveCity(v, counterpart)
	resolved := aok && cok
	if resolved {
		d := haversineKm(ac, cc)
		ps.DistanceKm = &d
	}
	var km float64
	if ps.DistanceKm != nil {
		km = *ps.DistanceKm
	}
	ps.DistanceComponent = distanceComponent(km, resolved, p.maxDistanceKm)

	if p.cityFilter {
		switch {
		case !resolved:
			ps.OutsideCityFilter = true
		case p.maxDistanceKm <= 0:
			ps.OutsideCityFilter = ac.Key != cc.Key
		default:
			ps.OutsideCityFilter = km > p.maxDistanceKm
		}
	}

	w := p.weights
	total := w.Skill + w.Title + w.Distance
	if total > 0 {
		ps.Score = (w.Skill*ps.SkillScore + w.Title*ps.TitleSimilarity + w.Distance*ps.DistanceComponent) / total
	}
	ps.Score = round4(ps.Score)
	ps.SkillScore = round4(ps.SkillScore)
	ps.TitleSimilarity = round4(ps.TitleSimilarity)
	ps.DistanceComponent = round4(ps.DistanceComponent)
	ps.MustRatio = round4(ps.MustRatio)
	ps.NeededRatio = round4(ps.NeededRatio)
	return ps
}

// excluded reports whether rank drops the pair.
func (ps pairScore) excluded() (bool, string) {
	switch {
	case ps.OutsideCityFilter:
		return true, "outside_city_filter"
	case ps.BelowFloor && Policy == FloorExclude:
		return true, "below_skill_floor"
	}
	return false, ""
}

func sortMatches(m []Match) {
	sort.Slice(m, func(i, j int) bool {
		if m[i].Score != m[j].Score {
			return m[i].Score > m[j].Score
		}
		return m[i].CounterpartID < m[j].CounterpartID
	})
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, s := range items {
		out[s] = struct{}{}
	}
	return out
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}

func minInt(first int, rest ...int) int {
	m := first
	for _, x := range rest {
		if x < m {
			m = x
		}
	}
	if m < 0 {
		return 0
	}
	return m
}
