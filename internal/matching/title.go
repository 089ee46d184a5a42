package matching

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/vocabulary"
)

var diceMetric = metrics.NewSorensenDice()

// titleSimilarity compares two raw titles in [0,1]. Titles resolving to the
// same canonical title score 1; otherwise the Sørensen–Dice coefficient of
// character bigrams over the canonical forms is used.
func titleSimilarity(v *vocabulary.Vocabulary, a, b string) float64 {
	ka, kb := v.Title(a), v.Title(b)
	if ka == "" || kb == "" {
		return 0
	}
	if ka == kb {
		return 1
	}
	sim := strutil.Similarity(strings.ReplaceAll(ka, "_", " "), strings.ReplaceAll(kb, "_", " "), diceMetric)
	switch {
	case sim < 0:
		return 0
	case sim > 1:
		return 1
	}
	return sim
}
