// Package vocabulary maps free-text skill, title and city tokens to canonical
// keys and carries the locale lexicons (mandatory markers, connectors,
// synthesis rules) the extractor runs on. A Vocabulary is an immutable
// snapshot; Registry swaps snapshots on reload.
package vocabulary

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	quoteReplacer = strings.NewReplacer(`"`, "", "'", "", "״", "", "׳", "", "`", "", "’", "", "‘", "")
	separatorRun  = regexp.MustCompile(`[\s\-_–—]+`)
)

const (
	leadingPunct  = ",:;!?()[]{}<>|*•·-–—_ \t"
	trailingPunct = ".,:;!?()[]{}<>|*•·-–—_ \t"
)

// Normalize produces the canonical key form: lowercase, quotes removed,
// whitespace and dash runs collapsed into a single "_". Every canonical key
// in the vocabulary is a fixed point of Normalize.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = quoteReplacer.Replace(s)
	s = strings.TrimLeft(s, leadingPunct)
	s = strings.TrimRight(s, trailingPunct)
	s = separatorRun.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Skill is a canonical skill entry.
type Skill struct {
	Key    string
	Label  string
	EscoID string
}

// City is a canonical city with its centroid.
type City struct {
	Key   string
	Label string
	Lat   float64
	Lon   float64
}

// Source names the document field a synthesis rule inspects.
type Source string

const (
	SourceTitle      Source = "title"
	SourceOccupation Source = "occupation"
)

// Rule proposes Skills when Pattern matches the text of one of Sources.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Sources []Source
	Skills  []string
}

// AppliesTo reports whether the rule inspects src.
func (r Rule) AppliesTo(src Source) bool {
	for _, s := range r.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// Vocabulary is one loaded snapshot of the lexicon files.
type Vocabulary struct {
	source       string
	skills       map[string]Skill
	skillAliases map[string]string
	titles       map[string]string
	cities       map[string]City
	cityAliases  map[string]string
	markers      []string
	connectors   map[string]struct{}
	prefixes     []string
	rules        []Rule
	topUp        []string
	maxWords     int
}

// Source describes where the snapshot was loaded from.
func (v *Vocabulary) Source() string { return v.source }

// Skill resolves a phrase to a canonical skill. A leading conjunction prefix
// is stripped when the phrase does not resolve as written.
func (v *Vocabulary) Skill(phrase string) (Skill, bool) {
	key := Normalize(phrase)
	if key == "" {
		return Skill{}, false
	}
	if k, ok := v.skillAliases[key]; ok {
		return v.skills[k], true
	}
	for _, p := range v.prefixes {
		rest, found := strings.CutPrefix(key, p)
		if !found {
			continue
		}
		rest = strings.TrimLeft(rest, "_")
		if k, ok := v.skillAliases[rest]; ok && rest != "" {
			return v.skills[k], true
		}
	}
	return Skill{}, false
}

// IsSkill reports whether key is a canonical skill key.
func (v *Vocabulary) IsSkill(key string) bool {
	_, ok := v.skills[key]
	return ok
}

// SkillByKey returns the entry for a canonical key.
func (v *Vocabulary) SkillByKey(key string) (Skill, bool) {
	s, ok := v.skills[key]
	return s, ok
}

// SkillKeys returns every canonical skill key, sorted.
func (v *Vocabulary) SkillKeys() []string {
	keys := make([]string, 0, len(v.skills))
	for k := range v.skills {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Title returns the canonical title key, falling back to the normalized text.
func (v *Vocabulary) Title(raw string) string {
	key := Normalize(raw)
	if k, ok := v.titles[key]; ok {
		return k
	}
	return key
}

// City resolves a raw city name to its centroid.
func (v *Vocabulary) City(raw string) (City, bool) {
	key := Normalize(raw)
	if k, ok := v.cityAliases[key]; ok {
		return v.cities[k], true
	}
	return City{}, false
}

// CityByKey returns the city stored under a canonical key.
func (v *Vocabulary) CityByKey(key string) (City, bool) {
	c, ok := v.cities[key]
	return c, ok
}

// CityKey returns the canonical key for raw, or its normalized form when the
// city is not in the table.
func (v *Vocabulary) CityKey(raw string) string {
	if c, ok := v.City(raw); ok {
		return c.Key
	}
	return Normalize(raw)
}

// ResolveCity returns CityKey(raw) and whether raw named a known city.
func (v *Vocabulary) ResolveCity(raw string) (string, bool) {
	if c, ok := v.City(raw); ok {
		return c.Key, true
	}
	return Normalize(raw), false
}

// MandatoryMarkers returns the lowercased marker lexicon.
func (v *Vocabulary) MandatoryMarkers() []string { return v.markers }

// IsConnector reports whether word joins two skills inside a phrase.
func (v *Vocabulary) IsConnector(word string) bool {
	_, ok := v.connectors[strings.ToLower(word)]
	return ok
}

// Rules returns the synthesis rules in file order.
func (v *Vocabulary) Rules() []Rule { return v.rules }

// TopUp returns the generic skills used to fill a short synthetic set.
func (v *Vocabulary) TopUp() []string { return v.topUp }

// MaxPhraseWords is the word count of the longest skill alias.
func (v *Vocabulary) MaxPhraseWords() int { return v.maxWords }

// defaultLabel turns "data_analysis" into "Data Analysis".
func defaultLabel(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			r[0] = unicode.ToUpper(r[0])
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
