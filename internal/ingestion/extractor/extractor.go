// Package extractor turns free text into a canonical skill set. It resolves
// phrases against the vocabulary, detects mandatory requirement lines, and
// tops up sparse documents with synthetic skills inferred from the title and
// field of occupation.
package extractor

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/vocabulary"
)

// Synthetic skill reasons.
const (
	ReasonTitle      = "title_implied"
	ReasonOccupation = "occupation_implied"
	ReasonText       = "text_mention"
	ReasonTopUp      = "top_up"
)

// Options bounds the size of an extracted skill set.
type Options struct {
	Floor           int
	Ceiling         int
	SyntheticTarget int
	SyntheticMax    int
}

// DefaultOptions mirrors the ingestion config defaults.
func DefaultOptions() Options {
	return Options{Floor: 8, Ceiling: 35, SyntheticTarget: 12, SyntheticMax: 15}
}

// Input is the text of one document.
type Input struct {
	Title            string
	Occupation       string
	Profession       string
	FullText         string
	RequirementsText string
}

// Result holds the derived skill fields of a document.
type Result struct {
	SkillSet              []string
	MustSkills            []string
	MandatoryRequirements []string
	SyntheticSkills       []talent.SyntheticSkill
	EscoSkills            []talent.EscoSkill
	Unmatched             []string
	ExtractedCount        int
	Flags                 []string
}

// extractionFlags are owned by Extract; Apply replaces them on every run.
var extractionFlags = map[string]struct{}{
	talent.FlagNoSkills:          {},
	talent.FlagBelowSkillFloor:   {},
	talent.FlagNoSynthesisSignal: {},
	talent.FlagMandatoryNoSkills: {},
	talent.FlagOverGeneration:    {},
}

// InputFrom builds the extraction input of a stored document.
func InputFrom(doc *talent.Document) Input {
	return Input{
		Title:            doc.Title,
		Occupation:       doc.Occupation,
		Profession:       doc.Profession,
		FullText:         doc.FullText,
		RequirementsText: doc.RequirementsText,
	}
}

// Apply copies the derived fields onto doc. Flags set by an earlier
// extraction are dropped first; other flags are kept.
func (r *Result) Apply(doc *talent.Document) {
	doc.SkillSet = r.SkillSet
	doc.MustSkills = r.MustSkills
	doc.MandatoryRequirements = r.MandatoryRequirements
	doc.SyntheticSkills = r.SyntheticSkills
	doc.EscoSkills = r.EscoSkills
	kept := doc.Flags[:0:0]
	for _, f := range doc.Flags {
		if _, owned := extractionFlags[f]; !owned {
			kept = append(kept, f)
		}
	}
	doc.Flags = kept
	for _, f := range r.Flags {
		if !doc.HasFlag(f) {
			doc.Flags = append(doc.Flags, f)
		}
	}
}

// Extractor runs extraction against the registry's current vocabulary.
type Extractor struct {
	registry *vocabulary.Registry
	opts     Options
	logger   *slog.Logger
}

// New creates an Extractor. Zero-valued options take the defaults.
func New(reg *vocabulary.Registry, opts Options) *Extractor {
	def := DefaultOptions()
	if opts.Ceiling <= 0 {
		opts.Ceiling = def.Ceiling
	}
	if opts.Floor < 0 {
		opts.Floor = def.Floor
	}
	if opts.SyntheticTarget <= 0 {
		opts.SyntheticTarget = def.SyntheticTarget
	}
	if opts.SyntheticMax <= 0 {
		opts.SyntheticMax = def.SyntheticMax
	}
	return &Extractor{
		registry: reg,
		opts:     opts,
		logger:   slog.Default().With("component", "extractor"),
	}
}

// Options returns the active bounds.
func (e *Extractor) Options() Options { return e.opts }

// skillSet keeps keys in first-seen order.
type skillSet struct {
	order []string
	seen  map[string]struct{}
}

func newSkillSet() *skillSet {
	return &skillSet{seen: make(map[string]struct{})}
}

func (s *skillSet) add(key string) bool {
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.order = append(s.order, key)
	return true
}

func (s *skillSet) has(key string) bool {
	_, ok := s.seen[key]
	return ok
}

func (s *skillSet) len() int { return len(s.order) }

// Extract never fails; empty or malformed input yields an empty skill set
// and explanatory flags.
func (e *Extractor) Extract(in Input) *Result {
	v := e.registry.Current()
	res := &Result{
		MandatoryRequirements: []string{},
		SyntheticSkills:       []talent.SyntheticSkill{},
	}

	text := in.FullText
	if req := strings.TrimSpace(in.RequirementsText); req != "" && !strings.Contains(text, req) {
		text = text + "\n" + in.RequirementsText
	}

	found := newSkillSet()
	var unmatched, residue []string
	seenUnmatched := make(map[string]struct{})
	for _, phrase := range splitPhrases(text) {
		keys, rest := matchPhrase(v, phrase)
		for _, k := range keys {
			found.add(k)
		}
		residue = append(residue, rest...)
		if len(keys) == 0 {
			if _, dup := seenUnmatched[phrase]; !dup {
				seenUnmatched[phrase] = struct{}{}
				unmatched = append(unmatched, phrase)
			}
		}
	}
	res.Unmatched = unmatched

	if found.len() > e.opts.Ceiling {
		found.order = found.order[:e.opts.Ceiling]
		trimmed := make(map[string]struct{}, len(found.order))
		for _, k := range found.order {
			trimmed[k] = struct{}{}
		}
		found.seen = trimmed
		res.Flags = append(res.Flags, talent.FlagOverGeneration)
	}
	res.ExtractedCount = found.len()
	if res.ExtractedCount == 0 {
		res.Flags = append(res.Flags, talent.FlagNoSkills)
	}

	reqSource := in.RequirementsText
	if strings.TrimSpace(reqSource) == "" {
		reqSource = in.FullText
	}
	must := newSkillSet()
	for _, line := range requirementLines(reqSource) {
		if !hasMarker(line, v.MandatoryMarkers()) {
			continue
		}
		res.MandatoryRequirements = append(res.MandatoryRequirements, line)
		for _, phrase := range splitPhrases(line) {
			keys, _ := matchPhrase(v, phrase)
			for _, k := range keys {
				if found.has(k) {
					must.add(k)
				}
			}
		}
	}
	if len(res.MandatoryRequirements) > 0 && must.len() == 0 {
		res.Flags = append(res.Flags, talent.FlagMandatoryNoSkills)
	}

	if found.len() < e.opts.Floor {
		res.SyntheticSkills = e.enrich(v, in, found, residue)
		if len(res.SyntheticSkills) == 0 {
			res.Flags = append(res.Flags, talent.FlagNoSynthesisSignal)
		}
	}
	if found.len() < e.opts.Floor {
		res.Flags = append(res.Flags, talent.FlagBelowSkillFloor)
	}

	res.SkillSet = append([]string{}, found.order...)
	sort.Strings(res.SkillSet)
	res.MustSkills = append([]string{}, must.order...)
	sort.Strings(res.MustSkills)
	res.EscoSkills = escoProjection(v, res.SkillSet)

	e.logger.Debug("skills extracted",
		"extracted", res.ExtractedCount,
		"synthetic", len(res.SyntheticSkills),
		"must", len(res.MustSkills),
		"mandatory_lines", len(res.MandatoryRequirements),
	)
	return res
}

// enrich proposes synthetic skills in priority order and adds them to found
// until the synthetic target is met.
func (e *Extractor) enrich(v *vocabulary.Vocabulary, in Input, found *skillSet, residue []string) []talent.SyntheticSkill {
	type proposal struct{ key, reason string }
	var proposals []proposal
	ruleFired := false

	for _, r := range v.Rules() {
		if r.AppliesTo(vocabulary.SourceTitle) && in.Title != "" && r.Pattern.MatchString(in.Title) {
			ruleFired = true
			for _, k := range r.Skills {
				proposals = append(proposals, proposal{k, ReasonTitle})
			}
		}
	}
	for _, r := range v.Rules() {
		if !r.AppliesTo(vocabulary.SourceOccupation) {
			continue
		}
		if (in.Occupation != "" && r.Pattern.MatchString(in.Occupation)) ||
			(in.Profession != "" && r.Pattern.MatchString(in.Profession)) {
			ruleFired = true
			for _, k := range r.Skills {
				proposals = append(proposals, proposal{k, ReasonOccupation})
			}
		}
	}
	for _, k := range promoteMentions(v, residue) {
		proposals = append(proposals, proposal{k, ReasonText})
	}
	if ruleFired {
		for _, k := range v.TopUp() {
			proposals = append(proposals, proposal{k, ReasonTopUp})
		}
	}

	added := []talent.SyntheticSkill{}
	for _, p := range proposals {
		if found.len() >= e.opts.SyntheticTarget || found.len() >= e.opts.Ceiling || len(added) >= e.opts.SyntheticMax {
			break
		}
		if !v.IsSkill(p.key) || !found.add(p.key) {
			continue
		}
		added = append(added, talent.SyntheticSkill{Name: p.key, Reason: p.reason})
	}
	return added
}

// matchPhrase resolves a phrase to skill keys. The whole phrase is tried
// first, then the longest word n-grams left to right. Words no n-gram covers
// are returned in rest.
func matchPhrase(v *vocabulary.Vocabulary, phrase string) (keys, rest []string) {
	if s, ok := v.Skill(phrase); ok {
		return []string{s.Key}, nil
	}
	ws := words(phrase)
	maxN := v.MaxPhraseWords()
	if maxN < 1 {
		maxN = 1
	}
	for i := 0; i < len(ws); {
		n := maxN
		if rem := len(ws) - i; rem < n {
			n = rem
		}
		matched := false
		for ; n >= 1; n-- {
			if n == 1 && v.IsConnector(ws[i]) {
				break
			}
			if s, ok := v.Skill(strings.Join(ws[i:i+n], " ")); ok {
				keys = append(keys, s.Key)
				i += n
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if sub := splitCompound(v, ws[i]); len(sub) > 0 {
			keys = append(keys, sub...)
		} else if !v.IsConnector(ws[i]) {
			rest = append(rest, ws[i])
		}
		i++
	}
	return keys, rest
}

// splitCompound resolves words joined by "/", "&" or "+" ("sql/python").
func splitCompound(v *vocabulary.Vocabulary, word string) []string {
	parts := strings.FieldsFunc(word, func(r rune) bool {
		return r == '/' || r == '&' || r == '+'
	})
	if len(parts) < 2 {
		return nil
	}
	var keys []string
	for _, p := range parts {
		if s, ok := v.Skill(p); ok {
			keys = append(keys, s.Key)
		}
	}
	return keys
}

// promoteMentions finds leftover words whose stem equals the stem of a
// single-word skill key.
func promoteMentions(v *vocabulary.Vocabulary, residue []string) []string {
	stems := make(map[string]string)
	for _, key := range v.SkillKeys() {
		if strings.Contains(key, "_") {
			continue
		}
		if _, taken := stems[stem(key)]; !taken {
			stems[stem(key)] = key
		}
	}
	var out []string
	seen := make(map[string]struct{})
	for _, w := range residue {
		if isNoise(w) {
			continue
		}
		key, ok := stems[stem(w)]
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func hasMarker(line string, markers []string) bool {
	lower := strings.ToLower(line)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// escoProjection maps every key to its display entry, one per key.
func escoProjection(v *vocabulary.Vocabulary, keys []string) []talent.EscoSkill {
	out := make([]talent.EscoSkill, 0, len(keys))
	for _, k := range keys {
		entry := talent.EscoSkill{Name: k, Label: k}
		if s, ok := v.SkillByKey(k); ok {
			entry.Label = s.Label
			entry.EscoID = s.EscoID
		}
		out = append(out, entry)
	}
	return out
}
