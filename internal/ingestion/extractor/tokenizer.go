package extractor

import (
	"regexp"
	"strings"
	"unicode"
)

// phraseBreak splits free text into candidate phrases: line breaks, sentence
// ends and list separators.
var phraseBreak = regexp.MustCompile(`\r?\n|[;•*\t|,]|\.(?:\s|$)`)

// requirementBreak splits requirement text into lines.
var requirementBreak = regexp.MustCompile(`\r?\n|•|\*|\t|;`)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "in": {},
	"is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "to": {}, "was": {}, "were": {}, "will": {},
	"with": {}, "this": {}, "but": {}, "have": {}, "not": {}, "no": {},
	"can": {}, "our": {}, "you": {}, "your": {}, "we": {},
	"של": {}, "את": {}, "על": {}, "עם": {}, "או": {}, "גם": {},
	"כל": {}, "יש": {}, "אם": {}, "לא": {}, "זה": {}, "הוא": {}, "היא": {},
}

// splitPhrases returns the non-empty trimmed phrases of text.
func splitPhrases(text string) []string {
	parts := phraseBreak.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// requirementLines returns requirement lines with bullet characters and
// surrounding whitespace removed. The remaining text is otherwise verbatim.
func requirementLines(text string) []string {
	parts := requirementBreak.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.TrimLeft(p, "-–—· ")
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// words splits a phrase on whitespace and strips punctuation hugging each
// word. Characters that are part of skill names ("+", "#", ".", "/") survive
// inside a word.
func words(phrase string) []string {
	fields := strings.Fields(phrase)
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) && r != '#' && r != '+' && r != '.'
		})
		f = strings.TrimRight(f, ".")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// isNoise reports whether a word is too short or too common to be a skill
// mention on its own.
func isNoise(word string) bool {
	w := strings.ToLower(word)
	if len([]rune(w)) < 3 {
		return true
	}
	_, stop := stopWords[w]
	return stop
}

// stem applies a suffix-stripping stemmer. Words that share a stem are
// treated as mentions of the same skill during enrichment.
func stem(word string) string {
	word = strings.ToLower(word)
	suffixes := []struct {
		suffix      string
		replacement string
		minLen      int
	}{
		{"ational", "ate", 2},
		{"tional", "tion", 2},
		{"encies", "ence", 2},
		{"ances", "ance", 2},
		{"ments", "ment", 2},
		{"izing", "ize", 2},
		{"ating", "ate", 2},
		{"iness", "y", 2},
		{"ously", "ous", 2},
		{"ively", "ive", 2},
		{"tion", "t", 3},
		{"sion", "s", 3},
		{"ying", "y", 2},
		{"ies", "y", 2},
		{"ing", "", 3},
		{"ers", "er", 2},
		{"ed", "", 3},
		{"er", "", 3},
		{"ly", "", 3},
		{"es", "", 3},
		{"ss", "ss", 2},
		{"s", "", 3},
	}
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return strings.TrimSuffix(newWord, "e")
			}
		}
	}
	return strings.TrimSuffix(word, "e")
}
