package vocabulary

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

const (
	skillsFile  = "skills.yaml"
	citiesFile  = "cities.yaml"
	titlesFile  = "titles.yaml"
	lexiconFile = "lexicon.yaml"
)

type skillsDoc struct {
	Skills map[string]struct {
		Label   string   `yaml:"label"`
		EscoID  string   `yaml:"esco_id"`
		Aliases []string `yaml:"aliases"`
	} `yaml:"skills"`
}

type citiesDoc struct {
	Cities map[string]struct {
		Label   string   `yaml:"label"`
		Lat     float64  `yaml:"lat"`
		Lon     float64  `yaml:"lon"`
		Aliases []string `yaml:"aliases"`
	} `yaml:"cities"`
}

type titlesDoc struct {
	Titles map[string]struct {
		Aliases []string `yaml:"aliases"`
	} `yaml:"titles"`
}

type lexiconDoc struct {
	MandatoryMarkers []string `yaml:"mandatory_markers"`
	Connectors       []string `yaml:"connectors"`
	Prefixes         []string `yaml:"prefixes"`
	SynthesisRules   []struct {
		Name    string   `yaml:"name"`
		Pattern string   `yaml:"pattern"`
		Sources []string `yaml:"sources"`
		Skills  []string `yaml:"skills"`
	} `yaml:"synthesis_rules"`
	TopUp []string `yaml:"top_up"`
}

// Default loads the lexicons compiled into the binary.
func Default() (*Vocabulary, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, fmt.Errorf("opening embedded vocabulary: %w", err)
	}
	return LoadFS(sub, "embedded")
}

// Load reads the lexicon files from dir. Files missing from dir fall back to
// the embedded copies, so a deployment can override only what it changes.
func Load(dir string) (*Vocabulary, error) {
	return LoadFS(os.DirFS(dir), dir)
}

// LoadFS builds a Vocabulary from the four lexicon files in fsys.
func LoadFS(fsys fs.FS, source string) (*Vocabulary, error) {
	v := &Vocabulary{
		source:       source,
		skills:       make(map[string]Skill),
		skillAliases: make(map[string]string),
		titles:       make(map[string]string),
		cities:       make(map[string]City),
		cityAliases:  make(map[string]string),
		connectors:   make(map[string]struct{}),
	}

	var sd skillsDoc
	if err := decode(fsys, skillsFile, &sd); err != nil {
		return nil, err
	}
	for key, entry := range sd.Skills {
		if Normalize(key) != key {
			return nil, fmt.Errorf("%s: skill key %q is not in canonical form %q", skillsFile, key, Normalize(key))
		}
		label := entry.Label
		if label == "" {
			label = defaultLabel(key)
		}
		v.skills[key] = Skill{Key: key, Label: label, EscoID: entry.EscoID}
		if err := addAlias(v.skillAliases, key, key); err != nil {
			return nil, fmt.Errorf("%s: %w", skillsFile, err)
		}
	}
	for key, entry := range sd.Skills {
		for _, alias := range entry.Aliases {
			if err := addAlias(v.skillAliases, alias, key); err != nil {
				return nil, fmt.Errorf("%s: %w", skillsFile, err)
			}
		}
	}
	for alias := range v.skillAliases {
		if n := strings.Count(alias, "_") + 1; n > v.maxWords {
			v.maxWords = n
		}
	}

	var cd citiesDoc
	if err := decode(fsys, citiesFile, &cd); err != nil {
		return nil, err
	}
	for key, entry := range cd.Cities {
		if Normalize(key) != key {
			return nil, fmt.Errorf("%s: city key %q is not in canonical form", citiesFile, key)
		}
		label := entry.Label
		if label == "" {
			label = defaultLabel(key)
		}
		v.cities[key] = City{Key: key, Label: label, Lat: entry.Lat, Lon: entry.Lon}
		if err := addAlias(v.cityAliases, key, key); err != nil {
			return nil, fmt.Errorf("%s: %w", citiesFile, err)
		}
		for _, alias := range entry.Aliases {
			if err := addAlias(v.cityAliases, alias, key); err != nil {
				return nil, fmt.Errorf("%s: %w", citiesFile, err)
			}
		}
	}

	var td titlesDoc
	if err := decode(fsys, titlesFile, &td); err != nil {
		return nil, err
	}
	for key, entry := range td.Titles {
		if err := addAlias(v.titles, key, key); err != nil {
			return nil, fmt.Errorf("%s: %w", titlesFile, err)
		}
		for _, alias := range entry.Aliases {
			if err := addAlias(v.titles, alias, key); err != nil {
				return nil, fmt.Errorf("%s: %w", titlesFile, err)
			}
		}
	}

	var ld lexiconDoc
	if err := decode(fsys, lexiconFile, &ld); err != nil {
		return nil, err
	}
	for _, m := range ld.MandatoryMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			v.markers = append(v.markers, m)
		}
	}
	for _, c := range ld.Connectors {
		v.connectors[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}
	for _, p := range ld.Prefixes {
		if p = Normalize(p); p != "" && !contains(v.prefixes, p) {
			v.prefixes = append(v.prefixes, p)
		}
	}
	for _, r := range ld.SynthesisRules {
		rule, err := v.compileRule(r.Name, r.Pattern, r.Sources, r.Skills)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", lexiconFile, err)
		}
		v.rules = append(v.rules, rule)
	}
	for _, key := range ld.TopUp {
		if !v.IsSkill(key) {
			return nil, fmt.Errorf("%s: top_up skill %q is not a canonical skill", lexiconFile, key)
		}
		v.topUp = append(v.topUp, key)
	}
	return v, nil
}

func (v *Vocabulary) compileRule(name, pattern string, sources, skills []string) (Rule, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", name, err)
	}
	rule := Rule{Name: name, Pattern: re}
	for _, s := range sources {
		switch Source(s) {
		case SourceTitle, SourceOccupation:
			rule.Sources = append(rule.Sources, Source(s))
		default:
			return Rule{}, fmt.Errorf("rule %q: unknown source %q", name, s)
		}
	}
	for _, key := range skills {
		if !v.IsSkill(key) {
			return Rule{}, fmt.Errorf("rule %q: skill %q is not a canonical skill", name, key)
		}
		rule.Skills = append(rule.Skills, key)
	}
	return rule, nil
}

func decode(fsys fs.FS, name string, out any) error {
	data, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = embedded.ReadFile("data/" + name)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

func addAlias(index map[string]string, alias, key string) error {
	norm := Normalize(alias)
	if norm == "" {
		return nil
	}
	if existing, ok := index[norm]; ok && existing != key {
		return fmt.Errorf("alias %q maps to both %q and %q", alias, existing, key)
	}
	index[norm] = key
	return nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
