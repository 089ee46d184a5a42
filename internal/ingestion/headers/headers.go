// Package headers maps source field labels onto the internal document
// schema. Source exports use two header conventions (Hebrew agency exports
// and English job-board exports); both resolve to the same canonical names.
package headers

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
)

// Canonical field names.
const (
	FieldExternalOrderID     = "external_order_id"
	FieldExternalCandidateID = "external_candidate_id"
	FieldFullName            = "full_name"
	FieldTitle               = "title"
	FieldDescription         = "description"
	FieldRequirements        = "requirements"
	FieldCity                = "city"
	FieldPhone               = "phone"
	FieldEmail               = "email"
	FieldEducation           = "education"
	FieldExperience          = "experience"
	FieldNotes               = "notes"
	FieldProfession          = "required_profession"
	FieldOccupation          = "field_of_occupation"
	FieldSalary              = "salary"
	FieldClient              = "client"
	FieldEmploymentType      = "employment_type"
	FieldStatus              = "status"
	FieldOpenDate            = "open_date"
	FieldBranch              = "branch"
	FieldRecruiter           = "recruiter_name"
	FieldApplications        = "job_applications_count"
	FieldSourceCreatedAt     = "source_created_at"

	// Discard marks a label whose values are ignored.
	Discard = "_discard"
)

var knownFields = map[string]struct{}{
	FieldExternalOrderID: {}, FieldExternalCandidateID: {}, FieldFullName: {},
	FieldTitle: {}, FieldDescription: {}, FieldRequirements: {}, FieldCity: {},
	FieldPhone: {}, FieldEmail: {}, FieldEducation: {}, FieldExperience: {},
	FieldNotes: {}, FieldProfession: {}, FieldOccupation: {}, FieldSalary: {},
	FieldClient: {}, FieldEmploymentType: {}, FieldStatus: {}, FieldOpenDate: {},
	FieldBranch: {}, FieldRecruiter: {}, FieldApplications: {},
	FieldSourceCreatedAt: {}, Discard: {},
}

// textFields concatenate across columns instead of keeping the first value.
var textFields = map[string]struct{}{
	FieldDescription: {}, FieldRequirements: {}, FieldEducation: {},
	FieldExperience: {}, FieldNotes: {},
}

// exact is the static label table, keyed by normalized label.
var exact = map[string]string{
	"מספר מועמד":               FieldExternalCandidateID,
	"מספר הזמנה":               FieldExternalOrderID,
	"מספר הזמנה (הזמנת שירות)": FieldExternalOrderID,
	"מספר הזמנה (הזמנה)":       FieldExternalOrderID,
	"מספר משרה":                FieldExternalOrderID,
	"external_job_id":          FieldExternalOrderID,
	"job_id":                   FieldExternalOrderID,
	"order_id":                 FieldExternalOrderID,
	"external_order_id":        FieldExternalOrderID,
	"שם מועמד":                 FieldFullName,
	"שם מלא":                   FieldFullName,
	"מועמד":                    FieldFullName,
	"full_name":                FieldFullName,
	"name":                     FieldFullName,
	"שם ישוב":                  FieldCity,
	"שם יישוב":                 FieldCity,
	"עיר":                      FieldCity,
	"מגורים":                   FieldCity,
	"מקום עבודה":               FieldCity,
	"city":                     FieldCity,
	"work_location":            FieldCity,
	"location":                 FieldCity,
	"טלפון":                    FieldPhone,
	"נייד":                     FieldPhone,
	"מספר נייד":                FieldPhone,
	"מייל":                     FieldEmail,
	"אימייל":                   FieldEmail,
	`דוא"ל`:                    FieldEmail,
	"השכלה":                    FieldEducation,
	"נסיון":                    FieldExperience,
	"ניסיון":                   FieldExperience,
	"הערות":                    FieldNotes,
	"notes":                    FieldNotes,
	"notes_candidate":          FieldNotes,
	"מקצוע נדרש":               FieldProfession,
	"profession":               FieldProfession,
	"required_profession":      FieldProfession,
	"תחום עיסוק":               FieldOccupation,
	"occupation_field":         FieldOccupation,
	"field_of_occupation":      FieldOccupation,
	"שם משרה":                  FieldTitle,
	"title":                    FieldTitle,
	"job_title":                FieldTitle,
	"תאור תפקיד":               FieldDescription,
	"תיאור תפקיד":              FieldDescription,
	"description":              FieldDescription,
	"job_description":          FieldDescription,
	"דרישות תפקיד":             FieldRequirements,
	"דרישות התפקיד":            FieldRequirements,
	"requirements":             FieldRequirements,
	"טווח שכר מוצע":            FieldSalary,
	"salary":                   FieldSalary,
	"לקוח":                     FieldClient,
	"client":                   FieldClient,
	"סוג העסקה":                FieldEmploymentType,
	"employment_type":          FieldEmploymentType,
	"מצב":                      FieldStatus,
	"status":                   FieldStatus,
	"תאריך פתיחה":              FieldOpenDate,
	"open_date":                FieldOpenDate,
	"סניף":                     FieldBranch,
	"branch":                   FieldBranch,
	"recruiter_name":           FieldRecruiter,
	"job_applications":         FieldApplications,
	"creation date":            FieldSourceCreatedAt,
}

type fuzzyRule struct {
	pattern *regexp.Regexp
	field   string
}

var jobRules = []fuzzyRule{
	{regexp.MustCompile(`מקצוע|profession`), FieldProfession},
	{regexp.MustCompile(`תחום עיסוק|occupation`), FieldOccupation},
	{regexp.MustCompile(`דרישות|requirement`), FieldRequirements},
	{regexp.MustCompile(`תיאור|תאור|description`), FieldDescription},
}

var candidateRules = []fuzzyRule{
	{regexp.MustCompile(`מקצוע|profession`), FieldProfession},
	{regexp.MustCompile(`תחום עיסוק|occupation`), FieldOccupation},
}

var genericRules = []fuzzyRule{
	{regexp.MustCompile(`מייל|אימייל|דוא"?ל|e-?mail`), FieldEmail},
	{regexp.MustCompile(`טלפון|נייד|phone|mobile`), FieldPhone},
	{regexp.MustCompile(`נסיון|ניסיון|experience`), FieldExperience},
	{regexp.MustCompile(`השכלה|education`), FieldEducation},
	{regexp.MustCompile(`notes?_candidate|^notes?$|הערות`), FieldNotes},
}

// Mapper resolves labels to canonical field names. It is safe for
// concurrent use.
type Mapper struct {
	overrides map[string]string
}

// NewMapper builds a Mapper. Overrides map a label to a canonical field (or
// "discard") and take precedence over the static table.
func NewMapper(overrides map[string]string) (*Mapper, error) {
	m := &Mapper{overrides: make(map[string]string, len(overrides))}
	for label, field := range overrides {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "discard" {
			field = Discard
		}
		if _, ok := knownFields[field]; !ok {
			return nil, fmt.Errorf("header override %q: unknown field %q", label, field)
		}
		m.overrides[normalizeLabel(label)] = field
	}
	return m, nil
}

// Map returns the canonical field for label, or Discard.
func (m *Mapper) Map(label string, kind talent.Kind) string {
	key := normalizeLabel(label)
	if key == "" {
		return Discard
	}
	if f, ok := m.overrides[key]; ok {
		return f
	}
	if f, ok := exact[key]; ok {
		return f
	}
	rules := candidateRules
	if kind == talent.KindJob {
		rules = jobRules
	}
	for _, r := range rules {
		if r.pattern.MatchString(key) {
			return r.field
		}
	}
	for _, r := range genericRules {
		if r.pattern.MatchString(key) {
			return r.field
		}
	}
	return Discard
}

// Fields is a mapped record keyed by canonical field name.
type Fields map[string]string

// Get returns the trimmed value of field.
func (f Fields) Get(field string) string {
	return strings.TrimSpace(f[field])
}

// Has reports whether the record carried the field at all, even empty.
func (f Fields) Has(field string) bool {
	_, ok := f[field]
	return ok
}

// MapRow maps every column of row. For text fields values from several
// columns are joined with newlines; other fields keep the first non-empty
// value. Columns are visited in label order so the result is stable.
func (m *Mapper) MapRow(row map[string]string, kind talent.Kind) Fields {
	labels := make([]string, 0, len(row))
	for l := range row {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	out := make(Fields)
	for _, label := range labels {
		field := m.Map(label, kind)
		if field == Discard {
			continue
		}
		out.put(field, row[label])
	}
	return out
}

func (f Fields) put(field, value string) {
	value = strings.TrimSpace(value)
	existing, ok := f[field]
	switch {
	case !ok:
		f[field] = value
	case value == "":
	case existing == "":
		f[field] = value
	default:
		if _, text := textFields[field]; text {
			f[field] = existing + "\n" + value
		}
	}
}

var labelLine = regexp.MustCompile(`^\s*([^:：\n]{1,40}?)\s*[:：]\s*(.*)$`)

// ParseText splits raw text into labeled fields and body. Lines of the form
// "label: value" whose label maps to a field populate that field; every
// other line is kept as body text.
func (m *Mapper) ParseText(raw string, kind talent.Kind) (Fields, string) {
	out := make(Fields)
	var body []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if match := labelLine.FindStringSubmatch(line); match != nil {
			if field := m.Map(match[1], kind); field != Discard {
				out.put(field, match[2])
				continue
			}
		}
		body = append(body, line)
	}
	return out, strings.TrimSpace(strings.Join(body, "\n"))
}

func normalizeLabel(label string) string {
	label = strings.TrimPrefix(strings.TrimSpace(label), "\ufeff")
	label = strings.ToLower(label)
	return strings.Join(strings.Fields(label), " ")
}
