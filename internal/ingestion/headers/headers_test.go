package headers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
)

func TestMapExactBothConventions(t *testing.T) {
	m, err := NewMapper(nil)
	require.NoError(t, err)

	cases := []struct {
		label string
		kind  talent.Kind
		want  string
	}{
		{"מספר הזמנה", talent.KindJob, FieldExternalOrderID},
		{"מספר הזמנה (הזמנה)", talent.KindJob, FieldExternalOrderID},
		{"מספר משרה", talent.KindJob, FieldExternalOrderID},
		{"External_Job_ID", talent.KindJob, FieldExternalOrderID},
		{"שם משרה", talent.KindJob, FieldTitle},
		{"job_description", talent.KindJob, FieldDescription},
		{"  שם   יישוב ", talent.KindCandidate, FieldCity},
		{"\ufeffTitle", talent.KindJob, FieldTitle},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, m.Map(tc.label, tc.kind), "label %q", tc.label)
	}
}

func TestMapFuzzyIsKindKeyed(t *testing.T) {
	m, err := NewMapper(nil)
	require.NoError(t, err)

	assert.Equal(t, FieldRequirements, m.Map("דרישות נוספות", talent.KindJob))
	assert.Equal(t, Discard, m.Map("דרישות נוספות", talent.KindCandidate))
	assert.Equal(t, FieldProfession, m.Map("מקצוע ראשי", talent.KindCandidate))
	assert.Equal(t, FieldEmail, m.Map("כתובת מייל", talent.KindCandidate))
	assert.Equal(t, FieldPhone, m.Map("Mobile Phone", talent.KindJob))
	assert.Equal(t, FieldExperience, m.Map("ניסיון קודם", talent.KindCandidate))
}

func TestMapUnknownIsDiscarded(t *testing.T) {
	m, err := NewMapper(nil)
	require.NoError(t, err)
	assert.Equal(t, Discard, m.Map("favourite colour", talent.KindJob))
	assert.Equal(t, Discard, m.Map("   ", talent.KindJob))
}

func TestOverridesTakePrecedence(t *testing.T) {
	m, err := NewMapper(map[string]string{
		"מצב":      "discard",
		"Position": FieldTitle,
	})
	require.NoError(t, err)
	assert.Equal(t, Discard, m.Map("מצב", talent.KindJob))
	assert.Equal(t, FieldTitle, m.Map("position", talent.KindJob))
}

func TestOverrideWithUnknownFieldFails(t *testing.T) {
	_, err := NewMapper(map[string]string{"x": "not_a_field"})
	require.Error(t, err)
}

func TestMapRow(t *testing.T) {
	m, err := NewMapper(nil)
	require.NoError(t, err)

	row := map[string]string{
		"מספר משרה":     "405690",
		"שם משרה":       "מזכירה",
		"דרישות תפקיד":  "אקסל חובה",
		"דרישות התפקיד": "אנגלית",
		"עמודה לא ידועה": "ignored",
		"job_id":        "",
	}
	f := m.MapRow(row, talent.KindJob)
	assert.Equal(t, "405690", f.Get(FieldExternalOrderID))
	assert.Equal(t, "מזכירה", f.Get(FieldTitle))
	assert.Equal(t, "אנגלית\nאקסל חובה", f.Get(FieldRequirements))
	assert.NotContains(t, f, Discard)
	assert.Len(t, f, 3)
}

func TestMapRowKeepsEmptyField(t *testing.T) {
	m, err := NewMapper(nil)
	require.NoError(t, err)
	f := m.MapRow(map[string]string{"מספר משרה": "  ", "שם משרה": "x"}, talent.KindJob)
	assert.True(t, f.Has(FieldExternalOrderID))
	assert.Equal(t, "", f.Get(FieldExternalOrderID))
}

func TestParseText(t *testing.T) {
	m, err := NewMapper(nil)
	require.NoError(t, err)

	raw := "שם משרה: אנליסט נתונים\r\nעיר: תל אביב\nWe are hiring: fast\nניתוח נתונים ו-SQL\nדרישות תפקיד: SQL חובה"
	f, body := m.ParseText(raw, talent.KindJob)

	assert.Equal(t, "אנליסט נתונים", f.Get(FieldTitle))
	assert.Equal(t, "תל אביב", f.Get(FieldCity))
	assert.Equal(t, "SQL חובה", f.Get(FieldRequirements))
	assert.Equal(t, "We are hiring: fast\nניתוח נתונים ו-SQL", body)
}
