package scrub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	cases := map[string]string{
		"contact dana.k+jobs@example.co.il today": "contact [EMAIL] today",
		"call 054-123-4567":                       "call [PHONE]",
		"call +972 (54) 1234567 now":              "call [PHONE] now",
		"mail a1234567@x.com or 03-5551234":       "mail [EMAIL] or [PHONE]",
		"5 years of SQL, since 2019":              "5 years of SQL, since 2019",
		"":                                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Text(in), "input %q", in)
	}
}

func TestTextIsIdempotent(t *testing.T) {
	for _, s := range []string{
		"דנה 050-1234567 dana@example.com",
		"[EMAIL] [PHONE] 12",
		"ids 1234567890 and 98765432",
	} {
		once := Text(s)
		assert.Equal(t, once, Text(once))
	}
}

func TestTextsDifferingOnlyInContactsMatch(t *testing.T) {
	a := Text("Analyst wanted. Send CV to hr@acme.com or call 052-7654321.")
	b := Text("Analyst wanted. Send CV to jobs@other.org or call +972-3-1112222.")
	assert.Equal(t, a, b)
}

func TestFields(t *testing.T) {
	m := Fields(map[string]string{"notes": "reach me at 050-9999999", "title": "QA"})
	assert.Equal(t, "reach me at [PHONE]", m["notes"])
	assert.Equal(t, "QA", m["title"])
}
