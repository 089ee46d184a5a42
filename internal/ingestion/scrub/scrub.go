// Package scrub removes contact details from free text before it is hashed
// or stored.
package scrub

import "regexp"

// Replacement tokens. Neither contains a digit or "@", so scrubbing is
// idempotent.
const (
	EmailToken = "[EMAIL]"
	PhoneToken = "[PHONE]"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\-() ]{6,}\d`)
)

// Text replaces emails, then phone numbers. Emails go first so digits inside
// an address are not taken for a phone number.
func Text(s string) string {
	if s == "" {
		return s
	}
	s = emailPattern.ReplaceAllString(s, EmailToken)
	return phonePattern.ReplaceAllString(s, PhoneToken)
}

// Fields scrubs every value of m in place and returns it.
func Fields(m map[string]string) map[string]string {
	for k, v := range m {
		m[k] = Text(v)
	}
	return m
}
