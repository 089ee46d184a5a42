// Package validator provides input validation for ingestion requests. It
// enforces size limits on the raw payload and checks that a mapped document
// carries enough content to be stored, returning per-field error details.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
)

const (
	maxTextLength  = 1048576
	maxFieldLength = 65536
	maxFields      = 200
	maxTitleLength = 512
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// Unwrap lets callers map validation failures to ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// ValidateIngestRequest checks the raw payload before any mapping happens.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	hasText := strings.TrimSpace(req.Text) != ""
	hasFields := false
	for _, v := range req.Fields {
		if strings.TrimSpace(v) != "" {
			hasFields = true
			break
		}
	}
	if !hasText && !hasFields {
		errs["text"] = "text or fields is required"
	}
	if len(req.Text) > maxTextLength {
		errs["text"] = fmt.Sprintf("text must be at most %d bytes", maxTextLength)
	}
	if !utf8.ValidString(req.Text) {
		errs["text"] = "text must be valid UTF-8"
	}
	if len(req.Fields) > maxFields {
		errs["fields"] = fmt.Sprintf("at most %d fields are accepted", maxFields)
	}
	for label, v := range req.Fields {
		if len(v) > maxFieldLength {
			errs["fields."+label] = fmt.Sprintf("value must be at most %d bytes", maxFieldLength)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateDocument checks a mapped document. Gaps that still allow storage
// (no title, no city, no external id) are returned as flags instead.
func ValidateDocument(doc *talent.Document) ([]string, error) {
	errs := make(map[string]string)
	if doc.Kind != talent.KindJob && doc.Kind != talent.KindCandidate {
		errs["kind"] = fmt.Sprintf("unknown kind %q", doc.Kind)
	}
	if strings.TrimSpace(doc.FullText) == "" && strings.TrimSpace(doc.Title) == "" {
		errs["full_text"] = "document has no text"
	}
	if utf8.RuneCountInString(doc.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	var flags []string
	if strings.TrimSpace(doc.Title) == "" {
		flags = append(flags, talent.FlagMissingTitle)
	}
	if strings.TrimSpace(doc.City) == "" {
		flags = append(flags, talent.FlagMissingCity)
	}
	if doc.Kind == talent.KindJob && !doc.HasExternalID() {
		flags = append(flags, talent.FlagMissingExternalID)
	}
	return flags, nil
}
