// Package ingestion defines the request/response types and Kafka event schemas
// used by the document ingestion pipeline.
package ingestion

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
)

// IngestRequest is the JSON body accepted by the ingestion HTTP endpoint.
// Either Text (a labeled free-text document) or Fields (a header-mapped row)
// must be present; both may be given, in which case Fields win per field.
type IngestRequest struct {
	Text   string            `json:"text,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// BatchRequest wraps several items of the same kind.
type BatchRequest struct {
	Items []IngestRequest `json:"items"`
}

// IngestResponse is returned to the caller after a document is reconciled.
type IngestResponse struct {
	DocumentID      string                  `json:"document_id"`
	Action          string                  `json:"action"`
	Attempts        int                     `json:"attempts"`
	SkillCount      int                     `json:"skill_count"`
	SyntheticSkills []talent.SyntheticSkill `json:"synthetic_skills"`
	MustSkills      []string                `json:"must_skills"`
	Flags           []string                `json:"flags"`
}

// BatchReport summarizes one batch. A failed item never aborts the others.
type BatchReport struct {
	RunID     string               `json:"run_id"`
	Total     int                  `json:"total"`
	Created   int                  `json:"created"`
	Updated   int                  `json:"updated"`
	Unchanged int                  `json:"unchanged"`
	Failed    int                  `json:"failed"`
	Failures  []talent.ItemFailure `json:"failures"`
}

// ActionPurged is the DocumentChangedEvent action of an administrative
// removal. Creates and updates use the reconcile action names.
const ActionPurged = "purge"

// DocumentChangedEvent is published after a create, update or purge so that
// downstream caches for the tenant can be dropped.
type DocumentChangedEvent struct {
	TenantID    string      `json:"tenant_id"`
	Kind        talent.Kind `json:"kind"`
	DocumentID  string      `json:"document_id"`
	Action      string      `json:"action"`
	ContentHash string      `json:"content_hash"`
	OccurredAt  time.Time   `json:"occurred_at"`
}
