package talent

import "time"

// ItemFailure records why one batch item was not stored.
type ItemFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// IngestionRun is the operational record persisted after every batch.
type IngestionRun struct {
	ID                  string         `json:"id"`
	TenantID            string         `json:"tenant_id"`
	Kind                Kind           `json:"kind"`
	StartedAt           time.Time      `json:"started_at"`
	FinishedAt          time.Time      `json:"finished_at"`
	Total               int            `json:"total"`
	Created             int            `json:"created"`
	Updated             int            `json:"updated"`
	Unchanged           int            `json:"unchanged"`
	Failed              int            `json:"failed"`
	Failures            []ItemFailure  `json:"failures,omitempty"`
	SkillHistogram      map[string]int `json:"skill_count_distribution"`
	AvgSkills           float64        `json:"avg_skills"`
	SyntheticTotal      int            `json:"synthetic_total"`
	SyntheticRatio      float64        `json:"synthetic_ratio"`
	MandatoryDetectRate float64        `json:"mandatory_detect_rate"`
	DurationSec         float64        `json:"duration_sec"`
}
