// Package talent defines the documents the platform stores (candidates and
// jobs), their side records (version snapshots, quarantine entries, ingestion
// runs) and the scoring weight value threaded into matching.
package talent

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the two primary collections.
type Kind string

const (
	KindJob       Kind = "job"
	KindCandidate Kind = "candidate"
)

// ParseKind accepts the singular or plural form used in URLs and payloads.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "job", "jobs":
		return KindJob, nil
	case "candidate", "candidates":
		return KindCandidate, nil
	}
	return "", fmt.Errorf("unknown document kind %q", s)
}

// Counterpart returns the kind ranked against k.
func (k Kind) Counterpart() Kind {
	if k == KindJob {
		return KindCandidate
	}
	return KindJob
}

// Quality flags attached to documents.
const (
	FlagNoSkills          = "no_skills_extracted"
	FlagBelowSkillFloor   = "below_skill_floor"
	FlagNoSynthesisSignal = "no_synthesis_signal"
	FlagMandatoryNoSkills = "mandatory_without_must_skills"
	FlagOverGeneration    = "over_generation"
	FlagMissingCity       = "missing_city"
	FlagUnresolvedCity    = "unresolved_city"
	FlagMissingTitle      = "missing_title"
	FlagMissingExternalID = "missing_external_id"
	FlagEmptyText         = "empty_text"
)

type SyntheticSkill struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type EscoSkill struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	EscoID string `json:"esco_id,omitempty"`
}

// Document is the stored shape shared by candidates and jobs. ExternalID is
// nil when the source carried no identifier and points at "" when it carried
// an empty one; both count as absent for identity purposes.
type Document struct {
	ID                    string            `json:"id"`
	TenantID              string            `json:"tenant_id"`
	Kind                  Kind              `json:"kind"`
	ExternalID            *string           `json:"external_order_id,omitempty"`
	Title                 string            `json:"title"`
	City                  string            `json:"city,omitempty"`
	CityCanonical         string            `json:"city_canonical,omitempty"`
	FullText              string            `json:"full_text"`
	RequirementsText      string            `json:"requirements_text,omitempty"`
	Occupation            string            `json:"field_of_occupation,omitempty"`
	Profession            string            `json:"required_profession,omitempty"`
	Attributes            map[string]string `json:"attributes,omitempty"`
	SkillSet              []string          `json:"skill_set"`
	MustSkills            []string          `json:"must_skills,omitempty"`
	SyntheticSkills       []SyntheticSkill  `json:"synthetic_skills"`
	MandatoryRequirements []string          `json:"mandatory_requirements"`
	EscoSkills            []EscoSkill       `json:"esco_skills"`
	ContentHash           string            `json:"_content_hash"`
	Flags                 []string          `json:"flags"`
	CreatedAt             int64             `json:"created_at"`
	UpdatedAt             int64             `json:"updated_at"`
}

// ExternalIDValue returns the trimmed external id, "" when absent.
func (d *Document) ExternalIDValue() string {
	if d.ExternalID == nil {
		return ""
	}
	return strings.TrimSpace(*d.ExternalID)
}

// HasExternalID reports whether the document carries a usable identifier.
func (d *Document) HasExternalID() bool {
	return d.ExternalIDValue() != ""
}

// HasFlag reports whether flag is set.
func (d *Document) HasFlag(flag string) bool {
	for _, f := range d.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// SetCity records the canonical city key and replaces the city flags: a
// blank raw city is missing, a key the vocabulary did not know is unresolved.
func (d *Document) SetCity(key string, resolved bool) {
	kept := d.Flags[:0:0]
	for _, f := range d.Flags {
		if f != FlagMissingCity && f != FlagUnresolvedCity {
			kept = append(kept, f)
		}
	}
	d.Flags = kept
	switch {
	case strings.TrimSpace(d.City) == "":
		d.CityCanonical = ""
		d.Flags = append(d.Flags, FlagMissingCity)
	case !resolved:
		d.CityCanonical = key
		d.Flags = append(d.Flags, FlagUnresolvedCity)
	default:
		d.CityCanonical = key
	}
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.ExternalID != nil {
		id := *d.ExternalID
		c.ExternalID = &id
	}
	if d.Attributes != nil {
		c.Attributes = make(map[string]string, len(d.Attributes))
		for k, v := range d.Attributes {
			c.Attributes[k] = v
		}
	}
	c.SkillSet = append([]string(nil), d.SkillSet...)
	c.MustSkills = append([]string(nil), d.MustSkills...)
	c.SyntheticSkills = append([]SyntheticSkill(nil), d.SyntheticSkills...)
	c.MandatoryRequirements = append([]string(nil), d.MandatoryRequirements...)
	c.EscoSkills = append([]EscoSkill(nil), d.EscoSkills...)
	c.Flags = append([]string(nil), d.Flags...)
	return &c
}

// StringPtr is a helper for building documents with an explicit external id.
func StringPtr(s string) *string {
	return &s
}

// Snapshot is an immutable copy of a document taken before an overwrite.
type Snapshot struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	TenantID    string    `json:"tenant_id"`
	Kind        Kind      `json:"kind"`
	Document    Document  `json:"snapshot"`
	VersionedAt time.Time `json:"versioned_at"`
}

// QuarantineRecord is a job moved out of the primary collection because it
// had no usable external id.
type QuarantineRecord struct {
	Document      Document  `json:"document"`
	QuarantinedAt time.Time `json:"_quarantined_at"`
}
