package condition

import (
	"strings"
	"time"

	"github.com/ehr/condition-server/internal/platform/fhir"
)

// ClinicalStatus is the coded state of a condition. The value doubles as the
// code emitted on the wire.
type ClinicalStatus string

const (
	StatusUnknown    ClinicalStatus = "UNKNOWN"
	StatusActive     ClinicalStatus = "ACTIVE"
	StatusInactive   ClinicalStatus = "INACTIVE"
	StatusHistoryOf  ClinicalStatus = "HISTORY_OF"
	StatusRecurrence ClinicalStatus = "RECURRENCE"
	StatusRelapse    ClinicalStatus = "RELAPSE"
	StatusRemission  ClinicalStatus = "REMISSION"
	StatusResolved   ClinicalStatus = "RESOLVED"
)

var clinicalStatuses = map[ClinicalStatus]bool{
	StatusUnknown: true, StatusActive: true, StatusInactive: true, StatusHistoryOf: true,
	StatusRecurrence: true, StatusRelapse: true, StatusRemission: true, StatusResolved: true,
}

// ParseClinicalStatus matches a status code case-insensitively. FHIR's
// hyphenated form ("history-of") is accepted as well.
func ParseClinicalStatus(code string) (ClinicalStatus, bool) {
	s := ClinicalStatus(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), "-", "_")))
	if !clinicalStatuses[s] {
		return "", false
	}
	return s, true
}

// Coding is one diagnosis code attached to a condition.
type Coding struct {
	System  string
	Code    string
	Display string
}

// Condition is a stored clinical condition record.
//
// Onset is a wall-clock value without a zone: its location is always UTC and
// carries no meaning. The mapper places it in the configured onset zone.
type Condition struct {
	ID             string
	ClinicalStatus ClinicalStatus
	Onset          *time.Time
	SubjectID      string
	Codes          []Coding
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (c *Condition) clone() *Condition {
	out := *c
	if c.Onset != nil {
		onset := *c.Onset
		out.Onset = &onset
	}
	if c.Codes != nil {
		out.Codes = append([]Coding(nil), c.Codes...)
	}
	return &out
}

// SearchParams narrows a condition search. Empty fields match everything.
type SearchParams struct {
	ID             string
	SubjectID      string
	ClinicalStatus ClinicalStatus
	// Code is a FHIR token: "code", "system|code", "system|" or "|code".
	Code string
}

// matchesCode reports whether any of codes satisfies a token search value.
func matchesCode(codes []Coding, token string) bool {
	system, code, hasSystem := fhir.SplitToken(token)
	for _, cd := range codes {
		switch {
		case !hasSystem:
			if cd.Code == code {
				return true
			}
		case system == "":
			if cd.System == "" && cd.Code == code {
				return true
			}
		case code == "":
			if cd.System == system {
				return true
			}
		default:
			if cd.System == system && cd.Code == code {
				return true
			}
		}
	}
	return false
}

// Matches reports whether c satisfies every criterion in p.
func (p SearchParams) Matches(c *Condition) bool {
	if p.ID != "" && c.ID != p.ID {
		return false
	}
	if p.SubjectID != "" && c.SubjectID != p.SubjectID {
		return false
	}
	if p.ClinicalStatus != "" && c.ClinicalStatus != p.ClinicalStatus {
		return false
	}
	if p.Code != "" && !matchesCode(c.Codes, p.Code) {
		return false
	}
	return true
}
