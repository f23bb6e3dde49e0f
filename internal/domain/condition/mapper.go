package condition

import (
	"fmt"
	"strings"
	"time"

	"github.com/ehr/condition-server/internal/platform/fhir"
)

const subjectType = "Patient"

// ToFHIR converts the record into a FHIR Condition. The stored onset wall
// clock is read as a time in loc.
func (c *Condition) ToFHIR(loc *time.Location) *fhir.Condition {
	if loc == nil {
		loc = time.UTC
	}
	status := c.ClinicalStatus
	if status == "" {
		status = StatusUnknown
	}

	res := &fhir.Condition{
		ResourceType: "Condition",
		ID:           c.ID,
		ClinicalStatus: &fhir.CodeableConcept{
			Coding: []fhir.Coding{{
				System: fhir.ConditionClinicalStatusSystem,
				Code:   string(status),
			}},
		},
		Subject: &fhir.Reference{Reference: fhir.FormatReference(subjectType, c.SubjectID)},
	}
	if !c.UpdatedAt.IsZero() {
		res.Meta = &fhir.Meta{VersionID: "1", LastUpdated: fhir.FormatInstant(c.UpdatedAt)}
	}
	if len(c.Codes) > 0 {
		cc := &fhir.CodeableConcept{}
		for _, cd := range c.Codes {
			cc.Coding = append(cc.Coding, fhir.Coding{System: cd.System, Code: cd.Code, Display: cd.Display})
		}
		res.Code = cc
	}
	if c.Onset != nil {
		res.OnsetDateTime = fhir.FormatDateTime(inLocation(*c.Onset, loc))
	}
	return res
}

// FromFHIR builds a record from a validated FHIR Condition. The id is copied
// as given; the store assigns one when it is empty. Semantic problems are
// reported as *fhir.ValidationError.
func FromFHIR(res *fhir.Condition, loc *time.Location) (*Condition, error) {
	if loc == nil {
		loc = time.UTC
	}
	if res.Subject == nil || strings.TrimSpace(res.Subject.Reference) == "" {
		return nil, fhir.NewFieldError(fhir.IssueTypeRequired, "Condition.subject", "Condition.subject is required")
	}
	rt, subjectID, ok := fhir.ParseReference(res.Subject.Reference)
	if !ok || rt != subjectType {
		return nil, fhir.NewFieldError(fhir.IssueTypeValue, "Condition.subject.reference",
			fmt.Sprintf("subject must reference a Patient, got %q", res.Subject.Reference))
	}

	c := &Condition{
		ID:             strings.TrimSpace(res.ID),
		ClinicalStatus: StatusUnknown,
		SubjectID:      subjectID,
	}

	if res.ClinicalStatus != nil && len(res.ClinicalStatus.Coding) > 0 {
		coding := res.ClinicalStatus.FirstCoding()
		if coding.System != "" && coding.System != fhir.ConditionClinicalStatusSystem {
			return nil, fhir.NewFieldError(fhir.IssueTypeCodeInvalid, "Condition.clinicalStatus.coding[0].system",
				fmt.Sprintf("clinical status system must be %s, got %q", fhir.ConditionClinicalStatusSystem, coding.System))
		}
		status, ok := ParseClinicalStatus(coding.Code)
		if !ok {
			return nil, fhir.NewFieldError(fhir.IssueTypeCodeInvalid, "Condition.clinicalStatus.coding[0].code",
				fmt.Sprintf("unknown clinical status %q", coding.Code))
		}
		c.ClinicalStatus = status
	}

	if res.Code != nil {
		for _, cd := range res.Code.Coding {
			c.Codes = append(c.Codes, Coding{System: cd.System, Code: cd.Code, Display: cd.Display})
		}
	}

	if res.OnsetDateTime != "" {
		t, err := fhir.ParseDateTime(res.OnsetDateTime, loc)
		if err != nil {
			return nil, fhir.NewFieldError(fhir.IssueTypeValue, "Condition.onsetDateTime", err.Error())
		}
		onset := wallClock(t)
		c.Onset = &onset
	}
	return c, nil
}

// wallClock drops the zone of t, keeping its local date and time.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// inLocation reads a zone-less wall clock as a time in loc.
func inLocation(wall time.Time, loc *time.Location) time.Time {
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc)
}
