package condition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ehr/condition-server/internal/platform/fhir"
)

type Service struct {
	conditions Repository
	validator  *fhir.Validator
	loc        *time.Location
}

// NewService wires a Service. loc is the zone onset wall clocks are read in.
func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{conditions: repo, validator: fhir.NewValidator(), loc: loc}
}

// Location returns the onset zone.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) GetCondition(ctx context.Context, id string) (*Condition, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	return s.conditions.GetByID(ctx, id)
}

// CreateFromFHIR validates a decoded resource, maps it and persists it.
// Invalid input yields a *fhir.ValidationError.
func (s *Service) CreateFromFHIR(ctx context.Context, res *fhir.Condition) (*Condition, error) {
	if err := s.validator.Validate(res); err != nil {
		return nil, err
	}
	c, err := FromFHIR(res, s.loc)
	if err != nil {
		return nil, err
	}
	if err := s.conditions.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create condition: %w", err)
	}
	return c, nil
}

func (s *Service) SearchConditions(ctx context.Context, params SearchParams, limit, offset int) ([]*Condition, int, error) {
	return s.conditions.Search(ctx, params, limit, offset)
}

// ParseSearchParams converts raw FHIR search parameters. Unknown parameters
// are ignored. A clinical-status that names no known status, or a subject
// that references something other than a Patient, is reported as a
// *fhir.ValidationError.
func ParseSearchParams(raw map[string]string) (SearchParams, error) {
	var p SearchParams
	p.ID = raw["_id"]
	p.Code = raw["code"]

	for _, name := range []string{"patient", "subject"} {
		v := raw[name]
		if v == "" {
			continue
		}
		id, err := subjectIDFromSearch(name, v)
		if err != nil {
			return p, err
		}
		p.SubjectID = id
	}
	if v := raw["clinical-status"]; v != "" {
		_, code, _ := fhir.SplitToken(v)
		status, ok := ParseClinicalStatus(code)
		if !ok {
			return p, fhir.NewFieldError(fhir.IssueTypeCodeInvalid, "clinical-status",
				fmt.Sprintf("unknown clinical status %q", v))
		}
		p.ClinicalStatus = status
	}
	return p, nil
}

// subjectIDFromSearch accepts "Patient/{id}", an absolute Patient reference
// or a bare id. A reference to any other resource type is rejected.
func subjectIDFromSearch(param, v string) (string, error) {
	rt, id, ok := fhir.ParseReference(v)
	if !ok {
		return strings.TrimSpace(v), nil
	}
	if rt != subjectType {
		return "", fhir.NewFieldError(fhir.IssueTypeValue, param,
			fmt.Sprintf("%s must reference a Patient, got %q", param, v))
	}
	return id, nil
}
