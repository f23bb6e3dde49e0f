package fhir

import (
	"encoding/xml"
	"fmt"
)

// OperationOutcome severity levels per FHIR R4.
const (
	IssueSeverityFatal       = "fatal"
	IssueSeverityError       = "error"
	IssueSeverityWarning     = "warning"
	IssueSeverityInformation = "information"
)

// OperationOutcome issue type codes per FHIR R4.
const (
	IssueTypeInvalid       = "invalid"
	IssueTypeStructure     = "structure"
	IssueTypeRequired      = "required"
	IssueTypeValue         = "value"
	IssueTypeNotFound      = "not-found"
	IssueTypeProcessing    = "processing"
	IssueTypeNotSupported  = "not-supported"
	IssueTypeException     = "exception"
	IssueTypeDuplicate     = "duplicate"
	IssueTypeCodeInvalid   = "code-invalid"
	IssueTypeTooCostly     = "too-costly"
	IssueTypeTimeout       = "timeout"
	IssueTypeInformational = "informational"
)

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

func (o *OperationOutcome) GetResourceType() string { return "OperationOutcome" }

type OperationOutcomeIssue struct {
	Severity    string           `json:"severity"`
	Code        string           `json:"code"`
	Details     *CodeableConcept `json:"details,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
	Expression  []string         `json:"expression,omitempty"`
}

type xmlOperationOutcome struct {
	XMLName xml.Name
	Issue   []xmlIssue `xml:"issue"`
}

type xmlIssue struct {
	Severity    *Attr            `xml:"severity,omitempty"`
	Code        *Attr            `xml:"code,omitempty"`
	Details     *CodeableConcept `xml:"details,omitempty"`
	Diagnostics *Attr            `xml:"diagnostics,omitempty"`
	Expression  []Attr           `xml:"expression"`
}

func (o OperationOutcome) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	x := xmlOperationOutcome{Issue: make([]xmlIssue, len(o.Issue))}
	for i, is := range o.Issue {
		x.Issue[i] = xmlIssue{
			Severity:    attr(is.Severity),
			Code:        attr(is.Code),
			Details:     is.Details,
			Diagnostics: attr(is.Diagnostics),
			Expression:  attrs(is.Expression),
		}
	}
	return e.EncodeElement(x, resourceStart("OperationOutcome"))
}

func (o *OperationOutcome) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var x xmlOperationOutcome
	if err := d.DecodeElement(&x, &start); err != nil {
		return err
	}
	if x.XMLName.Local != "OperationOutcome" {
		return fmt.Errorf("expected OperationOutcome element, got %s", x.XMLName.Local)
	}
	out := OperationOutcome{ResourceType: "OperationOutcome"}
	for _, is := range x.Issue {
		out.Issue = append(out.Issue, OperationOutcomeIssue{
			Severity:    is.Severity.String(),
			Code:        is.Code.String(),
			Details:     is.Details,
			Diagnostics: is.Diagnostics.String(),
			Expression:  attrValues(is.Expression),
		})
	}
	*o = out
	return nil
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    severity,
				Code:        code,
				Diagnostics: diagnostics,
			},
		},
	}
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeProcessing, diagnostics)
}

func NotFoundOutcome(resourceType, id string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, fmt.Sprintf("Resource %s/%s is not known", resourceType, id))
}

// StructureOutcome creates an OperationOutcome for a payload that could not be
// parsed into the expected resource.
func StructureOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeStructure, diagnostics)
}

// RequiredFieldOutcome creates an OperationOutcome for a missing required field.
func RequiredFieldOutcome(field string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    IssueSeverityError,
				Code:        IssueTypeRequired,
				Diagnostics: fmt.Sprintf("%s is required", field),
				Expression:  []string{field},
			},
		},
	}
}

// DuplicateOutcome creates an OperationOutcome for an id that is already taken.
func DuplicateOutcome(resourceType, id string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeDuplicate, fmt.Sprintf("%s/%s already exists", resourceType, id))
}

// NotSupportedOutcome creates an OperationOutcome for unsupported operations.
func NotSupportedOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotSupported, diagnostics)
}

// InternalErrorOutcome creates an OperationOutcome for internal server errors.
func InternalErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityFatal, IssueTypeException, diagnostics)
}

// TooCostlyOutcome is returned when a request exceeds a server limit.
func TooCostlyOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeTooCostly, diagnostics)
}

// MultipleIssuesOutcome creates an OperationOutcome with multiple issues from validation.
func MultipleIssuesOutcome(issues []OperationOutcomeIssue) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue:        issues,
	}
}

// HasErrors returns true if the outcome contains any error or fatal issues.
func (o *OperationOutcome) HasErrors() bool {
	for _, issue := range o.Issue {
		if issue.Severity == IssueSeverityError || issue.Severity == IssueSeverityFatal {
			return true
		}
	}
	return false
}
