package fhir

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError carries the issues found in an incoming resource.
// Structural errors mean the payload is not the expected resource at all and
// map to 400; the rest are semantic and map to 422.
type ValidationError struct {
	Structural bool
	Issues     []OperationOutcomeIssue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, is.Diagnostics)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Outcome renders the validation error as an OperationOutcome.
func (e *ValidationError) Outcome() *OperationOutcome {
	return MultipleIssuesOutcome(e.Issues)
}

// NewFieldError returns a single-issue semantic ValidationError.
func NewFieldError(code, expression, diagnostics string) *ValidationError {
	return &ValidationError{Issues: []OperationOutcomeIssue{{
		Severity:    IssueSeverityError,
		Code:        code,
		Diagnostics: diagnostics,
		Expression:  []string{expression},
	}}}
}

// Validator checks decoded wire resources against their struct constraints.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report FHIR element names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate returns nil or a *ValidationError describing every violation.
func (val *Validator) Validate(r Resource) error {
	err := val.v.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Structural: true, Issues: []OperationOutcomeIssue{{
			Severity:    IssueSeverityError,
			Code:        IssueTypeStructure,
			Diagnostics: err.Error(),
		}}}
	}

	out := &ValidationError{}
	for _, fe := range fieldErrs {
		path := expressionPath(r.GetResourceType(), fe.Namespace())
		issue := OperationOutcomeIssue{
			Severity:   IssueSeverityError,
			Expression: []string{path},
		}
		switch fe.Tag() {
		case "required":
			issue.Code = IssueTypeRequired
			issue.Diagnostics = fmt.Sprintf("%s is required", path)
		case "eq":
			if fe.Field() == "resourceType" {
				out.Structural = true
				issue.Code = IssueTypeStructure
				issue.Diagnostics = fmt.Sprintf("expected resourceType %s, got %q", fe.Param(), fe.Value())
				break
			}
			issue.Code = IssueTypeValue
			issue.Diagnostics = fmt.Sprintf("%s must be %s", path, fe.Param())
		default:
			issue.Code = IssueTypeInvalid
			issue.Diagnostics = fmt.Sprintf("%s failed %s validation", path, fe.Tag())
		}
		out.Issues = append(out.Issues, issue)
	}
	return out
}

// expressionPath turns a validator namespace such as "Condition.subject.reference"
// into a FHIRPath expression rooted at the resource type.
func expressionPath(resourceType, namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return resourceType + namespace[i:]
	}
	return resourceType
}
