package fhir

import (
	"strings"
)

// PreferReturn is the return= directive of the Prefer header.
type PreferReturn string

const (
	ReturnMinimal          PreferReturn = "minimal"
	ReturnRepresentation   PreferReturn = "representation"
	ReturnOperationOutcome PreferReturn = "OperationOutcome"
)

// ParsePreferReturn extracts return= from a Prefer header. Directives may be
// separated by commas or semicolons; anything unrecognised means
// representation.
func ParsePreferReturn(prefer string) PreferReturn {
	fields := strings.FieldsFunc(prefer, func(r rune) bool { return r == ',' || r == ';' })
	for _, part := range fields {
		key, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "return") {
			continue
		}
		switch v := strings.Trim(strings.TrimSpace(val), `"`); {
		case strings.EqualFold(v, string(ReturnMinimal)):
			return ReturnMinimal
		case strings.EqualFold(v, string(ReturnOperationOutcome)):
			return ReturnOperationOutcome
		case strings.EqualFold(v, string(ReturnRepresentation)):
			return ReturnRepresentation
		}
	}
	return ReturnRepresentation
}
