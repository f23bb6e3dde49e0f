package fhir

import (
	"fmt"
	"time"
)

// partialDateLayouts are the FHIR dateTime precisions that carry no time of day.
var partialDateLayouts = []string{"2006-01-02", "2006-01", "2006"}

// ParseDateTime parses a FHIR dateTime. Values with a time component must
// carry a zone offset and are returned converted into loc. Date-only values
// (year, year-month or full date) are anchored to midnight of their first day
// in loc.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range partialDateLayouts {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid dateTime %q", s)
	}
	return t.In(loc), nil
}

// FormatDateTime renders an instant as a FHIR dateTime with its zone offset.
func FormatDateTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// FormatInstant renders an instant in UTC, as used by meta.lastUpdated.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
