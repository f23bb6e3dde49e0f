package fhir

import (
	"testing"
	"time"
)

func TestParseDateTime(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}

	tests := []struct {
		name string
		in   string
		loc  *time.Location
		want time.Time
	}{
		{"year", "2008", time.UTC, time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"year month", "2008-07", time.UTC, time.Date(2008, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"date", "2008-07-01", ny, time.Date(2008, 7, 1, 0, 0, 0, 0, ny)},
		{"utc instant", "2008-07-01T12:30:00Z", time.UTC, time.Date(2008, 7, 1, 12, 30, 0, 0, time.UTC)},
		{"offset converted", "2008-07-01T12:30:00Z", ny, time.Date(2008, 7, 1, 8, 30, 0, 0, ny)},
		{"fractional", "2008-07-01T12:30:00.5+02:00", time.UTC, time.Date(2008, 7, 1, 10, 30, 0, 500000000, time.UTC)},
		{"nil location", "2008-07-01", nil, time.Date(2008, 7, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDateTime(tt.in, tt.loc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseDateTime_Invalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2008-13-01", "2008-07-01T12:30:00", "07/01/2008"} {
		if _, err := ParseDateTime(in, time.UTC); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestFormatDateTime(t *testing.T) {
	loc := time.FixedZone("", 3*3600)
	got := FormatDateTime(time.Date(2008, 7, 1, 0, 0, 0, 0, loc))
	if got != "2008-07-01T00:00:00+03:00" {
		t.Errorf("unexpected %s", got)
	}
	if got := FormatDateTime(time.Date(2008, 7, 1, 0, 0, 0, 0, time.UTC)); got != "2008-07-01T00:00:00Z" {
		t.Errorf("unexpected %s", got)
	}
}

func TestFormatInstant(t *testing.T) {
	loc := time.FixedZone("", -5*3600)
	got := FormatInstant(time.Date(2024, 3, 1, 5, 0, 0, 0, loc))
	if got != "2024-03-01T10:00:00Z" {
		t.Errorf("unexpected %s", got)
	}
}
