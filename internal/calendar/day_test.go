package calendar

import (
	"testing"
	"time"
)

func TestNormalizeString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Day
	}{
		{"date only", "2025-03-10", Day{2025, time.March, 10}},
		{"utc late evening", "2025-01-31T23:00:00Z", Day{2025, time.January, 31}},
		{"positive offset early morning", "2025-02-01T00:30:00+09:00", Day{2025, time.February, 1}},
		{"fractional seconds", "2025-03-10T00:00:00.000Z", Day{2025, time.March, 10}},
		{"space separator", "2025-12-31 23:59:59", Day{2025, time.December, 31}},
		{"empty", "", Day{}},
		{"garbage", "not-a-date", Day{}},
		{"impossible day", "2025-02-30", Day{}},
		{"short form", "2025-3-1", Day{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeString(tt.in); got != tt.want {
				t.Errorf("NormalizeString(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIsZoneInvariant(t *testing.T) {
	inputs := []string{
		"2025-01-31T23:00:00Z",
		"2025-01-01T00:00:00Z",
		"2024-02-29T12:00:00-11:00",
	}
	zones := []*time.Location{
		time.UTC,
		time.FixedZone("UTC-8", -8*3600),
		time.FixedZone("UTC-11", -11*3600),
		time.FixedZone("UTC+14", 14*3600),
	}

	orig := time.Local
	defer func() { time.Local = orig }()

	for _, in := range inputs {
		time.Local = time.UTC
		want := NormalizeString(in)
		for _, z := range zones {
			time.Local = z
			if got := NormalizeString(in); got != want {
				t.Errorf("NormalizeString(%q) in %s = %v, want %v", in, z, got, want)
			}
		}
	}
}

func TestNormalizeTimeReadsOwnLocation(t *testing.T) {
	west := time.FixedZone("UTC-5", -5*3600)
	tm := time.Date(2025, time.January, 31, 23, 0, 0, 0, west)

	if got, want := NormalizeTime(tm), (Day{2025, time.January, 31}); got != want {
		t.Errorf("NormalizeTime = %v, want %v", got, want)
	}
	if got := NormalizeTime(time.Time{}); got.IsValid() {
		t.Errorf("zero time should normalize to the invalid day, got %v", got)
	}
}

func TestMonthArithmetic(t *testing.T) {
	m := Month{2025, time.January}

	if got := m.Add(-1); got != (Month{2024, time.December}) {
		t.Errorf("Add(-1) = %v", got)
	}
	if got := m.Add(13); got != (Month{2026, time.February}) {
		t.Errorf("Add(13) = %v", got)
	}
	if got := (Month{2024, time.February}).Last(); got != (Day{2024, time.February, 29}) {
		t.Errorf("leap February last day = %v", got)
	}
	if n := len((Month{2025, time.April}).Days()); n != 30 {
		t.Errorf("April has %d days, want 30", n)
	}
	if m.Contains(Day{}) {
		t.Error("month must not contain the invalid day")
	}
}
