package calendar

import (
	"fmt"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a timezone-naive calendar day. The zero value is the invalid-day
// sentinel and never lands in a day bucket.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// NormalizeString extracts the calendar day from an ISO date string. Anything
// after the YYYY-MM-DD prefix (time of day, UTC offset) is ignored, so
// "2025-01-31T23:00:00Z" is 2025-01-31 whatever the host zone is.
func NormalizeString(s string) Day {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "Tt "); i >= 0 {
		s = s[:i]
	}
	if len(s) != len(dayLayout) {
		return Day{}
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}
	}
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// NormalizeTime reads the day from t's own location fields. It never converts
// to UTC first.
func NormalizeTime(t time.Time) Day {
	if t.IsZero() {
		return Day{}
	}
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

func (d Day) IsValid() bool {
	return d != Day{}
}

func (d Day) String() string {
	if !d.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns midnight of d in loc.
func (d Day) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Day) Weekday() time.Weekday {
	return d.Time(time.UTC).Weekday()
}

func (d Day) AddDays(n int) Day {
	return NormalizeTime(d.Time(time.UTC).AddDate(0, 0, n))
}

func (d Day) Before(o Day) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Month identifies a visible calendar month.
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(d Day) Month {
	return Month{Year: d.Year, Month: d.Month}
}

// Add moves delta months forward (negative goes back).
func (m Month) Add(delta int) Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, delta, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) First() Day {
	return Day{Year: m.Year, Month: m.Month, Day: 1}
}

func (m Month) Last() Day {
	return m.Add(1).First().AddDays(-1)
}

// Days lists every day of the month in order.
func (m Month) Days() []Day {
	last := m.Last()
	out := make([]Day, 0, last.Day)
	for i := 1; i <= last.Day; i++ {
		out = append(out, Day{Year: m.Year, Month: m.Month, Day: i})
	}
	return out
}

func (m Month) Contains(d Day) bool {
	return d.IsValid() && d.Year == m.Year && d.Month == m.Month
}

func (m Month) IsValid() bool {
	return m.Year > 0 && m.Month >= time.January && m.Month <= time.December
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}
