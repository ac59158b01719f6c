// Package store is the backend behind the calendar: appointment listing,
// open slot publication and booking submission.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"consulting-calendar/internal/calendar"
)

var (
	ErrNotFound        = errors.New("appointment not found")
	ErrSlotTaken       = errors.New("slot already booked")
	ErrSlotUnavailable = errors.New("slot not available")
	ErrAlreadyCanceled = errors.New("appointment already cancelled")
	ErrRuleExists      = errors.New("availability already exists for day")
	ErrInvalidRule     = errors.New("invalid availability rule")
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// AvailabilityRule is a weekly window, chunked into slots of SlotLengthMins.
// Rules with Available=false block the window instead.
type AvailabilityRule struct {
	ID             int       `json:"id"`
	DayOfWeek      int       `json:"day_of_week"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	SlotLengthMins int       `json:"slot_length_minutes"`
	Title          string    `json:"title,omitempty"`
	Available      bool      `json:"available"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

func (r AvailabilityRule) Validate() error {
	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		return fmt.Errorf("%w: day_of_week %d", ErrInvalidRule, r.DayOfWeek)
	}
	start, ok := calendar.ClockMinutes(r.StartTime)
	if !ok {
		return fmt.Errorf("%w: start_time %q", ErrInvalidRule, r.StartTime)
	}
	end, ok := calendar.ClockMinutes(r.EndTime)
	if !ok {
		return fmt.Errorf("%w: end_time %q", ErrInvalidRule, r.EndTime)
	}
	if end <= start {
		return fmt.Errorf("%w: end_time must be after start_time", ErrInvalidRule)
	}
	if r.Available && r.SlotLengthMins <= 0 {
		return fmt.Errorf("%w: slot_length_minutes must be positive", ErrInvalidRule)
	}
	return nil
}

// Backend is everything the HTTP layer needs from a store.
type Backend interface {
	calendar.AppointmentLister
	calendar.OpenSlotSource
	calendar.Submitter
	GetAppointment(ctx context.Context, id string) (calendar.AppointmentRecord, error)
	AssignEngineer(ctx context.Context, id, engineerID string) (calendar.AppointmentRecord, error)
	CancelAppointment(ctx context.Context, id string) error
	InsertAvailabilityRule(ctx context.Context, r *AvailabilityRule) error
	UpdateAvailabilityRule(ctx context.Context, r *AvailabilityRule) error
	ListAvailabilityRules(ctx context.Context) ([]AvailabilityRule, error)
}

// slotKey identifies a candidate window start on a day.
type slotKey struct {
	day   calendar.Day
	start int
}

// window is a [start, end) range in minutes after midnight.
type window struct{ start, end int }

func (w window) overlaps(o window) bool {
	return w.start < o.end && o.start < w.end
}

// windowOf parses a clock range. A missing or inverted end still occupies
// the start minute.
func windowOf(start, end string) (window, bool) {
	s, ok := calendar.ClockMinutes(start)
	if !ok {
		return window{}, false
	}
	e, ok := calendar.ClockMinutes(end)
	if !ok || e <= s {
		e = s + 1
	}
	return window{start: s, end: e}, true
}

// dayWindows holds occupied windows per day.
type dayWindows map[calendar.Day][]window

func (d dayWindows) add(day calendar.Day, w window) {
	d[day] = append(d[day], w)
}

func (d dayWindows) overlaps(day calendar.Day, w window) bool {
	for _, o := range d[day] {
		if o.overlaps(w) {
			return true
		}
	}
	return false
}

func validateBooking(b calendar.Booking) error {
	if !b.Day.IsValid() {
		return fmt.Errorf("%w: invalid day", ErrSlotUnavailable)
	}
	if strings.TrimSpace(b.CompanyID) == "" {
		return errors.New("booking requires a company")
	}
	start, ok1 := calendar.ClockMinutes(b.StartTime)
	end, ok2 := calendar.ClockMinutes(b.EndTime)
	if !ok1 || !ok2 || end <= start {
		return fmt.Errorf("%w: bad time range %s-%s", ErrSlotUnavailable, b.StartTime, b.EndTime)
	}
	return nil
}

// offered reports whether the window appears among the rule-generated slots.
func offered(b calendar.Booking, candidates []calendar.OpenSlot) bool {
	for _, s := range candidates {
		if calendar.NormalizeString(s.Date) == b.Day && s.StartTime == normalizeClock(b.StartTime) && s.EndTime == normalizeClock(b.EndTime) {
			return true
		}
	}
	return false
}

func normalizeClock(s string) string {
	m, ok := calendar.ClockMinutes(s)
	if !ok {
		return s
	}
	return calendar.FormatClock(m)
}
