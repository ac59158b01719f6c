package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"consulting-calendar/internal/calendar"
)

// Memory is an in-process Backend, used when no database is configured.
type Memory struct {
	mu           sync.Mutex
	appointments map[string]calendar.AppointmentRecord
	rules        []AvailabilityRule
	nextRuleID   int
	now          func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		appointments: map[string]calendar.AppointmentRecord{},
		nextRuleID:   1,
		now:          time.Now,
	}
}

// Seed inserts records as-is, keeping their ids. Missing ids are generated.
func (m *Memory) Seed(recs ...calendar.AppointmentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		m.appointments[r.ID] = r
	}
}

func (m *Memory) ListAppointments(_ context.Context, month calendar.Month) ([]calendar.AppointmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []calendar.AppointmentRecord
	for _, r := range m.appointments {
		if r.Status == StatusCancelled || !month.Contains(r.Day()) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetAppointment(_ context.Context, id string) (calendar.AppointmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.appointments[id]
	if !ok {
		return r, ErrNotFound
	}
	return r, nil
}

func (m *Memory) bookedLocked(month calendar.Month) dayWindows {
	booked := dayWindows{}
	for _, r := range m.appointments {
		if r.Status == StatusCancelled || !month.Contains(r.Day()) {
			continue
		}
		if w, ok := windowOf(r.StartTime, r.EndTime); ok {
			booked.add(r.Day(), w)
		}
	}
	return booked
}

func (m *Memory) OpenSlots(_ context.Context, month calendar.Month) ([]calendar.OpenSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rules) == 0 {
		return nil, nil
	}
	return ExpandRules(m.rules, month, m.bookedLocked(month))
}

func (m *Memory) SubmitAppointment(_ context.Context, b calendar.Booking) (calendar.AppointmentRecord, error) {
	if err := validateBooking(b); err != nil {
		return calendar.AppointmentRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	month := calendar.MonthOf(b.Day)
	w, _ := windowOf(b.StartTime, b.EndTime)
	if m.bookedLocked(month).overlaps(b.Day, w) {
		return calendar.AppointmentRecord{}, ErrSlotTaken
	}
	candidates, err := ExpandRules(m.rules, month, nil)
	if err != nil {
		return calendar.AppointmentRecord{}, err
	}
	if !offered(b, candidates) {
		return calendar.AppointmentRecord{}, ErrSlotUnavailable
	}

	rec := calendar.AppointmentRecord{
		ID:              uuid.NewString(),
		Date:            b.Day.String(),
		StartTime:       normalizeClock(b.StartTime),
		EndTime:         normalizeClock(b.EndTime),
		CompanyID:       b.CompanyID,
		AppointmentType: b.AppointmentType,
		Description:     b.Description,
		Status:          StatusPending,
	}
	m.appointments[rec.ID] = rec
	return rec, nil
}

func (m *Memory) AssignEngineer(_ context.Context, id, engineerID string) (calendar.AppointmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.appointments[id]
	if !ok || r.Status == StatusCancelled {
		return r, ErrNotFound
	}
	r.EngineerID = engineerID
	r.Status = StatusConfirmed
	if engineerID == "" {
		r.Status = StatusPending
	}
	m.appointments[id] = r
	return r, nil
}

func (m *Memory) CancelAppointment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.appointments[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status == StatusCancelled {
		return ErrAlreadyCanceled
	}
	r.Status = StatusCancelled
	m.appointments[id] = r
	return nil
}

func (m *Memory) InsertAvailabilityRule(_ context.Context, r *AvailabilityRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rules {
		if existing.DayOfWeek == r.DayOfWeek && existing.Available == r.Available {
			return fmt.Errorf("%w %d", ErrRuleExists, r.DayOfWeek)
		}
	}
	now := m.now().UTC()
	r.ID = m.nextRuleID
	r.CreatedAt, r.UpdatedAt = now, now
	m.nextRuleID++
	m.rules = append(m.rules, *r)
	return nil
}

func (m *Memory) UpdateAvailabilityRule(_ context.Context, r *AvailabilityRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.rules {
		if existing.ID != r.ID {
			continue
		}
		for _, other := range m.rules {
			if other.ID != r.ID && other.DayOfWeek == existing.DayOfWeek && other.Available == r.Available {
				return fmt.Errorf("%w %d", ErrRuleExists, existing.DayOfWeek)
			}
		}
		r.DayOfWeek = existing.DayOfWeek
		r.CreatedAt = existing.CreatedAt
		r.UpdatedAt = m.now().UTC()
		m.rules[i] = *r
		return nil
	}
	return ErrNotFound
}

func (m *Memory) ListAvailabilityRules(context.Context) ([]AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AvailabilityRule, len(m.rules))
	copy(out, m.rules)
	return out, nil
}
