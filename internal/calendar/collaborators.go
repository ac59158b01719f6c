package calendar

import (
	"context"
	"errors"
)

var (
	ErrNoSchedulingSlot = errors.New("no slot selected for scheduling")
	ErrNotPermitted     = errors.New("action not permitted for viewer")
)

// AppointmentRecord is a booked appointment as returned by the backend.
// Records are read-only inside the engine.
type AppointmentRecord struct {
	ID              string `json:"id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	EngineerID      string `json:"engineer_id,omitempty"`
	CompanyID       string `json:"company_id"`
	AppointmentType string `json:"appointment_type,omitempty"`
	Description     string `json:"description,omitempty"`
	Status          string `json:"status"`
}

// Day is the normalized calendar day of the record.
func (r AppointmentRecord) Day() Day {
	return NormalizeString(r.Date)
}

// Unassigned reports whether no engineer has been put on the appointment yet.
func (r AppointmentRecord) Unassigned() bool {
	return r.EngineerID == ""
}

// OpenSlot is a bookable window published by the schedule-config service.
type OpenSlot struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Booking is what the scheduling flow submits.
type Booking struct {
	Day             Day
	StartTime       string
	EndTime         string
	CompanyID       string
	AppointmentType string
	Description     string
}

// AppointmentLister lists the appointments touching a month.
type AppointmentLister interface {
	ListAppointments(ctx context.Context, month Month) ([]AppointmentRecord, error)
}

// AppointmentGetter looks up one appointment by id.
type AppointmentGetter interface {
	GetAppointment(ctx context.Context, id string) (AppointmentRecord, error)
}

// OpenSlotSource lists the pre-configured open slots of a month.
type OpenSlotSource interface {
	OpenSlots(ctx context.Context, month Month) ([]OpenSlot, error)
}

// Submitter books an appointment.
type Submitter interface {
	SubmitAppointment(ctx context.Context, b Booking) (AppointmentRecord, error)
}
