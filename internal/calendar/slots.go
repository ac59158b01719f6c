package calendar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TimeSlot is a per-render view of one appointment or one open window on a
// day. It is rebuilt from records every time and never stored.
type TimeSlot struct {
	Day              Day    `json:"day"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	IsAvailable      bool   `json:"is_available"`
	AppointmentID    string `json:"appointment_id,omitempty"`
	IsOwnAppointment bool   `json:"is_own_appointment"`

	record *AppointmentRecord
}

// Record returns the appointment behind the slot, or nil for open slots.
func (s TimeSlot) Record() *AppointmentRecord {
	return s.record
}

// DaySlots maps a calendar day to its ordered slots.
type DaySlots map[Day][]TimeSlot

// BuildSlots turns raw records into per-day slots for viewer.
//
// Engineers keep only their own and unassigned records. Admins keep all.
// Companies keep all records (non-own ones are later rendered without
// identity) plus the open slots. Records with an invalid day are dropped;
// conflicting records are all kept.
func BuildSlots(records []AppointmentRecord, open []OpenSlot, viewer Viewer) DaySlots {
	out := DaySlots{}

	for i := range records {
		r := records[i]
		if !visibleTo(r, viewer) {
			continue
		}
		day := r.Day()
		if !day.IsValid() {
			continue
		}
		out[day] = append(out[day], TimeSlot{
			Day:              day,
			StartTime:        r.StartTime,
			EndTime:          r.EndTime,
			AppointmentID:    r.ID,
			IsOwnAppointment: isOwn(r, viewer),
			record:           &r,
		})
	}

	if viewer.Role == RoleCompany {
		for _, o := range open {
			day := NormalizeString(o.Date)
			if !day.IsValid() {
				continue
			}
			out[day] = append(out[day], TimeSlot{
				Day:         day,
				StartTime:   o.StartTime,
				EndTime:     o.EndTime,
				IsAvailable: true,
			})
		}
	}

	for _, slots := range out {
		sortSlots(slots)
	}
	return out
}

func visibleTo(r AppointmentRecord, v Viewer) bool {
	switch v.Role {
	case RoleAdmin, RoleCompany:
		return true
	case RoleEngineer:
		return r.Unassigned() || r.EngineerID == v.UserID
	default:
		return false
	}
}

func isOwn(r AppointmentRecord, v Viewer) bool {
	switch v.Role {
	case RoleEngineer:
		return v.UserID != "" && r.EngineerID == v.UserID
	case RoleCompany:
		return v.UserID != "" && r.CompanyID == v.UserID
	default:
		return false
	}
}

func sortSlots(slots []TimeSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		am, aok := ClockMinutes(a.StartTime)
		bm, bok := ClockMinutes(b.StartTime)
		switch {
		case aok && bok && am != bm:
			return am < bm
		case aok != bok:
			// unparsable times sink to the end
			return aok
		case !aok && a.StartTime != b.StartTime:
			return a.StartTime < b.StartTime
		}
		return a.AppointmentID < b.AppointmentID
	})
}

// ClockMinutes parses "HH:MM" (seconds and fractions are ignored) into
// minutes after midnight.
func ClockMinutes(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 5 || s[2] != ':' {
		return 0, false
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil || h < 0 || h > 24 {
		return 0, false
	}
	m, err := strconv.Atoi(s[3:5])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	if h == 24 && m != 0 {
		return 0, false
	}
	return h*60 + m, true
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
