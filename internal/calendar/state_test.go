package calendar

import (
	"testing"
	"time"
)

func TestResolveState(t *testing.T) {
	rec := &AppointmentRecord{ID: "a1", EngineerID: "eng-1", CompanyID: "acme"}
	unassigned := &AppointmentRecord{ID: "a2", CompanyID: "acme"}

	tests := []struct {
		name   string
		slot   TimeSlot
		viewer Viewer
		want   Resolution
	}{
		{"company available", TimeSlot{IsAvailable: true}, Viewer{"acme", RoleCompany}, Resolution{StateAvailable, ActionSchedule}},
		{"company own", TimeSlot{IsOwnAppointment: true, record: rec}, Viewer{"acme", RoleCompany}, Resolution{StateOwnAppointment, ActionView}},
		{"company other", TimeSlot{record: rec}, Viewer{"globex", RoleCompany}, Resolution{StateOccupiedByOther, ActionNone}},
		{"engineer own", TimeSlot{IsOwnAppointment: true, record: rec}, Viewer{"eng-1", RoleEngineer}, Resolution{StateOwnAppointment, ActionView}},
		{"engineer unassigned", TimeSlot{record: unassigned}, Viewer{"eng-1", RoleEngineer}, Resolution{StateOccupiedByOther, ActionView}},
		{"engineer foreign", TimeSlot{record: rec}, Viewer{"eng-2", RoleEngineer}, Resolution{StateOccupiedByOther, ActionNone}},
		{"admin booked", TimeSlot{record: rec}, Viewer{"root", RoleAdmin}, Resolution{StateForeignEngineerAppointment, ActionView}},
		{"admin open", TimeSlot{IsAvailable: true}, Viewer{"root", RoleAdmin}, Resolution{StateAvailable, ActionView}},
		{"unknown role", TimeSlot{IsAvailable: true}, Viewer{"x", RoleUnknown}, Resolution{StateOccupiedByOther, ActionNone}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveState(tt.slot, tt.viewer); got != tt.want {
				t.Errorf("ResolveState = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRenderCellCompanyPrivacy(t *testing.T) {
	recs := []AppointmentRecord{
		{ID: "own", Date: "2025-03-10", StartTime: "09:00", EndTime: "10:00", EngineerID: "eng-1", CompanyID: "acme", AppointmentType: "audit", Description: "ours"},
		{ID: "other", Date: "2025-03-10", StartTime: "11:00", EndTime: "12:00", EngineerID: "eng-2", CompanyID: "globex", AppointmentType: "repair", Description: "theirs"},
	}
	v := Viewer{UserID: "acme", Role: RoleCompany}
	slots := BuildSlots(recs, nil, v)[Day{2025, time.March, 10}]
	cells := RenderFull(slots, v, RenderOptions{})

	if len(cells) != 2 {
		t.Fatalf("got %d cells", len(cells))
	}
	if cells[0].State != StateOwnAppointment || cells[0].Action != ActionView || cells[0].AppointmentID != "own" {
		t.Errorf("own cell = %+v", cells[0])
	}
	want := Cell{StartTime: "11:00", EndTime: "12:00", State: StateOccupiedByOther, Action: ActionNone}
	if cells[1] != want {
		t.Errorf("occupied cell leaks data: %+v", cells[1])
	}
}

func TestRenderCellTypeColor(t *testing.T) {
	rec := &AppointmentRecord{ID: "a", EngineerID: "eng-1", AppointmentType: "onsite"}
	opts := RenderOptions{TypeColors: map[string]string{"onsite": "#2e7d32"}}
	c := RenderCell(TimeSlot{IsOwnAppointment: true, record: rec}, Viewer{"eng-1", RoleEngineer}, opts)
	if c.Color != "#2e7d32" {
		t.Errorf("color = %q", c.Color)
	}
}

func TestRenderCellUnassignedHidesCompany(t *testing.T) {
	rec := &AppointmentRecord{ID: "a", CompanyID: "acme", Description: "pump"}
	c := RenderCell(TimeSlot{record: rec}, Viewer{"eng-1", RoleEngineer}, RenderOptions{})
	if c.CompanyID != "" || c.EngineerID != "" {
		t.Errorf("unassigned cell exposes identity: %+v", c)
	}
	if c.AppointmentID != "a" || c.Description != "pump" {
		t.Errorf("unassigned cell lacks details: %+v", c)
	}
}

func TestRenderDayTruncation(t *testing.T) {
	var slots []TimeSlot
	for i, start := range []string{"08:00", "09:00", "10:00", "11:00"} {
		rec := &AppointmentRecord{ID: string(rune('a' + i)), StartTime: start}
		slots = append(slots, TimeSlot{StartTime: start, AppointmentID: rec.ID, record: rec})
	}
	v := Viewer{"root", RoleAdmin}
	day := Day{2025, time.March, 10}

	dc := RenderDay(day, slots, v, RenderOptions{})
	if len(dc.Cells) != DefaultDisplayCount || dc.More != 2 || dc.Total != 4 {
		t.Fatalf("truncated cell = %+v", dc)
	}
	full := RenderFull(slots, v, RenderOptions{})
	for i, c := range dc.Cells {
		if c != full[i] {
			t.Errorf("grid cell %d not a prefix of the full list", i)
		}
	}

	dc = RenderDay(day, slots, v, RenderOptions{DisplayCount: 5})
	if len(dc.Cells) != 4 || dc.More != 0 {
		t.Errorf("display count 5: %+v", dc)
	}
}
