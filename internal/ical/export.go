// Package ical renders a viewer's appointments as an iCalendar feed.
package ical

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"consulting-calendar/internal/calendar"
)

const floatingLayout = "20060102T150405"

// Export writes the appointments the viewer may open (own, or any when the
// viewer is an admin) as VEVENTs. Open and occupied cells are not exported.
// Times are floating: the calendar carries no zone.
func Export(days []calendar.DayDetail, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//consulting-calendar//appointments//EN")

	for _, d := range days {
		for _, c := range d.Cells {
			if c.AppointmentID == "" {
				continue
			}
			if c.State != calendar.StateOwnAppointment && c.State != calendar.StateForeignEngineerAppointment {
				continue
			}
			start, ok1 := at(d.Day, c.StartTime)
			end, ok2 := at(d.Day, c.EndTime)
			if !ok1 || !ok2 {
				continue
			}

			ev := cal.AddEvent(c.AppointmentID + "@consulting-calendar")
			ev.SetDtStampTime(now.UTC())
			ev.SetProperty(ics.ComponentPropertyDtStart, start.Format(floatingLayout))
			ev.SetProperty(ics.ComponentPropertyDtEnd, end.Format(floatingLayout))
			ev.SetSummary(summary(c))
			if c.Description != "" {
				ev.SetDescription(c.Description)
			}
			switch c.Status {
			case "confirmed":
				ev.SetStatus(ics.ObjectStatusConfirmed)
			case "pending":
				ev.SetStatus(ics.ObjectStatusTentative)
			}
		}
	}
	return cal.Serialize()
}

func at(d calendar.Day, clock string) (time.Time, bool) {
	m, ok := calendar.ClockMinutes(clock)
	if !ok {
		return time.Time{}, false
	}
	return d.Time(time.UTC).Add(time.Duration(m) * time.Minute), true
}

func summary(c calendar.Cell) string {
	if c.AppointmentType == "" {
		return "Appointment"
	}
	return fmt.Sprintf("Appointment (%s)", c.AppointmentType)
}
