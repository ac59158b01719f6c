package calendar

import (
	"context"
	"errors"

	appLog "consulting-calendar/internal/log"
)

// MergedLister lists from a primary source and appends what secondary sources
// return. A failing primary fails the listing; a failing secondary is logged
// and skipped. Records are never deduplicated.
type MergedLister struct {
	Primary   AppointmentLister
	Secondary []AppointmentLister
}

func (m MergedLister) ListAppointments(ctx context.Context, month Month) ([]AppointmentRecord, error) {
	out, err := m.Primary.ListAppointments(ctx, month)
	if err != nil {
		return nil, err
	}
	for _, src := range m.Secondary {
		recs, err := src.ListAppointments(ctx, month)
		if err != nil {
			appLog.Error("secondary appointment source failed", err, "month", month)
			continue
		}
		out = append(out, recs...)
	}
	return out, nil
}

// GetAppointment asks the primary first, then every secondary that can look
// up records. When none has the id the primary's error is returned.
func (m MergedLister) GetAppointment(ctx context.Context, id string) (AppointmentRecord, error) {
	var primaryErr error
	if g, ok := m.Primary.(AppointmentGetter); ok {
		rec, err := g.GetAppointment(ctx, id)
		if err == nil {
			return rec, nil
		}
		primaryErr = err
	} else {
		primaryErr = errors.New("primary source cannot look up appointments")
	}
	for _, src := range m.Secondary {
		g, ok := src.(AppointmentGetter)
		if !ok {
			continue
		}
		rec, err := g.GetAppointment(ctx, id)
		if err == nil {
			return rec, nil
		}
		appLog.Debug("secondary appointment lookup failed", "id", id, "err", err)
	}
	return AppointmentRecord{}, primaryErr
}
