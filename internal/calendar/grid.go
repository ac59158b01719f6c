package calendar

import (
	"context"
	"fmt"
	"sync"

	appLog "consulting-calendar/internal/log"
)

// GridConfig wires a Controller to its collaborators. OpenSlots and
// Submitter may be nil.
type GridConfig struct {
	Lister    AppointmentLister
	OpenSlots OpenSlotSource
	Submitter Submitter
	Viewer    Viewer
	Options   RenderOptions
}

// FetchResult is one month's delivery from the backend, tagged with the
// month it was requested for.
type FetchResult struct {
	Month   Month
	Records []AppointmentRecord
	Open    []OpenSlot
	Err     error
}

// MonthView is the render-ready grid.
type MonthView struct {
	// Month is the month the shown data belongs to. It lags Visible while a
	// fetch for a new month is in flight.
	Month       Month     `json:"month"`
	Visible     Month     `json:"visible"`
	Pending     bool      `json:"pending"`
	FetchFailed bool      `json:"fetch_failed"`
	Days        []DayCell `json:"days"`
}

// DayDetail is the content of the day modal: every slot of the day.
type DayDetail struct {
	Day   Day    `json:"day"`
	Cells []Cell `json:"cells"`
}

// Activation is the outcome of clicking a slot.
type Activation struct {
	Action Action   `json:"action"`
	Cell   Cell     `json:"cell"`
	Slot   TimeSlot `json:"-"`
}

// GridState is a snapshot of the controller's UI state.
type GridState struct {
	VisibleMonth        Month
	SelectedDay         Day
	DayModalOpen        bool
	ViewModalOpen       bool
	ScheduleFormOpen    bool
	SelectedAppointment *AppointmentRecord
	SchedulingSlot      *TimeSlot
}

// Controller owns the calendar grid for one mount. The record cache is
// replaced only by month-tagged deliveries for the visible month.
type Controller struct {
	cfg GridConfig

	mu          sync.Mutex
	visible     Month
	loaded      Month
	records     []AppointmentRecord
	open        []OpenSlot
	fetchFailed bool

	selectedDay   Day
	dayModalOpen  bool
	viewModalOpen bool
	selected      *AppointmentRecord
	scheduleSlot  *TimeSlot
}

func NewController(cfg GridConfig, month Month) *Controller {
	return &Controller{cfg: cfg, visible: month}
}

// Load fetches the visible month and commits it. It is the initial mount.
func (c *Controller) Load(ctx context.Context) {
	c.mu.Lock()
	m := c.visible
	c.mu.Unlock()
	c.Commit(c.fetch(ctx, m))
}

// ChangeMonth moves the visible month by delta and starts a fetch for it.
// The previous month's data stays on screen until the delivery commits. The
// returned channel closes once the delivery was committed or discarded.
func (c *Controller) ChangeMonth(ctx context.Context, delta int) <-chan struct{} {
	c.mu.Lock()
	c.visible = c.visible.Add(delta)
	m := c.visible
	c.dayModalOpen = false
	c.selectedDay = Day{}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Commit(c.fetch(ctx, m))
	}()
	return done
}

// Commit applies a delivery. Deliveries for a month other than the visible
// one are stale and discarded; Commit reports whether res was applied.
func (c *Controller) Commit(res FetchResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if res.Month != c.visible {
		appLog.Debug("discarding stale appointment delivery", "month", res.Month, "visible", c.visible)
		return false
	}
	c.loaded = res.Month
	c.fetchFailed = res.Err != nil
	if res.Err != nil {
		c.records = nil
		c.open = nil
	} else {
		c.records = res.Records
		c.open = res.Open
	}
	return true
}

func (c *Controller) fetch(ctx context.Context, m Month) FetchResult {
	res := FetchResult{Month: m}
	if c.cfg.Lister == nil {
		res.Err = fmt.Errorf("no appointment lister configured")
		return res
	}
	recs, err := c.cfg.Lister.ListAppointments(ctx, m)
	if err != nil {
		appLog.Error("appointment fetch failed, rendering empty month", err, "month", m)
		res.Err = err
		return res
	}
	res.Records = recs

	if c.cfg.OpenSlots != nil && c.cfg.Viewer.Role == RoleCompany {
		open, err := c.cfg.OpenSlots.OpenSlots(ctx, m)
		if err != nil {
			appLog.Error("open slot fetch failed", err, "month", m)
		} else {
			res.Open = open
		}
	}
	return res
}

// slotsLocked rebuilds the day→slot mapping of the loaded month.
func (c *Controller) slotsLocked() DaySlots {
	slots := BuildSlots(c.records, c.open, c.cfg.Viewer)
	for d := range slots {
		if !c.loaded.Contains(d) {
			delete(slots, d)
		}
	}
	return slots
}

// View renders the grid from the cached records.
func (c *Controller) View() MonthView {
	c.mu.Lock()
	defer c.mu.Unlock()

	mv := MonthView{
		Month:       c.loaded,
		Visible:     c.visible,
		Pending:     c.loaded != c.visible,
		FetchFailed: c.fetchFailed,
	}
	if !c.loaded.IsValid() {
		return mv
	}
	slots := c.slotsLocked()
	for _, d := range c.loaded.Days() {
		mv.Days = append(mv.Days, RenderDay(d, slots[d], c.cfg.Viewer, c.cfg.Options))
	}
	return mv
}

// Slots returns the full, untruncated slots of day.
func (c *Controller) Slots(day Day) []TimeSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slotsLocked()[day]
}

// DayDetails renders every day of the loaded month untruncated, without
// touching modal state.
func (c *Controller) DayDetails() []DayDetail {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded.IsValid() {
		return nil
	}
	slots := c.slotsLocked()
	out := make([]DayDetail, 0, len(slots))
	for _, d := range c.loaded.Days() {
		if len(slots[d]) == 0 {
			continue
		}
		out = append(out, DayDetail{Day: d, Cells: RenderFull(slots[d], c.cfg.Viewer, c.cfg.Options)})
	}
	return out
}

// ClickDay opens the day modal with every slot of day.
func (c *Controller) ClickDay(day Day) DayDetail {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectedDay = day
	c.dayModalOpen = true
	return DayDetail{
		Day:   day,
		Cells: RenderFull(c.slotsLocked()[day], c.cfg.Viewer, c.cfg.Options),
	}
}

// ClickSlot dispatches the slot's activation: the scheduling form for an
// available slot, the detail view for a viewable one. Non-interactive slots
// return ErrNotPermitted and leave the state untouched.
func (c *Controller) ClickSlot(slot TimeSlot) (Activation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cell := RenderCell(slot, c.cfg.Viewer, c.cfg.Options)
	act := Activation{Action: cell.Action, Cell: cell, Slot: slot}
	switch cell.Action {
	case ActionSchedule:
		s := slot
		c.scheduleSlot = &s
		c.viewModalOpen = false
		c.selected = nil
	case ActionView:
		c.viewModalOpen = true
		c.scheduleSlot = nil
		if rec := slot.Record(); rec != nil {
			r := *rec
			c.selected = &r
		}
	default:
		return act, ErrNotPermitted
	}
	return act, nil
}

// FindSlot looks up a slot on day by start time and appointment id. An empty
// appointment id matches an open slot.
func (c *Controller) FindSlot(day Day, start, appointmentID string) (TimeSlot, bool) {
	for _, s := range c.Slots(day) {
		if s.StartTime == start && s.AppointmentID == appointmentID {
			return s, true
		}
	}
	return TimeSlot{}, false
}

// Schedule submits the slot chosen through ClickSlot. On success the visible
// month is fetched again so the new appointment shows up.
func (c *Controller) Schedule(ctx context.Context, appointmentType, description string) (AppointmentRecord, error) {
	c.mu.Lock()
	slot := c.scheduleSlot
	viewer := c.cfg.Viewer
	c.mu.Unlock()

	if viewer.Role != RoleCompany {
		return AppointmentRecord{}, ErrNotPermitted
	}
	if slot == nil {
		return AppointmentRecord{}, ErrNoSchedulingSlot
	}
	if c.cfg.Submitter == nil {
		return AppointmentRecord{}, fmt.Errorf("schedule: no submitter configured")
	}

	rec, err := c.cfg.Submitter.SubmitAppointment(ctx, Booking{
		Day:             slot.Day,
		StartTime:       slot.StartTime,
		EndTime:         slot.EndTime,
		CompanyID:       viewer.UserID,
		AppointmentType: appointmentType,
		Description:     description,
	})
	if err != nil {
		return AppointmentRecord{}, fmt.Errorf("schedule: %w", err)
	}

	c.mu.Lock()
	c.scheduleSlot = nil
	c.mu.Unlock()
	c.Load(ctx)
	return rec, nil
}

// CloseModals closes the day modal, detail view and scheduling form.
func (c *Controller) CloseModals() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dayModalOpen = false
	c.viewModalOpen = false
	c.selected = nil
	c.scheduleSlot = nil
}

func (c *Controller) State() GridState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GridState{
		VisibleMonth:        c.visible,
		SelectedDay:         c.selectedDay,
		DayModalOpen:        c.dayModalOpen,
		ViewModalOpen:       c.viewModalOpen,
		ScheduleFormOpen:    c.scheduleSlot != nil,
		SelectedAppointment: c.selected,
		SchedulingSlot:      c.scheduleSlot,
	}
}
