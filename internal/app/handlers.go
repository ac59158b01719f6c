package app

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"consulting-calendar/internal/calendar"
	"consulting-calendar/internal/ical"
	appLog "consulting-calendar/internal/log"
	"consulting-calendar/internal/store"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func parseMonth(c *gin.Context) (calendar.Month, bool) {
	y, err1 := strconv.Atoi(c.Param("year"))
	m, err2 := strconv.Atoi(c.Param("month"))
	month := calendar.Month{Year: y, Month: time.Month(m)}
	if err1 != nil || err2 != nil || !month.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year/month"})
		return month, false
	}
	return month, true
}

// GET /api/calendar/:year/:month
func (a *App) MonthViewHandler(c *gin.Context) {
	month, ok := parseMonth(c)
	if !ok {
		return
	}
	ctl := a.controller(viewerFrom(c), month)
	ctl.Load(c.Request.Context())
	c.JSON(http.StatusOK, ctl.View())
}

// GET /api/calendar/:year/:month/days/:day
func (a *App) DayDetailHandler(c *gin.Context) {
	month, ok := parseMonth(c)
	if !ok {
		return
	}
	d, err := strconv.Atoi(c.Param("day"))
	day := calendar.NormalizeString(fmt.Sprintf("%04d-%02d-%02d", month.Year, int(month.Month), d))
	if err != nil || !day.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid day"})
		return
	}
	ctl := a.controller(viewerFrom(c), month)
	ctl.Load(c.Request.Context())
	c.JSON(http.StatusOK, ctl.ClickDay(day))
}

// POST /api/calendar/:year/:month/slots/activate
func (a *App) ActivateSlotHandler(c *gin.Context) {
	month, ok := parseMonth(c)
	if !ok {
		return
	}
	var req activateSlotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day := calendar.NormalizeString(req.Date)
	if !month.Contains(day) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date outside the visible month"})
		return
	}

	ctl := a.controller(viewerFrom(c), month)
	ctl.Load(c.Request.Context())
	slot, found := ctl.FindSlot(day, req.StartTime, req.AppointmentID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "slot not found"})
		return
	}
	act, err := ctl.ClickSlot(slot)
	if errors.Is(err, calendar.ErrNotPermitted) {
		if req.AppointmentID != "" && act.Cell.AppointmentID == "" {
			// same answer as an unknown id, so existence does not leak
			c.JSON(http.StatusNotFound, gin.H{"error": "slot not found"})
			return
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "slot is not interactive"})
		return
	}
	c.JSON(http.StatusOK, act)
}

// POST /api/appointments
func (a *App) ScheduleHandler(c *gin.Context) {
	var req scheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day := calendar.NormalizeString(req.Date)
	if !day.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}

	ctx := c.Request.Context()
	viewer := viewerFrom(c)
	ctl := a.controller(viewer, calendar.MonthOf(day))
	ctl.Load(ctx)
	slot, found := ctl.FindSlot(day, req.StartTime, "")
	if !found {
		c.JSON(http.StatusConflict, gin.H{"error": "slot not available"})
		return
	}
	if _, err := ctl.ClickSlot(slot); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}

	rec, err := ctl.Schedule(ctx, req.AppointmentType, req.Description)
	switch {
	case errors.Is(err, store.ErrSlotTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "slot already booked"})
		return
	case errors.Is(err, store.ErrSlotUnavailable):
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot not available"})
		return
	case err != nil:
		appLog.Error("schedule failed", err, "company", viewer.UserID, "date", day)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	appLog.Info("appointment scheduled", "id", rec.ID, "company", viewer.UserID, "date", day, "start", rec.StartTime)
	c.JSON(http.StatusCreated, gin.H{
		"appointment": rec,
		"calendar":    ctl.View(),
	})
}

// detailFor renders rec for viewer through the engine, or false when the
// viewer may not open it.
func detailFor(rec calendar.AppointmentRecord, viewer calendar.Viewer, opts calendar.RenderOptions) (appointmentDetail, bool) {
	slots := calendar.BuildSlots([]calendar.AppointmentRecord{rec}, nil, viewer)
	day := rec.Day()
	for _, s := range slots[day] {
		cell := calendar.RenderCell(s, viewer, opts)
		if cell.Action == calendar.ActionView && cell.AppointmentID == rec.ID {
			return appointmentDetail{Date: day, Cell: cell}, true
		}
	}
	return appointmentDetail{}, false
}

// GET /api/appointments/:id
func (a *App) GetAppointmentHandler(c *gin.Context) {
	rec, err := a.getAppointment(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	detail, ok := detailFor(rec, viewerFrom(c), a.Display.RenderOptions())
	if !ok {
		// same answer as a missing id, so existence does not leak
		c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// DELETE /api/appointments/:id
func (a *App) CancelAppointmentHandler(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	viewer := viewerFrom(c)

	rec, err := a.Backend.GetAppointment(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && viewer.Role == calendar.RoleCompany && rec.CompanyID != viewer.UserID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	err = a.Backend.CancelAppointment(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
	case errors.Is(err, store.ErrAlreadyCanceled):
		c.JSON(http.StatusConflict, gin.H{"error": "appointment already cancelled"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		appLog.Info("appointment cancelled", "id", id, "by", viewer.UserID, "role", viewer.Role)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// PUT /api/admin/appointments/:id/engineer
func (a *App) AssignEngineerHandler(c *gin.Context) {
	var req assignEngineerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := a.Backend.AssignEngineer(c.Request.Context(), c.Param("id"), req.EngineerID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GET /api/calendar/:year/:month/ics
func (a *App) ExportICSHandler(c *gin.Context) {
	month, ok := parseMonth(c)
	if !ok {
		return
	}
	ctl := a.controller(viewerFrom(c), month)
	ctl.Load(c.Request.Context())
	body := ical.Export(ctl.DayDetails(), a.now())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="appointments-%s.ics"`, month))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}
