package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"consulting-calendar/internal/calendar"
	"consulting-calendar/internal/config"
	"consulting-calendar/internal/store"
)

const testSecret = "test-secret"

type countingLister struct {
	inner calendar.AppointmentLister
	calls atomic.Int32
}

func (l *countingLister) ListAppointments(ctx context.Context, m calendar.Month) ([]calendar.AppointmentRecord, error) {
	l.calls.Add(1)
	return l.inner.ListAppointments(ctx, m)
}

func newTestApp(t *testing.T) (*App, *store.Memory, *countingLister) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	mem.Seed(
		calendar.AppointmentRecord{ID: "own", Date: "2025-03-10", StartTime: "09:00", EndTime: "10:00", EngineerID: "eng-1", CompanyID: "acme", AppointmentType: "audit", Status: store.StatusConfirmed},
		calendar.AppointmentRecord{ID: "other", Date: "2025-03-10", StartTime: "11:00", EndTime: "12:00", EngineerID: "eng-2", CompanyID: "globex", AppointmentType: "onsite", Description: "globex secret", Status: store.StatusConfirmed},
	)
	lister := &countingLister{inner: mem}
	a := &App{
		Backend: mem,
		Lister:  lister,
		Auth: Authenticator{
			JWTSecret: testSecret,
			StaticTokens: []config.StaticToken{
				{Token: "admin-token", Role: "admin", UserID: "root"},
				{Token: "acme-token", Role: "company", UserID: "acme"},
				{Token: "globex-token", Role: "Company", UserID: "globex"},
				{Token: "eng1-token", Role: "engineer", UserID: "eng-1"},
			},
		},
		Display: config.DefaultDisplay(),
		Now:     func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) },
	}
	return a, mem, lister
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestUnauthenticatedRedirectsWithoutFetch(t *testing.T) {
	a, _, lister := newTestApp(t)
	w := do(t, a.Router(), http.MethodGet, "/api/calendar/2025/3", "", "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q", loc)
	}
	if strings.Contains(w.Body.String(), "days") {
		t.Errorf("calendar rendered for anonymous viewer: %s", w.Body.String())
	}
	if n := lister.calls.Load(); n != 0 {
		t.Errorf("lister called %d times", n)
	}
}

func TestCorruptIdentityLogsOut(t *testing.T) {
	a, _, lister := newTestApp(t)
	tok := signed(t, jwt.MapClaims{"identity": "{", "exp": time.Now().Add(time.Hour).Unix()})
	w := do(t, a.Router(), http.MethodGet, "/api/calendar/2025/3", tok, "")

	if w.Code != http.StatusUnauthorized || w.Header().Get("Location") != "/login" {
		t.Fatalf("status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}
	if cookie := w.Header().Get("Set-Cookie"); !strings.Contains(cookie, "session=;") {
		t.Errorf("session cookie not cleared: %q", cookie)
	}
	if lister.calls.Load() != 0 {
		t.Error("fetch performed for corrupt identity")
	}
}

func TestJWTIdentityFromSubAndRole(t *testing.T) {
	a, _, _ := newTestApp(t)
	tok := signed(t, jwt.MapClaims{"sub": "eng-1", "role": "ENGINEER", "exp": time.Now().Add(time.Hour).Unix()})
	w := do(t, a.Router(), http.MethodGet, "/api/calendar/2025/3", tok, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
}

func TestRoleRedirects(t *testing.T) {
	a, _, _ := newTestApp(t)
	r := a.Router()

	w := do(t, r, http.MethodGet, "/api/admin/availability", "eng1-token", "")
	if w.Code != http.StatusForbidden || w.Header().Get("Location") != "/dashboard" {
		t.Errorf("engineer on admin route: %d %q", w.Code, w.Header().Get("Location"))
	}
	w = do(t, r, http.MethodPost, "/api/appointments", "admin-token", `{"date":"2025-03-10","start_time":"10:00"}`)
	if w.Code != http.StatusForbidden || w.Header().Get("Location") != "/admin" {
		t.Errorf("admin on company route: %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestCompanyMonthView(t *testing.T) {
	a, _, _ := newTestApp(t)
	w := do(t, a.Router(), http.MethodGet, "/api/calendar/2025/3", "acme-token", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "globex") {
		t.Errorf("other company leaked: %s", w.Body.String())
	}

	var view struct {
		Month string `json:"month"`
		Days  []struct {
			Day   string `json:"day"`
			Cells []struct {
				State         string `json:"state"`
				AppointmentID string `json:"appointment_id"`
				EngineerID    string `json:"engineer_id"`
				Description   string `json:"description"`
				Color         string `json:"color"`
			} `json:"cells"`
		} `json:"days"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Month != "2025-03" || len(view.Days) != 31 {
		t.Fatalf("view month %s with %d days", view.Month, len(view.Days))
	}
	cells := view.Days[9].Cells
	if view.Days[9].Day != "2025-03-10" || len(cells) != 2 {
		t.Fatalf("2025-03-10 = %+v", view.Days[9])
	}
	if cells[0].State != "own" || cells[0].AppointmentID != "own" || cells[0].Color != "#ef6c00" {
		t.Errorf("own cell = %+v", cells[0])
	}
	if cells[1].State != "occupied" || cells[1].AppointmentID != "" || cells[1].EngineerID != "" || cells[1].Description != "" {
		t.Errorf("occupied cell = %+v", cells[1])
	}
}

func TestActivateSlot(t *testing.T) {
	a, _, _ := newTestApp(t)
	r := a.Router()

	w := do(t, r, http.MethodPost, "/api/calendar/2025/3/slots/activate", "acme-token", `{"date":"2025-03-10","start_time":"09:00","appointment_id":"own"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"action":"view"`) {
		t.Errorf("own slot: %d %s", w.Code, w.Body.String())
	}
	occupied := do(t, r, http.MethodPost, "/api/calendar/2025/3/slots/activate", "acme-token", `{"date":"2025-03-10","start_time":"11:00","appointment_id":"other"}`)
	unknown := do(t, r, http.MethodPost, "/api/calendar/2025/3/slots/activate", "acme-token", `{"date":"2025-03-10","start_time":"11:00","appointment_id":"made-up"}`)
	if occupied.Code != http.StatusNotFound || unknown.Code != http.StatusNotFound {
		t.Errorf("foreign id %d, unknown id %d, want both 404", occupied.Code, unknown.Code)
	}
	if occupied.Body.String() != unknown.Body.String() {
		t.Errorf("foreign and unknown ids answer differently: %s vs %s", occupied.Body.String(), unknown.Body.String())
	}
	w = do(t, r, http.MethodPost, "/api/calendar/2025/3/slots/activate", "acme-token", `{"date":"2025-04-10","start_time":"09:00"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("out-of-month slot: %d", w.Code)
	}
}

func TestScheduleFlow(t *testing.T) {
	a, _, _ := newTestApp(t)
	r := a.Router()

	w := do(t, r, http.MethodPost, "/api/admin/availability", "admin-token",
		`[{"day_of_week":1,"start_time":"09:00","end_time":"12:00","slot_length_minutes":60,"available":true}]`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create rule: %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPost, "/api/appointments", "acme-token",
		`{"date":"2025-03-10","start_time":"10:00","appointment_type":"consultation","description":"kick-off"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("schedule: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Appointment calendar.AppointmentRecord `json:"appointment"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Appointment.Status != store.StatusPending || resp.Appointment.CompanyID != "acme" {
		t.Errorf("appointment = %+v", resp.Appointment)
	}

	w = do(t, r, http.MethodPost, "/api/appointments", "globex-token", `{"date":"2025-03-10","start_time":"10:00"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("double booking: %d %s", w.Code, w.Body.String())
	}

	// booked 09:00 and 11:00 windows are not offered either
	w = do(t, r, http.MethodPost, "/api/appointments", "globex-token", `{"date":"2025-03-10","start_time":"09:00"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("booking over existing appointment: %d", w.Code)
	}

	id := resp.Appointment.ID
	w = do(t, r, http.MethodGet, "/api/appointments/"+id, "globex-token", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("other company detail: %d", w.Code)
	}
	w = do(t, r, http.MethodGet, "/api/appointments/"+id, "eng1-token", "")
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "acme") {
		t.Errorf("engineer view of unassigned: %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPut, "/api/admin/appointments/"+id+"/engineer", "admin-token", `{"engineer_id":"eng-1"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), store.StatusConfirmed) {
		t.Errorf("assign: %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodDelete, "/api/appointments/"+id, "globex-token", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("foreign cancel: %d", w.Code)
	}
	w = do(t, r, http.MethodDelete, "/api/appointments/"+id, "acme-token", "")
	if w.Code != http.StatusOK {
		t.Errorf("cancel: %d %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodDelete, "/api/appointments/"+id, "admin-token", "")
	if w.Code != http.StatusConflict {
		t.Errorf("second cancel: %d", w.Code)
	}
}

func TestDayDetailAndICS(t *testing.T) {
	a, _, _ := newTestApp(t)
	r := a.Router()

	w := do(t, r, http.MethodGet, "/api/calendar/2025/3/days/10", "admin-token", "")
	if w.Code != http.StatusOK || strings.Count(w.Body.String(), `"state":"foreign_engineer"`) != 2 {
		t.Errorf("admin day detail: %d %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodGet, "/api/calendar/2025/3/days/32", "admin-token", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("day 32: %d", w.Code)
	}

	w = do(t, r, http.MethodGet, "/api/calendar/2025/3/ics", "acme-token", "")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("ics: %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if n := strings.Count(w.Body.String(), "BEGIN:VEVENT"); n != 1 {
		t.Errorf("acme ics has %d events", n)
	}
}

func TestInvalidMonth(t *testing.T) {
	a, _, _ := newTestApp(t)
	w := do(t, a.Router(), http.MethodGet, "/api/calendar/2025/13", "admin-token", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

type importedSource struct {
	recs []calendar.AppointmentRecord
}

func (s importedSource) ListAppointments(context.Context, calendar.Month) ([]calendar.AppointmentRecord, error) {
	return s.recs, nil
}

func (s importedSource) GetAppointment(_ context.Context, id string) (calendar.AppointmentRecord, error) {
	for _, r := range s.recs {
		if r.ID == id {
			return r, nil
		}
	}
	return calendar.AppointmentRecord{}, errors.New("no such event")
}

func TestImportedAppointmentOpens(t *testing.T) {
	a, mem, _ := newTestApp(t)
	a.Lister = calendar.MergedLister{
		Primary: mem,
		Secondary: []calendar.AppointmentLister{importedSource{recs: []calendar.AppointmentRecord{
			{ID: "gcal:ev1", Date: "2025-03-12", StartTime: "14:00", EndTime: "15:00", EngineerID: "eng-1", AppointmentType: "external", Description: "dentist", Status: "confirmed"},
		}}},
	}
	r := a.Router()

	w := do(t, r, http.MethodPost, "/api/calendar/2025/3/slots/activate", "eng1-token", `{"date":"2025-03-12","start_time":"14:00","appointment_id":"gcal:ev1"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"action":"view"`) {
		t.Fatalf("activate imported: %d %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodGet, "/api/appointments/gcal:ev1", "eng1-token", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "dentist") {
		t.Errorf("imported detail: %d %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodGet, "/api/appointments/gcal:ev1", "acme-token", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("company opening an engineer's imported event: %d", w.Code)
	}
	w = do(t, r, http.MethodGet, "/api/appointments/own", "acme-token", "")
	if w.Code != http.StatusOK {
		t.Errorf("stored detail through merged lister: %d", w.Code)
	}
	w = do(t, r, http.MethodGet, "/api/appointments/gcal:missing", "eng1-token", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown imported id: %d", w.Code)
	}
}

func TestUpdateAvailabilityConflict(t *testing.T) {
	a, _, _ := newTestApp(t)
	r := a.Router()

	w := do(t, r, http.MethodPost, "/api/admin/availability", "admin-token",
		`[{"day_of_week":1,"start_time":"09:00","end_time":"12:00","slot_length_minutes":60,"available":true},
		  {"day_of_week":1,"start_time":"11:00","end_time":"11:30","available":false}]`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create rules: %d %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodPut, "/api/admin/availability/2", "admin-token",
		`{"start_time":"13:00","end_time":"14:00","slot_length_minutes":60,"available":true}`)
	if w.Code != http.StatusConflict {
		t.Errorf("flip to duplicate available rule: %d %s", w.Code, w.Body.String())
	}
}
