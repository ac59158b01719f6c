// Package gcal imports an engineer's Google Calendar as read-only
// appointment records.
package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcalendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"consulting-calendar/internal/calendar"
)

// TypeExternal marks records imported from Google Calendar.
const TypeExternal = "external"

// IDPrefix starts the id of every imported record.
const IDPrefix = "gcal:"

// NewOAuthConfig returns the OAuth2 config for read-only calendar access, or
// nil when any of the credentials is missing.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{gcalendar.CalendarReadonlyScope},
		Endpoint:     google.Endpoint,
	}
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", path, err)
	}
	return &tok, nil
}

// SaveToken writes tok to path with 0600 permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	if path == "" {
		return errors.New("token path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Source lists one calendar's events as appointments of EngineerID.
type Source struct {
	Config *oauth2.Config
	Token  *oauth2.Token
	// TokenFile is read on each listing when Token is nil, so a token
	// saved by the OAuth callback is picked up without a restart.
	TokenFile  string
	CalendarID string
	EngineerID string
	// Location interprets the month bounds; defaults to UTC.
	Location *time.Location
}

func (s *Source) service(ctx context.Context) (*gcalendar.Service, error) {
	if s.Config == nil {
		return nil, errors.New("google calendar not configured")
	}
	tok := s.Token
	if tok == nil {
		if s.TokenFile == "" {
			return nil, errors.New("google calendar not authorized")
		}
		var err error
		if tok, err = LoadToken(s.TokenFile); err != nil {
			return nil, err
		}
	}
	client := s.Config.Client(ctx, tok)
	return gcalendar.NewService(ctx, option.WithHTTPClient(client))
}

func (s *Source) calendarID() string {
	if s.CalendarID == "" {
		return "primary"
	}
	return s.CalendarID
}

// GetAppointment fetches one imported event. Ids without IDPrefix are not
// looked up.
func (s *Source) GetAppointment(ctx context.Context, id string) (calendar.AppointmentRecord, error) {
	eventID, ok := strings.CutPrefix(id, IDPrefix)
	if !ok || eventID == "" {
		return calendar.AppointmentRecord{}, fmt.Errorf("not a google calendar id: %q", id)
	}
	srv, err := s.service(ctx)
	if err != nil {
		return calendar.AppointmentRecord{}, err
	}
	ev, err := srv.Events.Get(s.calendarID(), eventID).Context(ctx).Do()
	if err != nil {
		return calendar.AppointmentRecord{}, fmt.Errorf("failed to retrieve event %s: %w", eventID, err)
	}
	recs := EventsToRecords([]*gcalendar.Event{ev}, s.EngineerID)
	if len(recs) == 0 {
		return calendar.AppointmentRecord{}, fmt.Errorf("event %s is cancelled or has no start", eventID)
	}
	return recs[0], nil
}

func (s *Source) ListAppointments(ctx context.Context, month calendar.Month) ([]calendar.AppointmentRecord, error) {
	srv, err := s.service(ctx)
	if err != nil {
		return nil, err
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	timeMin := month.First().Time(loc)
	timeMax := month.Add(1).First().Time(loc)

	var items []*gcalendar.Event
	err = srv.Events.List(s.calendarID()).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		MaxResults(250).
		Pages(ctx, func(page *gcalendar.Events) error {
			items = append(items, page.Items...)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	recs := EventsToRecords(items, s.EngineerID)
	out := recs[:0]
	for _, r := range recs {
		if month.Contains(r.Day()) {
			out = append(out, r)
		}
	}
	return out, nil
}

// EventsToRecords maps events to records owned by engineerID. Cancelled
// events are skipped. The day and clock come from the event's own offset,
// so an evening event never moves to the next day.
func EventsToRecords(items []*gcalendar.Event, engineerID string) []calendar.AppointmentRecord {
	out := make([]calendar.AppointmentRecord, 0, len(items))
	for _, item := range items {
		if item == nil || item.Start == nil || item.Status == "cancelled" {
			continue
		}
		rec := calendar.AppointmentRecord{
			ID:              IDPrefix + item.Id,
			EngineerID:      engineerID,
			AppointmentType: TypeExternal,
			Description:     item.Summary,
			Status:          item.Status,
		}
		switch {
		case item.Start.DateTime != "":
			rec.Date = item.Start.DateTime
			rec.StartTime = clockOf(item.Start.DateTime)
			if item.End != nil {
				rec.EndTime = clockOf(item.End.DateTime)
			}
		case item.Start.Date != "":
			rec.Date = item.Start.Date
			rec.StartTime = "00:00"
			rec.EndTime = "24:00"
		default:
			continue
		}
		out = append(out, rec)
	}
	return out
}

// clockOf extracts HH:MM from an RFC3339 timestamp without changing zone.
func clockOf(ts string) string {
	i := strings.IndexAny(ts, "Tt")
	if i < 0 || len(ts) < i+6 {
		return ""
	}
	return ts[i+1 : i+6]
}
