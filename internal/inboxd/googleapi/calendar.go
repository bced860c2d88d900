package googleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inboxai/inboxd/internal/inboxd/calendar"
)

const defaultCalendarBase = "https://www.googleapis.com"

// CalendarConfig configures the Calendar client.
type CalendarConfig struct {
	// BaseURL overrides the Calendar API endpoint, for tests.
	BaseURL string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// Calendar is the Google Calendar REST client. Scheduler binds it to one
// identity.
type Calendar struct {
	base   string
	tokens *TokenSource
	client *http.Client
}

// NewCalendar creates the Calendar client.
func NewCalendar(cfg CalendarConfig, tokens *TokenSource) *Calendar {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultCalendarBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Calendar{
		base:   cfg.BaseURL,
		tokens: tokens,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Scheduler returns the identity-bound calendar.Provider.
func (c *Calendar) Scheduler(identity string) calendar.Provider {
	return &calendarScheduler{cal: c, identity: identity}
}

type calendarScheduler struct {
	cal      *Calendar
	identity string
}

// --- Calendar wire types (the subset we touch) ---

type eventDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type eventAttendee struct {
	Email string `json:"email"`
}

type eventRequest struct {
	Summary        string          `json:"summary"`
	Description    string          `json:"description"`
	Start          eventDateTime   `json:"start"`
	End            eventDateTime   `json:"end"`
	Attendees      []eventAttendee `json:"attendees,omitempty"`
	ConferenceData struct {
		CreateRequest struct {
			RequestID             string `json:"requestId"`
			ConferenceSolutionKey struct {
				Type string `json:"type"`
			} `json:"conferenceSolutionKey"`
		} `json:"createRequest"`
	} `json:"conferenceData"`
	Reminders struct {
		UseDefault bool `json:"useDefault"`
	} `json:"reminders"`
}

type eventResponse struct {
	ID             string `json:"id"`
	HangoutLink    string `json:"hangoutLink"`
	HTMLLink       string `json:"htmlLink"`
	ConferenceData struct {
		EntryPoints []struct {
			URI string `json:"uri"`
		} `json:"entryPoints"`
	} `json:"conferenceData"`
}

// CreateMeeting inserts a primary-calendar event with a Meet conference
// attached and returns the created event with its meet link.
func (s *calendarScheduler) CreateMeeting(ctx context.Context, m calendar.Meeting) (calendar.Event, error) {
	token, err := s.cal.tokens.AccessToken(ctx, s.identity)
	if err != nil {
		return calendar.Event{}, err
	}

	event := eventRequest{
		Summary:     m.Title,
		Description: m.Agenda,
		Start: eventDateTime{
			DateTime: m.Start.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: eventDateTime{
			DateTime: m.Start.Add(m.Duration).UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
	}
	for _, addr := range m.Recipients {
		event.Attendees = append(event.Attendees, eventAttendee{Email: addr})
	}
	event.ConferenceData.CreateRequest.RequestID = "meet-" + uuid.NewString()
	event.ConferenceData.CreateRequest.ConferenceSolutionKey.Type = "hangoutsMeet"
	event.Reminders.UseDefault = true

	data, err := json.Marshal(event)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("googleapi: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cal.base+"/calendar/v3/calendars/primary/events?conferenceDataVersion=1",
		bytes.NewReader(data))
	if err != nil {
		return calendar.Event{}, fmt.Errorf("googleapi: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.cal.client.Do(req)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("googleapi: insert event: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("googleapi: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return calendar.Event{}, fmt.Errorf("googleapi: calendar returned HTTP %d: %s", resp.StatusCode, respBody)
	}

	var created eventResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return calendar.Event{}, fmt.Errorf("googleapi: decode event: %w", err)
	}

	return calendar.Event{
		ID:       created.ID,
		MeetLink: meetLink(created),
		HTMLLink: created.HTMLLink,
	}, nil
}

// meetLink digs the conference URL out of the created event, falling back
// to the calendar UI link when no conference was attached.
func meetLink(ev eventResponse) string {
	if ev.HangoutLink != "" {
		return ev.HangoutLink
	}
	if len(ev.ConferenceData.EntryPoints) > 0 && ev.ConferenceData.EntryPoints[0].URI != "" {
		return ev.ConferenceData.EntryPoints[0].URI
	}
	return ev.HTMLLink
}
