// Package calendar holds the meeting domain: the event model and the
// scheduling tool action. The Google Calendar client itself lives in
// googleapi.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/inboxai/inboxd/internal/inboxd/tools"
)

// DefaultDuration applies when a meeting request names no duration.
const DefaultDuration = 30 * time.Minute

// DefaultTitle applies when a meeting request names no title.
const DefaultTitle = "Meeting via Inboxd"

// Meeting describes one event to create.
type Meeting struct {
	Title      string
	Agenda     string
	Recipients []string
	Start      time.Time
	Duration   time.Duration
}

// Event is the created calendar entry. MeetLink is the video conference
// URL; HTMLLink points at the event in the calendar UI.
type Event struct {
	ID       string
	MeetLink string
	HTMLLink string
}

// Provider creates calendar events. The production implementation talks to
// the Google Calendar REST API.
type Provider interface {
	CreateMeeting(ctx context.Context, m Meeting) (Event, error)
}

// ToolSchedule is the scheduling tool's registry name.
const ToolSchedule = "schedule_meeting"

// Descriptor returns the scheduling tool descriptor.
func Descriptor() tools.Descriptor {
	return tools.Descriptor{
		Name:        ToolSchedule,
		Description: "Schedule a meeting with a Google Meet link.",
		Params: map[string]tools.Param{
			"agenda": {
				Type:        "string",
				Description: "What the meeting is about, in the user's words.",
				Required:    true,
			},
			"title": {Type: "string", Description: "Event title."},
			"date":  {Type: "string", Description: "Meeting date, YYYY-MM-DD."},
			"time":  {Type: "string", Description: "Meeting start time, HH:MM (24h)."},
			"duration_minutes": {
				Type:        "integer",
				Description: "Meeting length in minutes. Defaults to 30.",
			},
			"recipients": {
				Type:        "string",
				Description: "Comma-separated attendee email addresses.",
			},
		},
	}
}

// ScheduleAction creates a meeting from tool arguments. Missing date or
// time schedules the meeting to start immediately.
func ScheduleAction(provider Provider, now func() time.Time) tools.Action {
	if now == nil {
		now = time.Now
	}
	return tools.ActionFunc(func(ctx context.Context, args map[string]any) (any, error) {
		meeting, err := meetingFromArgs(args, now())
		if err != nil {
			return nil, err
		}

		event, err := provider.CreateMeeting(ctx, meeting)
		if err != nil {
			return nil, fmt.Errorf("calendar: create meeting: %w", err)
		}
		return &tools.Result{
			Reply: "Meeting created successfully.",
			Data:  map[string]any{"meet_link": event.MeetLink},
		}, nil
	})
}

func meetingFromArgs(args map[string]any, now time.Time) (Meeting, error) {
	m := Meeting{
		Title:    DefaultTitle,
		Start:    now.UTC(),
		Duration: DefaultDuration,
	}
	if agenda, ok := args["agenda"].(string); ok {
		m.Agenda = agenda
	}
	if title, ok := args["title"].(string); ok && title != "" {
		m.Title = title
	}
	if minutes, ok := args["duration_minutes"].(float64); ok && minutes > 0 {
		m.Duration = time.Duration(minutes) * time.Minute
	}
	if recipients, ok := args["recipients"].(string); ok && recipients != "" {
		for _, addr := range strings.Split(recipients, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				m.Recipients = append(m.Recipients, addr)
			}
		}
	}

	date, _ := args["date"].(string)
	startTime, _ := args["time"].(string)
	if date != "" && startTime != "" {
		start, err := time.Parse("2006-01-02T15:04", date+"T"+startTime)
		if err != nil {
			return Meeting{}, fmt.Errorf("calendar: parse start %q %q: %w", date, startTime, err)
		}
		m.Start = start.UTC()
	}
	return m, nil
}
