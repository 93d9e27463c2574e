package clients

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wingmanhq/wingman/internal/policy"
)

// CalendarClient wraps the Google Calendar API for availability
// checks and event creation.
type CalendarClient struct {
	svc        *calendar.Service
	calendarID string
}

func NewCalendarClient(ctx context.Context, credentialsFile, calendarID string) (*CalendarClient, error) {
	if credentialsFile == "" {
		return nil, fmt.Errorf("calendar credentials file is required")
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	svc, err := calendar.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &CalendarClient{svc: svc, calendarID: calendarID}, nil
}

// BusyPeriods returns the occupied slots between start and end.
func (c *CalendarClient) BusyPeriods(ctx context.Context, start, end time.Time) ([]policy.BusyPeriod, error) {
	req := &calendar.FreeBusyRequest{
		TimeMin: start.Format(time.RFC3339),
		TimeMax: end.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: c.calendarID}},
	}
	res, err := c.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	cal, ok := res.Calendars[c.calendarID]
	if !ok {
		return nil, nil
	}
	out := make([]policy.BusyPeriod, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		s, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			continue
		}
		e, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			continue
		}
		out = append(out, policy.BusyPeriod{Start: s, End: e})
	}
	return out, nil
}

// CheckBusy reports whether any busy period overlaps the window.
func (c *CalendarClient) CheckBusy(ctx context.Context, start, end time.Time) (bool, error) {
	periods, err := c.BusyPeriods(ctx, start, end)
	if err != nil {
		return false, err
	}
	for _, p := range periods {
		if p.Start.Before(end) && p.End.After(start) {
			return true, nil
		}
	}
	return false, nil
}

// CreateEvent inserts an event and returns its id.
func (c *CalendarClient) CreateEvent(ctx context.Context, summary string, start, end time.Time) (string, error) {
	ev := &calendar.Event{
		Summary: summary,
		Start:   &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
	created, err := c.svc.Events.Insert(c.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}
	return created.Id, nil
}

// ListUpcoming returns the next n events from now.
func (c *CalendarClient) ListUpcoming(ctx context.Context, n int64) ([]*calendar.Event, error) {
	if n <= 0 {
		n = 10
	}
	res, err := c.svc.Events.List(c.calendarID).
		TimeMin(time.Now().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(n).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	return res.Items, nil
}

// Upcoming is ListUpcoming flattened to plain maps for tool results.
func (c *CalendarClient) Upcoming(ctx context.Context, n int64) ([]map[string]any, error) {
	items, err := c.ListUpcoming(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		entry := map[string]any{"summary": it.Summary}
		if it.Start != nil {
			entry["start"] = it.Start.DateTime
		}
		if it.End != nil {
			entry["end"] = it.End.DateTime
		}
		out = append(out, entry)
	}
	return out, nil
}
