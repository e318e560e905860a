package tool

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleCalendarClient implements CalendarClient over the real Calendar
// API (google.golang.org/api/calendar/v3).
type GoogleCalendarClient struct {
	svc        *calendarapi.Service
	calendarID string
	logger     *zap.Logger
}

// NewGoogleCalendarClient builds a Calendar client authenticated via ts,
// the oauth2.TokenSource produced by internal/infrastructure/googleauth.
func NewGoogleCalendarClient(ctx context.Context, ts oauth2.TokenSource, calendarID string, logger *zap.Logger) (*GoogleCalendarClient, error) {
	svc, err := calendarapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleCalendarClient{svc: svc, calendarID: calendarID, logger: logger}, nil
}

// ListEvents implements CalendarClient.
func (c *GoogleCalendarClient) ListEvents(ctx context.Context, from, to time.Time, maxResults int64) ([]CalendarEvent, error) {
	resp, err := c.svc.Events.List(c.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(false).
		OrderBy("startTime").
		MaxResults(maxResults).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}

	events := make([]CalendarEvent, 0, len(resp.Items))
	for _, ev := range resp.Items {
		events = append(events, toCalendarEvent(ev))
	}
	return events, nil
}

// CreateEvent implements CalendarClient.
func (c *GoogleCalendarClient) CreateEvent(ctx context.Context, title string, start, end time.Time, notes string) (CalendarEvent, error) {
	ev := &calendarapi.Event{
		Summary:     title,
		Description: notes,
		Start:       &calendarapi.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:         &calendarapi.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
	created, err := c.svc.Events.Insert(c.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return CalendarEvent{}, fmt.Errorf("calendar: create event: %w", err)
	}
	return toCalendarEvent(created), nil
}

// CancelEvent implements CalendarClient. wholeSeries deletes the
// recurring series root rather than a single instance.
func (c *GoogleCalendarClient) CancelEvent(ctx context.Context, eventID string, wholeSeries bool) error {
	id := eventID
	if wholeSeries {
		ev, err := c.svc.Events.Get(c.calendarID, eventID).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("calendar: resolve series for %s: %w", eventID, err)
		}
		if ev.RecurringEventId != "" {
			id = ev.RecurringEventId
		}
	}
	if err := c.svc.Events.Delete(c.calendarID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: cancel %s: %w", id, err)
	}
	return nil
}

// AddNote implements CalendarClient: appends to the event description
// rather than overwriting it, so earlier notes survive.
func (c *GoogleCalendarClient) AddNote(ctx context.Context, eventID, note string) (CalendarEvent, error) {
	ev, err := c.svc.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return CalendarEvent{}, fmt.Errorf("calendar: get %s: %w", eventID, err)
	}
	if ev.Description != "" {
		ev.Description += "\n" + note
	} else {
		ev.Description = note
	}
	updated, err := c.svc.Events.Update(c.calendarID, eventID, ev).Context(ctx).Do()
	if err != nil {
		return CalendarEvent{}, fmt.Errorf("calendar: add note to %s: %w", eventID, err)
	}
	return toCalendarEvent(updated), nil
}

func toCalendarEvent(ev *calendarapi.Event) CalendarEvent {
	out := CalendarEvent{
		ID:          ev.Id,
		Title:       ev.Summary,
		Description: ev.Description,
		Recurring:   len(ev.Recurrence) > 0 || ev.RecurringEventId != "",
	}
	if ev.Start != nil {
		out.Start = parseEventTime(ev.Start.DateTime, ev.Start.Date)
	}
	if ev.End != nil {
		out.End = parseEventTime(ev.End.DateTime, ev.End.Date)
	}
	return out
}

func parseEventTime(dateTime, date string) time.Time {
	if dateTime != "" {
		t, err := time.Parse(time.RFC3339, dateTime)
		if err == nil {
			return t
		}
	}
	if date != "" {
		t, err := time.Parse("2006-01-02", date)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}
