package tool

import (
	"context"
	"time"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/flow"
)

// CalendarPortAdapter narrows CalendarClient (the LLM tool-facing surface,
// with CreateEvent) down to flow.CalendarPort (the cancel/note flow
// handlers' surface), re-projecting tool.CalendarEvent to flow.CalendarEvent.
// Two distinct event types exist because the flow package must not import
// the infrastructure tool package.
type CalendarPortAdapter struct {
	client CalendarClient
}

// NewCalendarPortAdapter wraps client as a flow.CalendarPort.
func NewCalendarPortAdapter(client CalendarClient) *CalendarPortAdapter {
	return &CalendarPortAdapter{client: client}
}

// ListEvents implements flow.CalendarPort.
func (a *CalendarPortAdapter) ListEvents(ctx context.Context, from, to time.Time, maxResults int64) ([]flow.CalendarEvent, error) {
	events, err := a.client.ListEvents(ctx, from, to, maxResults)
	if err != nil {
		return nil, err
	}
	out := make([]flow.CalendarEvent, len(events))
	for i, e := range events {
		out[i] = flow.CalendarEvent{ID: e.ID, Title: e.Title, Start: e.Start, End: e.End, Recurring: e.Recurring}
	}
	return out, nil
}

// CancelEvent implements flow.CalendarPort.
func (a *CalendarPortAdapter) CancelEvent(ctx context.Context, eventID string, wholeSeries bool) error {
	return a.client.CancelEvent(ctx, eventID, wholeSeries)
}

// AddNote implements flow.CalendarPort.
func (a *CalendarPortAdapter) AddNote(ctx context.Context, eventID, note string) (flow.CalendarEvent, error) {
	e, err := a.client.AddNote(ctx, eventID, note)
	if err != nil {
		return flow.CalendarEvent{}, err
	}
	return flow.CalendarEvent{ID: e.ID, Title: e.Title, Start: e.Start, End: e.End, Recurring: e.Recurring}, nil
}
