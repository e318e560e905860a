package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domaintool "github.com/ngoclaw/ngoclaw/gateway/internal/domain/tool"
	"go.uber.org/zap"
)

// CalendarListEventsTool lists events in a time window, read-only.
type CalendarListEventsTool struct {
	client CalendarClient
	logger *zap.Logger
}

func NewCalendarListEventsTool(client CalendarClient, logger *zap.Logger) *CalendarListEventsTool {
	return &CalendarListEventsTool{client: client, logger: logger}
}

func (t *CalendarListEventsTool) Name() string        { return "calendar_list_events" }
func (t *CalendarListEventsTool) Description() string { return "List the owner's calendar events within a time window." }
func (t *CalendarListEventsTool) Kind() domaintool.Kind { return domaintool.KindRead }
func (t *CalendarListEventsTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"from": map[string]interface{}{"type": "string", "description": "RFC3339 start"},
			"to":   map[string]interface{}{"type": "string", "description": "RFC3339 end"},
		},
		"required": []string{"from", "to"},
	}
}

func (t *CalendarListEventsTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	from, _ := time.Parse(time.RFC3339, fmt.Sprint(args["from"]))
	to, _ := time.Parse(time.RFC3339, fmt.Sprint(args["to"]))
	events, err := t.client.ListEvents(ctx, from, to, 50)
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	out, _ := json.Marshal(events)
	return &domaintool.Result{Output: string(out), Success: true}, nil
}

// CalendarCreateEventTool creates a new calendar event.
type CalendarCreateEventTool struct {
	client CalendarClient
	logger *zap.Logger
}

func NewCalendarCreateEventTool(client CalendarClient, logger *zap.Logger) *CalendarCreateEventTool {
	return &CalendarCreateEventTool{client: client, logger: logger}
}

func (t *CalendarCreateEventTool) Name() string        { return "calendar_create_event" }
func (t *CalendarCreateEventTool) Description() string { return "Create a new event on the owner's calendar." }
func (t *CalendarCreateEventTool) Kind() domaintool.Kind { return domaintool.KindEdit }
func (t *CalendarCreateEventTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"title": map[string]interface{}{"type": "string"},
			"start": map[string]interface{}{"type": "string", "description": "RFC3339"},
			"end":   map[string]interface{}{"type": "string", "description": "RFC3339"},
			"notes": map[string]interface{}{"type": "string"},
		},
		"required": []string{"title", "start", "end"},
	}
}

func (t *CalendarCreateEventTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	title, _ := args["title"].(string)
	notes, _ := args["notes"].(string)
	start, err := time.Parse(time.RFC3339, fmt.Sprint(args["start"]))
	if err != nil {
		return &domaintool.Result{Success: false, Error: fmt.Sprintf("invalid start: %v", err)}, nil
	}
	end, err := time.Parse(time.RFC3339, fmt.Sprint(args["end"]))
	if err != nil {
		return &domaintool.Result{Success: false, Error: fmt.Sprintf("invalid end: %v", err)}, nil
	}
	ev, err := t.client.CreateEvent(ctx, title, start, end, notes)
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	out, _ := json.Marshal(ev)
	return &domaintool.Result{Output: string(out), Success: true}, nil
}
