package flow

import (
	"context"
	"encoding/json"
)

// Status is the structured outcome a tool can return instead of plain
// text, telling the orchestrator it must pause the turn and persist
// state rather than hand the result straight back to the LLM (§4.2,
// §4.5.4, §4.5.7, §4.5.8).
type Status string

const (
	StatusOK                   Status = "ok"
	StatusConfirmationRequired Status = "confirmation_required"
	StatusCommentRequired      Status = "comment_required"
	StatusDispatchRequired     Status = "dispatch_required"
	StatusCompleted            Status = "completed"
	StatusError                Status = "error"
)

// Envelope is the structured tool-result shape the orchestrator inspects
// after every tool invocation (§4.2 step "Inspect envelope").
type Envelope struct {
	Status   Status                 `json:"status"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Awaiting string                 `json:"awaiting,omitempty"`
	Message  string                 `json:"message,omitempty"`
}

// ParseEnvelope attempts to read raw tool output as a structured
// Envelope. ok is false for plain-text tool output, which the
// orchestrator hands back to the LLM unchanged.
func ParseEnvelope(raw string) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Envelope{}, false
	}
	if env.Status == "" {
		return Envelope{}, false
	}
	return env, true
}

// Invoker is the narrow surface flow handlers use to replay a tool call
// after splicing in a clarified or confirmed field. Implementations wrap
// the infrastructure tool executor.
type Invoker interface {
	Invoke(ctx context.Context, userID int64, toolName string, args map[string]interface{}) (output string, success bool, err error)
}
