package flow

import (
	"context"
	"strings"
)

// ToolConfirmRecord is the pending state for a generic confirmation_required
// envelope (§4.5.8): any tool may return one, and any tool can be replayed
// this way regardless of which domain it belongs to.
type ToolConfirmRecord struct {
	ToolName string                 `json:"tool_name"`
	Args     map[string]interface{} `json:"args"`
}

// ToolConfirmHandler replays a stashed tool call with confirm=true on
// YES/PROCEED/CONTINUE, and clears it on CANCEL.
type ToolConfirmHandler struct {
	store   Store
	invoker Invoker
}

func NewToolConfirmHandler(store Store, invoker Invoker) *ToolConfirmHandler {
	return &ToolConfirmHandler{store: store, invoker: invoker}
}

func (h *ToolConfirmHandler) Name() Name { return NameToolConfirm }

func (h *ToolConfirmHandler) IsActive(ctx context.Context, userID int64, message string) (bool, error) {
	var rec ToolConfirmRecord
	return h.store.Get(ctx, NameToolConfirm, userID, &rec)
}

func (h *ToolConfirmHandler) Handle(ctx context.Context, userID, chatID int64, message string) (string, error) {
	var rec ToolConfirmRecord
	ok, err := h.store.Get(ctx, NameToolConfirm, userID, &rec)
	if err != nil || !ok {
		return "", err
	}

	if IsCancel(message) {
		_ = h.store.Clear(ctx, NameToolConfirm, userID)
		return "Cancelled.", nil
	}
	if !IsConfirm(message) {
		return "Reply YES to proceed, or CANCEL to stop.", nil
	}

	args := make(map[string]interface{}, len(rec.Args)+1)
	for k, v := range rec.Args {
		args[k] = v
	}
	args["confirm"] = true

	output, success, err := h.invoker.Invoke(ctx, userID, rec.ToolName, args)
	_ = h.store.Clear(ctx, NameToolConfirm, userID)
	if err != nil {
		return "", err
	}
	if !success {
		return "The action failed: " + output, nil
	}
	return output, nil
}

// IsConfirm reports whether message is one of the accepted confirmation
// tokens (§4.5 intro: "explicit YES/PROCEED or CONTINUE token").
func IsConfirm(message string) bool {
	switch strings.ToUpper(strings.TrimSpace(message)) {
	case "YES", "PROCEED", "CONTINUE":
		return true
	default:
		return false
	}
}

// IsCancel reports whether message is the cancellation token.
func IsCancel(message string) bool {
	return strings.ToUpper(strings.TrimSpace(message)) == "CANCEL"
}
