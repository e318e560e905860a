package flow

import "context"

// ConfidenceClarifyRecord is the pending state for a proposed tool call
// the confidence scorer wants one more field for (§4.5.9). Both the
// score<70 and 70-89 bands use this same record: both ask exactly one
// question and then proceed regardless on the next turn.
type ConfidenceClarifyRecord struct {
	ToolName string                 `json:"tool_name"`
	Args     map[string]interface{} `json:"args"`
	Awaiting string                 `json:"awaiting"`
}

// ConfidenceClarifyHandler splices the next turn's raw text into the
// awaiting field and replays the tool call without re-scoring.
type ConfidenceClarifyHandler struct {
	store   Store
	invoker Invoker
}

func NewConfidenceClarifyHandler(store Store, invoker Invoker) *ConfidenceClarifyHandler {
	return &ConfidenceClarifyHandler{store: store, invoker: invoker}
}

func (h *ConfidenceClarifyHandler) Name() Name { return NameConfidenceClarify }

func (h *ConfidenceClarifyHandler) IsActive(ctx context.Context, userID int64, message string) (bool, error) {
	var rec ConfidenceClarifyRecord
	return h.store.Get(ctx, NameConfidenceClarify, userID, &rec)
}

func (h *ConfidenceClarifyHandler) Handle(ctx context.Context, userID, chatID int64, message string) (string, error) {
	var rec ConfidenceClarifyRecord
	ok, err := h.store.Get(ctx, NameConfidenceClarify, userID, &rec)
	if err != nil || !ok {
		return "", err
	}

	if IsCancel(message) {
		_ = h.store.Clear(ctx, NameConfidenceClarify, userID)
		return "Cancelled.", nil
	}

	args := make(map[string]interface{}, len(rec.Args)+1)
	for k, v := range rec.Args {
		args[k] = v
	}
	args[rec.Awaiting] = message

	output, success, err := h.invoker.Invoke(ctx, userID, rec.ToolName, args)
	_ = h.store.Clear(ctx, NameConfidenceClarify, userID)
	if err != nil {
		return "", err
	}
	if !success {
		return "The action failed: " + output, nil
	}
	return output, nil
}
