package flow

import "context"

// GmailSendRecord is the pending state for a mail send/draft tool's
// confirmation_required envelope (§4.5.4). Single-shot, no pagination.
type GmailSendRecord struct {
	ToolName string                 `json:"tool_name"`
	Payload  map[string]interface{} `json:"payload"`
}

// GmailSendHandler replays the stashed send/draft call with confirm=true
// on YES, clears on CANCEL.
type GmailSendHandler struct {
	store   Store
	invoker Invoker
}

func NewGmailSendHandler(store Store, invoker Invoker) *GmailSendHandler {
	return &GmailSendHandler{store: store, invoker: invoker}
}

func (h *GmailSendHandler) Name() Name { return NameGmailSend }

func (h *GmailSendHandler) IsActive(ctx context.Context, userID int64, message string) (bool, error) {
	var rec GmailSendRecord
	return h.store.Get(ctx, NameGmailSend, userID, &rec)
}

func (h *GmailSendHandler) Handle(ctx context.Context, userID, chatID int64, message string) (string, error) {
	var rec GmailSendRecord
	ok, err := h.store.Get(ctx, NameGmailSend, userID, &rec)
	if err != nil || !ok {
		return "", err
	}

	if IsCancel(message) {
		_ = h.store.Clear(ctx, NameGmailSend, userID)
		return "Cancelled.", nil
	}
	if !IsConfirm(message) {
		return "Reply YES to send, or CANCEL to discard.", nil
	}

	args := make(map[string]interface{}, len(rec.Payload)+1)
	for k, v := range rec.Payload {
		args[k] = v
	}
	args["confirm"] = true

	output, success, err := h.invoker.Invoke(ctx, userID, rec.ToolName, args)
	_ = h.store.Clear(ctx, NameGmailSend, userID)
	if err != nil {
		return "", err
	}
	if !success {
		return "Sending failed: " + output, nil
	}
	return output, nil
}
