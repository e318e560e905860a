package flow

import "context"

// DispatchRecord is the pending state for an unresolved task-board
// dispatch or comment envelope (§4.5.7): the action and whatever fields
// were already resolved, plus the single field still awaited.
type DispatchRecord struct {
	Action   string                 `json:"action"`
	Fields   map[string]interface{} `json:"fields"`
	Awaiting string                 `json:"awaiting"`
}

// dispatchHandler is shared by the trello_dispatch and trello_comment
// flows: both persist a DispatchRecord and resolve it the same way, one
// named for the initial create/move dispatch and the other for the
// add-comment sub-action, so the orchestrator's precedence order can
// distinguish which continuation is pending.
type dispatchHandler struct {
	name    Name
	store   Store
	invoker Invoker
}

// NewTrelloDispatchHandler handles the create/move/delete/archive cases.
func NewTrelloDispatchHandler(store Store, invoker Invoker) *dispatchHandler {
	return &dispatchHandler{name: NameTrelloDispatch, store: store, invoker: invoker}
}

// NewTrelloCommentHandler handles the add-comment sub-action.
func NewTrelloCommentHandler(store Store, invoker Invoker) *dispatchHandler {
	return &dispatchHandler{name: NameTrelloComment, store: store, invoker: invoker}
}

func (h *dispatchHandler) Name() Name { return h.name }

func (h *dispatchHandler) IsActive(ctx context.Context, userID int64, message string) (bool, error) {
	var rec DispatchRecord
	return h.store.Get(ctx, h.name, userID, &rec)
}

func (h *dispatchHandler) Handle(ctx context.Context, userID, chatID int64, message string) (string, error) {
	var rec DispatchRecord
	ok, err := h.store.Get(ctx, h.name, userID, &rec)
	if err != nil || !ok {
		return "", err
	}

	if IsCancel(message) {
		_ = h.store.Clear(ctx, h.name, userID)
		return "Cancelled.", nil
	}

	args := make(map[string]interface{}, len(rec.Fields)+2)
	for k, v := range rec.Fields {
		args[k] = v
	}
	args["action"] = rec.Action
	args[rec.Awaiting] = message

	output, success, err := h.invoker.Invoke(ctx, userID, "trello_dispatch", args)
	if err != nil {
		return "", err
	}
	if env, isEnvelope := ParseEnvelope(output); isEnvelope && (env.Status == StatusDispatchRequired || env.Status == StatusCommentRequired) {
		next := DispatchRecord{Action: rec.Action, Fields: args, Awaiting: env.Awaiting}
		if setErr := h.store.Set(ctx, h.name, userID, next); setErr != nil {
			return "", setErr
		}
		return env.Message, nil
	}

	_ = h.store.Clear(ctx, h.name, userID)
	if !success {
		return "The action failed: " + output, nil
	}
	return output, nil
}
