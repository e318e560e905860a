package application

import (
	"context"
	"testing"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/flow"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/service"
	"github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/flowstore"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) flow.Store {
	t.Helper()
	store, err := flowstore.NewFileStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestEnvelopeRouterDispatchRequired(t *testing.T) {
	store := newTestStore(t)
	router := newEnvelopeRouter(store)
	ctx := context.Background()

	env := flow.Envelope{
		Status:   flow.StatusDispatchRequired,
		Data:     map[string]interface{}{"action": "create"},
		Awaiting: "board_name",
		Message:  "Which board is this on?",
	}

	reply, err := router.Route(ctx, 7, "trello_dispatch", map[string]interface{}{"action": "create"}, env)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if reply != "Which board is this on?" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	var rec flow.DispatchRecord
	ok, err := store.Get(ctx, flow.NameTrelloDispatch, 7, &rec)
	if err != nil || !ok {
		t.Fatalf("expected DispatchRecord persisted, ok=%v err=%v", ok, err)
	}
	if rec.Action != "create" || rec.Awaiting != "board_name" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestEnvelopeRouterConfirmationRequiredGenericTool(t *testing.T) {
	store := newTestStore(t)
	router := newEnvelopeRouter(store)
	ctx := context.Background()

	env := flow.Envelope{Status: flow.StatusConfirmationRequired, Message: "Reply YES to proceed."}
	args := map[string]interface{}{"event_id": "abc123"}

	reply, err := router.Route(ctx, 9, "calendar_cancel_meeting", args, env)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if reply != "Reply YES to proceed." {
		t.Fatalf("unexpected reply: %q", reply)
	}

	var rec flow.ToolConfirmRecord
	ok, err := store.Get(ctx, flow.NameToolConfirm, 9, &rec)
	if err != nil || !ok {
		t.Fatalf("expected ToolConfirmRecord persisted, ok=%v err=%v", ok, err)
	}
	if rec.ToolName != "calendar_cancel_meeting" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestEnvelopeRouterConfirmationRequiredGmailSend(t *testing.T) {
	store := newTestStore(t)
	router := newEnvelopeRouter(store)
	ctx := context.Background()

	env := flow.Envelope{Status: flow.StatusConfirmationRequired, Message: "Reply YES to send."}
	args := map[string]interface{}{"to": "a@b.com", "subject": "hi", "body": "hello"}

	if _, err := router.Route(ctx, 3, "gmail_send_email", args, env); err != nil {
		t.Fatalf("Route: %v", err)
	}

	var rec flow.GmailSendRecord
	ok, err := store.Get(ctx, flow.NameGmailSend, 3, &rec)
	if err != nil || !ok {
		t.Fatalf("expected GmailSendRecord persisted, ok=%v err=%v", ok, err)
	}
	if rec.ToolName != "gmail_send_email" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestEnvelopeRouterConfidence(t *testing.T) {
	store := newTestStore(t)
	router := newEnvelopeRouter(store)
	ctx := context.Background()

	assessment := service.ConfidenceAssessment{Awaiting: "to", Question: "Who should this email go to?"}
	reply, err := router.RouteConfidence(ctx, 5, "gmail_send_email", map[string]interface{}{"subject": "hi"}, assessment)
	if err != nil {
		t.Fatalf("RouteConfidence: %v", err)
	}
	if reply != "Who should this email go to?" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	var rec flow.ConfidenceClarifyRecord
	ok, err := store.Get(ctx, flow.NameConfidenceClarify, 5, &rec)
	if err != nil || !ok {
		t.Fatalf("expected ConfidenceClarifyRecord persisted, ok=%v err=%v", ok, err)
	}
	if rec.Awaiting != "to" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}
