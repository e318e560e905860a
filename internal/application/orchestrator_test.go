package application

import (
	"context"
	"testing"
	"time"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/entity"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/flow"
	"go.uber.org/zap"
)

type fakeHandler struct {
	name   flow.Name
	active bool
	reply  string
	err    error
}

func (f *fakeHandler) Name() flow.Name { return f.name }
func (f *fakeHandler) IsActive(ctx context.Context, userID int64, message string) (bool, error) {
	return f.active, nil
}
func (f *fakeHandler) Handle(ctx context.Context, userID, chatID int64, message string) (string, error) {
	return f.reply, f.err
}

type fakeConvoRepo struct {
	saved []*entity.ConversationTurn
}

func (r *fakeConvoRepo) Save(ctx context.Context, turn *entity.ConversationTurn) error {
	r.saved = append(r.saved, turn)
	return nil
}
func (r *fakeConvoRepo) FindRecent(ctx context.Context, userID int64, limit int) ([]*entity.ConversationTurn, error) {
	return nil, nil
}
func (r *fakeConvoRepo) DeleteBefore(ctx context.Context, userID int64, keepLast int) error {
	return nil
}

func TestOrchestratorDispatchesToActiveFlow(t *testing.T) {
	handler := &fakeHandler{name: flow.NameToolConfirm, active: true, reply: "Cancelled."}
	convo := &fakeConvoRepo{}
	orch := NewOrchestrator([]flow.Handler{handler}, nil, convo, nil, zap.NewNop())

	turn, err := entity.NewTurn("t1", 42, 100, entity.OriginText, "CANCEL", time.Now(), "corr-1")
	if err != nil {
		t.Fatalf("NewTurn: %v", err)
	}

	reply, err := orch.Process(context.Background(), turn)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reply != "Cancelled." {
		t.Fatalf("unexpected reply: %q", reply)
	}

	if len(convo.saved) != 2 {
		t.Fatalf("expected 2 turns saved (user + assistant), got %d", len(convo.saved))
	}
	if convo.saved[0].Role() != entity.RoleUser || convo.saved[1].Role() != entity.RoleAssistant {
		t.Fatalf("unexpected roles: %v, %v", convo.saved[0].Role(), convo.saved[1].Role())
	}
}

func TestOrchestratorSkipsInactiveFlow(t *testing.T) {
	handler := &fakeHandler{name: flow.NameToolConfirm, active: false}
	convo := &fakeConvoRepo{}
	orch := NewOrchestrator([]flow.Handler{handler}, nil, convo, nil, zap.NewNop())

	turn, err := entity.NewTurn("t2", 42, 100, entity.OriginText, "hello", time.Now(), "corr-2")
	if err != nil {
		t.Fatalf("NewTurn: %v", err)
	}

	// No flow active and agent is nil — Process must reach runAgent and
	// fail there rather than silently matching the inactive handler.
	if _, err := orch.Process(context.Background(), turn); err == nil {
		t.Fatal("expected an error from the nil agent fallback")
	}
}
