package bulk

import (
	"context"
	"testing"
)

type fakeAdapter struct {
	tool  string
	ids   []string
	fail  map[string]bool
}

func (f *fakeAdapter) ToolName() string { return f.tool }

func (f *fakeAdapter) Prepare(ctx context.Context, params map[string]string) (PreparedContext, error) {
	return PreparedContext{Query: params["query"]}, nil
}

func (f *fakeAdapter) NextBatch(ctx context.Context, pc *PreparedContext, size, offset int) ([]Item, int, error) {
	if offset >= len(f.ids) {
		return nil, len(f.ids), nil
	}
	end := offset + size
	if end > len(f.ids) {
		end = len(f.ids)
	}
	batch := f.ids[offset:end]
	items := make([]Item, len(batch))
	for i, id := range batch {
		items[i] = Item{ID: id, DisplayName: id}
	}
	return items, len(f.ids), nil
}

func (f *fakeAdapter) ExecuteBatch(ctx context.Context, items []Item, pc PreparedContext) ([]Result, error) {
	results := make([]Result, len(items))
	for i, it := range items {
		if f.fail[it.ID] {
			results[i] = Result{ItemID: it.ID, Success: false, Error: "boom"}
			continue
		}
		results[i] = Result{ItemID: it.ID, Success: true}
	}
	return results, nil
}

func newTestController(ids []string, fail map[string]bool) (*Controller, *fakeAdapter) {
	adapter := &fakeAdapter{tool: "test_tool", ids: ids, fail: fail}
	reg := NewAdapterRegistry()
	reg.Register(adapter)
	return NewController(reg, nil), adapter
}

func TestControllerStartRejectsOverLimit(t *testing.T) {
	ids := make([]string, MaxTotalItems+1)
	for i := range ids {
		ids[i] = "x"
	}
	ctrl, _ := newTestController(ids, nil)
	_, _, err := ctrl.Start(context.Background(), "op1", "mail", "test_tool", "delete", nil, 10)
	if err != ErrTooManyItems {
		t.Fatalf("expected ErrTooManyItems, got %v", err)
	}
}

func TestControllerStartRejectsEmpty(t *testing.T) {
	ctrl, _ := newTestController(nil, nil)
	_, _, err := ctrl.Start(context.Background(), "op1", "mail", "test_tool", "delete", nil, 10)
	if err != ErrNothingToDo {
		t.Fatalf("expected ErrNothingToDo, got %v", err)
	}
}

func TestControllerStartClampsBatchSize(t *testing.T) {
	ctrl, _ := newTestController([]string{"a", "b", "c"}, nil)
	state, _, err := ctrl.Start(context.Background(), "op1", "mail", "test_tool", "delete", nil, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.BatchSize != MinBatchSize {
		t.Fatalf("expected batch size clamped to %d, got %d", MinBatchSize, state.BatchSize)
	}
}

func TestControllerRunBatchDrainsToCompletion(t *testing.T) {
	ids := []string{"1", "2", "3", "4", "5", "6", "7"}
	ctrl, _ := newTestController(ids, map[string]bool{"3": true})
	state, _, err := ctrl.Start(context.Background(), "op1", "mail", "test_tool", "delete", nil, MinBatchSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Total != len(ids) {
		t.Fatalf("expected total %d, got %d", len(ids), state.Total)
	}

	var done bool
	for i := 0; i < 10 && !done; i++ {
		done, err = ctrl.RunBatch(context.Background(), state)
		if err != nil {
			t.Fatalf("unexpected error on batch %d: %v", i, err)
		}
	}
	if !done {
		t.Fatal("expected operation to complete within bound")
	}
	if state.Processed != len(ids) {
		t.Fatalf("expected processed %d, got %d", len(ids), state.Processed)
	}
	if state.ErrorCount != 1 {
		t.Fatalf("expected 1 error, got %d", state.ErrorCount)
	}
}
