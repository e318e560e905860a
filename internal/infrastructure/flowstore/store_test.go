package flowstore

import (
	"context"
	"testing"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/flow"
	"go.uber.org/zap"
)

type testRecord struct {
	Phase flow.Phase `json:"phase"`
	Note  string     `json:"note"`
}

func TestFileStoreSetGetClear(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	var dest testRecord
	if ok, _ := store.Get(ctx, flow.NameGmailDelete, 42, &dest); ok {
		t.Fatal("expected no record before Set")
	}

	want := testRecord{Phase: flow.PhaseDryRun, Note: "hello"}
	if err := store.Set(ctx, flow.NameGmailDelete, 42, want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got testRecord
	ok, err := store.Get(ctx, flow.NameGmailDelete, 42, &got)
	if err != nil || !ok {
		t.Fatalf("expected record, ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if err := store.Clear(ctx, flow.NameGmailDelete, 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := store.Get(ctx, flow.NameGmailDelete, 42, &got); ok {
		t.Fatal("expected no record after Clear")
	}
}

func TestFileStoreRehydratesFromDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store1, err := NewFileStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := testRecord{Phase: flow.PhaseExecuting, Note: "surviving restart"}
	if err := store1.Set(ctx, flow.NameCalendarCancel, 7, want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store2, err := NewFileStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got testRecord
	ok, err := store2.Get(ctx, flow.NameCalendarCancel, 7, &got)
	if err != nil || !ok {
		t.Fatalf("expected rehydrated record, ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestFileStoreIsolatesUsers(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir, zap.NewNop())
	ctx := context.Background()

	_ = store.Set(ctx, flow.NameToolConfirm, 1, testRecord{Note: "a"})
	_ = store.Set(ctx, flow.NameToolConfirm, 2, testRecord{Note: "b"})

	var got testRecord
	ok, _ := store.Get(ctx, flow.NameToolConfirm, 1, &got)
	if !ok || got.Note != "a" {
		t.Fatalf("expected user 1's record, got %+v ok=%v", got, ok)
	}

	_ = store.Clear(ctx, flow.NameToolConfirm, 1)
	ok, _ = store.Get(ctx, flow.NameToolConfirm, 2, &got)
	if !ok || got.Note != "b" {
		t.Fatal("expected clearing user 1 to leave user 2 untouched")
	}
}
