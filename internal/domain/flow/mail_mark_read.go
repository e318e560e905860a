package flow

import (
	"context"
	"fmt"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/bulk"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/service"
)

const gmailMarkReadTool = "gmail_bulk_mark_read"

// MailMarkReadHandler implements §4.5.2.
type MailMarkReadHandler struct {
	store      Store
	controller *bulk.Controller
}

func NewMailMarkReadHandler(store Store, controller *bulk.Controller) *MailMarkReadHandler {
	return &MailMarkReadHandler{store: store, controller: controller}
}

func (h *MailMarkReadHandler) Name() Name { return NameGmailMarkRead }

func (h *MailMarkReadHandler) IsActive(ctx context.Context, userID int64, message string) (bool, error) {
	var rec mailBulkRecord
	ok, err := h.store.Get(ctx, NameGmailMarkRead, userID, &rec)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	_, matched := service.ParseMailMarkRead(message)
	return matched, nil
}

func (h *MailMarkReadHandler) Handle(ctx context.Context, userID, chatID int64, message string) (string, error) {
	var rec mailBulkRecord
	ok, err := h.store.Get(ctx, NameGmailMarkRead, userID, &rec)
	if err != nil {
		return "", err
	}

	if !ok {
		from, matched := service.ParseMailMarkRead(message)
		if !matched {
			return "", nil
		}
		query := fmt.Sprintf("from:%s is:unread", from)
		state, _, err := h.controller.Start(ctx, newOpID(userID, NameGmailMarkRead), "mail", gmailMarkReadTool, "mark_read",
			map[string]string{"query": query}, 500)
		if err == bulk.ErrNothingToDo {
			return "No unread emails from " + from + ".", nil
		}
		if err == bulk.ErrTooManyItems {
			return fmt.Sprintf("I found at-least %d emails — that's too many to handle safely in one run. Narrow the request.", bulk.MaxTotalItems), nil
		}
		if err != nil {
			return "", err
		}
		rec = mailBulkRecord{Phase: PhaseDryRun, Bulk: *state}
		if err := h.store.Set(ctx, NameGmailMarkRead, userID, rec); err != nil {
			return "", err
		}
		return bulk.PresentDryRun("mark read", state), nil
	}

	if IsCancel(message) {
		_ = h.store.Clear(ctx, NameGmailMarkRead, userID)
		return "Cancelled.", nil
	}

	switch rec.Phase {
	case PhaseDryRun:
		if !IsConfirm(message) {
			return "Reply CONTINUE to process, or CANCEL to stop.", nil
		}
		rec.Phase = PhaseExecuting
	case PhaseExecuting:
	default:
		_ = h.store.Clear(ctx, NameGmailMarkRead, userID)
		return "", nil
	}

	// EXECUTE runs at most four controller batches per turn. The requested
	// batch size of 500 is clamped to bulk.MaxBatchSize (20), so one turn
	// marks at most 80 IDs read; the rest are processed on later turns.
	const maxBatchesPerTurn = 4
	var done bool
	for i := 0; i < maxBatchesPerTurn; i++ {
		done, err = h.controller.RunBatch(ctx, &rec.Bulk)
		if err != nil {
			_ = h.store.Clear(ctx, NameGmailMarkRead, userID)
			return fmt.Sprintf("Error during EXECUTE\nProcessed: %d\nDetails: %v", rec.Bulk.Processed, err), nil
		}
		if done {
			break
		}
	}

	if done {
		_ = h.store.Clear(ctx, NameGmailMarkRead, userID)
		return bulk.PresentCompleted("mark read", &rec.Bulk), nil
	}

	if err := h.store.Set(ctx, NameGmailMarkRead, userID, rec); err != nil {
		return "", err
	}
	return bulk.PresentInProgress("mark read", &rec.Bulk) + " Reply CONTINUE to process more, or CANCEL.", nil
}
