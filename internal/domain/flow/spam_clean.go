package flow

import (
	"context"
	"fmt"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/bulk"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/service"
)

const gmailSpamCleanTool = "gmail_bulk_spam_clean"

// SpamCleanHandler implements §4.5.3: a DRY_RUN that estimates from a
// single list page, and an EXECUTE that fully drains within one turn
// rather than capping per-turn progress like mail_delete/mail_mark_read.
type SpamCleanHandler struct {
	store      Store
	controller *bulk.Controller
}

func NewSpamCleanHandler(store Store, controller *bulk.Controller) *SpamCleanHandler {
	return &SpamCleanHandler{store: store, controller: controller}
}

func (h *SpamCleanHandler) Name() Name { return NameGmailSpamClean }

func (h *SpamCleanHandler) IsActive(ctx context.Context, userID int64, message string) (bool, error) {
	var rec mailBulkRecord
	ok, err := h.store.Get(ctx, NameGmailSpamClean, userID, &rec)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	_, matched := service.ParseSpamClean(message)
	return matched, nil
}

func (h *SpamCleanHandler) Handle(ctx context.Context, userID, chatID int64, message string) (string, error) {
	var rec mailBulkRecord
	ok, err := h.store.Get(ctx, NameGmailSpamClean, userID, &rec)
	if err != nil {
		return "", err
	}

	if !ok {
		action, matched := service.ParseSpamClean(message)
		if !matched {
			return "", nil
		}
		query := "in:spam"
		toolAction := "move_to_trash"
		if action == service.SpamCleanPermanentPurge {
			query = "in:trash"
			toolAction = "permanent_delete"
		}
		state, _, err := h.controller.Start(ctx, newOpID(userID, NameGmailSpamClean), "mail", gmailSpamCleanTool, toolAction,
			map[string]string{"query": query}, 500)
		if err == bulk.ErrNothingToDo {
			return "Already empty.", nil
		}
		if err == bulk.ErrTooManyItems {
			return fmt.Sprintf("I found at-least %d emails — that's too many to handle safely in one run.", bulk.MaxTotalItems), nil
		}
		if err != nil {
			return "", err
		}
		rec = mailBulkRecord{Phase: PhaseDryRun, Bulk: *state}
		if err := h.store.Set(ctx, NameGmailSpamClean, userID, rec); err != nil {
			return "", err
		}
		verb := "move to trash"
		if toolAction == "permanent_delete" {
			verb = "permanently delete"
		}
		return bulk.PresentDryRun(verb, state), nil
	}

	if IsCancel(message) {
		_ = h.store.Clear(ctx, NameGmailSpamClean, userID)
		return "Cancelled.", nil
	}

	permanent := rec.Bulk.Action == "permanent_delete"

	switch rec.Phase {
	case PhaseDryRun:
		if !IsConfirm(message) {
			return "Reply YES to proceed, or CANCEL to stop.", nil
		}
		rec.Phase = PhaseExecuting
	case PhaseExecuting:
	default:
		_ = h.store.Clear(ctx, NameGmailSpamClean, userID)
		return "", nil
	}

	// §4.5.3: EXECUTE drains all remaining IDs within the turn.
	var done bool
	for !done {
		done, err = h.controller.RunBatch(ctx, &rec.Bulk)
		if err != nil {
			_ = h.store.Clear(ctx, NameGmailSpamClean, userID)
			return fmt.Sprintf("Error during EXECUTE\nProcessed: %d\nDetails: %v", rec.Bulk.Processed, err), nil
		}
	}

	_ = h.store.Clear(ctx, NameGmailSpamClean, userID)
	if permanent {
		return fmt.Sprintf("Done. Permanently deleted %d spam emails.", rec.Bulk.Processed), nil
	}
	return fmt.Sprintf("Moved %d spam emails to Trash.", rec.Bulk.Processed), nil
}
