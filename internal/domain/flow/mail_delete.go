package flow

import (
	"context"
	"fmt"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/bulk"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/service"
)

// mailBulkRecord is the persisted state shared by every bulk-mail flow:
// the two-phase skeleton's current phase plus the bulk controller's own
// State.
type mailBulkRecord struct {
	Phase Phase     `json:"phase"`
	Bulk  bulk.State `json:"bulk"`
}

const gmailDeleteTool = "gmail_bulk_delete"

// MailDeleteHandler implements §4.5.1: fresh-request parsing, a DRY_RUN
// preview capped by bulk.MaxTotalItems, and an EXECUTE phase draining the
// buffered IDs in bulk.Controller batches.
type MailDeleteHandler struct {
	store      Store
	controller *bulk.Controller
}

func NewMailDeleteHandler(store Store, controller *bulk.Controller) *MailDeleteHandler {
	return &MailDeleteHandler{store: store, controller: controller}
}

func (h *MailDeleteHandler) Name() Name { return NameGmailDelete }

func (h *MailDeleteHandler) IsActive(ctx context.Context, userID int64, message string) (bool, error) {
	var rec mailBulkRecord
	ok, err := h.store.Get(ctx, NameGmailDelete, userID, &rec)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	_, matched := service.ParseMailDelete(message)
	return matched, nil
}

func (h *MailDeleteHandler) Handle(ctx context.Context, userID, chatID int64, message string) (string, error) {
	var rec mailBulkRecord
	ok, err := h.store.Get(ctx, NameGmailDelete, userID, &rec)
	if err != nil {
		return "", err
	}

	if !ok {
		req, matched := service.ParseMailDelete(message)
		if !matched {
			return "", nil
		}
		action := "move_to_trash"
		actionParams := map[string]string{"permanent": "false"}
		if req.Permanent {
			action = "permanent_delete"
			actionParams["permanent"] = "true"
		}
		state, _, err := h.controller.Start(ctx, newOpID(userID, NameGmailDelete), "mail", gmailDeleteTool, action,
			map[string]string{"query": req.Query()}, 500)
		if err == bulk.ErrNothingToDo {
			return "I didn't find any emails matching that.", nil
		}
		if err == bulk.ErrTooManyItems {
			return fmt.Sprintf("I found at-least %d emails — that's too many to handle safely in one run. Narrow the request.", bulk.MaxTotalItems), nil
		}
		if err != nil {
			return "", err
		}
		state.PreparedContext.ActionParams = actionParams
		rec = mailBulkRecord{Phase: PhaseDryRun, Bulk: *state}
		if err := h.store.Set(ctx, NameGmailDelete, userID, rec); err != nil {
			return "", err
		}
		verb := "move to trash"
		if req.Permanent {
			verb = "permanently delete"
		}
		return bulk.PresentDryRun(verb, state), nil
	}

	if IsCancel(message) {
		_ = h.store.Clear(ctx, NameGmailDelete, userID)
		return "Cancelled.", nil
	}

	verb := "move to trash"
	if rec.Bulk.PreparedContext.ActionParams["permanent"] == "true" {
		verb = "permanently delete"
	}

	switch rec.Phase {
	case PhaseDryRun:
		if !IsConfirm(message) {
			return "Reply YES to proceed, or CANCEL to stop.", nil
		}
		rec.Phase = PhaseExecuting
	case PhaseExecuting:
		// any further text continues the drain, per §4.5.1 "EXECUTE processes
		// up to MAX_PER_TURN IDs per turn"
	default:
		_ = h.store.Clear(ctx, NameGmailDelete, userID)
		return "", nil
	}

	// EXECUTE runs at most two controller batches per turn. Start asked for
	// a batch size of 500, which bulk.ClampBatchSize cut to at most
	// bulk.MaxBatchSize (20), so one turn processes at most 40 IDs; the rest
	// are processed on later turns.
	const maxBatchesPerTurn = 2
	var done bool
	for i := 0; i < maxBatchesPerTurn; i++ {
		done, err = h.controller.RunBatch(ctx, &rec.Bulk)
		if err != nil {
			_ = h.store.Clear(ctx, NameGmailDelete, userID)
			return fmt.Sprintf("Error during EXECUTE\nProcessed: %d\nDetails: %v", rec.Bulk.Processed, err), nil
		}
		if done {
			break
		}
	}

	if done {
		_ = h.store.Clear(ctx, NameGmailDelete, userID)
		if rec.Bulk.PreparedContext.ActionParams["permanent"] == "true" {
			return fmt.Sprintf("Done. Permanently deleted %d emails.", rec.Bulk.Processed), nil
		}
		return fmt.Sprintf("Done. Moved %d emails to Trash.", rec.Bulk.Processed), nil
	}

	if err := h.store.Set(ctx, NameGmailDelete, userID, rec); err != nil {
		return "", err
	}
	return bulk.PresentInProgress(verb, &rec.Bulk), nil
}

func newOpID(userID int64, f Name) string {
	return fmt.Sprintf("%s-%d", f, userID)
}
