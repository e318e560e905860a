package flow

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/service"
)

// CalendarCancelStage is where a pending cancel sits in its disambiguation
// / scope-selection / confirmation walk (§4.5.5).
type CalendarCancelStage string

const (
	CancelAwaitingSelection    CalendarCancelStage = "awaiting_selection"
	CancelAwaitingScope        CalendarCancelStage = "awaiting_scope"
	CancelAwaitingConfirmation CalendarCancelStage = "awaiting_confirmation"
)

// CalendarCancelRecord is the persisted state for one in-flight cancel.
type CalendarCancelRecord struct {
	Stage           CalendarCancelStage `json:"stage"`
	Options         []CalendarEvent     `json:"options,omitempty"`
	SelectedEventID string              `json:"selected_event_id,omitempty"`
	Title           string              `json:"title"`
	Delete          bool                `json:"delete"`
	Scope           string              `json:"scope,omitempty"` // "single" | "series"
}

var cancelRequestRe = regexp.MustCompile(`(?i)cancel.*?called "([^"]+)"(?:\s+on\s+(\d{4}-\d{2}-\d{2}))?`)

// CalendarCancelHandler implements §4.5.5.
type CalendarCancelHandler struct {
	store    Store
	calendar CalendarPort
}

func NewCalendarCancelHandler(store Store, calendar CalendarPort) *CalendarCancelHandler {
	return &CalendarCancelHandler{store: store, calendar: calendar}
}

func (h *CalendarCancelHandler) Name() Name { return NameCalendarCancel }

func (h *CalendarCancelHandler) IsActive(ctx context.Context, userID int64, message string) (bool, error) {
	var rec CalendarCancelRecord
	ok, err := h.store.Get(ctx, NameCalendarCancel, userID, &rec)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return cancelRequestRe.MatchString(message), nil
}

func (h *CalendarCancelHandler) Handle(ctx context.Context, userID, chatID int64, message string) (string, error) {
	var rec CalendarCancelRecord
	ok, err := h.store.Get(ctx, NameCalendarCancel, userID, &rec)
	if err != nil {
		return "", err
	}

	if !ok {
		m := cancelRequestRe.FindStringSubmatch(message)
		if m == nil {
			return "", nil
		}
		title := m[1]
		var targetDate time.Time
		if m[2] != "" {
			targetDate, _ = time.Parse("2006-01-02", m[2])
		}
		from := targetDate.AddDate(0, 0, -7)
		to := targetDate.AddDate(0, 0, 7)
		if targetDate.IsZero() {
			from = time.Now().AddDate(0, 0, -1)
			to = from.AddDate(0, 1, 0)
		}
		events, err := h.calendar.ListEvents(ctx, from, to, 50)
		if err != nil {
			return "", err
		}
		rec = CalendarCancelRecord{Title: title, Delete: strings.Contains(strings.ToLower(message), "delete")}
		return h.resolveSelection(ctx, userID, rec, title, targetDate, events)
	}

	if IsCancel(message) {
		_ = h.store.Clear(ctx, NameCalendarCancel, userID)
		return "Cancelled.", nil
	}

	switch rec.Stage {
	case CancelAwaitingSelection:
		idx, err := strconv.Atoi(strings.TrimSpace(message))
		if err != nil || idx < 1 || idx > len(rec.Options) {
			return "Reply with the number of the event to cancel, or CANCEL.", nil
		}
		chosen := rec.Options[idx-1]
		rec.SelectedEventID = chosen.ID
		rec.Options = nil
		return h.afterSelection(ctx, userID, rec, chosen)

	case CancelAwaitingScope:
		lower := strings.ToLower(strings.TrimSpace(message))
		switch {
		case strings.Contains(lower, "series") || lower == "all":
			rec.Scope = "series"
		case strings.Contains(lower, "single") || lower == "this" || lower == "one":
			rec.Scope = "single"
		default:
			return "Reply 'single' to cancel just this occurrence, or 'series' for the whole series.", nil
		}
		return h.maybeConfirmOrExecute(ctx, userID, rec)

	case CancelAwaitingConfirmation:
		if !IsConfirm(message) {
			return "Reply YES to confirm, or CANCEL to stop.", nil
		}
		return h.execute(ctx, userID, rec)

	default:
		_ = h.store.Clear(ctx, NameCalendarCancel, userID)
		return "", nil
	}
}

func (h *CalendarCancelHandler) resolveSelection(ctx context.Context, userID int64, rec CalendarCancelRecord, title string, targetDate time.Time, events []CalendarEvent) (string, error) {
	candidates := make([]service.CalendarCandidate, len(events))
	for i, e := range events {
		candidates[i] = service.CalendarCandidate{EventID: e.ID, Title: e.Title, Start: e.Start, End: e.End, Recurring: e.Recurring}
	}
	match := service.ChooseBestMatch(title, targetDate, candidates)
	if match.Ambiguous {
		if len(events) == 0 {
			return "I couldn't find a matching event.", nil
		}
		rec.Stage = CancelAwaitingSelection
		rec.Options = events
		if err := h.store.Set(ctx, NameCalendarCancel, userID, rec); err != nil {
			return "", err
		}
		var b strings.Builder
		b.WriteString("I found multiple matching events:\n")
		for i, e := range events {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, e.Title, e.Start.Format("2006-01-02 15:04"))
		}
		b.WriteString("Reply with the number.")
		return b.String(), nil
	}

	var chosen CalendarEvent
	for _, e := range events {
		if e.ID == match.Candidate.EventID {
			chosen = e
			break
		}
	}
	rec.SelectedEventID = chosen.ID
	return h.afterSelection(ctx, userID, rec, chosen)
}

func (h *CalendarCancelHandler) afterSelection(ctx context.Context, userID int64, rec CalendarCancelRecord, chosen CalendarEvent) (string, error) {
	if chosen.Recurring && rec.Scope == "" {
		rec.Stage = CancelAwaitingScope
		if err := h.store.Set(ctx, NameCalendarCancel, userID, rec); err != nil {
			return "", err
		}
		return fmt.Sprintf("'%s' is a recurring event. Cancel just this occurrence ('single') or the whole series ('series')?", chosen.Title), nil
	}
	if rec.Scope == "" {
		rec.Scope = "single"
	}
	return h.maybeConfirmOrExecute(ctx, userID, rec)
}

// maybeConfirmOrExecute implements §4.5.5's authorization rule: a single,
// non-high-risk cancel executes on selection alone; delete=true or
// cancel_scope=series always requires an explicit YES.
func (h *CalendarCancelHandler) maybeConfirmOrExecute(ctx context.Context, userID int64, rec CalendarCancelRecord) (string, error) {
	needsConfirm := rec.Delete || rec.Scope == "series"
	if !needsConfirm {
		return h.execute(ctx, userID, rec)
	}
	rec.Stage = CancelAwaitingConfirmation
	if err := h.store.Set(ctx, NameCalendarCancel, userID, rec); err != nil {
		return "", err
	}
	return fmt.Sprintf("Reply YES to confirm cancelling '%s' (%s), or CANCEL.", rec.Title, rec.Scope), nil
}

func (h *CalendarCancelHandler) execute(ctx context.Context, userID int64, rec CalendarCancelRecord) (string, error) {
	err := h.calendar.CancelEvent(ctx, rec.SelectedEventID, rec.Scope == "series")
	_ = h.store.Clear(ctx, NameCalendarCancel, userID)
	if err != nil {
		// Idempotent: an already-cancelled event is reported as success.
		if strings.Contains(strings.ToLower(err.Error()), "already cancelled") || strings.Contains(strings.ToLower(err.Error()), "not found") {
			return fmt.Sprintf("Cancelled '%s' scheduled for …", rec.Title), nil
		}
		return "", err
	}
	return fmt.Sprintf("Cancelled '%s' scheduled for …", rec.Title), nil
}
