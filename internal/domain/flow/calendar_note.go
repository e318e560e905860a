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

// CalendarNoteStage mirrors CalendarCancelStage but has no scope/confirm
// step — §4.5.6 executes as soon as an event is selected and note text is
// known.
type CalendarNoteStage string

const (
	NoteAwaitingSelection CalendarNoteStage = "awaiting_selection"
	NoteAwaitingText      CalendarNoteStage = "awaiting_text"
)

// CalendarNoteRecord is the persisted state for one in-flight note-add.
type CalendarNoteRecord struct {
	Stage           CalendarNoteStage `json:"stage"`
	Options         []CalendarEvent   `json:"options,omitempty"`
	SelectedEventID string            `json:"selected_event_id,omitempty"`
	Title           string            `json:"title"`
	Note            string            `json:"note,omitempty"`
}

var (
	noteRequestRe     = regexp.MustCompile(`(?i)add.*?note.*?(?:to|on).*?called "([^"]+)"`)
	noteTextTrailerRe = regexp.MustCompile(`(?i)saying "([^"]+)"`)
)

// CalendarNoteHandler implements §4.5.6.
type CalendarNoteHandler struct {
	store    Store
	calendar CalendarPort
}

func NewCalendarNoteHandler(store Store, calendar CalendarPort) *CalendarNoteHandler {
	return &CalendarNoteHandler{store: store, calendar: calendar}
}

func (h *CalendarNoteHandler) Name() Name { return NameCalendarNote }

func (h *CalendarNoteHandler) IsActive(ctx context.Context, userID int64, message string) (bool, error) {
	var rec CalendarNoteRecord
	ok, err := h.store.Get(ctx, NameCalendarNote, userID, &rec)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return noteRequestRe.MatchString(message), nil
}

func (h *CalendarNoteHandler) Handle(ctx context.Context, userID, chatID int64, message string) (string, error) {
	var rec CalendarNoteRecord
	ok, err := h.store.Get(ctx, NameCalendarNote, userID, &rec)
	if err != nil {
		return "", err
	}

	if !ok {
		m := noteRequestRe.FindStringSubmatch(message)
		if m == nil {
			return "", nil
		}
		title := m[1]
		var note string
		if tm := noteTextTrailerRe.FindStringSubmatch(message); tm != nil {
			note = tm[1]
		}
		from := time.Now().AddDate(0, 0, -1)
		to := from.AddDate(0, 1, 0)
		events, err := h.calendar.ListEvents(ctx, from, to, 50)
		if err != nil {
			return "", err
		}
		rec = CalendarNoteRecord{Title: title, Note: note}
		return h.resolveSelection(ctx, userID, rec, title, events)
	}

	if IsCancel(message) {
		_ = h.store.Clear(ctx, NameCalendarNote, userID)
		return "Cancelled.", nil
	}

	switch rec.Stage {
	case NoteAwaitingSelection:
		idx, err := strconv.Atoi(strings.TrimSpace(message))
		if err != nil || idx < 1 || idx > len(rec.Options) {
			return "Reply with the number of the event to add the note to, or CANCEL.", nil
		}
		chosen := rec.Options[idx-1]
		rec.SelectedEventID = chosen.ID
		rec.Options = nil
		return h.afterSelection(ctx, userID, rec)

	case NoteAwaitingText:
		rec.Note = strings.TrimSpace(message)
		if rec.Note == "" {
			return "What note should I add?", nil
		}
		return h.execute(ctx, userID, rec)

	default:
		_ = h.store.Clear(ctx, NameCalendarNote, userID)
		return "", nil
	}
}

func (h *CalendarNoteHandler) resolveSelection(ctx context.Context, userID int64, rec CalendarNoteRecord, title string, events []CalendarEvent) (string, error) {
	candidates := make([]service.CalendarCandidate, len(events))
	for i, e := range events {
		candidates[i] = service.CalendarCandidate{EventID: e.ID, Title: e.Title, Start: e.Start, End: e.End, Recurring: e.Recurring}
	}
	match := service.ChooseBestMatch(title, time.Time{}, candidates)
	if match.Ambiguous {
		if len(events) == 0 {
			return "I couldn't find a matching event.", nil
		}
		rec.Stage = NoteAwaitingSelection
		rec.Options = events
		if err := h.store.Set(ctx, NameCalendarNote, userID, rec); err != nil {
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

	rec.SelectedEventID = match.Candidate.EventID
	return h.afterSelection(ctx, userID, rec)
}

func (h *CalendarNoteHandler) afterSelection(ctx context.Context, userID int64, rec CalendarNoteRecord) (string, error) {
	if rec.Note == "" {
		rec.Stage = NoteAwaitingText
		if err := h.store.Set(ctx, NameCalendarNote, userID, rec); err != nil {
			return "", err
		}
		return "What note should I add?", nil
	}
	return h.execute(ctx, userID, rec)
}

func (h *CalendarNoteHandler) execute(ctx context.Context, userID int64, rec CalendarNoteRecord) (string, error) {
	_, err := h.calendar.AddNote(ctx, rec.SelectedEventID, rec.Note)
	_ = h.store.Clear(ctx, NameCalendarNote, userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Added the note to '%s'.", rec.Title), nil
}
