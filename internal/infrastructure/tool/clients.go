package tool

import (
	"context"
	"time"
)

// GmailClient is the narrow surface the LLM-facing Gmail tools and the
// mail bulk adapters need. Implementations wrap google.golang.org/api/gmail/v1.
type GmailClient interface {
	Search(ctx context.Context, query string, maxResults int64, pageToken string) (msgs []GmailMessage, nextPageToken string, estimate int, err error)
	Get(ctx context.Context, messageID string) (GmailMessage, error)
	Send(ctx context.Context, to, subject, body string) (messageID string, err error)
	SaveDraft(ctx context.Context, to, subject, body string) (draftID string, err error)
	Trash(ctx context.Context, messageID string) error
	Delete(ctx context.Context, messageID string) error
	MarkRead(ctx context.Context, messageID string) error
}

// GmailMessage is the normalized projection of a Gmail message header used
// across tool output and bulk previews.
type GmailMessage struct {
	ID      string
	From    string
	Subject string
	Snippet string
	Date    string
	Unread  bool
	Labels  []string
}

// CalendarClient is the narrow surface the LLM-facing calendar tools and
// the calendar_cancel/calendar_note flows need. Implementations wrap
// google.golang.org/api/calendar/v3.
type CalendarClient interface {
	ListEvents(ctx context.Context, from, to time.Time, maxResults int64) ([]CalendarEvent, error)
	CreateEvent(ctx context.Context, title string, start, end time.Time, notes string) (CalendarEvent, error)
	CancelEvent(ctx context.Context, eventID string, wholeSeries bool) error
	AddNote(ctx context.Context, eventID, note string) (CalendarEvent, error)
}

// CalendarEvent is the normalized projection of a calendar event.
type CalendarEvent struct {
	ID          string
	Title       string
	Start       time.Time
	End         time.Time
	Recurring   bool
	Description string
}

// TrelloClient is the narrow surface the LLM-facing Trello tools and the
// trello_dispatch/trello_comment flows need. Implementations wrap
// github.com/adlio/trello.
type TrelloClient interface {
	ListCards(ctx context.Context, listName string, maxResults int) ([]TrelloCard, error)
	CardStatus(ctx context.Context, cardID string) (TrelloCard, error)
	CreateCard(ctx context.Context, listName, name, description string) (TrelloCard, error)
	MoveCard(ctx context.Context, cardID, toListName string) (TrelloCard, error)
	AddComment(ctx context.Context, cardID, text string) error
}

// TrelloCard is the normalized projection of a Trello card.
type TrelloCard struct {
	ID       string
	Name     string
	ListName string
	URL      string
	Due      string
}
