package tool

import (
	"context"
	"fmt"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/bulk"
)

// GmailBulkAdapter wraps GmailClient as a bulk.Adapter, grounded on
// §4.5's three bulk-mail flows (delete, mark-read, spam-clean) which all
// drive the same search-then-batch-modify shape over different queries
// and actions. One instance is registered per tool name since
// bulk.AdapterRegistry keys by Adapter.ToolName().
type GmailBulkAdapter struct {
	toolName string
	client   GmailClient
}

// NewGmailBulkAdapter builds an adapter registered under toolName
// (one of "gmail_bulk_delete", "gmail_bulk_mark_read", "gmail_bulk_spam_clean").
func NewGmailBulkAdapter(toolName string, client GmailClient) *GmailBulkAdapter {
	return &GmailBulkAdapter{toolName: toolName, client: client}
}

// ToolName implements bulk.Adapter.
func (a *GmailBulkAdapter) ToolName() string { return a.toolName }

// Prepare implements bulk.Adapter. No network call: it just carries the
// caller-compiled search query through to NextBatch.
func (a *GmailBulkAdapter) Prepare(ctx context.Context, params map[string]string) (bulk.PreparedContext, error) {
	query := params["query"]
	if query == "" {
		return bulk.PreparedContext{}, fmt.Errorf("gmail bulk adapter: missing query param")
	}
	return bulk.PreparedContext{Query: query}, nil
}

// NextBatch implements bulk.Adapter. Gmail pages via an opaque token
// rather than a numeric offset, so offset is ignored and pc.Cursor
// carries state across calls instead.
func (a *GmailBulkAdapter) NextBatch(ctx context.Context, pc *bulk.PreparedContext, size, offset int) ([]bulk.Item, int, error) {
	msgs, nextToken, estimate, err := a.client.Search(ctx, pc.Query, int64(size), pc.Cursor)
	if err != nil {
		return nil, 0, err
	}
	pc.Cursor = nextToken

	items := make([]bulk.Item, len(msgs))
	for i, m := range msgs {
		items[i] = bulk.Item{
			ID:          m.ID,
			DisplayName: fmt.Sprintf("%s — %s", m.From, m.Subject),
		}
	}
	return items, estimate, nil
}

// ExecuteBatch implements bulk.Adapter, branching on pc.Action.
func (a *GmailBulkAdapter) ExecuteBatch(ctx context.Context, items []bulk.Item, pc bulk.PreparedContext) ([]bulk.Result, error) {
	results := make([]bulk.Result, len(items))
	for i, item := range items {
		var opErr error
		switch pc.Action {
		case "permanent_delete":
			opErr = a.client.Delete(ctx, item.ID)
		case "mark_read":
			opErr = a.client.MarkRead(ctx, item.ID)
		case "move_to_trash":
			opErr = a.client.Trash(ctx, item.ID)
		default:
			opErr = fmt.Errorf("gmail bulk adapter: unknown action %q", pc.Action)
		}
		if opErr != nil {
			results[i] = bulk.Result{ItemID: item.ID, Success: false, Error: opErr.Error()}
			continue
		}
		results[i] = bulk.Result{ItemID: item.ID, Success: true}
	}
	return results, nil
}
