package tool

import (
	"context"
	"encoding/json"
	"fmt"

	domaintool "github.com/ngoclaw/ngoclaw/gateway/internal/domain/tool"
	"go.uber.org/zap"
)

// GmailSearchTool lets the model list messages matching a Gmail search
// query. It never mutates anything, so it carries KindSearch and is
// always safe under AskMode.
type GmailSearchTool struct {
	client GmailClient
	logger *zap.Logger
}

func NewGmailSearchTool(client GmailClient, logger *zap.Logger) *GmailSearchTool {
	return &GmailSearchTool{client: client, logger: logger}
}

func (t *GmailSearchTool) Name() string        { return "gmail_search" }
func (t *GmailSearchTool) Description() string { return "Search the owner's mailbox with a Gmail query string and return matching message summaries." }
func (t *GmailSearchTool) Kind() domaintool.Kind { return domaintool.KindSearch }
func (t *GmailSearchTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query":       map[string]interface{}{"type": "string"},
			"max_results": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"query"},
	}
}

func (t *GmailSearchTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	query, _ := args["query"].(string)
	maxResults := int64(10)
	if v, ok := args["max_results"].(float64); ok && v > 0 {
		maxResults = int64(v)
	}
	msgs, _, estimate, err := t.client.Search(ctx, query, maxResults, "")
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	out, _ := json.Marshal(map[string]interface{}{"messages": msgs, "estimated_total": estimate})
	return &domaintool.Result{Output: string(out), Success: true}, nil
}

// GmailSendTool sends a new email immediately. Risk-high: it always goes
// through the gmail_send confirmation flow rather than executing inline.
type GmailSendTool struct {
	client GmailClient
	logger *zap.Logger
}

func NewGmailSendTool(client GmailClient, logger *zap.Logger) *GmailSendTool {
	return &GmailSendTool{client: client, logger: logger}
}

func (t *GmailSendTool) Name() string        { return "gmail_send_email" }
func (t *GmailSendTool) Description() string { return "Send an email from the owner's mailbox." }
func (t *GmailSendTool) Kind() domaintool.Kind { return domaintool.KindEdit }
func (t *GmailSendTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"to":      map[string]interface{}{"type": "string"},
			"subject": map[string]interface{}{"type": "string"},
			"body":    map[string]interface{}{"type": "string"},
		},
		"required": []string{"to", "subject", "body"},
	}
}

func (t *GmailSendTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	to, _ := args["to"].(string)
	subject, _ := args["subject"].(string)
	body, _ := args["body"].(string)
	id, err := t.client.Send(ctx, to, subject, body)
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	return &domaintool.Result{Output: fmt.Sprintf("sent message %s", id), Success: true}, nil
}

// GmailSendDraftTool saves a draft instead of sending, for the
// lower-confidence band where the decision authority prefers a draft
// over an outright send.
type GmailSendDraftTool struct {
	client GmailClient
	logger *zap.Logger
}

func NewGmailSendDraftTool(client GmailClient, logger *zap.Logger) *GmailSendDraftTool {
	return &GmailSendDraftTool{client: client, logger: logger}
}

func (t *GmailSendDraftTool) Name() string        { return "gmail_send_draft" }
func (t *GmailSendDraftTool) Description() string { return "Save an email as a draft in the owner's mailbox without sending it." }
func (t *GmailSendDraftTool) Kind() domaintool.Kind { return domaintool.KindEdit }
func (t *GmailSendDraftTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"to":      map[string]interface{}{"type": "string"},
			"subject": map[string]interface{}{"type": "string"},
			"body":    map[string]interface{}{"type": "string"},
		},
		"required": []string{"to", "subject", "body"},
	}
}

func (t *GmailSendDraftTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	to, _ := args["to"].(string)
	subject, _ := args["subject"].(string)
	body, _ := args["body"].(string)
	id, err := t.client.SaveDraft(ctx, to, subject, body)
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	return &domaintool.Result{Output: fmt.Sprintf("saved draft %s", id), Success: true}, nil
}
