package tool

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GoogleGmailClient implements GmailClient over the real Gmail API
// (google.golang.org/api/gmail/v1), the concrete counterpart to the
// narrow GmailClient port the LLM-facing tools (gmail_tools.go) call.
type GoogleGmailClient struct {
	svc    *gmail.Service
	logger *zap.Logger
}

// NewGoogleGmailClient builds a Gmail client authenticated via ts, the
// oauth2.TokenSource produced by internal/infrastructure/googleauth.
func NewGoogleGmailClient(ctx context.Context, ts oauth2.TokenSource, logger *zap.Logger) (*GoogleGmailClient, error) {
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("gmail: create service: %w", err)
	}
	return &GoogleGmailClient{svc: svc, logger: logger}, nil
}

// Search implements GmailClient.
func (c *GoogleGmailClient) Search(ctx context.Context, query string, maxResults int64, pageToken string) ([]GmailMessage, string, int, error) {
	call := c.svc.Users.Messages.List("me").Q(query).MaxResults(maxResults)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, "", 0, fmt.Errorf("gmail: list messages: %w", err)
	}

	msgs := make([]GmailMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		full, err := c.svc.Users.Messages.Get("me", m.Id).Format("metadata").
			MetadataHeaders("Subject", "From", "Date").Context(ctx).Do()
		if err != nil {
			c.logger.Warn("gmail: get message metadata failed", zap.String("id", m.Id), zap.Error(err))
			continue
		}
		msgs = append(msgs, toGmailMessage(full))
	}

	estimate := int(resp.ResultSizeEstimate)
	if estimate == 0 {
		estimate = len(msgs)
	}
	return msgs, resp.NextPageToken, estimate, nil
}

// Get implements GmailClient.
func (c *GoogleGmailClient) Get(ctx context.Context, messageID string) (GmailMessage, error) {
	full, err := c.svc.Users.Messages.Get("me", messageID).Format("metadata").
		MetadataHeaders("Subject", "From", "Date").Context(ctx).Do()
	if err != nil {
		return GmailMessage{}, fmt.Errorf("gmail: get message %s: %w", messageID, err)
	}
	return toGmailMessage(full), nil
}

// Send implements GmailClient.
func (c *GoogleGmailClient) Send(ctx context.Context, to, subject, body string) (string, error) {
	raw := encodeRFC2822(to, subject, body)
	msg := &gmail.Message{Raw: raw}
	sent, err := c.svc.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail: send: %w", err)
	}
	return sent.Id, nil
}

// SaveDraft implements GmailClient.
func (c *GoogleGmailClient) SaveDraft(ctx context.Context, to, subject, body string) (string, error) {
	raw := encodeRFC2822(to, subject, body)
	draft := &gmail.Draft{Message: &gmail.Message{Raw: raw}}
	created, err := c.svc.Users.Drafts.Create("me", draft).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail: save draft: %w", err)
	}
	return created.Id, nil
}

// Trash implements GmailClient.
func (c *GoogleGmailClient) Trash(ctx context.Context, messageID string) error {
	if _, err := c.svc.Users.Messages.Trash("me", messageID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail: trash %s: %w", messageID, err)
	}
	return nil
}

// Delete implements GmailClient. This is a permanent delete, bypassing
// Trash entirely — callers must already have confirmed this with the
// owner (§4.5.1 distinguishes move_to_trash from permanent_delete).
func (c *GoogleGmailClient) Delete(ctx context.Context, messageID string) error {
	if err := c.svc.Users.Messages.Delete("me", messageID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail: delete %s: %w", messageID, err)
	}
	return nil
}

// MarkRead implements GmailClient.
func (c *GoogleGmailClient) MarkRead(ctx context.Context, messageID string) error {
	mod := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{"UNREAD"}}
	if _, err := c.svc.Users.Messages.Modify("me", messageID, mod).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail: mark read %s: %w", messageID, err)
	}
	return nil
}

func toGmailMessage(m *gmail.Message) GmailMessage {
	out := GmailMessage{ID: m.Id, Snippet: m.Snippet, Labels: m.LabelIds}
	for _, h := range m.Payload.Headers {
		switch h.Name {
		case "From":
			out.From = h.Value
		case "Subject":
			out.Subject = h.Value
		case "Date":
			out.Date = h.Value
		}
	}
	for _, l := range m.LabelIds {
		if l == "UNREAD" {
			out.Unread = true
		}
	}
	return out
}

func encodeRFC2822(to, subject, body string) string {
	var sb strings.Builder
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + subject + "\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	sb.WriteString(body)
	return base64.URLEncoding.EncodeToString([]byte(sb.String()))
}
