package tool

import (
	"context"
	"encoding/json"

	domaintool "github.com/ngoclaw/ngoclaw/gateway/internal/domain/tool"
	"go.uber.org/zap"
)

// TrelloListCardsTool lists cards in a named list, read-only.
type TrelloListCardsTool struct {
	client TrelloClient
	logger *zap.Logger
}

func NewTrelloListCardsTool(client TrelloClient, logger *zap.Logger) *TrelloListCardsTool {
	return &TrelloListCardsTool{client: client, logger: logger}
}

func (t *TrelloListCardsTool) Name() string        { return "trello_list_cards" }
func (t *TrelloListCardsTool) Description() string { return "List cards on the owner's task board within a named list." }
func (t *TrelloListCardsTool) Kind() domaintool.Kind { return domaintool.KindRead }
func (t *TrelloListCardsTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"list_name": map[string]interface{}{"type": "string"},
		},
		"required": []string{"list_name"},
	}
}

func (t *TrelloListCardsTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	listName, _ := args["list_name"].(string)
	cards, err := t.client.ListCards(ctx, listName, 50)
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	out, _ := json.Marshal(cards)
	return &domaintool.Result{Output: string(out), Success: true}, nil
}

// TrelloCardStatusTool fetches a single card by ID, read-only.
type TrelloCardStatusTool struct {
	client TrelloClient
	logger *zap.Logger
}

func NewTrelloCardStatusTool(client TrelloClient, logger *zap.Logger) *TrelloCardStatusTool {
	return &TrelloCardStatusTool{client: client, logger: logger}
}

func (t *TrelloCardStatusTool) Name() string        { return "trello_get_card_status" }
func (t *TrelloCardStatusTool) Description() string { return "Get the current list and details of one task board card." }
func (t *TrelloCardStatusTool) Kind() domaintool.Kind { return domaintool.KindRead }
func (t *TrelloCardStatusTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"card_id": map[string]interface{}{"type": "string"},
		},
		"required": []string{"card_id"},
	}
}

func (t *TrelloCardStatusTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	cardID, _ := args["card_id"].(string)
	card, err := t.client.CardStatus(ctx, cardID)
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	out, _ := json.Marshal(card)
	return &domaintool.Result{Output: string(out), Success: true}, nil
}

// TrelloDispatchTool is the generic task-board mutation the
// trello_dispatch flow confirms before invoking: create, move, or
// comment on a card. The flow layer (internal/domain/flow) owns
// confirmation; this tool performs the mutation once confirmed.
type TrelloDispatchTool struct {
	client TrelloClient
	logger *zap.Logger
}

func NewTrelloDispatchTool(client TrelloClient, logger *zap.Logger) *TrelloDispatchTool {
	return &TrelloDispatchTool{client: client, logger: logger}
}

func (t *TrelloDispatchTool) Name() string        { return "trello_dispatch" }
func (t *TrelloDispatchTool) Description() string { return "Create, move, or comment on a task board card." }
func (t *TrelloDispatchTool) Kind() domaintool.Kind { return domaintool.KindEdit }
func (t *TrelloDispatchTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action":    map[string]interface{}{"type": "string", "enum": []string{"create", "move", "comment"}},
			"card_id":   map[string]interface{}{"type": "string"},
			"list_name": map[string]interface{}{"type": "string"},
			"name":      map[string]interface{}{"type": "string"},
			"text":      map[string]interface{}{"type": "string"},
		},
		"required": []string{"action"},
	}
}

func (t *TrelloDispatchTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	action, _ := args["action"].(string)
	cardID, _ := args["card_id"].(string)
	listName, _ := args["list_name"].(string)
	name, _ := args["name"].(string)
	text, _ := args["text"].(string)

	switch action {
	case "create":
		card, err := t.client.CreateCard(ctx, listName, name, text)
		if err != nil {
			return &domaintool.Result{Success: false, Error: err.Error()}, nil
		}
		out, _ := json.Marshal(card)
		return &domaintool.Result{Output: string(out), Success: true}, nil
	case "move":
		card, err := t.client.MoveCard(ctx, cardID, listName)
		if err != nil {
			return &domaintool.Result{Success: false, Error: err.Error()}, nil
		}
		out, _ := json.Marshal(card)
		return &domaintool.Result{Output: string(out), Success: true}, nil
	case "comment":
		if err := t.client.AddComment(ctx, cardID, text); err != nil {
			return &domaintool.Result{Success: false, Error: err.Error()}, nil
		}
		return &domaintool.Result{Output: "comment added", Success: true}, nil
	default:
		return &domaintool.Result{Success: false, Error: "unknown trello_dispatch action: " + action}, nil
	}
}
