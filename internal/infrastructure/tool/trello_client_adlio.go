package tool

import (
	"context"
	"fmt"

	"github.com/adlio/trello"
	"go.uber.org/zap"
)

// AdlioTrelloClient implements TrelloClient over github.com/adlio/trello,
// scoped to a single configured board (the owner's one task board — §4.3
// has no notion of switching boards mid-conversation).
type AdlioTrelloClient struct {
	client  *trello.Client
	boardID string
	logger  *zap.Logger
}

// NewAdlioTrelloClient builds a Trello client for the configured board.
func NewAdlioTrelloClient(apiKey, token, boardID string, logger *zap.Logger) *AdlioTrelloClient {
	return &AdlioTrelloClient{
		client:  trello.NewClient(apiKey, token),
		boardID: boardID,
		logger:  logger,
	}
}

// ListCards implements TrelloClient.
func (c *AdlioTrelloClient) ListCards(ctx context.Context, listName string, maxResults int) ([]TrelloCard, error) {
	list, err := c.findList(listName)
	if err != nil {
		return nil, err
	}
	cards, err := list.GetCards(trello.Defaults())
	if err != nil {
		return nil, fmt.Errorf("trello: list cards on %q: %w", listName, err)
	}
	if maxResults > 0 && len(cards) > maxResults {
		cards = cards[:maxResults]
	}
	out := make([]TrelloCard, len(cards))
	for i, card := range cards {
		out[i] = toTrelloCard(card, listName)
	}
	return out, nil
}

// CardStatus implements TrelloClient.
func (c *AdlioTrelloClient) CardStatus(ctx context.Context, cardID string) (TrelloCard, error) {
	card, err := c.client.GetCard(cardID, trello.Defaults())
	if err != nil {
		return TrelloCard{}, fmt.Errorf("trello: get card %s: %w", cardID, err)
	}
	listName := c.listNameOf(card)
	return toTrelloCard(card, listName), nil
}

// CreateCard implements TrelloClient.
func (c *AdlioTrelloClient) CreateCard(ctx context.Context, listName, name, description string) (TrelloCard, error) {
	list, err := c.findList(listName)
	if err != nil {
		return TrelloCard{}, err
	}
	card := &trello.Card{Name: name, Desc: description}
	if err := list.AddCard(card, trello.Defaults()); err != nil {
		return TrelloCard{}, fmt.Errorf("trello: create card on %q: %w", listName, err)
	}
	return toTrelloCard(card, listName), nil
}

// MoveCard implements TrelloClient.
func (c *AdlioTrelloClient) MoveCard(ctx context.Context, cardID, toListName string) (TrelloCard, error) {
	card, err := c.client.GetCard(cardID, trello.Defaults())
	if err != nil {
		return TrelloCard{}, fmt.Errorf("trello: get card %s: %w", cardID, err)
	}
	list, err := c.findList(toListName)
	if err != nil {
		return TrelloCard{}, err
	}
	if err := card.MoveToList(list.ID, trello.Defaults()); err != nil {
		return TrelloCard{}, fmt.Errorf("trello: move card %s to %q: %w", cardID, toListName, err)
	}
	return toTrelloCard(card, toListName), nil
}

// AddComment implements TrelloClient.
func (c *AdlioTrelloClient) AddComment(ctx context.Context, cardID, text string) error {
	card, err := c.client.GetCard(cardID, trello.Defaults())
	if err != nil {
		return fmt.Errorf("trello: get card %s: %w", cardID, err)
	}
	if _, err := card.AddComment(text, trello.Defaults()); err != nil {
		return fmt.Errorf("trello: comment on card %s: %w", cardID, err)
	}
	return nil
}

func (c *AdlioTrelloClient) findList(listName string) (*trello.List, error) {
	board, err := c.client.GetBoard(c.boardID, trello.Defaults())
	if err != nil {
		return nil, fmt.Errorf("trello: get board: %w", err)
	}
	lists, err := board.GetLists(trello.Defaults())
	if err != nil {
		return nil, fmt.Errorf("trello: get lists: %w", err)
	}
	for _, l := range lists {
		if l.Name == listName {
			return l, nil
		}
	}
	return nil, fmt.Errorf("trello: no list named %q on board", listName)
}

func (c *AdlioTrelloClient) listNameOf(card *trello.Card) string {
	list, err := c.client.GetList(card.IDList, trello.Defaults())
	if err != nil {
		c.logger.Warn("trello: resolve list name failed", zap.String("card_id", card.ID), zap.Error(err))
		return ""
	}
	return list.Name
}

func toTrelloCard(card *trello.Card, listName string) TrelloCard {
	due := ""
	if card.Due != nil {
		due = *card.Due
	}
	return TrelloCard{
		ID:       card.ID,
		Name:     card.Name,
		ListName: listName,
		URL:      card.ShortURL,
		Due:      due,
	}
}
