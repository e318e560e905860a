package repository

import (
	"context"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/entity"
)

// ConversationRepository persists the append-only per-user conversation
// log (entity.ConversationTurn) that backs history replay into the agent
// loop and the compaction daily log.
type ConversationRepository interface {
	// Save appends one turn (user, assistant, or tool) to the log.
	Save(ctx context.Context, turn *entity.ConversationTurn) error
	// FindRecent returns the most recent turns for a user, oldest first,
	// capped at limit.
	FindRecent(ctx context.Context, userID int64, limit int) ([]*entity.ConversationTurn, error)
	// DeleteBefore prunes turns older than what retention policy keeps.
	DeleteBefore(ctx context.Context, userID int64, keepLast int) error
}
