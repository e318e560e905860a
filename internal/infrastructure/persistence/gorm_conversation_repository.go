package persistence

import (
	"context"
	"encoding/json"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/entity"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/ngoclaw/ngoclaw/gateway/pkg/errors"
	"gorm.io/gorm"
)

// GormConversationRepository is the GORM-backed repository.ConversationRepository:
// one row per persisted turn, ordered by creation time.
type GormConversationRepository struct {
	db *gorm.DB
}

// NewGormConversationRepository creates a GORM conversation repository.
func NewGormConversationRepository(db *gorm.DB) repository.ConversationRepository {
	return &GormConversationRepository{db: db}
}

// Save appends one turn to the log.
func (r *GormConversationRepository) Save(ctx context.Context, turn *entity.ConversationTurn) error {
	model, err := r.toModel(turn)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save conversation turn: " + err.Error())
	}
	return nil
}

// FindRecent returns the most recent turns for a user, oldest first.
func (r *GormConversationRepository) FindRecent(ctx context.Context, userID int64, limit int) ([]*entity.ConversationTurn, error) {
	var rows []models.ConversationTurnModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to load conversation history: " + err.Error())
	}

	turns := make([]*entity.ConversationTurn, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		turn, err := r.toEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// DeleteBefore prunes everything but the most recent keepLast turns.
func (r *GormConversationRepository) DeleteBefore(ctx context.Context, userID int64, keepLast int) error {
	var cutoffID uint
	err := r.db.WithContext(ctx).
		Model(&models.ConversationTurnModel{}).
		Select("id").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(keepLast).
		Limit(1).
		Scan(&cutoffID).Error
	if err != nil {
		return domainErrors.NewInternalError("failed to resolve prune cutoff: " + err.Error())
	}
	if cutoffID == 0 {
		return nil // fewer than keepLast turns stored, nothing to prune
	}
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND id <= ?", userID, cutoffID).
		Delete(&models.ConversationTurnModel{}).Error
	if err != nil {
		return domainErrors.NewInternalError("failed to prune conversation history: " + err.Error())
	}
	return nil
}

func (r *GormConversationRepository) toModel(turn *entity.ConversationTurn) (*models.ConversationTurnModel, error) {
	metaBytes, err := json.Marshal(turn.Metadata())
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to marshal turn metadata: " + err.Error())
	}
	return &models.ConversationTurnModel{
		UserID:    turn.UserID(),
		Role:      string(turn.Role()),
		Content:   turn.Content(),
		Metadata:  string(metaBytes),
		CreatedAt: turn.CreatedAt(),
	}, nil
}

func (r *GormConversationRepository) toEntity(model *models.ConversationTurnModel) (*entity.ConversationTurn, error) {
	var metadata map[string]interface{}
	if model.Metadata != "" {
		if err := json.Unmarshal([]byte(model.Metadata), &metadata); err != nil {
			metadata = make(map[string]interface{})
		}
	}
	return entity.ReconstructConversationTurn(
		model.ID,
		model.UserID,
		entity.ConversationRole(model.Role),
		model.Content,
		metadata,
		model.CreatedAt.UTC(),
	), nil
}
