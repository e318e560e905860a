package persistence

import (
	"context"
	"strings"

	"github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/ngoclaw/ngoclaw/gateway/pkg/errors"
	"gorm.io/gorm"
)

// GormMemoryStore is the GORM-backed long-term memory store. It serves
// two distinct callers: service.MemoryPersister (the background
// after-turn fact extractor, which has no per-user scoping in its
// interface) and tool.MemoryWriter (the save_memory tool, explicitly
// scoped to the acting user).
type GormMemoryStore struct {
	db *gorm.DB
}

// NewGormMemoryStore creates a GORM memory store.
func NewGormMemoryStore(db *gorm.DB) *GormMemoryStore {
	return &GormMemoryStore{db: db}
}

// SaveFact implements service.MemoryPersister.
func (s *GormMemoryStore) SaveFact(content, category string, confidence float64, source string) error {
	row := models.MemoryFactModel{Content: content, Category: category, Confidence: confidence, Source: source}
	if err := s.db.Create(&row).Error; err != nil {
		return domainErrors.NewInternalError("failed to save memory fact: " + err.Error())
	}
	return nil
}

// IsDuplicate implements service.MemoryPersister: a case-insensitive
// exact-content match against everything stored so far.
func (s *GormMemoryStore) IsDuplicate(content string) bool {
	var count int64
	if err := s.db.Model(&models.MemoryFactModel{}).
		Where("LOWER(content) = ?", strings.ToLower(content)).
		Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// SaveNote implements tool.MemoryWriter: a user-scoped note saved
// explicitly by the model via the save_memory tool, rather than the
// background extractor.
func (s *GormMemoryStore) SaveNote(ctx context.Context, userID int64, note string) error {
	row := models.MemoryFactModel{UserID: userID, Content: note, Source: "save_memory", Confidence: 1.0}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domainErrors.NewInternalError("failed to save memory note: " + err.Error())
	}
	return nil
}
