package models

import (
	"time"
)

// ConversationTurnModel is the persisted row backing
// repository.ConversationRepository: one row per user/assistant/tool
// message in a user's running history.
type ConversationTurnModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    int64  `gorm:"index;not null"`
	Role      string `gorm:"size:16;not null"`
	Content   string `gorm:"type:text;not null"`
	Metadata  string `gorm:"type:text"` // JSON encoded
	CreatedAt time.Time `gorm:"index"`
}

// TableName 指定表名
func (ConversationTurnModel) TableName() string {
	return "conversation_turns"
}
