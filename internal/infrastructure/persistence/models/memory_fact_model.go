package models

import "time"

// MemoryFactModel is the persisted row backing long-term memory: a
// durable fact about the owner or an in-flight task, either extracted
// automatically from conversation endings or saved explicitly via the
// save_memory tool.
type MemoryFactModel struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	UserID     int64     `gorm:"index;not null"`
	Content    string    `gorm:"type:text;not null"`
	Category   string    `gorm:"size:64"`
	Confidence float64   `gorm:""`
	Source     string    `gorm:"size:32"` // "extracted" | "save_memory"
	CreatedAt  time.Time `gorm:"index"`
}

// TableName 指定表名
func (MemoryFactModel) TableName() string {
	return "memory_facts"
}
