package model

import (
	"time"

	"gorm.io/gorm"
)

// SessionRecord persists a chat session when the persist policy is on. A
// deleted session keeps its row as a tombstone so late journal events cannot
// bring it back.
type SessionRecord struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (SessionRecord) TableName() string {
	return "chat_sessions"
}
