package model

import "time"

// MessageRecord is one persisted chat message. Seq keeps the in-session order.
type MessageRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:36;not null;uniqueIndex:idx_session_seq" json:"session_id"`
	Seq       int       `gorm:"not null;uniqueIndex:idx_session_seq" json:"seq"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (MessageRecord) TableName() string {
	return "chat_messages"
}

func (r MessageRecord) ChatMessage() ChatMessage {
	return ChatMessage{Content: r.Content, IsUser: r.Role == RoleUser}
}
