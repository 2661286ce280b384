package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medword/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// AppendTurn stores messages at positions offset, offset+1, ... of a session.
// Positions already stored are skipped.
func (r *MessageRepository) AppendTurn(ctx context.Context, sessionID string, offset int, messages []model.ChatMessage, at time.Time) error {
	if len(messages) == 0 {
		return nil
	}
	records := MessageRecords(sessionID, offset, messages, at)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("append messages failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) CountBySessionID(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.MessageRecord{}).Where("session_id = ?", sessionID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count messages failed: %w", err)
	}
	return n, nil
}

// MessageRecords converts appended chat messages into rows.
func MessageRecords(sessionID string, offset int, messages []model.ChatMessage, at time.Time) []model.MessageRecord {
	out := make([]model.MessageRecord, 0, len(messages))
	for i, m := range messages {
		role := model.RoleAssistant
		if m.IsUser {
			role = model.RoleUser
		}
		out = append(out, model.MessageRecord{
			SessionID: sessionID,
			Seq:       offset + i,
			Role:      role,
			Content:   m.Content,
			CreatedAt: at,
		})
	}
	return out
}
