package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medword/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a session. Creating a session that already exists, deleted or
// not, is a no-op so redelivered journal events are harmless.
func (r *SessionRepository) Create(ctx context.Context, sessionID string, createdAt time.Time) error {
	rec := model.SessionRecord{ID: sessionID, CreatedAt: createdAt, UpdatedAt: createdAt}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

// Delete removes the messages of a session and leaves the session row as a
// soft-deleted tombstone.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.MessageRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", sessionID).Delete(&model.SessionRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete session failed: %w", err)
	}
	return nil
}

// Deleted reports whether the session was deleted.
func (r *SessionRepository) Deleted(ctx context.Context, sessionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&model.SessionRecord{}).
		Where("id = ? AND deleted_at IS NOT NULL", sessionID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check session tombstone failed: %w", err)
	}
	return count > 0, nil
}

// Touch bumps the session's update time after a new turn.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.SessionRecord{}).
		Where("id = ?", sessionID).
		Update("updated_at", at).Error
	if err != nil {
		return fmt.Errorf("touch session failed: %w", err)
	}
	return nil
}

// LoadSessions returns every stored session with its messages, oldest first.
func (r *SessionRepository) LoadSessions(ctx context.Context) ([]model.ChatSession, error) {
	var sessions []model.SessionRecord
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	var messages []model.MessageRecord
	if err := r.db.WithContext(ctx).Order("session_id ASC, seq ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	bySession := make(map[string][]model.ChatMessage, len(sessions))
	for _, m := range messages {
		bySession[m.SessionID] = append(bySession[m.SessionID], m.ChatMessage())
	}

	out := make([]model.ChatSession, 0, len(sessions))
	for _, s := range sessions {
		msgs := bySession[s.ID]
		if msgs == nil {
			msgs = []model.ChatMessage{}
		}
		out = append(out, model.ChatSession{ID: s.ID, Messages: msgs, CreatedAt: s.CreatedAt})
	}
	return out, nil
}
