package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is immutable once appended to a session.
type ChatMessage struct {
	Content string `json:"content"`
	IsUser  bool   `json:"is_user"`
}

type ChatSession struct {
	ID        string        `json:"id"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
}

// Clone returns a copy whose message slice does not alias the original.
func (s ChatSession) Clone() ChatSession {
	out := s
	out.Messages = append([]ChatMessage(nil), s.Messages...)
	return out
}

// HistoryTurn is one entry of the role-alternating history sent to the backend.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
