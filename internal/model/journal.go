package model

import "time"

const (
	JournalSessionCreated = "session_created"
	JournalTurnAppended   = "turn_appended"
	JournalSessionDeleted = "session_deleted"
)

// JournalEvent describes a chat mutation to persist asynchronously.
// For turn_appended, Offset is the index of the first appended message.
type JournalEvent struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id"`
	Offset    int           `json:"offset,omitempty"`
	Messages  []ChatMessage `json:"messages,omitempty"`
	At        time.Time     `json:"at"`
}
