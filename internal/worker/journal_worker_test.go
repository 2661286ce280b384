package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medword/internal/model"
)

type memoryJournal struct {
	sessions map[string]time.Time
	deleted  map[string]bool
	messages map[string][]model.ChatMessage
	failNext error
}

func newMemoryJournal() *memoryJournal {
	return &memoryJournal{sessions: map[string]time.Time{}, deleted: map[string]bool{}, messages: map[string][]model.ChatMessage{}}
}

func (m *memoryJournal) Create(ctx context.Context, sessionID string, createdAt time.Time) error {
	if _, ok := m.sessions[sessionID]; !ok && !m.deleted[sessionID] {
		m.sessions[sessionID] = createdAt
	}
	return nil
}

func (m *memoryJournal) Delete(ctx context.Context, sessionID string) error {
	delete(m.sessions, sessionID)
	delete(m.messages, sessionID)
	m.deleted[sessionID] = true
	return nil
}

func (m *memoryJournal) Deleted(ctx context.Context, sessionID string) (bool, error) {
	return m.deleted[sessionID], nil
}

func (m *memoryJournal) Touch(ctx context.Context, sessionID string, at time.Time) error {
	return nil
}

func (m *memoryJournal) AppendTurn(ctx context.Context, sessionID string, offset int, messages []model.ChatMessage, at time.Time) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	stored := m.messages[sessionID]
	for i, msg := range messages {
		if offset+i < len(stored) {
			continue
		}
		stored = append(stored, msg)
	}
	m.messages[sessionID] = stored
	return nil
}

func TestApplyJournalEvents(t *testing.T) {
	j := newMemoryJournal()
	w := NewJournalWorker(nil, j, j, "journal", nil)
	ctx := context.Background()
	turn := []model.ChatMessage{{Content: "q", IsUser: true}, {Content: "a"}}

	require.NoError(t, w.Apply(ctx, model.JournalEvent{Type: model.JournalSessionCreated, SessionID: "s1"}))
	require.NoError(t, w.Apply(ctx, model.JournalEvent{Type: model.JournalTurnAppended, SessionID: "s1", Messages: turn}))
	// redelivery of the same turn
	require.NoError(t, w.Apply(ctx, model.JournalEvent{Type: model.JournalTurnAppended, SessionID: "s1", Messages: turn}))
	require.NoError(t, w.Apply(ctx, model.JournalEvent{Type: model.JournalTurnAppended, SessionID: "s1", Offset: 2, Messages: turn}))
	assert.Len(t, j.messages["s1"], 4)

	// turn for a session whose create event never arrived
	require.NoError(t, w.Apply(ctx, model.JournalEvent{Type: model.JournalTurnAppended, SessionID: "s2", Messages: turn}))
	assert.Contains(t, j.sessions, "s2")

	require.NoError(t, w.Apply(ctx, model.JournalEvent{Type: model.JournalSessionDeleted, SessionID: "s1"}))
	assert.NotContains(t, j.sessions, "s1")
	assert.Empty(t, j.messages["s1"])

	assert.Error(t, w.Apply(ctx, model.JournalEvent{Type: "renamed", SessionID: "s1"}))
}

func TestApplyReturnsWriterError(t *testing.T) {
	j := newMemoryJournal()
	j.failNext = errors.New("db down")
	w := NewJournalWorker(nil, j, j, "journal", nil)

	err := w.Apply(context.Background(), model.JournalEvent{Type: model.JournalTurnAppended, SessionID: "s1", Messages: []model.ChatMessage{{Content: "q", IsUser: true}}})
	assert.EqualError(t, err, "db down")
}

func TestCloseWithoutStart(t *testing.T) {
	w := NewJournalWorker(nil, newMemoryJournal(), newMemoryJournal(), "journal", nil)
	w.Close()
}

func TestTurnRedeliveredAfterDeleteIsDropped(t *testing.T) {
	j := newMemoryJournal()
	w := NewJournalWorker(nil, j, j, "journal", nil)
	ctx := context.Background()
	turn := []model.ChatMessage{{Content: "q", IsUser: true}, {Content: "a"}}

	require.NoError(t, w.Apply(ctx, model.JournalEvent{Type: model.JournalSessionCreated, SessionID: "s1"}))
	require.NoError(t, w.Apply(ctx, model.JournalEvent{Type: model.JournalSessionDeleted, SessionID: "s1"}))
	// a requeued turn that lands after the delete
	require.NoError(t, w.Apply(ctx, model.JournalEvent{Type: model.JournalTurnAppended, SessionID: "s1", Messages: turn}))
	require.NoError(t, w.Apply(ctx, model.JournalEvent{Type: model.JournalSessionCreated, SessionID: "s1"}))

	assert.NotContains(t, j.sessions, "s1")
	assert.Empty(t, j.messages["s1"])
}
