package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medword/internal/model"
	"medword/internal/pkg/apperr"
	"medword/internal/status"
)

func newReadyStore(t *testing.T, b *fakeChatBackend, pub JournalPublisher) (*SessionStore, *fakeDoc) {
	t.Helper()
	doc := &fakeDoc{body: docOfLength(200)}
	s := NewSessionStore(b, doc, pub, SessionStoreConfig{}, nil)
	t.Cleanup(s.Close)
	require.NoError(t, s.Initialize(context.Background()))
	return s, doc
}

func TestInitializeDocumentLength(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"49 characters", docOfLength(49), true},
		{"49 characters padded", "   " + docOfLength(49) + "\n\n", true},
		{"50 characters", docOfLength(50), false},
		{"50 runes of cjk", strings.Repeat("试", 50), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSessionStore(&fakeChatBackend{}, &fakeDoc{body: tc.body}, nil, SessionStoreConfig{}, nil)
			err := s.Initialize(context.Background())

			view := s.Snapshot()
			require.NotNil(t, view.CurrentSessionID)
			if tc.wantErr {
				assert.True(t, errors.Is(err, apperr.ErrValidation))
				assert.True(t, errors.Is(err, ErrDocumentTooShort))
				assert.Equal(t, status.Error, view.Status)
				require.NotNil(t, view.LastError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, status.Ready, view.Status)
			assert.Nil(t, view.LastError)
		})
	}
}

func TestInitializeRetryAfterFailure(t *testing.T) {
	doc := &fakeDoc{body: "too short"}
	s := NewSessionStore(&fakeChatBackend{}, doc, nil, SessionStoreConfig{}, nil)
	require.Error(t, s.Initialize(context.Background()))

	doc.setBody(docOfLength(80))
	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, status.Ready, s.Snapshot().Status)
	assert.Len(t, s.Snapshot().Sessions, 1)

	// already initialized: nothing changes
	require.NoError(t, s.Initialize(context.Background()))
	assert.Len(t, s.Snapshot().Sessions, 1)
}

func TestSendPrimaryEndpointScenario(t *testing.T) {
	b := &fakeChatBackend{reply: "The primary endpoint is overall survival."}
	s, _ := newReadyStore(t, b, nil)
	s.CreateSession()

	sess, err := s.SendMessage(context.Background(), "What is the primary endpoint?", docOfLength(200), nil)
	require.NoError(t, err)

	require.Len(t, sess.Messages, 2)
	assert.Equal(t, model.ChatMessage{Content: "What is the primary endpoint?", IsUser: true}, sess.Messages[0])
	assert.Equal(t, model.ChatMessage{Content: "The primary endpoint is overall survival."}, sess.Messages[1])
	assert.Equal(t, status.Ready, s.Snapshot().Status)
	assert.Empty(t, b.lastRequest().History)
}

func TestSendBuildsEvenHistory(t *testing.T) {
	b := &fakeChatBackend{reply: "ok"}
	s, _ := newReadyStore(t, b, nil)
	ctx := context.Background()

	for i := range 3 {
		sess, err := s.SendMessage(ctx, "question", docOfLength(60), []string{"src-1"})
		require.NoError(t, err)
		assert.Len(t, sess.Messages, 2*(i+1))

		history := b.lastRequest().History
		assert.Len(t, history, 2*i)
		for j, turn := range history {
			if j%2 == 0 {
				assert.Equal(t, model.RoleUser, turn.Role)
			} else {
				assert.Equal(t, model.RoleAssistant, turn.Role)
			}
		}
	}
	assert.Equal(t, []string{"src-1"}, b.lastRequest().SourceIDs)
}

func TestPairHistoryDropsTrailingMessage(t *testing.T) {
	msgs := []model.ChatMessage{
		{Content: "q1", IsUser: true},
		{Content: "a1"},
		{Content: "q2", IsUser: true},
	}
	turns := pairHistory(msgs)
	assert.Equal(t, []model.HistoryTurn{
		{Role: model.RoleUser, Content: "q1"},
		{Role: model.RoleAssistant, Content: "a1"},
	}, turns)
	assert.Empty(t, pairHistory(msgs[:1]))
	assert.Empty(t, pairHistory(nil))
}

func TestSendRejectedWhileLoading(t *testing.T) {
	b := &fakeChatBackend{reply: "first", gate: make(chan struct{})}
	s, _ := newReadyStore(t, b, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.SendMessage(context.Background(), "first", docOfLength(60), nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return s.Snapshot().Status == status.Loading }, time.Second, time.Millisecond)

	_, err := s.SendMessage(context.Background(), "second", docOfLength(60), nil)
	assert.True(t, errors.Is(err, apperr.ErrBusy))
	current, _ := s.CurrentSession()
	assert.Empty(t, current.Messages)
	assert.Equal(t, 1, b.callCount())

	close(b.gate)
	require.NoError(t, <-done)
	current, _ = s.CurrentSession()
	assert.Len(t, current.Messages, 2)
}

func TestSendFailureAppendsNothing(t *testing.T) {
	b := &fakeChatBackend{err: apperr.InvalidResponse("chat", "response field missing")}
	s, _ := newReadyStore(t, b, nil)

	_, err := s.SendMessage(context.Background(), "question", docOfLength(60), nil)
	assert.True(t, errors.Is(err, apperr.ErrInvalidResponse))
	view := s.Snapshot()
	assert.Equal(t, status.Error, view.Status)
	require.NotNil(t, view.LastError)
	assert.Equal(t, "response field missing", *view.LastError)
	assert.Empty(t, view.Sessions[0].Messages)

	b.mu.Lock()
	b.err, b.reply = nil, "answer"
	b.mu.Unlock()
	sess, err := s.SendMessage(context.Background(), "question", docOfLength(60), nil)
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 2)
	assert.Equal(t, status.Ready, s.Snapshot().Status)
}

func TestSendPreconditions(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		doc      string
		sentinel error
	}{
		{"empty text", "   ", docOfLength(60), ErrMessageEmpty},
		{"short document", "question", docOfLength(49), ErrDocumentTooShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &fakeChatBackend{reply: "x"}
			s, _ := newReadyStore(t, b, nil)

			_, err := s.SendMessage(context.Background(), tc.text, tc.doc, nil)
			assert.True(t, errors.Is(err, apperr.ErrValidation))
			assert.True(t, errors.Is(err, tc.sentinel))
			assert.Equal(t, status.Error, s.Snapshot().Status)
			assert.Equal(t, 0, b.callCount())
		})
	}
}

func TestSendNeedsInitialization(t *testing.T) {
	s := NewSessionStore(&fakeChatBackend{reply: "x"}, &fakeDoc{}, nil, SessionStoreConfig{}, nil)
	s.CreateSession()

	_, err := s.SendMessage(context.Background(), "question", docOfLength(60), nil)
	assert.True(t, errors.Is(err, apperr.ErrBusy))
	assert.Equal(t, status.Idle, s.Snapshot().Status)
}

func TestSendFromDocumentReadsBody(t *testing.T) {
	b := &fakeChatBackend{reply: "answer"}
	s, doc := newReadyStore(t, b, nil)
	doc.setBody("  " + docOfLength(120) + "  ")

	_, err := s.SendFromDocument(context.Background(), "question", nil)
	require.NoError(t, err)
	assert.Equal(t, "  "+docOfLength(120)+"  ", b.lastRequest().DocumentText)

	doc.setBody(docOfLength(10))
	_, err = s.SendFromDocument(context.Background(), "question", nil)
	assert.True(t, errors.Is(err, ErrDocumentTooShort))
}

func TestDeleteSessionPromotesFirstRemaining(t *testing.T) {
	s := NewSessionStore(&fakeChatBackend{}, &fakeDoc{}, nil, SessionStoreConfig{}, nil)
	a := s.CreateSession()
	b := s.CreateSession()
	require.NoError(t, s.SwitchSession(a.ID))

	s.DeleteSession(a.ID)
	view := s.Snapshot()
	require.NotNil(t, view.CurrentSessionID)
	assert.Equal(t, b.ID, *view.CurrentSessionID)

	s.DeleteSession("missing")
	assert.Len(t, s.Snapshot().Sessions, 1)

	s.DeleteSession(b.ID)
	view = s.Snapshot()
	assert.Nil(t, view.CurrentSessionID)
	assert.Empty(t, view.Sessions)
}

func TestDeleteOtherSessionKeepsCurrent(t *testing.T) {
	s := NewSessionStore(&fakeChatBackend{}, &fakeDoc{}, nil, SessionStoreConfig{}, nil)
	a := s.CreateSession()
	b := s.CreateSession()

	s.DeleteSession(a.ID)
	assert.Equal(t, b.ID, *s.Snapshot().CurrentSessionID)
}

func TestSwitchSessionUnknown(t *testing.T) {
	s := NewSessionStore(&fakeChatBackend{}, &fakeDoc{}, nil, SessionStoreConfig{}, nil)
	a := s.CreateSession()

	err := s.SwitchSession("missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, a.ID, *s.Snapshot().CurrentSessionID)
}

func TestDeletedSessionDropsReply(t *testing.T) {
	b := &fakeChatBackend{reply: "late", gate: make(chan struct{})}
	s, _ := newReadyStore(t, b, nil)
	current, _ := s.CurrentSession()

	done := make(chan error, 1)
	go func() {
		_, err := s.SendMessage(context.Background(), "question", docOfLength(60), nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return b.callCount() == 1 }, time.Second, time.Millisecond)
	s.DeleteSession(current.ID)
	close(b.gate)

	assert.True(t, errors.Is(<-done, apperr.ErrNotFound))
	assert.Empty(t, s.Snapshot().Sessions)
}

func TestResetDiscardsInFlightReply(t *testing.T) {
	b := &fakeChatBackend{reply: "late", gate: make(chan struct{})}
	s, _ := newReadyStore(t, b, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.SendMessage(context.Background(), "question", docOfLength(60), nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return b.callCount() == 1 }, time.Second, time.Millisecond)
	s.Reset()
	close(b.gate)

	assert.True(t, errors.Is(<-done, ErrDiscarded))
	view := s.Snapshot()
	assert.Equal(t, status.Idle, view.Status)
	assert.Empty(t, view.Sessions)
	assert.Nil(t, view.CurrentSessionID)
}

func TestDraftClearedAfterSend(t *testing.T) {
	s, _ := newReadyStore(t, &fakeChatBackend{reply: "ok"}, nil)
	s.SetDraft("question")
	assert.Equal(t, "question", s.Draft())

	_, err := s.SendMessage(context.Background(), s.Draft(), docOfLength(60), nil)
	require.NoError(t, err)
	assert.Empty(t, s.Draft())
}

func TestJournalEvents(t *testing.T) {
	pub := &recordingPublisher{}
	s, _ := newReadyStore(t, &fakeChatBackend{reply: "ok"}, pub)
	ctx := context.Background()

	_, err := s.SendMessage(ctx, "q1", docOfLength(60), nil)
	require.NoError(t, err)
	_, err = s.SendMessage(ctx, "q2", docOfLength(60), nil)
	require.NoError(t, err)
	current, _ := s.CurrentSession()
	s.DeleteSession(current.ID)

	assert.Equal(t, []string{
		model.JournalSessionCreated,
		model.JournalTurnAppended,
		model.JournalTurnAppended,
		model.JournalSessionDeleted,
	}, pub.types())
	assert.Equal(t, 0, pub.events[1].Offset)
	assert.Equal(t, 2, pub.events[2].Offset)
	assert.Len(t, pub.events[2].Messages, 2)
}

func TestRestoreSessions(t *testing.T) {
	s := NewSessionStore(&fakeChatBackend{}, &fakeDoc{body: docOfLength(60)}, nil, SessionStoreConfig{}, nil)
	loader := staticLoader{
		{ID: "s1", Messages: []model.ChatMessage{{Content: "q", IsUser: true}, {Content: "a"}}},
		{ID: "s2"},
	}

	n, err := s.Restore(context.Background(), loader)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "s2", *s.Snapshot().CurrentSessionID)

	n, err = s.Restore(context.Background(), loader)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Initialize(context.Background()))
	assert.Len(t, s.Snapshot().Sessions, 2)
}
