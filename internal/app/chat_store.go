package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medword/internal/backend"
	"medword/internal/document"
	"medword/internal/model"
	"medword/internal/pkg/apperr"
	"medword/internal/status"
)

const (
	DefaultMinDocumentChars = 50

	journalPublishTimeout = 2 * time.Second
)

var (
	ErrDocumentTooShort = errors.New("document too short")
	ErrMessageEmpty     = errors.New("message content is empty")
	ErrNoSession        = errors.New("no current session")
	// ErrDiscarded is returned when the store was reset or closed while a
	// request was in flight and its result was dropped.
	ErrDiscarded = apperr.Busy("chat", "store was reset while the request was in flight")
)

type ChatBackend interface {
	Chat(ctx context.Context, req backend.ChatRequest) (string, error)
}

// JournalPublisher receives session mutations when the persist policy is on.
type JournalPublisher interface {
	Publish(ctx context.Context, ev model.JournalEvent) error
}

// SessionLoader returns previously persisted sessions in creation order.
type SessionLoader interface {
	LoadSessions(ctx context.Context) ([]model.ChatSession, error)
}

type SessionStoreConfig struct {
	MinDocumentChars int
}

// ChatView is the observable state of a SessionStore.
type ChatView struct {
	Status           status.Status       `json:"status"`
	CurrentSessionID *string             `json:"current_session_id"`
	Sessions         []model.ChatSession `json:"sessions"`
	DraftMessage     string              `json:"draft_message"`
	LastError        *string             `json:"last_error"`
}

// SessionStore owns the chat sessions and the send/receive cycle.
type SessionStore struct {
	backend   ChatBackend
	doc       document.Accessor
	publisher JournalPublisher
	machine   *status.Machine
	logger    *zap.Logger

	minDocumentChars int

	mu       sync.Mutex
	order    []string
	sessions map[string]*model.ChatSession
	current  string
	draft    string
	// epoch changes on Reset and Close so results of older requests are dropped.
	epoch  uint64
	closed bool
}

func NewSessionStore(
	b ChatBackend,
	doc document.Accessor,
	publisher JournalPublisher,
	cfg SessionStoreConfig,
	logger *zap.Logger,
) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinDocumentChars <= 0 {
		cfg.MinDocumentChars = DefaultMinDocumentChars
	}
	return &SessionStore{
		backend:          b,
		doc:              doc,
		publisher:        publisher,
		machine:          status.New("chat", logger),
		logger:           logger.Named("chat"),
		minDocumentChars: cfg.MinDocumentChars,
		sessions:         make(map[string]*model.ChatSession),
	}
}

// Restore loads persisted sessions into the store. Sessions already present
// are kept as they are.
func (s *SessionStore) Restore(ctx context.Context, loader SessionLoader) (int, error) {
	restored, err := loader.LoadSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore sessions failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range restored {
		if _, ok := s.sessions[sess.ID]; ok || sess.ID == "" {
			continue
		}
		cp := sess.Clone()
		s.sessions[cp.ID] = &cp
		s.order = append(s.order, cp.ID)
		n++
	}
	if s.current == "" && len(s.order) > 0 {
		s.current = s.order[len(s.order)-1]
	}
	s.logger.Info("sessions restored", zap.Int("count", n))
	return n, nil
}

func (s *SessionStore) CreateSession() model.ChatSession {
	sess := model.ChatSession{
		ID:        uuid.NewString(),
		Messages:  []model.ChatMessage{},
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &sess
	s.order = append(s.order, sess.ID)
	s.current = sess.ID
	out := sess.Clone()
	s.mu.Unlock()

	s.publish(model.JournalEvent{Type: model.JournalSessionCreated, SessionID: sess.ID, At: sess.CreatedAt})
	return out
}

func (s *SessionStore) SwitchSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return apperr.NotFound("switch session", "session not found")
	}
	s.current = id
	return nil
}

// DeleteSession removes a session. Deleting the current session promotes the
// first remaining one. Unknown ids are ignored.
func (s *SessionStore) DeleteSession(id string) {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.current == id {
		s.current = ""
		if len(s.order) > 0 {
			s.current = s.order[0]
		}
	}
	s.mu.Unlock()

	s.publish(model.JournalEvent{Type: model.JournalSessionDeleted, SessionID: id, At: time.Now()})
}

// Initialize makes sure a current session exists and checks that the host
// document is long enough to chat about. Calling it on an initialized store
// only ensures the session.
func (s *SessionStore) Initialize(ctx context.Context) error {
	const op = "initialize chat"

	switch st := s.machine.Snapshot(); {
	case st.Status == status.Idle:
	case st.Status == status.Error && st.FailedOp == status.OpInitialize:
	case st.Status == status.Initializing, st.Status == status.Loading:
		return apperr.Busy(op, "another operation is in progress")
	default:
		s.ensureSession()
		return nil
	}
	if err := s.machine.Begin(status.OpInitialize); err != nil {
		return err
	}
	epoch := s.ensureSession()

	body, err := s.readBody(ctx, op)
	if err == nil {
		err = s.checkDocument(op, body)
	}
	if !s.sameEpoch(epoch) {
		return ErrDiscarded
	}
	if err != nil {
		_ = s.machine.Fail(err)
		return err
	}
	return s.machine.Succeed()
}

// SendMessage asks the backend about documentText and appends the question
// and the reply to the current session. Either both messages are appended or
// none is.
func (s *SessionStore) SendMessage(ctx context.Context, text, documentText string, selectedSources []string) (model.ChatSession, error) {
	return s.send(ctx, "send message", text, func(context.Context) (string, error) {
		return documentText, nil
	}, selectedSources)
}

// SendFromDocument is SendMessage with the document text read from the host.
func (s *SessionStore) SendFromDocument(ctx context.Context, text string, selectedSources []string) (model.ChatSession, error) {
	const op = "send from document"
	return s.send(ctx, op, text, func(ctx context.Context) (string, error) {
		return s.readBody(ctx, op)
	}, selectedSources)
}

func (s *SessionStore) send(
	ctx context.Context,
	op string,
	text string,
	documentText func(ctx context.Context) (string, error),
	selectedSources []string,
) (model.ChatSession, error) {
	if err := s.machine.Begin(status.OpRequest); err != nil {
		chatSends.WithLabelValues("rejected").Inc()
		return model.ChatSession{}, err
	}

	question := strings.TrimSpace(text)
	s.mu.Lock()
	epoch := s.epoch
	sessionID := s.current
	var history []model.HistoryTurn
	if sess, ok := s.sessions[sessionID]; ok {
		history = pairHistory(sess.Messages)
	} else {
		sessionID = ""
	}
	s.mu.Unlock()

	fail := func(err error) (model.ChatSession, error) {
		chatSends.WithLabelValues("error").Inc()
		if s.sameEpoch(epoch) {
			_ = s.machine.Fail(err)
		}
		return model.ChatSession{}, err
	}

	if question == "" {
		return fail(&apperr.Error{Kind: apperr.KindValidation, Op: op, Message: "message is empty", Err: ErrMessageEmpty})
	}
	if sessionID == "" {
		return fail(&apperr.Error{Kind: apperr.KindValidation, Op: op, Message: "no current session", Err: ErrNoSession})
	}
	docText, err := documentText(ctx)
	if err != nil {
		return fail(err)
	}
	if err := s.checkDocument(op, docText); err != nil {
		return fail(err)
	}

	reply, err := s.backend.Chat(ctx, backend.ChatRequest{
		Question:     question,
		DocumentText: docText,
		History:      history,
		SourceIDs:    selectedSources,
	})
	if err != nil {
		return fail(err)
	}

	turn := []model.ChatMessage{
		{Content: question, IsUser: true},
		{Content: reply, IsUser: false},
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		chatSends.WithLabelValues("discarded").Inc()
		return model.ChatSession{}, ErrDiscarded
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return fail(apperr.NotFound(op, "session was deleted while waiting for the reply"))
	}
	offset := len(sess.Messages)
	sess.Messages = append(sess.Messages, turn...)
	s.draft = ""
	out := sess.Clone()
	s.mu.Unlock()

	chatSends.WithLabelValues("ok").Inc()
	s.publish(model.JournalEvent{
		Type:      model.JournalTurnAppended,
		SessionID: sessionID,
		Offset:    offset,
		Messages:  turn,
		At:        time.Now(),
	})
	return out, s.machine.Succeed()
}

func (s *SessionStore) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

func (s *SessionStore) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *SessionStore) CurrentSession() (model.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[s.current]
	if !ok {
		return model.ChatSession{}, false
	}
	return sess.Clone(), true
}

// Reset drops every session and returns the store to idle. Replies still in
// flight are discarded.
func (s *SessionStore) Reset() {
	s.mu.Lock()
	s.order = nil
	s.sessions = make(map[string]*model.ChatSession)
	s.current = ""
	s.draft = ""
	s.epoch++
	s.mu.Unlock()
	s.machine.Reset()
}

func (s *SessionStore) Snapshot() ChatView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := ChatView{
		Sessions:     make([]model.ChatSession, 0, len(s.order)),
		DraftMessage: s.draft,
	}
	for _, id := range s.order {
		view.Sessions = append(view.Sessions, s.sessions[id].Clone())
	}
	if s.current != "" {
		id := s.current
		view.CurrentSessionID = &id
	}
	snap := s.machine.Snapshot()
	view.Status = snap.Status
	if snap.LastError != "" {
		msg := snap.LastError
		view.LastError = &msg
	}
	return view
}

func (s *SessionStore) Close() {
	s.mu.Lock()
	s.closed = true
	s.epoch++
	s.mu.Unlock()
}

func (s *SessionStore) ensureSession() uint64 {
	s.mu.Lock()
	if _, ok := s.sessions[s.current]; ok {
		epoch := s.epoch
		s.mu.Unlock()
		return epoch
	}
	s.mu.Unlock()
	s.CreateSession()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *SessionStore) readBody(ctx context.Context, op string) (string, error) {
	if s.doc == nil {
		return "", apperr.New(apperr.KindNetwork, op, "host document not connected")
	}
	return s.doc.ReadBody(ctx)
}

// checkDocument is the minimum-length rule shared by initialization and send.
func (s *SessionStore) checkDocument(op, body string) error {
	if utf8.RuneCountInString(strings.TrimSpace(body)) < s.minDocumentChars {
		return &apperr.Error{
			Kind:    apperr.KindValidation,
			Op:      op,
			Message: fmt.Sprintf("document must contain at least %d characters", s.minDocumentChars),
			Err:     ErrDocumentTooShort,
		}
	}
	return nil
}

func (s *SessionStore) sameEpoch(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch && !s.closed
}

func (s *SessionStore) publish(ev model.JournalEvent) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalPublishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish journal event failed",
			zap.String("type", ev.Type),
			zap.String("session_id", ev.SessionID),
			zap.Error(err),
		)
	}
}
