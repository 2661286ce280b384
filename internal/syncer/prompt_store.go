package syncer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"medword/internal/backend"
	"medword/internal/model"
	"medword/internal/pkg/apperr"
	"medword/internal/status"
)

const (
	promptsCollection = "prompts"
	promptsCacheKey   = "prompts"
)

type PromptBackend interface {
	ListPrompts(ctx context.Context) (model.PromptList, error)
	CreatePrompt(ctx context.Context, in model.PromptInput) (model.Prompt, error)
	UpdatePrompt(ctx context.Context, id string, in model.PromptInput) (model.Prompt, error)
	DeletePrompt(ctx context.Context, id string) error
}

type PromptStoreConfig struct {
	PollInterval time.Duration
	ListTimeout  time.Duration
	CacheTTL     time.Duration
}

type PromptView struct {
	Prompts    []model.Prompt  `json:"prompts"`
	SelectedID string          `json:"selected_id,omitempty"`
	SyncError  string          `json:"sync_error,omitempty"`
	Machine    status.Snapshot `json:"machine"`
}

// PromptStore mirrors the backend prompt library and the user's own prompts.
type PromptStore struct {
	backend  PromptBackend
	cache    *gocache.Cache
	validate *validator.Validate
	machine  *status.Machine
	poller   *Poller
	logger   *zap.Logger

	listTimeout time.Duration

	mu         sync.Mutex
	prompts    []model.Prompt
	selectedID string
	syncErr    string
	closed     bool
}

func NewPromptStore(b PromptBackend, cfg PromptStoreConfig, logger *zap.Logger) *PromptStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = backend.DefaultListTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	s := &PromptStore{
		backend:     b,
		cache:       gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		validate:    validate,
		machine:     status.New(promptsCollection, logger),
		logger:      logger.Named("prompts"),
		listTimeout: cfg.ListTimeout,
	}
	s.poller = NewPoller(promptsCollection, cfg.PollInterval, cfg.ListTimeout, s.reconcile, logger)
	return s
}

// Start runs the initial load and starts polling.
func (s *PromptStore) Start(ctx context.Context) error {
	switch st := s.machine.Snapshot(); {
	case st.Status == status.Idle:
	case st.Status == status.Error && st.FailedOp == status.OpInitialize:
	case st.Status == status.Initializing:
		return apperr.Busy("start prompts", "initial load in progress")
	default:
		return nil
	}
	if err := s.machine.Begin(status.OpInitialize); err != nil {
		return err
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.listTimeout)
	defer cancel()
	err := s.poller.Refresh(loadCtx)
	s.poller.Start(ctx)
	if err != nil {
		_ = s.machine.Fail(err)
		return err
	}
	return s.machine.Succeed()
}

// List returns the cached prompts unless forceRefresh is set or the cache
// expired, in which case the list is fetched again.
func (s *PromptStore) List(ctx context.Context, forceRefresh bool) ([]model.Prompt, error) {
	if !forceRefresh {
		if cached, ok := s.cache.Get(promptsCacheKey); ok {
			return clonePrompts(cached.([]model.Prompt)), nil
		}
	}
	if err := s.poller.Refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePrompts(s.prompts), nil
}

func (s *PromptStore) reconcile(ctx context.Context) error {
	list, err := s.backend.ListPrompts(ctx)
	if err != nil {
		s.mu.Lock()
		s.syncErr = apperr.Message(err)
		s.mu.Unlock()
		return err
	}
	all := list.All()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.prompts = all
	s.syncErr = ""
	if s.selectedID != "" && indexPrompt(s.prompts, s.selectedID) < 0 {
		s.selectedID = ""
	}
	s.cache.SetDefault(promptsCacheKey, clonePrompts(all))
	s.logger.Debug("prompts reconciled", zap.Int("library", len(list.DefaultPrompts)), zap.Int("user", len(list.UserPrompts)))
	if s.machine.Recover() {
		s.logger.Info("prompts recovered after failed initial load")
	}
	return nil
}

func (s *PromptStore) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.selectedID = ""
		return nil
	}
	if indexPrompt(s.prompts, id) < 0 {
		return apperr.NotFound("select prompt", "prompt not found")
	}
	s.selectedID = id
	return nil
}

func (s *PromptStore) Selected() (model.Prompt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexPrompt(s.prompts, s.selectedID); i >= 0 {
		return s.prompts[i], true
	}
	return model.Prompt{}, false
}

// Create adds a prompt. Library prompts and team prompts need the privileged
// capability.
func (s *PromptStore) Create(ctx context.Context, in model.PromptInput, privileged bool) (model.Prompt, error) {
	const op = "create prompt"
	in = normalizeInput(in)
	if err := s.check(op, in, false, privileged); err != nil {
		return model.Prompt{}, err
	}

	created, err := s.write(ctx, func(ctx context.Context) (model.Prompt, error) {
		return s.backend.CreatePrompt(ctx, in)
	})
	if err != nil {
		return model.Prompt{}, err
	}

	s.mu.Lock()
	s.prompts = append(s.prompts, created)
	s.mu.Unlock()
	s.cache.Delete(promptsCacheKey)
	s.logger.Info("prompt created", zap.String("id", created.ID), zap.String("scope", created.Scope))
	return created, nil
}

func (s *PromptStore) Update(ctx context.Context, id string, in model.PromptInput, privileged bool) (model.Prompt, error) {
	const op = "update prompt"

	s.mu.Lock()
	i := indexPrompt(s.prompts, id)
	var existing model.Prompt
	if i >= 0 {
		existing = s.prompts[i]
	}
	s.mu.Unlock()
	if i < 0 {
		return model.Prompt{}, apperr.NotFound(op, "prompt not found")
	}

	in = normalizeInput(in)
	in.Library = in.Library || existing.Library
	if err := s.check(op, in, existing.Scope == model.PromptScopeTeam, privileged); err != nil {
		return model.Prompt{}, err
	}

	updated, err := s.write(ctx, func(ctx context.Context) (model.Prompt, error) {
		return s.backend.UpdatePrompt(ctx, id, in)
	})
	if err != nil {
		return model.Prompt{}, err
	}

	s.mu.Lock()
	if j := indexPrompt(s.prompts, id); j >= 0 {
		s.prompts[j] = updated
	}
	s.mu.Unlock()
	s.cache.Delete(promptsCacheKey)
	return updated, nil
}

// Delete removes a prompt. A prompt already gone on the backend counts as deleted.
func (s *PromptStore) Delete(ctx context.Context, id string, privileged bool) error {
	const op = "delete prompt"

	s.mu.Lock()
	i := indexPrompt(s.prompts, id)
	var existing model.Prompt
	if i >= 0 {
		existing = s.prompts[i]
	}
	s.mu.Unlock()
	if i >= 0 && (existing.Library || existing.Scope == model.PromptScopeTeam) && !privileged {
		return apperr.Forbidden(op, "only privileged users can delete shared prompts")
	}

	_, err := s.write(ctx, func(ctx context.Context) (model.Prompt, error) {
		return model.Prompt{}, s.backend.DeletePrompt(ctx, id)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if j := indexPrompt(s.prompts, id); j >= 0 {
		s.prompts = append(s.prompts[:j], s.prompts[j+1:]...)
	}
	if s.selectedID == id {
		s.selectedID = ""
	}
	s.mu.Unlock()
	s.cache.Delete(promptsCacheKey)
	return nil
}

func (s *PromptStore) View() PromptView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PromptView{
		Prompts:    clonePrompts(s.prompts),
		SelectedID: s.selectedID,
		SyncError:  s.syncErr,
		Machine:    s.machine.Snapshot(),
	}
}

func (s *PromptStore) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.poller.Close()
}

// write runs a backend mutation through the status machine.
func (s *PromptStore) write(ctx context.Context, fn func(ctx context.Context) (model.Prompt, error)) (model.Prompt, error) {
	if err := s.machine.Begin(status.OpRequest); err != nil {
		return model.Prompt{}, err
	}
	p, err := fn(ctx)
	if err != nil {
		_ = s.machine.Fail(err)
		return model.Prompt{}, err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return model.Prompt{}, ErrStoreClosed
	}
	return p, s.machine.Succeed()
}

func (s *PromptStore) check(op string, in model.PromptInput, wasTeam, privileged bool) error {
	if err := s.validate.Struct(in); err != nil {
		return apperr.Validation(op, validationMessage(err))
	}
	shared := in.Library || in.Scope == model.PromptScopeTeam || wasTeam
	if shared && !privileged {
		return apperr.Forbidden(op, "only privileged users can write shared prompts")
	}
	return nil
}

func normalizeInput(in model.PromptInput) model.PromptInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Scope == "" {
		in.Scope = model.PromptScopeUser
	}
	return in
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}

func indexPrompt(prompts []model.Prompt, id string) int {
	if id == "" {
		return -1
	}
	for i, p := range prompts {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func clonePrompts(in []model.Prompt) []model.Prompt {
	return append([]model.Prompt{}, in...)
}
