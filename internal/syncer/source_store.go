package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medword/internal/backend"
	"medword/internal/document"
	"medword/internal/model"
	"medword/internal/pkg/apperr"
	"medword/internal/status"
)

const (
	sourcesCollection = "sources"

	DefaultAnalyzeInstruction = "Generate a comprehensive clinical study report"

	cacheSaveTimeout = 2 * time.Second
)

var ErrStoreClosed = errors.New("store closed")

type SourceBackend interface {
	ListSources(ctx context.Context) ([]model.SourceRecord, error)
	UploadSource(ctx context.Context, fileName string, content []byte, progress backend.ProgressFunc) (model.SourceRecord, error)
	DeleteSource(ctx context.Context, id string) error
	Analyze(ctx context.Context, docIDs []string, instruction string) (backend.AnalyzeResult, error)
}

// SnapshotCache keeps the last reconciled list across restarts. A loaded
// snapshot is only ever shown as stale.
type SnapshotCache interface {
	Load(ctx context.Context) (model.SourceSnapshot, bool, error)
	Save(ctx context.Context, snap model.SourceSnapshot) error
}

// UploadValidator rejects files before any placeholder is created.
type UploadValidator interface {
	Validate(fileName string, content []byte) error
}

type SourceStoreConfig struct {
	PollInterval time.Duration
	ListTimeout  time.Duration
}

// SourceView is the observable state of a SourceStore.
type SourceView struct {
	model.SourceSnapshot
	Machine status.Snapshot `json:"machine"`
}

// SourceStore keeps the local source list consistent with the backend while
// uploads are in flight.
type SourceStore struct {
	backend   SourceBackend
	doc       document.Accessor
	cache     SnapshotCache
	validator UploadValidator
	machine   *status.Machine
	poller    *Poller
	logger    *zap.Logger

	listTimeout time.Duration

	mu       sync.Mutex
	order    []string
	sources  map[string]model.Source
	selected map[string]struct{}
	// pending holds file content of placeholders so failed uploads can be retried.
	pending map[string]pendingUpload
	// confirmed maps ids confirmed locally to the generation they were confirmed in,
	// so a list fetched before the confirmation does not drop them.
	confirmed map[string]uint64
	// removed maps ids deleted locally to the generation they were deleted in,
	// so a list fetched before the deletion does not bring them back.
	removed map[string]uint64
	gen       uint64
	stale     map[string]struct{}
	syncedAt  time.Time
	syncErr   string
	closed    bool
}

type pendingUpload struct {
	name    string
	content []byte
}

func NewSourceStore(
	b SourceBackend,
	doc document.Accessor,
	cache SnapshotCache,
	validator UploadValidator,
	cfg SourceStoreConfig,
	logger *zap.Logger,
) *SourceStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = backend.DefaultListTimeout
	}
	s := &SourceStore{
		backend:     b,
		doc:         doc,
		cache:       cache,
		validator:   validator,
		machine:     status.New(sourcesCollection, logger),
		logger:      logger.Named("sources"),
		listTimeout: cfg.ListTimeout,
		sources:     make(map[string]model.Source),
		selected:    make(map[string]struct{}),
		pending:     make(map[string]pendingUpload),
		confirmed:   make(map[string]uint64),
		removed:     make(map[string]uint64),
		stale:       make(map[string]struct{}),
	}
	s.poller = NewPoller(sourcesCollection, cfg.PollInterval, cfg.ListTimeout, s.reconcile, logger)
	return s
}

// Start hydrates the store from the snapshot cache, runs the initial load
// through the status machine and starts polling. Polling starts even when the
// initial load fails; the next successful poll recovers the store.
func (s *SourceStore) Start(ctx context.Context) error {
	switch st := s.machine.Snapshot(); {
	case st.Status == status.Idle:
	case st.Status == status.Error && st.FailedOp == status.OpInitialize:
	case st.Status == status.Initializing:
		return apperr.Busy("start sources", "initial load in progress")
	default:
		return nil
	}
	if err := s.machine.Begin(status.OpInitialize); err != nil {
		return err
	}
	s.hydrate(ctx)

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

// Refresh forces a reconciliation, coalesced with any poll in flight.
func (s *SourceStore) Refresh(ctx context.Context) error {
	return s.poller.Refresh(ctx)
}

func (s *SourceStore) hydrate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	snap, ok, err := s.cache.Load(ctx)
	if err != nil {
		s.logger.Warn("load source snapshot failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sources) > 0 {
		return
	}
	for _, src := range snap.Sources {
		// placeholders of a previous process can never complete
		if src.Status != model.SourceSuccess {
			continue
		}
		if _, dup := s.sources[src.ID]; dup {
			continue
		}
		s.order = append(s.order, src.ID)
		s.sources[src.ID] = src
		s.stale[src.ID] = struct{}{}
	}
	for _, id := range snap.Selected {
		if src, ok := s.sources[id]; ok && !src.Template() {
			s.selected[id] = struct{}{}
		}
	}
	s.logger.Info("sources hydrated from snapshot", zap.Int("count", len(s.order)))
}

func (s *SourceStore) reconcile(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	startGen := s.gen
	s.mu.Unlock()

	records, err := s.backend.ListSources(ctx)
	if err != nil {
		s.mu.Lock()
		s.syncErr = apperr.Message(err)
		s.mu.Unlock()
		return err
	}

	snap, ok := s.apply(records, startGen)
	if !ok {
		return ErrStoreClosed
	}
	s.save(snap)
	if s.machine.Recover() {
		s.logger.Info("sources recovered after failed initial load")
	}
	return nil
}

// apply merges an authoritative list fetched at generation startGen.
func (s *SourceStore) apply(records []model.SourceRecord, startGen uint64) (model.SourceSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.SourceSnapshot{}, false
	}

	next := make(map[string]model.Source, len(records))
	order := make([]string, 0, len(records))
	for _, r := range records {
		if _, dup := next[r.ID]; dup {
			continue
		}
		if gen, ok := s.removed[r.ID]; ok && gen > startGen {
			continue
		}
		local, exists := s.sources[r.ID]
		_, wasStale := s.stale[r.ID]
		if exists && !wasStale {
			next[r.ID] = local.Overlay(r)
		} else {
			next[r.ID] = model.SourceFromRecord(r)
		}
		order = append(order, r.ID)
		delete(s.confirmed, r.ID)
	}

	dropped := 0
	for _, id := range s.order {
		if _, ok := next[id]; ok {
			continue
		}
		src := s.sources[id]
		keep := src.Status == model.SourceUploading || src.Status == model.SourceError
		if gen, ok := s.confirmed[id]; ok && gen > startGen {
			keep = true
		}
		if keep {
			next[id] = src
			order = append(order, id)
			continue
		}
		delete(s.confirmed, id)
		dropped++
	}
	for id, gen := range s.removed {
		if gen <= startGen {
			delete(s.removed, id)
		}
	}

	s.sources = next
	s.order = order
	s.stale = make(map[string]struct{})
	for id := range s.selected {
		src, ok := s.sources[id]
		if !ok || src.Template() || src.Status != model.SourceSuccess {
			delete(s.selected, id)
		}
	}
	s.syncedAt = time.Now()
	s.syncErr = ""

	s.logger.Info("sources reconciled",
		zap.Int("server", len(records)),
		zap.Int("local", len(s.order)),
		zap.Int("removed", dropped),
	)
	return s.snapshotLocked(), true
}

// AddPendingUpload inserts an uploading placeholder and returns its temporary id.
func (s *SourceStore) AddPendingUpload(fileName string, size int64) string {
	id := "tmp-" + uuid.NewString()
	progress := 0
	placeholder := model.Source{
		ID:         id,
		Name:       fileName,
		Origin:     "upload",
		UploadDate: time.Now().Format(time.RFC3339),
		SizeLabel:  model.SizeLabel(size),
		Vectorized: model.ClientFlag(false),
		Analyzed:   model.ClientFlag(false),
		IsTemplate: model.ClientFlag(false),
		Status:     model.SourceUploading,
		Progress:   &progress,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, id)
	s.sources[id] = placeholder
	return id
}

// SetProgress updates an uploading placeholder in place.
func (s *SourceStore) SetProgress(tempID string, percent int) {
	percent = min(max(percent, 0), 100)

	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[tempID]
	if !ok || src.Status != model.SourceUploading {
		return
	}
	src.Progress = &percent
	s.sources[tempID] = src
}

// ConfirmUpload replaces the placeholder with the server record. If the
// server id is already listed the two entries are merged into one.
func (s *SourceStore) ConfirmUpload(tempID string, rec model.SourceRecord) (model.Source, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Source{}, ErrStoreClosed
	}

	placeholder, hasPlaceholder := s.sources[tempID]
	idx := s.indexLocked(tempID)
	if hasPlaceholder {
		s.removeLocked(tempID)
	}
	delete(s.pending, tempID)

	var confirmed model.Source
	if existing, ok := s.sources[rec.ID]; ok {
		confirmed = existing.Overlay(rec)
	} else {
		if hasPlaceholder {
			confirmed = placeholder.Overlay(rec)
		} else {
			confirmed = model.SourceFromRecord(rec)
		}
		if hasPlaceholder && idx >= 0 {
			s.order = append(s.order[:idx], append([]string{rec.ID}, s.order[idx:]...)...)
		} else {
			s.order = append(s.order, rec.ID)
		}
	}
	s.sources[rec.ID] = confirmed
	delete(s.stale, rec.ID)
	s.gen++
	s.confirmed[rec.ID] = s.gen
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("upload confirmed", zap.String("temp_id", tempID), zap.String("id", rec.ID))
	s.save(snap)
	return confirmed, nil
}

// FailUpload flips the placeholder to error. It stays visible until it is
// dismissed or retried.
func (s *SourceStore) FailUpload(tempID string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[tempID]
	if !ok {
		return
	}
	src.Status = model.SourceError
	src.Error = apperr.Message(cause)
	s.sources[tempID] = src
	s.logger.Warn("upload failed", zap.String("temp_id", tempID), zap.Error(cause))
}

// Upload validates the file, shows a placeholder while it is sent and
// replaces it with the server record. The returned error is also recorded on
// the placeholder.
func (s *SourceStore) Upload(ctx context.Context, fileName string, content []byte) (model.Source, error) {
	if s.validator != nil {
		if err := s.validator.Validate(fileName, content); err != nil {
			return model.Source{}, err
		}
	}

	tempID := s.AddPendingUpload(fileName, int64(len(content)))
	s.mu.Lock()
	s.pending[tempID] = pendingUpload{name: fileName, content: content}
	s.mu.Unlock()

	return s.send(ctx, tempID, fileName, content)
}

// RetryUpload sends a failed upload again under the same placeholder.
func (s *SourceStore) RetryUpload(ctx context.Context, tempID string) (model.Source, error) {
	const op = "retry upload"

	s.mu.Lock()
	src, ok := s.sources[tempID]
	p, hasContent := s.pending[tempID]
	switch {
	case !ok || !hasContent:
		s.mu.Unlock()
		return model.Source{}, apperr.NotFound(op, "failed upload not found")
	case src.Status != model.SourceError:
		s.mu.Unlock()
		return model.Source{}, apperr.Validation(op, "upload has not failed")
	}
	progress := 0
	src.Status = model.SourceUploading
	src.Progress = &progress
	src.Error = ""
	s.sources[tempID] = src
	s.mu.Unlock()

	return s.send(ctx, tempID, p.name, p.content)
}

func (s *SourceStore) send(ctx context.Context, tempID, fileName string, content []byte) (model.Source, error) {
	rec, err := s.backend.UploadSource(ctx, fileName, content, func(percent int) {
		s.SetProgress(tempID, percent)
	})
	if err != nil {
		s.FailUpload(tempID, err)
		return model.Source{}, err
	}
	return s.ConfirmUpload(tempID, rec)
}

// DismissUpload drops a failed upload placeholder.
func (s *SourceStore) DismissUpload(tempID string) error {
	const op = "dismiss upload"

	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[tempID]
	if !ok {
		return apperr.NotFound(op, "upload not found")
	}
	if src.Status != model.SourceError {
		return apperr.Validation(op, "only failed uploads can be dismissed")
	}
	s.removeLocked(tempID)
	delete(s.pending, tempID)
	return nil
}

// RemoveSource deletes a source on the backend and drops it locally once the
// backend confirmed. Templates are never deleted.
func (s *SourceStore) RemoveSource(ctx context.Context, id string) error {
	const op = "remove source"

	s.mu.Lock()
	src, ok := s.sources[id]
	s.mu.Unlock()
	switch {
	case !ok:
		return apperr.NotFound(op, "source not found")
	case src.Template():
		return apperr.Forbidden(op, "template documents cannot be deleted")
	case src.Status != model.SourceSuccess:
		return apperr.Validation(op, "upload is not finished; dismiss it instead")
	}

	if err := s.backend.DeleteSource(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	s.removeLocked(id)
	delete(s.confirmed, id)
	s.gen++
	s.removed[id] = s.gen
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("source removed", zap.String("id", id))
	s.save(snap)
	return nil
}

// Toggle flips the selection of a finished, non-template source.
func (s *SourceStore) Toggle(id string) error {
	const op = "toggle source"

	s.mu.Lock()
	src, ok := s.sources[id]
	switch {
	case !ok:
		s.mu.Unlock()
		return apperr.NotFound(op, "source not found")
	case src.Template():
		s.mu.Unlock()
		return apperr.Forbidden(op, "template documents cannot be selected")
	case src.Status != model.SourceSuccess:
		s.mu.Unlock()
		return apperr.Validation(op, "upload is not finished")
	}
	if _, sel := s.selected[id]; sel {
		delete(s.selected, id)
	} else {
		s.selected[id] = struct{}{}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.save(snap)
	return nil
}

// SelectAll selects every finished source except templates.
func (s *SourceStore) SelectAll() {
	s.mu.Lock()
	for id, src := range s.sources {
		if !src.Template() && src.Status == model.SourceSuccess {
			s.selected[id] = struct{}{}
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.save(snap)
}

func (s *SourceStore) ClearSelection() {
	s.mu.Lock()
	s.selected = make(map[string]struct{})
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.save(snap)
}

// SelectedIDs returns the selection in list order.
func (s *SourceStore) SelectedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedLocked()
}

// Analyze runs the backend analysis over the selected sources, merges the
// returned records and writes the summary over the current selection.
func (s *SourceStore) Analyze(ctx context.Context, instruction string) (backend.AnalyzeResult, error) {
	const op = "analyze sources"

	ids := s.SelectedIDs()
	if len(ids) == 0 {
		return backend.AnalyzeResult{}, apperr.Validation(op, "select at least one source")
	}
	if instruction == "" {
		instruction = DefaultAnalyzeInstruction
	}
	if err := s.machine.Begin(status.OpRequest); err != nil {
		return backend.AnalyzeResult{}, err
	}

	res, err := s.backend.Analyze(ctx, ids, instruction)
	if err != nil {
		_ = s.machine.Fail(err)
		return backend.AnalyzeResult{}, err
	}

	// the summary is written before the merge so a failed host write leaves the list untouched
	if res.Summary != "" && s.doc != nil {
		if err := s.doc.ReplaceSelection(ctx, res.Summary); err != nil {
			_ = s.machine.Fail(err)
			return backend.AnalyzeResult{}, err
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return backend.AnalyzeResult{}, ErrStoreClosed
	}
	for _, r := range res.Documents {
		if local, ok := s.sources[r.ID]; ok {
			s.sources[r.ID] = local.Overlay(r)
			continue
		}
		s.order = append(s.order, r.ID)
		s.sources[r.ID] = model.SourceFromRecord(r)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.save(snap)
	return res, s.machine.Succeed()
}

func (s *SourceStore) Snapshot() SourceView {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return SourceView{SourceSnapshot: snap, Machine: s.machine.Snapshot()}
}

// Close stops polling. Results of requests still in flight are discarded.
func (s *SourceStore) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.poller.Close()
}

func (s *SourceStore) snapshotLocked() model.SourceSnapshot {
	list := make([]model.Source, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, s.sources[id])
	}
	return model.SourceSnapshot{
		Sources:   list,
		Selected:  s.selectedLocked(),
		Stale:     len(s.stale) > 0,
		SyncedAt:  s.syncedAt,
		SyncError: s.syncErr,
	}
}

func (s *SourceStore) selectedLocked() []string {
	out := make([]string, 0, len(s.selected))
	for _, id := range s.order {
		if _, ok := s.selected[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (s *SourceStore) indexLocked(id string) int {
	for i, v := range s.order {
		if v == id {
			return i
		}
	}
	return -1
}

func (s *SourceStore) removeLocked(id string) {
	if idx := s.indexLocked(id); idx >= 0 {
		s.order = append(s.order[:idx], s.order[idx+1:]...)
	}
	delete(s.sources, id)
	delete(s.selected, id)
}

func (s *SourceStore) save(snap model.SourceSnapshot) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheSaveTimeout)
	defer cancel()
	if err := s.cache.Save(ctx, snap); err != nil {
		s.logger.Warn("save source snapshot failed", zap.Error(err))
	}
}
