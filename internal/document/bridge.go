package document

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medword/internal/pkg/apperr"
)

type EditKind string

const (
	EditReplaceSelection EditKind = "replace_selection"
	EditInsertAtEnd      EditKind = "insert_at_end"
)

// Edit is a host mutation waiting for the task pane to apply it.
type Edit struct {
	ID        string    `json:"id"`
	Kind      EditKind  `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Data      []byte    `json:"data,omitempty"`
	Format    Format    `json:"format,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HostSnapshot is what the task pane reports about the open document.
type HostSnapshot struct {
	Body      string `json:"body"`
	Selection string `json:"selection"`
}

// Bridge implements Accessor over snapshots pushed by the task pane and an
// edit queue the task pane drains.
type Bridge struct {
	logger *zap.Logger

	mu        sync.Mutex
	connected bool
	body      string
	selection string
	edits     []Edit
	editReady chan struct{}
	subs      map[int]chan string
	nextSub   int
}

var _ Accessor = (*Bridge)(nil)

const subscriberBuffer = 16

func NewBridge(logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		logger:    logger.Named("document"),
		editReady: make(chan struct{}),
		subs:      make(map[int]chan string),
	}
}

// Push records a host snapshot and notifies selection subscribers when the
// selection changed.
func (b *Bridge) Push(snap HostSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	changed := !b.connected || b.selection != snap.Selection
	b.connected = true
	b.body = snap.Body
	b.selection = snap.Selection
	if !changed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- snap.Selection:
		default:
			b.logger.Debug("selection event dropped", zap.Int("subscriber", id))
		}
	}
}

func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *Bridge) ReadSelection(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperr.FromContext("read selection", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return "", errNotConnected("read selection")
	}
	return b.selection, nil
}

func (b *Bridge) ReadBody(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperr.FromContext("read body", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return "", errNotConnected("read body")
	}
	return b.body, nil
}

func (b *Bridge) ReplaceSelection(ctx context.Context, text string) error {
	return b.enqueue(ctx, "replace selection", Edit{Kind: EditReplaceSelection, Text: text, Format: FormatText})
}

func (b *Bridge) InsertAtEnd(ctx context.Context, data []byte, format Format) error {
	if !format.Valid() {
		return apperr.Validation("insert at end", "unsupported format "+string(format))
	}
	if len(data) == 0 {
		return apperr.Validation("insert at end", "nothing to insert")
	}
	return b.enqueue(ctx, "insert at end", Edit{Kind: EditInsertAtEnd, Data: data, Format: format})
}

func (b *Bridge) enqueue(ctx context.Context, op string, edit Edit) error {
	if err := ctx.Err(); err != nil {
		return apperr.FromContext(op, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return errNotConnected(op)
	}
	edit.ID = uuid.NewString()
	edit.CreatedAt = time.Now()
	b.edits = append(b.edits, edit)
	close(b.editReady)
	b.editReady = make(chan struct{})
	b.logger.Debug("edit queued", zap.String("id", edit.ID), zap.String("kind", string(edit.Kind)))
	return nil
}

// Drain returns the queued edits in order, waiting until at least one is
// queued or ctx is done. A done ctx yields an empty slice, not an error.
func (b *Bridge) Drain(ctx context.Context) []Edit {
	for {
		b.mu.Lock()
		if len(b.edits) > 0 {
			out := b.edits
			b.edits = nil
			b.mu.Unlock()
			return out
		}
		ready := b.editReady
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return []Edit{}
		case <-ready:
		}
	}
}

func (b *Bridge) SubscribeSelection() (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSub
	b.nextSub++
	ch := make(chan string, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func errNotConnected(op string) error {
	return apperr.New(apperr.KindNetwork, op, "host document not connected")
}
