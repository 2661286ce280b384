package document

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medword/internal/pkg/apperr"
)

func TestBridgeReadsBeforeConnectFail(t *testing.T) {
	b := NewBridge(nil)

	_, err := b.ReadBody(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrNetwork))
	err = b.ReplaceSelection(context.Background(), "x")
	assert.True(t, errors.Is(err, apperr.ErrNetwork))
}

func TestBridgeReadsLatestSnapshot(t *testing.T) {
	b := NewBridge(nil)
	b.Push(HostSnapshot{Body: "body one", Selection: "one"})
	b.Push(HostSnapshot{Body: "body two", Selection: "two"})

	body, err := b.ReadBody(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "body two", body)
	sel, err := b.ReadSelection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "two", sel)
}

func TestBridgeDrainReturnsEditsInOrder(t *testing.T) {
	b := NewBridge(nil)
	b.Push(HostSnapshot{Body: "body"})
	ctx := context.Background()

	require.NoError(t, b.ReplaceSelection(ctx, "translated"))
	require.NoError(t, b.InsertAtEnd(ctx, []byte{0x89, 'P', 'N', 'G'}, FormatPNG))

	edits := b.Drain(ctx)
	require.Len(t, edits, 2)
	assert.Equal(t, EditReplaceSelection, edits[0].Kind)
	assert.Equal(t, "translated", edits[0].Text)
	assert.Equal(t, EditInsertAtEnd, edits[1].Kind)
	assert.Equal(t, FormatPNG, edits[1].Format)
	assert.NotEmpty(t, edits[0].ID)
}

func TestBridgeDrainWaitsForEdit(t *testing.T) {
	b := NewBridge(nil)
	b.Push(HostSnapshot{Body: "body"})

	done := make(chan []Edit, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- b.Drain(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.ReplaceSelection(context.Background(), "late"))

	select {
	case edits := <-done:
		require.Len(t, edits, 1)
		assert.Equal(t, "late", edits[0].Text)
	case <-time.After(time.Second):
		t.Fatal("drain did not wake up")
	}
}

func TestBridgeDrainTimesOutEmpty(t *testing.T) {
	b := NewBridge(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Empty(t, b.Drain(ctx))
}

func TestBridgeInsertValidatesFormat(t *testing.T) {
	b := NewBridge(nil)
	b.Push(HostSnapshot{})

	err := b.InsertAtEnd(context.Background(), []byte("x"), Format("rtf"))
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	err = b.InsertAtEnd(context.Background(), nil, FormatText)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestBridgeSelectionEvents(t *testing.T) {
	b := NewBridge(nil)
	events, cancel := b.SubscribeSelection()

	b.Push(HostSnapshot{Selection: "a"})
	b.Push(HostSnapshot{Selection: "a"})
	b.Push(HostSnapshot{Selection: "b"})

	assert.Equal(t, "a", <-events)
	assert.Equal(t, "b", <-events)

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)
}
