package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := NotFound("delete source", "source not found")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, "delete source: source not found", err.Error())
}

func TestWrappedErrorKeepsKind(t *testing.T) {
	err := fmt.Errorf("reconcile failed: %w", Busy("refresh", "store is loading"))

	assert.True(t, errors.Is(err, ErrBusy))
	assert.Equal(t, KindBusy, KindOf(err))
	assert.Equal(t, "store is loading", Message(err))
}

func TestTimeoutIsAlsoNetwork(t *testing.T) {
	err := FromContext("list sources", fmt.Errorf("do request: %w", context.DeadlineExceeded))

	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	network := FromContext("list sources", errors.New("connection refused"))
	assert.True(t, errors.Is(network, ErrNetwork))
	assert.False(t, errors.Is(network, ErrTimeout))
}

func TestFromContextKeepsClassifiedErrors(t *testing.T) {
	original := InvalidResponse("chat", "missing response field")

	assert.Same(t, original, FromContext("chat", original))
	assert.Nil(t, FromContext("chat", nil))
}

func TestKindOfUnknown(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Equal(t, "", Message(nil))
}
