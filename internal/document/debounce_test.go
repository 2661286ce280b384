package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebounceEmitsLatestAfterQuiet(t *testing.T) {
	in := make(chan string)
	out := Debounce(context.Background(), in, 30*time.Millisecond)

	in <- "a"
	in <- "ab"
	in <- "abc"

	select {
	case v := <-out:
		assert.Equal(t, "abc", v)
	case <-time.After(time.Second):
		t.Fatal("no debounced value")
	}

	close(in)
	_, open := <-out
	assert.False(t, open)
}

func TestDebounceFlushesOnClose(t *testing.T) {
	in := make(chan string, 1)
	out := Debounce(context.Background(), in, time.Hour)

	in <- "pending"
	close(in)

	assert.Equal(t, "pending", <-out)
}

func TestDebounceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := Debounce(ctx, make(chan string), time.Millisecond)
	cancel()

	select {
	case _, open := <-out:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("debounce did not stop")
	}
}
