package document

import (
	"context"
	"time"
)

// Debounce forwards the latest value from in once it has been quiet for wait.
// The returned channel closes when in closes or ctx is done; a pending value
// is flushed when in closes.
func Debounce(ctx context.Context, in <-chan string, wait time.Duration) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)

		var (
			pending string
			has     bool
			timer   *time.Timer
			fire    <-chan time.Time
		)
		stop := func() {
			if timer != nil {
				timer.Stop()
			}
		}
		defer stop()

		emit := func() bool {
			select {
			case out <- pending:
				has = false
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					if has {
						emit()
					}
					return
				}
				pending, has = v, true
				stop()
				timer = time.NewTimer(wait)
				fire = timer.C
			case <-fire:
				fire = nil
				if has && !emit() {
					return
				}
			}
		}
	}()
	return out
}
