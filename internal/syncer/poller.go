package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"medword/internal/pkg/apperr"
)

const maxBackoff = 3

// FetchFunc fetches a collection and applies it to its store.
type FetchFunc func(ctx context.Context) error

// Poller runs a FetchFunc on an interval. At most one fetch per collection is
// outstanding at any time; forced refreshes join the fetch in flight.
type Poller struct {
	collection string
	interval   time.Duration
	timeout    time.Duration
	fetch      FetchFunc
	logger     *zap.Logger

	group singleflight.Group

	life   context.Context
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

func NewPoller(collection string, interval, timeout time.Duration, fetch FetchFunc, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	life, cancel := context.WithCancel(context.Background())
	return &Poller{
		collection: collection,
		interval:   interval,
		timeout:    timeout,
		fetch:      fetch,
		logger:     logger.Named("poller").With(zap.String("collection", collection)),
		life:       life,
		cancel:     cancel,
	}
}

// Start launches the polling loop. It stops on Close or when ctx is done.
// Calling Start more than once has no effect.
func (p *Poller) Start(ctx context.Context) {
	p.once.Do(func() {
		p.wg.Add(1)
		go p.loop(ctx)
	})
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	errorCount := 0
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.life.Done():
			return
		case <-timer.C:
		}

		_, err, _ := p.group.Do(p.collection, p.run)
		if err != nil {
			if errorCount < maxBackoff {
				errorCount++
			}
			p.logger.Warn("poll failed", zap.Int("consecutive_errors", errorCount), zap.Error(err))
		} else {
			errorCount = 0
		}
		timer.Reset(p.interval * time.Duration(1+errorCount))
	}
}

// Refresh forces a fetch, joining one already in flight. It waits for the
// result or for ctx, whichever comes first; an abandoned fetch still
// completes and applies.
func (p *Poller) Refresh(ctx context.Context) error {
	const op = "refresh"
	if p.life.Err() != nil {
		return apperr.Busy(op, p.collection+" sync is stopped")
	}

	ch := p.group.DoChan(p.collection, p.run)
	select {
	case <-ctx.Done():
		return apperr.FromContext(op, ctx.Err())
	case res := <-ch:
		if res.Shared {
			coalescedRefreshes.WithLabelValues(p.collection).Inc()
		}
		return res.Err
	}
}

func (p *Poller) run() (any, error) {
	ctx, cancel := context.WithTimeout(p.life, p.timeout)
	defer cancel()

	started := time.Now()
	err := p.fetch(ctx)
	pollDuration.WithLabelValues(p.collection).Observe(time.Since(started).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
		err = apperr.FromContext("fetch "+p.collection, err)
	}
	pollRuns.WithLabelValues(p.collection, result).Inc()
	return nil, err
}

// Close stops the loop, cancels a fetch in flight and waits for the loop to exit.
func (p *Poller) Close() {
	p.cancel()
	p.wg.Wait()
}
