package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClientClosed is returned by calls waiting on a limiter that was closed.
var ErrClientClosed = errors.New("llm: client closed")

// bucket is a token bucket refilled lazily from elapsed time, so an idle
// limiter holds no goroutine. A nil bucket never blocks.
type bucket struct {
	mu       sync.Mutex
	interval time.Duration
	capacity float64
	tokens   float64
	last     time.Time

	done      chan struct{}
	closeOnce sync.Once
}

func newBucket(rps float64, burst int) *bucket {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	interval := time.Duration(float64(time.Second) / rps)
	if interval <= 0 {
		interval = time.Nanosecond
	}
	return &bucket{
		interval: interval,
		capacity: float64(burst),
		tokens:   float64(burst),
		last:     time.Now(),
		done:     make(chan struct{}),
	}
}

// take consumes a token if one is available, otherwise it reports how long
// until the next one accrues.
func (b *bucket) take(now time.Time) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokens += float64(elapsed) / float64(b.interval)
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}
	return time.Duration((1 - b.tokens) * float64(b.interval)), false
}

// Wait blocks until a token is available, ctx ends, or the bucket is closed.
func (b *bucket) Wait(ctx context.Context) error {
	if b == nil {
		return nil
	}
	for {
		select {
		case <-b.done:
			return ErrClientClosed
		default:
		}
		wait, ok := b.take(time.Now())
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-b.done:
			timer.Stop()
			return ErrClientClosed
		case <-timer.C:
		}
	}
}

// Close wakes every waiter. Safe to call more than once.
func (b *bucket) Close() {
	if b == nil {
		return
	}
	b.closeOnce.Do(func() { close(b.done) })
}
