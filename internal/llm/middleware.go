package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Middleware decorates a Client to inject cross-cutting concerns.
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			out = mws[i](out)
		}
	}
	return out
}

// -------- Rate limiting --------

// RateLimit allows at most rps calls per second with bursts of up to burst.
// A non-positive rps disables it.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Client) Client {
		if rps <= 0 {
			return next
		}
		return &rateLimited{next: next, bucket: newBucket(rps, burst)}
	}
}

type rateLimited struct {
	next   Client
	bucket *bucket
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error {
	c.bucket.Close()
	return c.next.Close()
}
func (c *rateLimited) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.bucket.Wait(ctx); err != nil {
		return "", err
	}
	return c.next.Complete(ctx, prompt)
}

// -------- Timeout --------

// Timeout bounds each call. A non-positive d disables it.
func Timeout(d time.Duration) Middleware {
	return func(next Client) Client {
		if d <= 0 {
			return next
		}
		return &timed{next: next, d: d}
	}
}

type timed struct {
	next Client
	d    time.Duration
}

func (c *timed) Name() string { return c.next.Name() }
func (c *timed) Close() error { return c.next.Close() }
func (c *timed) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.Complete(ctx, prompt)
}

// -------- Retry --------

// Retry retries Complete up to maxAttempts with exponential backoff starting
// at baseDelay. PermanentError and context cancellation stop it immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Client) Client {
		if maxAttempts == 1 {
			return next
		}
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Client
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) Complete(ctx context.Context, prompt string) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		out, err := r.next.Complete(ctx, prompt)
		if err == nil {
			return out, nil
		}
		var pErr *PermanentError
		if errors.As(err, &pErr) {
			return "", err
		}
		last = err
		if i == r.max-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.base * time.Duration(1<<i)):
		}
	}
	return "", last
}

// -------- Logging --------

// WithLogging logs request size, latency and errors. A nil logger disables it.
func WithLogging(logger *zap.Logger) Middleware {
	return func(next Client) Client {
		if logger == nil {
			return next
		}
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next Client
	log  *zap.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := l.next.Complete(ctx, prompt)
	fields := []zap.Field{
		zap.String("client", l.next.Name()),
		zap.Int("prompt_bytes", len(prompt)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		l.log.Warn("llm request failed", append(fields, zap.Error(err))...)
		return out, err
	}
	l.log.Debug("llm request", append(fields, zap.Int("response_bytes", len(out)))...)
	return out, nil
}
