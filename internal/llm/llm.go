package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response from model")

// Client is a text-generation backend. Implementations only perform the call;
// cross-cutting concerns (timeouts, retries, rate limiting, logging) are
// applied via Middleware.
type Client interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
	Close() error
}

// PermanentError indicates an error that will not resolve with retries
// (bad credentials, blocked content, invalid model).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
