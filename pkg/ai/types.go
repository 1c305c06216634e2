package ai

import (
	"context"
	"errors"
	"fmt"
)

// NoFeedbackFallback is returned when the model stream completes without
// producing any text. Resolving to a fixed string instead of an error keeps a
// degenerate-but-successful model response from failing the task.
const NoFeedbackFallback = "No feedback generated"

// ErrMalformedStream indicates every line of the model stream failed to parse.
var ErrMalformedStream = errors.New("model stream contained no parseable chunks")

// Generator produces a text completion for a prompt. Implementations stream
// the model output internally and return the fully accumulated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TransportError wraps network, timeout, and non-success responses from the
// model endpoint. Workers treat it as transient and retry up to their bound.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is chains.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a model transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
