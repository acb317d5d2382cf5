package adapter

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrMalformedResponse is returned when the LLM replied but the expected
	// fields are missing or the body cannot be decoded.
	ErrMalformedResponse = goerr.New("malformed LLM response")
)

// Completer sends a single user prompt to a hosted LLM and returns the text
// of the first generated message.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)

	// Model returns the model identifier used for completions
	Model() string
}

// HTTPStatusError is returned when the LLM endpoint answers with a non-2xx status
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("LLM endpoint returned HTTP %d: %s", e.StatusCode, e.Body)
}
