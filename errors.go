package paperbase

import (
	"fmt"
	"time"
)

// ErrLLM is returned when a generation, embedding, or rerank backend fails.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP carries a non-2xx status from a collaborator API. RetryAfter is
// the parsed Retry-After header when the backend sent one, zero otherwise.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
