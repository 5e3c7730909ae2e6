package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoCredential is returned when a backend's rotation pool is empty.
var ErrNoCredential = errors.New("no credential available")

// ErrQuotaExceeded marks a backend that has reached its daily request limit.
var ErrQuotaExceeded = errors.New("daily quota exceeded")

// ErrMalformedResponse marks a backend reply missing the expected content field.
var ErrMalformedResponse = errors.New("malformed provider response")

// ErrNoProvider marks a backend configured without a wire adapter.
var ErrNoProvider = errors.New("no provider for backend")

// Attempt records why one candidate backend could not serve a request.
type Attempt struct {
	Backend string `json:"backend"`
	Reason  string `json:"reason"`
}

// ExhaustedError is returned when every candidate backend for a role was
// skipped or failed. It carries the full attempt trail for diagnostics.
type ExhaustedError struct {
	Role     string
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	reasons := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		reasons = append(reasons, a.Backend+": "+a.Reason)
	}
	return fmt.Sprintf("all providers exhausted for role %q (%s)", e.Role, strings.Join(reasons, "; "))
}
