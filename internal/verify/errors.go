package verify

import (
	"errors"
	"fmt"
)

// ErrQuotaExhausted signals a resource-exhaustion failure from the model API.
// It is the only failure kind with a side effect beyond producing an outcome:
// the controller locks the session against further verification attempts.
var ErrQuotaExhausted = errors.New("verifier quota exhausted")

// TransportError wraps network-level failures reaching the model API.
// Transient: the session stays eligible for later attempts.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("verifier transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NoResponseError means the API answered but carried no usable candidate.
type NoResponseError struct {
	Detail string
}

func (e *NoResponseError) Error() string {
	return fmt.Sprintf("verifier returned no response: %s", e.Detail)
}

// MalformedResponseError means the model produced text with no interpretable
// structured result. Not fatal; surfaced as an error-status outcome.
type MalformedResponseError struct {
	Raw string
}

func (e *MalformedResponseError) Error() string {
	return "verifier response had no interpretable result"
}
