package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for store failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrInvalidInput indicates a caller-side contract violation (empty
	// key lists, malformed payloads). Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAuthentication indicates the credential was rejected (401/403).
	// Surfaced immediately, never retried; re-issuing a credential and
	// restarting the run is the caller's decision.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRemoteService indicates a 4xx/5xx from the store other than auth.
	ErrRemoteService = errors.New("remote service error")

	// ErrNetwork indicates a transport-level failure. The whole run is
	// safe to retry since every stage is idempotent, but the pipeline
	// itself performs no automatic retries.
	ErrNetwork = errors.New("network error")

	// ErrPartialUpload indicates the store rejected some keys of an
	// upload batch. Always fatal: a manifest must never reference
	// content the store does not hold.
	ErrPartialUpload = errors.New("partial upload failure")
)

// RequestError wraps a failed store operation with classification.
// It preserves the underlying error in the chain for errors.As and carries
// the remote error payload for diagnostics.
type RequestError struct {
	// Kind is the sentinel error for classification.
	Kind error
	// Op is the store operation that failed (e.g. "check-missing").
	Op string
	// Status is the HTTP status code, when the failure came from a
	// response. Zero for transport and validation failures.
	Status int
	// Remote is the remote error payload, truncated, when available.
	Remote string
	// Err is the underlying error.
	Err error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Remote != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Remote)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *RequestError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// classifyStatus maps an HTTP status code to a sentinel.
// 401 and 403 are authentication failures; everything else outside 2xx is
// a remote service error.
func classifyStatus(status int) error {
	if status == 401 || status == 403 {
		return ErrAuthentication
	}
	return ErrRemoteService
}
