package backend

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrRequestFailed is the single failure every remote call collapses into.
// Use errors.As with *RequestError to see the finer FailureKind.
var ErrRequestFailed = errors.New("backend request failed")

// FailureKind refines ErrRequestFailed for diagnostics.
type FailureKind string

const (
	FailureNetwork   FailureKind = "network"
	FailureStatus    FailureKind = "status"
	FailureMalformed FailureKind = "malformed"
)

// RequestError describes why a call to the backend failed.
type RequestError struct {
	Op         string
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Kind == FailureStatus:
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is makes every RequestError match ErrRequestFailed.
func (e *RequestError) Is(target error) bool { return target == ErrRequestFailed }

// KindOf returns the failure kind of err, or "" when err did not come from the backend client.
func KindOf(err error) FailureKind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return ""
}
