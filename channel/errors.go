package channel

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced to callers. Wrap with fmt.Errorf("...: %w", ...)
// and test with errors.Is.
var (
	// ErrNotFound means the identifier has no corresponding channel.
	ErrNotFound = errors.New("channel not found")
	// ErrValidation means the identifier was rejected before any network call.
	ErrValidation = errors.New("invalid channel identifier")
)

// AuthError means a credential exchange failed. It is fatal: callers must
// not retry silently.
type AuthError struct {
	Status string
	Body   string
}

func (e *AuthError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("auth exchange failed: %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("auth exchange failed: %s", e.Status)
}

// UpstreamError wraps a transport failure, non-success status, or malformed
// response from a platform API. Inside a fetch chain it advances to the
// next tier; with no chain it is surfaced.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }

// TimeoutError means a per-tier or per-call budget elapsed. Chains treat it
// like any upstream failure; the top level surfaces it distinctly so the
// caller can suggest retrying.
type TimeoutError struct {
	Op     string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Op, e.Budget)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsAuth reports whether err is (or wraps) an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
