package provider

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a provider error for the retry policy.
type Kind int

// Error kinds, from the retry policy's point of view.
const (
	// KindFatal errors are propagated immediately without retrying.
	KindFatal Kind = iota

	// KindQuota errors indicate a rate-limit or quota signal; the retry
	// policy rotates credentials before retrying.
	KindQuota

	// KindTransient errors indicate temporary unavailability; the retry
	// policy backs off and retries with the same credentials.
	KindTransient
)

// ErrQuotaExhausted is returned when every configured credential is marked
// failed. It is fatal for the calling operation, not retryable.
var ErrQuotaExhausted = errors.New("all provider credentials exhausted")

// Error wraps a provider failure with its classification.
type Error struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindQuota:
		return fmt.Sprintf("provider quota exceeded: %v", e.Err)
	case KindTransient:
		return fmt.Sprintf("provider temporarily unavailable: %v", e.Err)
	default:
		return fmt.Sprintf("provider error: %v", e.Err)
	}
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// QuotaError wraps err as a quota-exceeded provider error.
func QuotaError(err error) error {
	return &Error{Kind: KindQuota, Err: err}
}

// TransientError wraps err as a transient-unavailability provider error.
func TransientError(err error) error {
	return &Error{Kind: KindTransient, Err: err}
}

// FatalError wraps err as a non-retryable provider error.
func FatalError(err error) error {
	return &Error{Kind: KindFatal, Err: err}
}

// KindOf returns the classification of err. Errors carrying an explicit
// *Error are used as-is; anything else falls back to message sniffing,
// which covers providers that only surface plain error strings.
func KindOf(err error) Kind {
	if err == nil {
		return KindFatal
	}

	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}

	return classifyMessage(err.Error())
}

// classifyMessage maps an error message onto a Kind by substring matching.
func classifyMessage(msg string) Kind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "quota"),
		strings.Contains(m, "insufficient_quota"),
		strings.Contains(m, "rate limit"),
		strings.Contains(m, "resource_exhausted"),
		strings.Contains(m, "429"):
		return KindQuota
	case strings.Contains(m, "unavailable"),
		strings.Contains(m, "temporarily"),
		strings.Contains(m, "timeout"),
		strings.Contains(m, "overloaded"),
		strings.Contains(m, "503"):
		return KindTransient
	default:
		return KindFatal
	}
}
