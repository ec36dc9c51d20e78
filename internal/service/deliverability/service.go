// Package deliverability asks a third-party service whether an email
// address can receive mail.
package deliverability

import (
	"context"
	"errors"
	"fmt"
)

// Verdict is the outcome of one deliverability lookup.
type Verdict string

const (
	Deliverable   Verdict = "deliverable"
	Undeliverable Verdict = "undeliverable"
	// CheckFailed means no verdict could be obtained. It is never a claim
	// about the address itself.
	CheckFailed Verdict = "check_failed"
)

// Service errors
var (
	ErrNotConfigured = errors.New("deliverability api key not configured")
	ErrUpstream      = errors.New("deliverability upstream error")
	ErrRateLimited   = errors.New("deliverability rate limit exceeded")
	ErrRejected      = errors.New("deliverability request rejected")
)

// UpstreamErrorKind classifies lookup failures.
type UpstreamErrorKind string

const (
	UpstreamErrorKindTransport   UpstreamErrorKind = "transport"
	UpstreamErrorKindStatus      UpstreamErrorKind = "status"
	UpstreamErrorKindRateLimited UpstreamErrorKind = "rate_limited"
	UpstreamErrorKindDecode      UpstreamErrorKind = "decode"
	UpstreamErrorKindRejected    UpstreamErrorKind = "rejected"
)

// UpstreamError carries response metadata for a failed lookup.
type UpstreamError struct {
	Kind   UpstreamErrorKind
	Status int
	cause  error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "deliverability upstream error"
	}
	if e.cause == nil {
		return fmt.Sprintf("deliverability upstream error (kind=%s status=%d)", e.Kind, e.Status)
	}
	return fmt.Sprintf("deliverability upstream error (kind=%s status=%d): %v", e.Kind, e.Status, e.cause)
}

// Unwrap enables errors.Is against the sentinel errors.
func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Temporary reports whether repeating the lookup could succeed.
func (e *UpstreamError) Temporary() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case UpstreamErrorKindTransport, UpstreamErrorKindRateLimited:
		return true
	case UpstreamErrorKindStatus:
		return e.Status >= 500
	default:
		return false
	}
}

// Service performs deliverability lookups.
//
// Check returns Deliverable or Undeliverable with a nil error, or
// CheckFailed with the error that prevented a verdict.
type Service interface {
	Check(ctx context.Context, email string) (Verdict, error)
}
