// Package directory reads the remote demo user directory and merges it with
// locally saved profiles into the users listing.
package directory

import (
	"context"
	"errors"
	"fmt"
)

// Service errors
var (
	ErrUpstream    = errors.New("directory upstream error")
	ErrRateLimited = errors.New("directory rate limit exceeded")
	ErrForbidden   = errors.New("directory access forbidden")
)

// UpstreamErrorKind classifies directory upstream failures.
type UpstreamErrorKind string

const (
	UpstreamErrorKindTransport   UpstreamErrorKind = "transport"
	UpstreamErrorKindForbidden   UpstreamErrorKind = "forbidden"
	UpstreamErrorKindRateLimited UpstreamErrorKind = "rate_limited"
	UpstreamErrorKindUpstream    UpstreamErrorKind = "upstream"
	UpstreamErrorKindDecode      UpstreamErrorKind = "decode"
)

// UpstreamError includes directory response metadata for error mapping.
type UpstreamError struct {
	Kind   UpstreamErrorKind
	Status int
	Page   int
	cause  error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "directory upstream error"
	}
	if e.cause == nil {
		return fmt.Sprintf("directory upstream error (kind=%s status=%d page=%d)", e.Kind, e.Status, e.Page)
	}
	return fmt.Sprintf("directory upstream error (kind=%s status=%d page=%d): %v", e.Kind, e.Status, e.Page, e.cause)
}

// Unwrap enables errors.Is/As against sentinel service errors.
func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// User is the normalized directory record shared by remote and local sources.
type User struct {
	Name  string
	Email string
	Phone string
}

// Service lists every user the remote directory knows about.
type Service interface {
	ListUsers(ctx context.Context) ([]User, error)
}
