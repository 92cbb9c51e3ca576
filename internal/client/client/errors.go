package client

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrRejected     = errors.New("request rejected")
	ErrNoSession    = errors.New("no wallet session")
)

// mapStatus converts a non-2xx response into a sentinel, keeping the
// server's message when it sent one.
func mapStatus(code int, msg string) error {
	var base error
	switch {
	case code == http.StatusUnauthorized:
		base = ErrUnauthorized
	case code == http.StatusForbidden:
		base = ErrForbidden
	case code == http.StatusNotFound:
		base = ErrNotFound
	case code == http.StatusTooManyRequests:
		base = ErrRateLimited
	case code >= 500:
		base = ErrUnavailable
	default:
		base = ErrRejected
	}
	if msg == "" {
		return fmt.Errorf("%w (status %d)", base, code)
	}
	return fmt.Errorf("%w: %s", base, msg)
}

// mapCode is mapStatus for gRPC status errors.
func mapCode(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var base error
	switch st.Code() {
	case codes.Unauthenticated:
		base = ErrUnauthorized
	case codes.PermissionDenied:
		base = ErrForbidden
	case codes.NotFound:
		base = ErrNotFound
	case codes.ResourceExhausted:
		base = ErrRateLimited
	case codes.Unavailable, codes.DeadlineExceeded, codes.Internal, codes.Unknown:
		base = ErrUnavailable
	default:
		base = ErrRejected
	}
	if st.Message() == "" {
		return fmt.Errorf("%w (code %s)", base, st.Code())
	}
	return fmt.Errorf("%w: %s", base, st.Message())
}
