package shared

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors. Every one of them matches [ErrAuth].
	ErrAuth             = fmt.Errorf("authentication error")
	ErrAuthFailed       = fmt.Errorf("%w: authentication failed", ErrAuth)
	ErrNotAuthenticated = fmt.Errorf("%w: not authenticated", ErrAuth)
	ErrTokenExpired     = fmt.Errorf("%w: access token expired", ErrAuth)
	ErrRefreshFailed    = fmt.Errorf("%w: token refresh failed", ErrAuth)
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrRateLimited      = fmt.Errorf("rate limited")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrDuplicateName    = fmt.Errorf("playlist name already exists")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// RateLimitError is returned when a provider throttles a request.
//
// RetryAfter is the delay requested by the provider, zero when none was sent.
type RateLimitError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %s)", e.Service, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Service)
}

// Is reports a match against [ErrRateLimited].
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// IsAuthError reports whether err is any authentication failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth)
}
