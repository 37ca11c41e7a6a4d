package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a generation failure.
type Kind int

const (
	KindUnavailable Kind = iota
	KindRateLimited
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

var (
	// ErrUnavailable matches any GenerationError of kind Unavailable.
	ErrUnavailable = errors.New("generator unavailable")
	// ErrRateLimited matches any GenerationError of kind RateLimited.
	ErrRateLimited = errors.New("generator rate limited")
	// ErrInvalidResponse matches any GenerationError of kind InvalidResponse.
	ErrInvalidResponse = errors.New("generator returned an invalid response")

	// ErrMalformedResponse is returned by providers when the API payload cannot be decoded.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// APIError is a non-200 answer from a provider's HTTP API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// GenerationError is the only error type Generate returns.
type GenerationError struct {
	Backend  Backend
	Provider string
	Kind     Kind
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("generate via %s backend: %s: %v", e.Backend, e.Kind, e.Err)
	}
	return fmt.Sprintf("generate via %s backend (%s): %s: %v", e.Backend, e.Provider, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is lets callers match on the kind sentinels with errors.Is.
func (e *GenerationError) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrInvalidResponse:
		return e.Kind == KindInvalidResponse
	}
	return false
}

// KindOf extracts the failure kind from err.
func KindOf(err error) (Kind, bool) {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind, true
	}
	return 0, false
}

var rateLimitMarkers = []string{
	"quota",
	"rate limit",
	"rate_limit",
	"ratelimit",
	"limit exceeded",
	"too many requests",
	"resource_exhausted",
}

// classify maps a provider or transport error onto a Kind.
func classify(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return KindRateLimited
		case mentionsRateLimit(apiErr.Body):
			return KindRateLimited
		default:
			// Bad credentials, bad requests and server faults all mean this
			// backend cannot serve us right now.
			return KindUnavailable
		}
	}

	switch {
	case errors.Is(err, ErrMalformedResponse):
		return KindInvalidResponse
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindUnavailable
	case mentionsRateLimit(err.Error()):
		return KindRateLimited
	}
	return KindUnavailable
}

func mentionsRateLimit(s string) bool {
	s = strings.ToLower(s)
	for _, m := range rateLimitMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
