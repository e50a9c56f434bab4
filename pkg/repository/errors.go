package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/Sternrassler/pokedex-client/pkg/client"
	"github.com/Sternrassler/pokedex-client/pkg/ratelimit"
)

// ErrorKind names a RepoError variant.
type ErrorKind string

const (
	// KindNetwork covers connectivity and timeout failures.
	KindNetwork ErrorKind = "network"

	// KindHTTP covers non-2xx responses.
	KindHTTP ErrorKind = "http"

	// KindUnknown covers everything unclassified.
	KindUnknown ErrorKind = "unknown"
)

// RepoError is the closed set of failures the repository reports. The only
// implementations are *NetworkError, *HTTPError and *UnknownError.
type RepoError interface {
	error
	Kind() ErrorKind
	UserMessage() string
	repoError()
}

// NetworkError is a connectivity or timeout failure.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	if e.Cause == nil {
		return "network error"
	}
	return fmt.Sprintf("network error: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error   { return e.Cause }
func (e *NetworkError) Kind() ErrorKind { return KindNetwork }
func (e *NetworkError) UserMessage() string {
	return "Network unavailable. Check your connection and try again."
}
func (e *NetworkError) repoError() {}

// HTTPError is a non-2xx upstream response.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d: %s", e.Code, e.Message)
}

func (e *HTTPError) Kind() ErrorKind { return KindHTTP }

func (e *HTTPError) UserMessage() string {
	if e.Message == "" {
		return fmt.Sprintf("Server error %d.", e.Code)
	}
	return fmt.Sprintf("Server error %d: %s.", e.Code, e.Message)
}

func (e *HTTPError) repoError() {}

// UnknownError wraps anything the mapper could not classify.
type UnknownError struct {
	Cause error
}

func (e *UnknownError) Error() string {
	if e.Cause == nil {
		return "unknown error"
	}
	return fmt.Sprintf("unknown error: %v", e.Cause)
}

func (e *UnknownError) Unwrap() error       { return e.Cause }
func (e *UnknownError) Kind() ErrorKind     { return KindUnknown }
func (e *UnknownError) UserMessage() string { return "Something went wrong. Please try again." }
func (e *UnknownError) repoError()          {}

var networkErrnos = []syscall.Errno{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.EPIPE,
	syscall.EHOSTUNREACH,
	syscall.ENETUNREACH,
}

// ToRepoError classifies err. It reports false for nil and for cancellation, which
// callers must propagate unchanged.
func ToRepoError(err error) (RepoError, bool) {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil, false
	}

	var repoErr RepoError
	if errors.As(err, &repoErr) {
		return repoErr, true
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return &HTTPError{Code: apiErr.StatusCode, Message: apiErr.Message}, true
	}

	// A request refused during an upstream cooldown reports the status that started it.
	if errors.Is(err, ratelimit.ErrCoolingDown) {
		code := http.StatusTooManyRequests
		var cooldownErr *ratelimit.CooldownError
		if errors.As(err, &cooldownErr) && cooldownErr.StatusCode != 0 {
			code = cooldownErr.StatusCode
		}
		return &HTTPError{Code: code, Message: http.StatusText(code)}, true
	}

	if isNetwork(err) {
		return &NetworkError{Cause: err}, true
	}

	return &UnknownError{Cause: err}, true
}

func isNetwork(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	for _, errno := range networkErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var netErr net.Error
	return errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &netErr)
}
