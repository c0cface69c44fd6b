package workoutapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why a remote call failed.
type Kind int

const (
	// KindNetwork means the request could not be sent or its response could not be read.
	KindNetwork Kind = iota + 1
	// KindRejected means the server answered with a non-2xx status.
	KindRejected
	// KindMalformed means the server answered 2xx with a body we could not understand.
	KindMalformed
	// KindUnauthenticated means an authenticated call was attempted without a token.
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindMalformed:
		return "malformed"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Sentinel errors matched by errors.Is against any *Error of the same kind.
var (
	ErrNetwork         = errors.New("workoutapi: network failure")
	ErrRejected        = errors.New("workoutapi: request rejected")
	ErrMalformed       = errors.New("workoutapi: malformed response")
	ErrUnauthenticated = errors.New("workoutapi: not authenticated")
)

// Error is returned by every Client operation that does not succeed.
type Error struct {
	Op         string
	Kind       Kind
	Status     int
	Message    string
	FromServer bool // Message was read from the response body
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRejected) and friends match on Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrRejected:
		return e.Kind == KindRejected
	case ErrMalformed:
		return e.Kind == KindMalformed
	case ErrUnauthenticated:
		return e.Kind == KindUnauthenticated
	}
	return false
}

// KindOf reports the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// MessageOf returns the server-provided message carried by err, if any.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// ServerMessageOf returns the message the server put in a rejection body, or "".
func ServerMessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.FromServer {
		return apiErr.Message
	}
	return ""
}

// IsUnauthenticated reports whether err means the session token is missing or no longer accepted.
func IsUnauthenticated(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Kind == KindUnauthenticated {
		return true
	}
	return apiErr.Kind == KindRejected &&
		(apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)
}
