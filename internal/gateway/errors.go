// errors.go classifies gateway failures into a fixed taxonomy.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the classification of a failed request.
type Kind int

const (
	KindUnknown Kind = iota
	KindConnection
	KindSessionNotFound
	KindServer
	KindClient
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindSessionNotFound:
		return "session_not_found"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against any *Error of the same Kind.
var (
	ErrConnection      = errors.New("connection error")
	ErrSessionNotFound = errors.New("session not found")
	ErrServer          = errors.New("server error")
	ErrClient          = errors.New("client error")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnknown         = errors.New("unknown error")
)

// Error is the single error type returned by Execute.
type Error struct {
	Kind     Kind
	Status   int    // HTTP status, 0 when no response was received
	Endpoint string // request path
	Message  string // server-provided detail, if any
	Err      error  // underlying transport or decode error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s (HTTP %d): %s", e.Kind, e.Endpoint, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Endpoint, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool {
	return e.Kind == KindConnection || e.Kind == KindServer
}

func (k Kind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindSessionNotFound:
		return ErrSessionNotFound
	case KindServer:
		return ErrServer
	case KindClient:
		return ErrClient
	case KindRateLimited:
		return ErrRateLimited
	default:
		return ErrUnknown
	}
}

// classifyStatus maps a non-2xx HTTP status to a Kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindSessionNotFound
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindClient
	default:
		return KindUnknown
	}
}

// UserMessage returns the sentence shown to the candidate for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConnection):
		return "Unable to connect to the server. Please check your connection and try again."
	case errors.Is(err, ErrSessionNotFound):
		return "Your session has expired or could not be found. Please start a new session."
	case errors.Is(err, ErrServer):
		return "The server encountered an error. Please try again in a moment."
	case errors.Is(err, ErrRateLimited):
		return "Too many requests. Please wait a moment before trying again."
	case errors.Is(err, ErrClient):
		var gwErr *Error
		if errors.As(err, &gwErr) && gwErr.Message != "" {
			return gwErr.Message
		}
		return "The request was rejected. Please check your input and try again."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
