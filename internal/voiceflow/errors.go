package voiceflow

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Error kinds. Every error returned by Client wraps exactly one of these, so
// callers can match with errors.Is.
var (
	ErrConfig         = errors.New("voiceflow: invalid configuration")
	ErrAuthentication = errors.New("voiceflow: authentication failed")
	ErrRateLimited    = errors.New("voiceflow: rate limited")
	ErrNotFound       = errors.New("voiceflow: not found")
	ErrServer         = errors.New("voiceflow: server error")
	ErrRequest        = errors.New("voiceflow: request rejected")
	ErrNetwork        = errors.New("voiceflow: network error")
	ErrParse          = errors.New("voiceflow: invalid response")
)

// Error describes a failed API call.
type Error struct {
	Kind       error
	Method     string
	Path       string
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if target := strings.TrimSpace(e.Method + " " + e.Path); target != "" {
		msg += ": " + target
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (%d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// kindForStatus maps a non-2xx status code onto an error kind.
func kindForStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuthentication
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return ErrServer
	default:
		return ErrRequest
	}
}

// IsAuthentication returns true for a rejected or missing credential.
func IsAuthentication(err error) bool { return errors.Is(err, ErrAuthentication) }

// IsRateLimited returns true if the API answered 429 (Too Many Requests).
func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// IsNotFound returns true if the project or resource does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsServer returns true for 5xx responses.
func IsServer(err error) bool { return errors.Is(err, ErrServer) }

// IsNetwork returns true for transport failures and request timeouts.
func IsNetwork(err error) bool { return errors.Is(err, ErrNetwork) }

// IsParse returns true when a response failed validation.
func IsParse(err error) bool { return errors.Is(err, ErrParse) }

// retryAfter extracts the Retry-After hint from err, if any.
func retryAfter(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
