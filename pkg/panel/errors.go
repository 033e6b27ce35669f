package panel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// ErrInvalidState is returned by Session methods when an operation is not
// valid in the session's current lifecycle state. It is a local validation
// failure: no request is sent.
var ErrInvalidState = errors.New("operation not valid in current session state")

// Kind partitions every failure the client can produce.
type Kind uint8

const (
	// KindNetwork covers connection failures, DNS failures, and timeouts.
	// Always a transient candidate; never implies server-side state change.
	KindNetwork Kind = iota + 1

	// KindServer covers any 4xx/5xx HTTP response.
	KindServer

	// KindParse covers response bodies that did not decode into the
	// expected shape (panel/client version skew).
	KindParse

	// KindNotModified is a 304 response to a conditional Users request.
	// Semantically "no new data", not a true failure; callers must branch
	// on it via IsNotModified rather than treat any error as fatal.
	KindNotModified
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindParse:
		return "parse"
	case KindNotModified:
		return "not_modified"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by every client operation.
type Error struct {
	Kind Kind

	// StatusCode is set for KindServer errors so callers can branch
	// (e.g. 401 vs 500).
	StatusCode int

	// Message is a human-readable description. For server errors it is
	// extracted best-effort from the response body.
	Message string

	// URL is the request path (query stripped).
	URL string

	// Timeout is set for KindNetwork errors caused by the configured
	// timeout or a cancelled context deadline.
	Timeout bool

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindServer:
		return fmt.Sprintf("panel: server error %d: %s (%s)", e.StatusCode, e.Message, e.URL)
	case KindNetwork:
		if e.Timeout {
			return fmt.Sprintf("panel: request timed out (%s): %v", e.URL, e.Err)
		}
		return fmt.Sprintf("panel: network error (%s): %v", e.URL, e.Err)
	case KindParse:
		return fmt.Sprintf("panel: parse error (%s): %v", e.URL, e.Err)
	case KindNotModified:
		return fmt.Sprintf("panel: not modified (%s)", e.URL)
	default:
		return fmt.Sprintf("panel: %s (%s)", e.Message, e.URL)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func serverError(status int, message, path string) *Error {
	return &Error{Kind: KindServer, StatusCode: status, Message: message, URL: path}
}

func networkError(path string, err error) *Error {
	return &Error{Kind: KindNetwork, URL: path, Timeout: isTimeout(err), Err: err}
}

func parseError(path string, err error) *Error {
	return &Error{Kind: KindParse, URL: path, Err: err}
}

func notModified(path string) *Error {
	return &Error{Kind: KindNotModified, URL: path}
}

func hasKind(err error, k Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == k
}

// IsServerError reports whether err is a 4xx/5xx panel response.
func IsServerError(err error) bool { return hasKind(err, KindServer) }

// IsNetworkError reports whether err is a transport-level failure.
func IsNetworkError(err error) bool { return hasKind(err, KindNetwork) }

// IsParseError reports whether err is a response-decoding failure.
func IsParseError(err error) bool { return hasKind(err, KindParse) }

// IsNotModified reports whether err is a 304 conditional-request result.
func IsNotModified(err error) bool { return hasKind(err, KindNotModified) }

// IsTimeout reports whether err is a network error caused by a timeout.
func IsTimeout(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindNetwork && pe.Timeout
}

// StatusCode returns the HTTP status carried by a server error, or 0.
func StatusCode(err error) int {
	var pe *Error
	if errors.As(err, &pe) && pe.Kind == KindServer {
		return pe.StatusCode
	}
	return 0
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
