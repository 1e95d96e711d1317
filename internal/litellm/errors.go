package litellm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"syscall"
)

// ErrorKind classifies a failed gateway call.
type ErrorKind string

const (
	KindModelNotFound   ErrorKind = "model_not_found"
	KindAPIError        ErrorKind = "api_error"
	KindInvalidResponse ErrorKind = "invalid_response"
	KindEmptyResponse   ErrorKind = "empty_response"
	KindHTTPStatus      ErrorKind = "http_status"
	KindTimeout         ErrorKind = "timeout"
	KindConnection      ErrorKind = "connection"
	KindMalformedJSON   ErrorKind = "malformed_json"
	KindUnexpected      ErrorKind = "unexpected"
)

// Error is returned by every Client method. Kind decides which user-facing
// message the chat pipeline shows.
type Error struct {
	Kind       ErrorKind
	StatusCode int    // set for KindHTTPStatus
	Model      string // offending model for KindModelNotFound, empty if unknown
	Message    string // upstream error text or response body
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("litellm: %s (%d): %s", e.Kind, e.StatusCode, e.Message)
	case KindModelNotFound:
		return fmt.Sprintf("litellm: model %q not found", e.Model)
	}
	if e.Err != nil {
		return fmt.Sprintf("litellm: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("litellm: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

// IsStatus reports whether err is a gateway HTTP status error with the given code.
func IsStatus(err error, code int) bool {
	gwErr, ok := AsError(err)
	return ok && gwErr.Kind == KindHTTPStatus && gwErr.StatusCode == code
}

var quotedName = regexp.MustCompile(`'([^']+)'`)

// modelFromNotFound pulls the first single-quoted name out of a
// NotFoundError message.
func modelFromNotFound(msg string) string {
	if m := quotedName.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return ""
}

// classifyTransport maps an http.Client error to a gateway error kind.
func classifyTransport(err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimeout, Err: err}
	case isConnectError(err):
		return &Error{Kind: KindConnection, Err: err}
	default:
		return &Error{Kind: KindUnexpected, Err: err}
	}
}

func isConnectError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
