package bpipe

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

// Code mirrors the HTTP status codes. Errors carrying a code are rendered with that status
// when they reach the pipeline boundary.
type Code int

const (
	CodeUnknown               Code = 0
	CodeBadRequest            Code = http.StatusBadRequest            // RFC 9110, 15.5.1
	CodeUnauthorized          Code = http.StatusUnauthorized          // RFC 9110, 15.5.2
	CodeForbidden             Code = http.StatusForbidden             // RFC 9110, 15.5.4
	CodeNotFound              Code = http.StatusNotFound              // RFC 9110, 15.5.5
	CodeMethodNotAllowed      Code = http.StatusMethodNotAllowed      // RFC 9110, 15.5.6
	CodeRequestTimeout        Code = http.StatusRequestTimeout        // RFC 9110, 15.5.9
	CodeConflict              Code = http.StatusConflict              // RFC 9110, 15.5.10
	CodeRequestEntityTooLarge Code = http.StatusRequestEntityTooLarge // RFC 9110, 15.5.14
	CodeUnsupportedMediaType  Code = http.StatusUnsupportedMediaType  // RFC 9110, 15.5.16
	CodeUnprocessableEntity   Code = http.StatusUnprocessableEntity   // RFC 9110, 15.5.21
	CodeTooManyRequests       Code = http.StatusTooManyRequests       // RFC 6585, 4

	CodeInternalServerError Code = http.StatusInternalServerError // RFC 9110, 15.6.1
	CodeNotImplemented      Code = http.StatusNotImplemented      // RFC 9110, 15.6.2
	CodeServiceUnavailable  Code = http.StatusServiceUnavailable  // RFC 9110, 15.6.4
	CodeGatewayTimeout      Code = http.StatusGatewayTimeout      // RFC 9110, 15.6.5
)

var (
	// ErrConfiguration marks startup-time mistakes: bad patterns, duplicate routes, nil
	// handlers or interceptors. A pipeline is never built from a configuration that
	// produced one.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound is returned when no route pattern matches the request path.
	ErrNotFound = errors.New("no route matches the path")

	// ErrMethodNotAllowed is returned when a route pattern matches the path but not the
	// request method.
	ErrMethodNotAllowed = errors.New("method not allowed for the path")

	// ErrReentrantInvocation is raised when an interceptor calls its continuation twice.
	ErrReentrantInvocation = errors.New("next invoked more than once")

	// ErrResponseFinalized is returned by response mutators once the response left the
	// pipeline.
	ErrResponseFinalized = errors.New("response is finalized")
)

// Error describes an http error.
type Error struct {
	code Code
	err  error
}

// NewError inits a new error given the error code.
func NewError(c Code, underlying error) *Error {
	return &Error{c, underlying}
}

func (e *Error) Code() Code { return e.code }
func (e *Error) Error() string {
	status := http.StatusText(int(e.Code()))
	if status == "" {
		status = "Unknown"
	}

	return status + ": " + e.err.Error()
}

// Unwrap allows errors.Is to see the sentinel an *Error was built from.
func (e *Error) Unwrap() error { return e.err }

// CodeOf returns the error's status code if it is or wraps an [*Error] and
// [CodeUnknown] otherwise.
func CodeOf(err error) Code {
	if herr, ok := asError(err); ok {
		return herr.Code()
	}
	return CodeUnknown
}

func asError(err error) (*Error, bool) {
	var herr *Error
	ok := errors.As(err, &herr)
	return herr, ok
}

// MethodNotAllowedError is the concrete error behind [ErrMethodNotAllowed]. It lists the
// methods the matched path does accept.
type MethodNotAllowedError struct {
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string { return ErrMethodNotAllowed.Error() }

// Is makes errors.Is(err, ErrMethodNotAllowed) hold.
func (e *MethodNotAllowedError) Is(target error) bool { return target == ErrMethodNotAllowed }

// configErrorf builds an error marked with [ErrConfiguration].
func configErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
}

// configWrapf wraps err and marks it with [ErrConfiguration].
func configWrapf(err error, format string, args ...any) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrConfiguration)
}
