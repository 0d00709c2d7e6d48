package xerrors

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Error is an HTTP-mappable failure. Reason is the machine-readable status
// code written to the response body; senders key their retry behavior off
// the HTTP status, operators key alerting off the reason.
type Error struct {
	StatusCode int
	Reason     string
	Message    string
	Cause      error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func BadRequest(opts ...Option) *Error         { return newErr(http.StatusBadRequest, opts) }
func Unauthorized(opts ...Option) *Error       { return newErr(http.StatusUnauthorized, opts) }
func TooManyRequests(opts ...Option) *Error    { return newErr(http.StatusTooManyRequests, opts) }
func PayloadTooLarge(opts ...Option) *Error    { return newErr(http.StatusRequestEntityTooLarge, opts) }
func Internal(opts ...Option) *Error           { return newErr(http.StatusInternalServerError, opts) }
func ServiceUnavailable(opts ...Option) *Error { return newErr(http.StatusServiceUnavailable, opts) }

func newErr(status int, opts []Option) *Error {
	e := &Error{
		StatusCode: status,
		Reason:     defaultReason(status),
		Message:    strings.ToLower(http.StatusText(status)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultReason(status int) string {
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}

type Option func(*Error)

func WithReason(reason string) Option  { return func(e *Error) { e.Reason = reason } }
func WithMessage(msg string) Option    { return func(e *Error) { e.Message = msg } }
func WithCause(err error) Option       { return func(e *Error) { e.Cause = err } }
func WithRetryAfter(d time.Duration) Option {
	return func(e *Error) { e.RetryAfter = d }
}

func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
