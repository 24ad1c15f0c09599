// Package apierror normalizes every failed backend call into one taxonomy so
// feature code branches on Kind, never on transport details.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

type Kind string

const (
	KindNetwork      Kind = "NETWORK"
	KindTimeout      Kind = "TIMEOUT"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindNotFound     Kind = "NOT_FOUND"
	KindRateLimited  Kind = "RATE_LIMITED"
	KindServer       Kind = "SERVER"
	KindBadRequest   Kind = "BAD_REQUEST"
	KindUnknown      Kind = "UNKNOWN"
)

// Body is the backend's error envelope.
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is a normalized API failure.
type Error struct {
	Kind    Kind   `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so errors.Is(err, apierror.Unauthorized()) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var defaultMessages = map[Kind]string{
	KindNetwork:      "The server could not be reached. Check your connection and try again.",
	KindTimeout:      "The request took too long and was cancelled.",
	KindUnauthorized: "Your session has ended. Please sign in again.",
	KindForbidden:    "You do not have access to this resource.",
	KindNotFound:     "The requested resource was not found.",
	KindRateLimited:  "Too many requests. Please wait a moment and try again.",
	KindServer:       "Something went wrong on our side. Please try again later.",
	KindBadRequest:   "The request could not be processed.",
	KindUnknown:      "An unexpected error occurred.",
}

// codeMessages maps backend machine codes to user facing text.
var codeMessages = map[string]string{
	"VALIDATION_FAILED":     "Some fields are invalid. Review the form and try again.",
	"MISSING_FIELDS":        "Required fields are missing.",
	"INVALID_JSON":          "The request was not understood.",
	"TENANT_MISMATCH":       "This area belongs to a different organisation type.",
	"INVALID_CREDENTIALS":   "The email or password is incorrect.",
	"DUPLICATE_ENROLLEE":    "An enrollee with these details already exists.",
	"PLAN_INACTIVE":         "The selected plan is no longer active.",
	"AUTHORIZATION_EXPIRED": "The authorization code has expired.",
}

// New builds an Error with the kind's default message.
func New(kind Kind) *Error {
	return &Error{Kind: kind, Message: MessageFor(kind, "")}
}

// Unauthorized is what callers receive once refresh and retry are exhausted.
func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: defaultMessages[KindUnauthorized]}
}

// MessageFor returns the canned message for a server code, or for the kind
// when the code is unknown.
func MessageFor(kind Kind, code string) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	if msg, ok := defaultMessages[kind]; ok {
		return msg
	}
	return defaultMessages[KindUnknown]
}

// KindForStatus maps a non-2xx status to a Kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest:
		return KindBadRequest
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500 && status <= 599:
		return KindServer
	default:
		return KindUnknown
	}
}

// FromResponse normalizes a non-2xx response. It reads at most 64KiB of the
// body looking for the {"code","message"} envelope; the caller still closes it.
func FromResponse(resp *http.Response) *Error {
	kind := KindForStatus(resp.StatusCode)
	e := &Error{Kind: kind, Status: resp.StatusCode}

	var body Body
	if resp.Body != nil {
		if data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil && len(data) > 0 {
			_ = json.Unmarshal(data, &body)
		}
	}
	e.Code = body.Code
	e.Message = MessageFor(kind, body.Code)
	if kind != KindBadRequest && body.Message != "" {
		e.Err = errors.New(body.Message)
	}
	return e
}

// FromTransport normalizes an error returned by http.Client.Do.
func FromTransport(err error) *Error {
	kind := KindNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &Error{Kind: kind, Message: defaultMessages[kind], Err: err}
}

// Normalize is the single entry point: anything already normalized is
// returned as is, anything else is treated as a transport failure.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return FromTransport(err)
}

// IsKind reports whether err normalizes to kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return Normalize(err).Kind == kind
}
