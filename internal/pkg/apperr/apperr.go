package apperr

import (
	"context"
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNetwork
	KindTimeout
	KindNotFound
	KindForbidden
	KindInvalidResponse
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidResponse:
		return "invalid_response"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks. A Timeout error also matches ErrNetwork.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNetwork         = &Error{Kind: KindNetwork}
	ErrTimeout         = &Error{Kind: KindTimeout}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrInvalidResponse = &Error{Kind: KindInvalidResponse}
	ErrBusy            = &Error{Kind: KindBusy}
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	// sentinel comparison only looks at the kind
	if t.Op != "" || t.Message != "" || t.Err != nil {
		return e == t
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindTimeout && t.Kind == KindNetwork
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op, message string) *Error {
	return New(KindValidation, op, message)
}

func NotFound(op, message string) *Error {
	return New(KindNotFound, op, message)
}

func Forbidden(op, message string) *Error {
	return New(KindForbidden, op, message)
}

func Busy(op, message string) *Error {
	return New(KindBusy, op, message)
}

func InvalidResponse(op, message string) *Error {
	return New(KindInvalidResponse, op, message)
}

// FromContext classifies an error returned from a network call made under ctx.
// Errors that already carry a kind pass through untouched.
func FromContext(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Message: "request timed out", Err: err}
	}
	return Wrap(KindNetwork, op, err)
}

func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Message returns the human readable text recorded on stores after a failure.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
