// Package syserr classifies failures of OS and firmware management calls.
//
// None of the kinds are fatal. Callers log them with the attached operation
// name and raw return code and carry on.
package syserr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported means the capability or interface is absent, or the OEM
	// did not match. It is permanent for the lifetime of the process.
	ErrUnsupported = errors.New("unsupported")

	// ErrPermissionDenied means the call needs elevation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTransient means the call returned a non-zero code for an unknown reason.
	ErrTransient = errors.New("transient failure")

	// ErrNotApplicable means the operation has nothing to act on, e.g. no
	// battery is present or no baseline was captured.
	ErrNotApplicable = errors.New("not applicable")
)

// Win32 and COM return codes that get a specific classification.
const (
	codeInvalidFunction    = 1
	codeFileNotFound       = 2
	codeAccessDenied       = 5
	codeNotSupported       = 50
	codeCallNotImplemented = 120
	hresultAccessDenied    = 0x80070005
	hresultNotSupported    = 0x80070032
)

// Error is a classified failure of a single operation.
type Error struct {
	Kind error
	Op   string
	// Code is the raw Win32 error, HRESULT, or OEM return value. Zero when
	// the failure did not come from a return code.
	Code uint32
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code 0x%08X)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the error kind, so errors.Is(err, ErrPermissionDenied) works.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an Error of the given kind.
func New(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf returns an Error of the given kind with a formatted cause.
func Newf(kind error, op string, format string, a ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, a...)}
}

// FromCode classifies a raw return code. It returns nil for zero.
func FromCode(op string, code uint32) error {
	if code == 0 {
		return nil
	}
	return &Error{Kind: KindOfCode(code), Op: op, Code: code}
}

// KindOfCode maps a raw return code to one of the sentinel kinds.
func KindOfCode(code uint32) error {
	switch code {
	case codeAccessDenied, hresultAccessDenied:
		return ErrPermissionDenied
	case codeInvalidFunction, codeFileNotFound, codeNotSupported, codeCallNotImplemented, hresultNotSupported:
		return ErrUnsupported
	default:
		return ErrTransient
	}
}

// KindName returns a short label for err suitable for logs and metrics.
func KindName(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrNotApplicable):
		return "not_applicable"
	default:
		return "transient"
	}
}

// Hint returns a user-facing suggestion for err, or an empty string.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "may require Administrator"
	case errors.Is(err, ErrUnsupported):
		return "not supported on this machine"
	default:
		return ""
	}
}
