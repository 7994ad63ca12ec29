// Package errs defines the structured build-time error type shared by the
// root package and every component that can fail to build (internal/router,
// internal/udma), grounded on the teacher's errors.go. It lives here rather
// than in the root package because router.Build/udma.Build need to
// construct it and the root package imports both of them to compose a
// platform — a straight root-defines-Error layout would cycle, the same
// problem internal/simhost solves for Host.
package errs

import "fmt"

// ErrorCode is a high-level category for a build-time configuration failure.
type ErrorCode string

const (
	ErrCodeInvalidConfig    ErrorCode = "invalid configuration"
	ErrCodeUnsupportedIface ErrorCode = "unsupported interface"
	ErrCodeMissingBlock     ErrorCode = "missing configuration block"
	ErrCodeResourceExceeded ErrorCode = "resource exceeded"
)

// Error is a structured build-time error: bad router mappings, an
// unsupported uDMA interface/version pair, or a missing config block (spec
// §7 "Config/build error"). Per-request faults never use this type — they
// stay the lightweight ioreq.Status the hardware models return instead of
// raising, per §7's propagation policy.
type Error struct {
	Op    string
	Code  ErrorCode
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("gvsoc: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("gvsoc: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError creates a structured build error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError wraps an existing error with an operation and code.
func WrapError(op string, code ErrorCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}
