package gvsoc

import "github.com/jiangjiandong/gvsoc/internal/errs"

// ErrorCode is a high-level category for a build-time configuration failure.
type ErrorCode = errs.ErrorCode

const (
	ErrCodeInvalidConfig    = errs.ErrCodeInvalidConfig
	ErrCodeUnsupportedIface = errs.ErrCodeUnsupportedIface
	ErrCodeMissingBlock     = errs.ErrCodeMissingBlock
	ErrCodeResourceExceeded = errs.ErrCodeResourceExceeded
)

// Error is a structured build-time error: bad router mappings, an
// unsupported uDMA interface/version pair, or a missing config block (spec
// §7 "Config/build error"). Per-request faults never use this type — they
// stay the lightweight ioreq.Status the hardware models return instead of
// raising, per §7's propagation policy. Defined in internal/errs so
// internal/router and internal/udma can construct it without importing this
// package back.
type Error = errs.Error

// NewError creates a structured build error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return errs.NewError(op, code, msg)
}

// WrapError wraps an existing error with an operation and code.
func WrapError(op string, code ErrorCode, inner error) *Error {
	return errs.WrapError(op, code, inner)
}
