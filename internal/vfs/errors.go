package vfs

import (
	"errors"
	"fmt"
)

// ResultCode is an engine result code.
type ResultCode int

const (
	ResultOK             ResultCode = 0
	ResultError          ResultCode = 1
	ResultBusy           ResultCode = 5
	ResultReadOnly       ResultCode = 8
	ResultIOErr          ResultCode = 10
	ResultCorrupt        ResultCode = 11
	ResultNotFound       ResultCode = 12
	ResultFull           ResultCode = 13
	ResultCantOpen       ResultCode = 14
	ResultMisuse         ResultCode = 21
	ResultIOErrRead      ResultCode = ResultIOErr | 1<<8
	ResultIOErrShortRead ResultCode = ResultIOErr | 2<<8
	ResultIOErrWrite     ResultCode = ResultIOErr | 3<<8
	ResultIOErrFsync     ResultCode = ResultIOErr | 4<<8
	ResultIOErrTruncate  ResultCode = ResultIOErr | 6<<8
	ResultIOErrDelete    ResultCode = ResultIOErr | 10<<8
)

// Primary returns the primary result code with extended bits removed.
func (c ResultCode) Primary() ResultCode { return c & 0xff }

// Error is a file operation error carrying an engine result code.
type Error struct {
	Code    ResultCode
	Message string
	Details string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("vfs: %s (code %d)", e.Message, e.Code)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by result code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new Error.
func NewError(code ResultCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details string) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, Cause: e.Cause}
}

// WithCause returns a copy of the error wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, Cause: cause}
}

// CodeOf extracts the result code from err.
// Returns ResultOK for nil and ResultIOErr for errors without a code.
func CodeOf(err error) ResultCode {
	if err == nil {
		return ResultOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ResultIOErr
}

var (
	// ErrShortRead reports a read that ended before the requested length.
	// The unread part of the destination has been zero-filled.
	ErrShortRead = NewError(ResultIOErrShortRead, "short read")

	// ErrCantOpen reports a file that cannot be opened.
	ErrCantOpen = NewError(ResultCantOpen, "unable to open file")

	// ErrIO reports a generic I/O failure.
	ErrIO = NewError(ResultIOErr, "disk I/O error")

	// ErrNotFound reports an unknown file.
	ErrNotFound = NewError(ResultNotFound, "file not found")

	// ErrReadOnly reports a write to a file opened read-only.
	ErrReadOnly = NewError(ResultReadOnly, "attempt to write a readonly file")
)
