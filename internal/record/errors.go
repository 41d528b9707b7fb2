package record

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors raised by the synchronization core.
type ErrorCode string

const (
	// ErrCodeValidation indicates a record is missing required meta fields.
	// Fatal to the whole import batch.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNotFound indicates a referenced identity, record or source could
	// not be resolved.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidInput indicates malformed collection membership or
	// arguments.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeIO indicates a file read, write or copy failure.
	ErrCodeIO ErrorCode = "IO"

	// ErrCodeDependedUpon indicates a prune was refused because a surviving
	// record still depends on the target.
	ErrCodeDependedUpon ErrorCode = "DEPENDED_UPON"
)

// Error is the structured error type of the synchronization core.
// Identity and Path carry enough context to diagnose the failing record.
type Error struct {
	Code     ErrorCode
	Message  string
	Identity string
	Path     string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Identity != "" {
		msg += fmt.Sprintf(" (uuid=%s)", e.Identity)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, identity, message string) *Error {
	return &Error{Code: code, Identity: identity, Message: message}
}

// WrapIO wraps a filesystem error for the given path.
func WrapIO(path, message string, err error) *Error {
	return &Error{Code: ErrCodeIO, Message: message, Path: path, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsInvalidInput reports whether err is an invalid-input error.
func IsInvalidInput(err error) bool {
	return CodeOf(err) == ErrCodeInvalidInput
}

// IsIO reports whether err is an IO error.
func IsIO(err error) bool {
	return CodeOf(err) == ErrCodeIO
}

// IsDependedUpon reports whether err is a refused prune.
func IsDependedUpon(err error) bool {
	return CodeOf(err) == ErrCodeDependedUpon
}
