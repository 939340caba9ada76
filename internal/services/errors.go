package services

import (
	"errors"
	"fmt"
)

// ErrorKind tags engine failures so callers can switch on the tag instead of
// probing error structure. Unknown failures surface as ExecutionError.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "InvalidInput"
	KindInsufficientDeposit ErrorKind = "InsufficientDeposit"
	KindUnauthorized        ErrorKind = "Unauthorized"
	KindNotFound            ErrorKind = "NotFound"
	KindTooEarly            ErrorKind = "TooEarly"
	KindWindowClosed        ErrorKind = "WindowClosed"
	KindAlreadyFinalized    ErrorKind = "AlreadyFinalized"
	KindNotReady            ErrorKind = "NotReady"
	KindNoParticipants      ErrorKind = "NoParticipants"
	KindContractDisabled    ErrorKind = "ContractDisabled"
	KindExecutionError      ErrorKind = "ExecutionError"

	// KindPartialTransferFailure is reported per winner inside a
	// distribution report; it is never returned as a call-level error.
	KindPartialTransferFailure ErrorKind = "PartialTransferFailure"
)

// Error is a tagged engine error.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errf builds a tagged error with a formatted message.
func Errf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the tag from err, or ExecutionError for untagged errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExecutionError
}

// IsKind reports whether err carries the given tag.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
