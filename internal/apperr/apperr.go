// Package apperr defines the error taxonomy shared by the colony counter
// packages. Every failure the core reports carries a Kind so callers can
// decide whether to retry, skip, or surface it.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes an Error.
type Kind string

const (
	// KindInvalidParameter marks a malformed detection parameter set.
	KindInvalidParameter Kind = "invalid_parameter"
	// KindEmptyImage marks an image with zero area.
	KindEmptyImage Kind = "empty_image"
	// KindImageNotFound marks an image that could not be opened or decoded.
	KindImageNotFound Kind = "image_not_found"
	// KindTaskFailure marks a batch task that returned an error or panicked.
	KindTaskFailure Kind = "task_failure"
	// KindExport marks a failure in one of the export serializers.
	KindExport Kind = "export"
	// KindSessionNotFound marks a lookup of an unknown session ID.
	KindSessionNotFound Kind = "session_not_found"
)

// Error is a structured error with a Kind and an optional cause.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// InvalidParameter creates an invalid_parameter error naming the offending field.
func InvalidParameter(field, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindInvalidParameter,
		Message: field + " " + fmt.Sprintf(format, args...),
	}
}

// EmptyImage creates an empty_image error.
func EmptyImage(message string) *Error {
	return &Error{Kind: KindEmptyImage, Message: message}
}

// ImageNotFound creates an image_not_found error for path.
func ImageNotFound(path string, cause error) *Error {
	return &Error{
		Kind:    KindImageNotFound,
		Message: fmt.Sprintf("image not found at path %q", path),
		Cause:   cause,
	}
}

// TaskFailure creates a task_failure error for the named task.
func TaskFailure(task string, cause error) *Error {
	return &Error{
		Kind:    KindTaskFailure,
		Message: fmt.Sprintf("task %s failed", task),
		Cause:   cause,
	}
}

// Export creates an export error.
func Export(message string, cause error) *Error {
	return &Error{Kind: KindExport, Message: message, Cause: cause}
}

// SessionNotFound reports an unknown session ID.
func SessionNotFound(id string) *Error {
	return &Error{Kind: KindSessionNotFound, Message: fmt.Sprintf("no session with id %q", id)}
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
