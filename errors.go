package datachannel

import (
	"errors"
	"fmt"

	"github.com/obinnaokechukwu/datachannel/internal/bindings"
	"github.com/obinnaokechukwu/datachannel/native"
)

// Error kinds. Every *Error unwraps to exactly one of the native kinds, so
// callers can test with errors.Is.
var (
	// ErrInvalid indicates the native layer rejected an argument.
	ErrInvalid = errors.New("datachannel: invalid argument")

	// ErrFailure indicates a native runtime failure.
	ErrFailure = errors.New("datachannel: operation failed")

	// ErrNotAvailable indicates the requested element is not available.
	ErrNotAvailable = errors.New("datachannel: not available")

	// ErrTooSmall indicates a buffer was too small for the result.
	ErrTooSmall = errors.New("datachannel: buffer too small")

	// ErrUnknownNative indicates a native code outside the known set.
	ErrUnknownNative = errors.New("datachannel: unknown native error")

	// ErrClosed indicates the resource has been closed.
	ErrClosed = errors.New("datachannel: resource is closed")

	// ErrNotLoaded indicates the native library is not loaded.
	ErrNotLoaded = bindings.ErrNotLoaded

	// ErrLibraryNotFound indicates the native library could not be found.
	ErrLibraryNotFound = bindings.ErrLibraryNotFound
)

// Error is an error returned by a native operation.
type Error struct {
	Code int32  // Raw native result code
	Op   string // Native operation that failed
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("datachannel %s: %s (code %d)", e.Op, describeCode(e.Code), e.Code)
}

// Unwrap returns the error kind for the code.
func (e *Error) Unwrap() error {
	switch e.Code {
	case native.ErrInvalid:
		return ErrInvalid
	case native.ErrFailure:
		return ErrFailure
	case native.ErrNotAvail:
		return ErrNotAvailable
	case native.ErrTooSmall:
		return ErrTooSmall
	default:
		return ErrUnknownNative
	}
}

func describeCode(code int32) string {
	switch code {
	case native.ErrInvalid:
		return "invalid argument"
	case native.ErrFailure:
		return "failure"
	case native.ErrNotAvail:
		return "not available"
	case native.ErrTooSmall:
		return "buffer too small"
	default:
		return "unknown error"
	}
}

// NewError creates an Error from a native result code.
// Returns nil if code >= 0.
func NewError(code int32, op string) error {
	if code >= 0 {
		return nil
	}
	return &Error{Code: code, Op: op}
}

// ErrorCode returns the native code from an error, or 0 if err is not an *Error.
func ErrorCode(err error) int32 {
	var rtcErr *Error
	if errors.As(err, &rtcErr) {
		return rtcErr.Code
	}
	return 0
}

// wrapError translates a native result. Non-negative results are returned
// unchanged; negative ones become an *Error.
func wrapError(op string, result int32) (int32, error) {
	if result >= 0 {
		return result, nil
	}
	return 0, &Error{Code: result, Op: op}
}

// checkResult is wrapError for operations without a useful result.
func checkResult(op string, result int32) error {
	_, err := wrapError(op, result)
	return err
}
