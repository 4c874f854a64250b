// pkg/archive/errors.go
package archive

import (
	"errors"
	"fmt"
)

// ErrorKind classifies session failures for callers that switch on the
// outcome rather than inspect wrapped errors.
type ErrorKind int

const (
	// ErrorNone means the last operation succeeded.
	ErrorNone ErrorKind = iota

	// ErrorExtractCancelled means extraction stopped on request, either
	// through Cancel or a progress callback returning false.
	ErrorExtractCancelled

	// ErrorLibraryNotFound means no decode engine could be located. The
	// session is permanently unusable.
	ErrorLibraryNotFound

	// ErrorArchiveNotFound means the archive path does not point at a
	// readable file, or no archive is open.
	ErrorArchiveNotFound

	// ErrorFailedToOpenArchive means the engine rejected the file.
	ErrorFailedToOpenArchive

	// ErrorLibraryError covers engine decode failures and failures while
	// materializing outputs.
	ErrorLibraryError

	// ErrorOutOfMemory means the staging area could not be created.
	ErrorOutOfMemory
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "no error"
	case ErrorExtractCancelled:
		return "extraction cancelled"
	case ErrorLibraryNotFound:
		return "decode engine not found"
	case ErrorArchiveNotFound:
		return "archive not found"
	case ErrorFailedToOpenArchive:
		return "failed to open archive"
	case ErrorLibraryError:
		return "decode engine error"
	case ErrorOutOfMemory:
		return "out of memory"
	default:
		return fmt.Sprintf("unknown error %d", int(k))
	}
}

// Error pairs a classified kind with its underlying cause.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the classification from err. Nil maps to ErrorNone and
// unclassified errors to ErrorLibraryError.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorNone
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ErrorLibraryError
}
