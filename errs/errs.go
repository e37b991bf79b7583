// Package errs defines the sentinel error kinds returned by every other
// package in this module. Callers should compare with errors.Is against the
// exported Kind constants; never against error strings.
package errs

import "fmt"

// Kind is a sentinel error identifying one of the failure modes a pyfat
// operation can signal. It is the comparison target for errors.Is.
type Kind string

func (k Kind) Error() string {
	return string(k)
}

// WithMessage returns an error that carries k as its kind (errors.Is still
// matches k) and appends message for human consumption.
func (k Kind) WithMessage(message string) error {
	return &DetailedError{kind: k, message: fmt.Sprintf("%s: %s", k, message)}
}

// WrapError returns an error that carries both k and err as causes:
// errors.Is matches against k and against err (and anything err wraps).
func (k Kind) WrapError(err error) error {
	return &DetailedError{
		kind:    k,
		message: fmt.Sprintf("%s: %s", k, err.Error()),
		wrapped: err,
	}
}

const (
	// InvalidState is returned when an operation is invoked on an image
	// context that is not in the state it requires -- e.g. calling a
	// mutating method before Open or New, or calling Open on an
	// already-open context.
	InvalidState = Kind("invalid state")

	// InvalidFormat is returned when the boot sector, a FAT copy, an
	// attribute byte, or a path shape violates an invariant this codec
	// requires.
	InvalidFormat = Kind("invalid format")

	// UnsupportedProfile is returned when the requested image size is not
	// 1440 KiB, or the computed cluster count falls outside the FAT12
	// range.
	UnsupportedProfile = Kind("unsupported profile")

	// NotFound is returned when a path lookup fails to resolve.
	NotFound = Kind("not found")

	// NotADirectory is returned when a directory-only operation is given a
	// path that resolves to a regular file.
	NotADirectory = Kind("not a directory")

	// NotAFile is returned when a file-only operation is given a path that
	// resolves to a directory.
	NotAFile = Kind("not a file")

	// DirectoryNotEmpty is returned by rm_dir when the target holds
	// children other than `.` and `..`.
	DirectoryNotEmpty = Kind("directory not empty")

	// RootCapacityExceeded is returned when an insertion into the root
	// directory would exceed its fixed 224-entry capacity.
	RootCapacityExceeded = Kind("root directory capacity exceeded")

	// NoSpace is returned when the FAT has too few free clusters to
	// satisfy an allocate or extend request.
	NoSpace = Kind("no space left on device")

	// NameTooLong is returned when an 8.3 name or extension exceeds its
	// length limit.
	NameTooLong = Kind("name too long")

	// IO is returned when a Source or Sink collaborator returns an error.
	IO = Kind("i/o error")
)

// DetailedError pairs a Kind with a human-readable message and, optionally,
// a wrapped cause. It implements Unwrap so errors.Is(err, SomeKind) and
// errors.Is(err, originalCause) both work after WithMessage/WrapError.
type DetailedError struct {
	kind    Kind
	message string
	wrapped error
}

func (e *DetailedError) Error() string {
	return e.message
}

func (e *DetailedError) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return k == e.kind
	}
	return false
}

func (e *DetailedError) Unwrap() error {
	return e.wrapped
}
