package selector

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/dshills/plasmashop/internal/crypt"
)

// Standard errors returned by the selector package.
var (
	// ErrNotFound indicates the file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied indicates the file cannot be read or written.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrIO indicates any other read or write failure (disk full, device
	// errors).
	ErrIO = errors.New("i/o failure")

	// ErrCorrupt indicates the file content does not match its format.
	ErrCorrupt = errors.New("corrupt file")

	// ErrReadOnlyFormat indicates the format cannot be written.
	ErrReadOnlyFormat = errors.New("format is read-only")

	// ErrWriterClosed indicates Commit after Close or a second Commit.
	ErrWriterClosed = errors.New("writer is closed")
)

// PathError represents an error associated with a file path.
type PathError struct {
	Op   string // Operation that failed (open, write, decode)
	Path string // File path
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError creates a new PathError.
func NewPathError(op, path string, err error) *PathError {
	return &PathError{Op: op, Path: path, Err: err}
}

// fsError classifies a file system error into the selector taxonomy,
// keeping the original error in the chain.
func fsError(op, path string, err error) error {
	var kind error
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = ErrPermissionDenied
	default:
		kind = ErrIO
	}
	return NewPathError(op, path, fmt.Errorf("%w: %w", kind, err))
}

// IsNotFound returns true if the error indicates a file was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPermissionDenied returns true if the error indicates missing permissions.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsKeyRequired returns true if the error asks the caller for a droid key.
func IsKeyRequired(err error) bool {
	return errors.Is(err, crypt.ErrKeyRequired)
}
