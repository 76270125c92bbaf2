// Package stream provides the seekable byte stream used by document I/O.
//
// A Stream behaves like a file cursor over a byte sequence: it knows its
// size and position, can seek, and exposes one-token lookahead through
// Peek and Rewind so format sniffers never need ad hoc seek arithmetic.
package stream

import (
	"errors"
	"io"
)

// Common errors returned by stream operations.
var (
	// ErrNegativePosition is returned when a seek or rewind would move the
	// cursor before the start of the stream.
	ErrNegativePosition = errors.New("stream: negative position")

	// ErrInvalidWhence is returned for an unknown Seek whence value.
	ErrInvalidWhence = errors.New("stream: invalid whence")
)

// Stream is a seekable byte stream.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker

	// Pos returns the current cursor position.
	Pos() int64

	// Size returns the total number of bytes in the stream.
	Size() int64

	// EOF returns true if the cursor is at or past the end.
	EOF() bool

	// Peek returns the next n bytes without moving the cursor.
	// Returns io.ErrUnexpectedEOF if fewer than n bytes remain.
	Peek(n int) ([]byte, error)

	// Rewind moves the cursor back by n bytes.
	Rewind(n int) error
}

// Remaining returns the number of bytes between the cursor and the end.
func Remaining(s Stream) int64 {
	r := s.Size() - s.Pos()
	if r < 0 {
		return 0
	}
	return r
}

// ReadRest reads everything from the cursor to the end of the stream.
func ReadRest(s Stream) ([]byte, error) {
	buf := make([]byte, Remaining(s))
	if _, err := io.ReadFull(s, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Skip advances the cursor by n bytes.
// Returns io.ErrUnexpectedEOF without moving if fewer than n bytes remain.
func Skip(s Stream, n int) error {
	if int64(n) > Remaining(s) {
		return io.ErrUnexpectedEOF
	}
	_, err := s.Seek(int64(n), io.SeekCurrent)
	return err
}
