package stream

import (
	"io"
)

// MemStream implements Stream over an in-memory byte slice.
//
// Writes overwrite existing bytes at the cursor and extend the stream when
// they run past the end. MemStream is not safe for concurrent use.
type MemStream struct {
	data []byte
	pos  int64
}

// Ensure MemStream implements Stream.
var _ Stream = (*MemStream)(nil)

// NewMemStream creates a stream positioned at offset 0 over data.
// The slice is used directly; callers must not modify it afterwards.
func NewMemStream(data []byte) *MemStream {
	return &MemStream{data: data}
}

// Bytes returns the stream content.
func (m *MemStream) Bytes() []byte {
	return m.data
}

// Pos returns the current cursor position.
func (m *MemStream) Pos() int64 { return m.pos }

// Size returns the number of bytes in the stream.
func (m *MemStream) Size() int64 { return int64(len(m.data)) }

// EOF returns true if the cursor is at or past the end.
func (m *MemStream) EOF() bool { return m.pos >= int64(len(m.data)) }

// Read implements io.Reader.
func (m *MemStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if m.EOF() {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

// Write implements io.Writer.
func (m *MemStream) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if oldLen := int64(len(m.data)); end > oldLen {
		if end > int64(cap(m.data)) {
			grown := make([]byte, end, end*2)
			copy(grown, m.data)
			m.data = grown
		} else {
			m.data = m.data[:end]
			if m.pos > oldLen {
				clear(m.data[oldLen:m.pos])
			}
		}
	}
	copy(m.data[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

// Seek implements io.Seeker. Seeking past the end is allowed; a following
// Write fills the gap with zero bytes.
func (m *MemStream) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = m.pos + offset
	case io.SeekEnd:
		abs = int64(len(m.data)) + offset
	default:
		return m.pos, ErrInvalidWhence
	}
	if abs < 0 {
		return m.pos, ErrNegativePosition
	}
	m.pos = abs
	return abs, nil
}

// Peek returns the next n bytes without moving the cursor.
func (m *MemStream) Peek(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativePosition
	}
	if int64(n) > Remaining(m) {
		return nil, io.ErrUnexpectedEOF
	}
	out := make([]byte, n)
	copy(out, m.data[m.pos:])
	return out, nil
}

// Rewind moves the cursor back by n bytes.
func (m *MemStream) Rewind(n int) error {
	if int64(n) > m.pos {
		return ErrNegativePosition
	}
	m.pos -= int64(n)
	return nil
}
