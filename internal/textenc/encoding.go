// Package textenc detects and converts the text encodings used by Plasma
// text assets.
//
// Encoding is identified by a byte order mark at the start of the payload:
//
//	EF BB BF      UTF-8
//	FF FE         UTF-16 (little endian)
//	FF FE 00 00   UTF-32 (little endian)
//	(none)        ANSI (Windows-1252)
//
// Detect sniffs the mark from a stream and leaves the cursor on the first
// content byte. WriteBOM emits exactly the bytes Detect recognizes, so a
// document saved with a mode is loaded back with the same mode.
package textenc

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/plasmashop/internal/stream"
)

// Mode is a text encoding.
type Mode int

const (
	// Ansi is a single byte code page with no BOM.
	Ansi Mode = iota
	// UTF8 is UTF-8 with a 3-byte BOM.
	UTF8
	// UTF16 is little endian UTF-16 with a 2-byte BOM.
	UTF16
	// UTF32 is little endian UTF-32 with a 4-byte BOM.
	UTF32
)

// ErrUnknownMode is returned for an encoding mode outside the enumeration.
var ErrUnknownMode = errors.New("unknown encoding mode")

// String returns the display name of the mode.
func (m Mode) String() string {
	switch m {
	case Ansi:
		return "ANSI"
	case UTF8:
		return "UTF-8"
	case UTF16:
		return "UTF-16"
	case UTF32:
		return "UTF-32"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Valid returns true if m is one of the defined modes.
func (m Mode) Valid() bool {
	return m >= Ansi && m <= UTF32
}

// ParseMode parses an encoding name. Matching is case-insensitive and
// accepts names with or without a dash ("utf8", "UTF-8").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ansi", "ascii", "cp1252", "windows-1252":
		return Ansi, nil
	case "utf8", "utf-8":
		return UTF8, nil
	case "utf16", "utf-16", "utf-16le":
		return UTF16, nil
	case "utf32", "utf-32", "utf-32le":
		return UTF32, nil
	default:
		return Ansi, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// BOM (Byte Order Mark) constants
var (
	bomUTF8  = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16 = []byte{0xFF, 0xFE}
	bomUTF32 = []byte{0xFF, 0xFE, 0x00, 0x00}
)

// BOM returns a copy of the byte order mark written for mode.
// ANSI has no mark and returns nil.
func BOM(mode Mode) []byte {
	var mark []byte
	switch mode {
	case UTF8:
		mark = bomUTF8
	case UTF16:
		mark = bomUTF16
	case UTF32:
		mark = bomUTF32
	default:
		return nil
	}
	out := make([]byte, len(mark))
	copy(out, mark)
	return out
}

// WriteBOM writes the byte order mark for mode to w.
func WriteBOM(w io.Writer, mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}
	mark := BOM(mode)
	if len(mark) == 0 {
		return nil
	}
	_, err := w.Write(mark)
	return err
}

// Detect classifies the encoding of s by its byte order mark.
//
// On return the cursor sits on the first payload byte: after the mark when
// one was recognized, otherwise back where it started. Streams shorter than
// two bytes are ANSI and are not read at all.
func Detect(s stream.Stream) Mode {
	var mark [4]byte
	if !readMark(s, mark[:2]) {
		return Ansi
	}

	switch {
	case mark[0] == 0xFF && mark[1] == 0xFE:
		if readMark(s, mark[2:4]) {
			if mark[2] == 0 && mark[3] == 0 {
				return UTF32
			}
			// First UTF-16 code unit, not part of the mark.
			_ = s.Rewind(2)
		}
		return UTF16

	case mark[0] == 0xEF && mark[1] == 0xBB:
		if readMark(s, mark[2:3]) {
			if mark[2] == 0xBF {
				return UTF8
			}
			_ = s.Rewind(3)
			return Ansi
		}
		_ = s.Rewind(2)
		return Ansi

	default:
		_ = s.Rewind(2)
		return Ansi
	}
}

// readMark fills buf from s only when enough bytes remain.
func readMark(s stream.Stream, buf []byte) bool {
	if stream.Remaining(s) < int64(len(buf)) {
		return false
	}
	_, err := io.ReadFull(s, buf)
	return err == nil
}
