// Package elf reads and writes Plasma encrypted log files (.elf).
//
// A log file is a sequence of line records. Each record starts with a little
// endian uint16 holding the line length XORed with the low 16 bits of the
// record's file offset, followed by the scrambled line bytes. Scrambling is
// a byte chain seeded from the low byte of the record offset, so identical
// lines at different offsets never look alike.
package elf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"path/filepath"
	"strings"
)

// Ext is the file extension of encrypted log files.
const Ext = ".elf"

// MaxLineLength is the longest line a record header can describe.
const MaxLineLength = 0xFFFF

// Standard errors returned by the elf package.
var (
	// ErrTruncated indicates a record runs past the end of the data.
	ErrTruncated = errors.New("elf: truncated record")

	// ErrLineTooLong indicates a line exceeds MaxLineLength bytes.
	ErrLineTooLong = errors.New("elf: line too long")
)

// IsLogPath returns true if path has the encrypted log extension.
func IsLogPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Ext)
}

// Decode returns the lines stored in data.
// Line bytes are returned as-is; log files are ANSI or UTF-8 text.
func Decode(data []byte) ([]string, error) {
	var lines []string

	for off := 0; off < len(data); {
		if len(data)-off < 2 {
			return lines, fmt.Errorf("%w: header at offset %d", ErrTruncated, off)
		}
		size := int(binary.LittleEndian.Uint16(data[off:]) ^ uint16(off))
		start := off + 2
		if len(data)-start < size {
			return lines, fmt.Errorf("%w: %d byte line at offset %d", ErrTruncated, size, off)
		}

		line := make([]byte, size)
		descramble(line, data[start:start+size], byte(off))
		lines = append(lines, string(line))
		off = start + size
	}

	return lines, nil
}

// Encode builds a log file holding lines.
func Encode(lines []string) ([]byte, error) {
	var out []byte

	for i, line := range lines {
		if len(line) > MaxLineLength {
			return nil, fmt.Errorf("%w: line %d has %d bytes", ErrLineTooLong, i+1, len(line))
		}
		off := len(out)
		out = binary.LittleEndian.AppendUint16(out, uint16(len(line))^uint16(off))

		rec := make([]byte, len(line))
		scramble(rec, []byte(line), byte(off))
		out = append(out, rec...)
	}

	return out, nil
}

func scramble(dst, src []byte, key byte) {
	for i, p := range src {
		c := bits.RotateLeft8(p^key, 2)
		dst[i] = c
		key = c
	}
}

func descramble(dst, src []byte, key byte) {
	for i, c := range src {
		dst[i] = bits.RotateLeft8(c, -2) ^ key
		key = c
	}
}
