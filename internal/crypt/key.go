package crypt

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Key is a 128-bit droid key stored as four 32-bit words.
//
// A Key value is always a real key, including the all-zero one. Code that
// may not have a key yet holds a *Key and uses nil for "not provided".
type Key [4]uint32

// ParseKey parses a key written either as 32 hex digits or as four 8-digit
// hex words separated by spaces, commas or colons. A 0x prefix on words is
// accepted.
func ParseKey(s string) (Key, error) {
	var k Key

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == ':' || r == '\n' || r == '\r'
	})
	for i, f := range fields {
		fields[i] = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
	}

	switch len(fields) {
	case 1:
		if len(fields[0]) != 32 {
			return k, fmt.Errorf("%w: want 32 hex digits, got %d", ErrInvalidKey, len(fields[0]))
		}
		for i := range k {
			w, err := parseWord(fields[0][i*8 : i*8+8])
			if err != nil {
				return k, err
			}
			k[i] = w
		}
	case 4:
		for i, f := range fields {
			w, err := parseWord(f)
			if err != nil {
				return k, err
			}
			k[i] = w
		}
	default:
		return k, fmt.Errorf("%w: want 4 words, got %d", ErrInvalidKey, len(fields))
	}
	return k, nil
}

func parseWord(s string) (uint32, error) {
	if len(s) == 0 || len(s) > 8 {
		return 0, fmt.Errorf("%w: word %q", ErrInvalidKey, s)
	}
	w, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: word %q", ErrInvalidKey, s)
	}
	return uint32(w), nil
}

// String renders the key as four space separated hex words.
func (k Key) String() string {
	return fmt.Sprintf("%08X %08X %08X %08X", k[0], k[1], k[2], k[3])
}

// Bytes returns the key as 16 bytes, each word big endian.
// This is the layout golang.org/x/crypto/xtea expects.
func (k Key) Bytes() []byte {
	out := make([]byte, 16)
	for i, w := range k {
		binary.BigEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// Ptr returns a pointer to a copy of k.
func (k Key) Ptr() *Key {
	return &k
}
