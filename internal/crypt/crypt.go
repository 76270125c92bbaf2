// Package crypt implements the Plasma encrypted file container.
//
// An encrypted file is a 12-byte magic string naming the algorithm, the
// little endian uint32 plaintext length, and the ciphertext padded with
// zeros to the cipher block size:
//
//	whatdoyousee  XTEA with the engine key (8-byte blocks)
//	notthedroids  XTEA with a user supplied 128-bit key (8-byte blocks)
//	BriceIsSmart  AES-128-CBC with the engine key (16-byte blocks)
//
// Each algorithm is a Provider; callers pick one with NewProvider and never
// branch on the mode themselves.
package crypt

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is the encryption applied to a file.
type Mode int

const (
	// None stores the payload unencrypted.
	None Mode = iota
	// XTEA uses the engine's fixed XTEA key.
	XTEA
	// AES uses the engine's fixed AES key.
	AES
	// Droid uses XTEA with a key supplied by the user.
	Droid
)

// Standard errors returned by the crypt package.
var (
	// ErrKeyRequired indicates a droid container needs a key before it can
	// be read or written. Callers are expected to obtain one and retry.
	ErrKeyRequired = errors.New("encryption key required")

	// ErrInvalidKey indicates a key string could not be parsed.
	ErrInvalidKey = errors.New("invalid encryption key")

	// ErrUnsupportedMode indicates an encryption mode outside the enumeration.
	ErrUnsupportedMode = errors.New("unsupported encryption mode")

	// ErrCorruptContainer indicates a truncated or malformed container.
	ErrCorruptContainer = errors.New("corrupt encrypted container")
)

// String returns the display name of the mode.
func (m Mode) String() string {
	switch m {
	case None:
		return "None"
	case XTEA:
		return "XTEA"
	case AES:
		return "AES"
	case Droid:
		return "Droid"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// NeedsKey returns true if the mode requires a user supplied key.
func (m Mode) NeedsKey() bool {
	return m == Droid
}

// ParseMode parses an encryption mode name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "", "plain":
		return None, nil
	case "xtea", "uru":
		return XTEA, nil
	case "aes", "eoa":
		return AES, nil
	case "droid", "notthedroids":
		return Droid, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
	}
}

const (
	// MagicSize is the length of the container magic string.
	MagicSize = 12

	// HeaderSize is the magic plus the plaintext length field.
	HeaderSize = MagicSize + 4
)

var magics = map[Mode]string{
	XTEA:  "whatdoyousee",
	Droid: "notthedroids",
	AES:   "BriceIsSmart",
}

// Magic returns the container magic for mode, or nil for None.
func Magic(mode Mode) []byte {
	m, ok := magics[mode]
	if !ok {
		return nil
	}
	return []byte(m)
}

// Probe reports whether header starts with a container magic and which
// algorithm it names. header may be longer than MagicSize.
func Probe(header []byte) (Mode, bool) {
	if len(header) < MagicSize {
		return None, false
	}
	magic := string(header[:MagicSize])
	for mode, m := range magics {
		if magic == m {
			return mode, true
		}
	}
	return None, false
}

// IsEncrypted returns true if header starts with any container magic.
func IsEncrypted(header []byte) bool {
	_, ok := Probe(header)
	return ok
}
