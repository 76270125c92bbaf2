package textenc

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// ErrMalformedEncoding indicates a fixed-width payload whose length is not a
// multiple of the code unit size.
var ErrMalformedEncoding = errors.New("malformed encoding")

// ANSI is the Windows code page Plasma writes. The five bytes it leaves
// undefined (0x81, 0x8D, 0x8F, 0x90, 0x9D) map to the C1 controls of the
// same value, so every byte survives a load and save unchanged.
var ansiCodepage = charmap.Windows1252

func decodeAnsi(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		r := ansiCodepage.DecodeByte(c)
		if r == utf8.RuneError {
			r = rune(c)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func encodeAnsi(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if c, ok := ansiCodepage.EncodeRune(r); ok {
			out = append(out, c)
			continue
		}
		if r >= 0x80 && r <= 0x9F && ansiCodepage.DecodeByte(byte(r)) == utf8.RuneError {
			out = append(out, byte(r))
			continue
		}
		out = append(out, encoding.ASCIISub)
	}
	return out
}

// codecFor returns the x/text encoding that transforms payloads for mode.
// BOMs are handled by Detect and WriteBOM, never by the codec.
func codecFor(mode Mode) (encoding.Encoding, int, error) {
	switch mode {
	case Ansi:
		return ansiCodepage, 1, nil
	case UTF8:
		return unicode.UTF8, 1, nil
	case UTF16:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), 2, nil
	case UTF32:
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), 4, nil
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}
}

// Decode converts a payload (without BOM) into text.
//
// Invalid UTF-8 and unpaired UTF-16 surrogates decode to U+FFFD. UTF-16 and
// UTF-32 payloads with leftover bytes return ErrMalformedEncoding.
func Decode(data []byte, mode Mode) (string, error) {
	enc, unit, err := codecFor(mode)
	if err != nil {
		return "", err
	}
	if rem := len(data) % unit; rem != 0 {
		return "", fmt.Errorf("%w: %s payload of %d bytes has %d trailing bytes",
			ErrMalformedEncoding, mode, len(data), rem)
	}

	if mode == Ansi {
		return decodeAnsi(data), nil
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", mode, err)
	}
	return string(out), nil
}

// Encode converts text into a payload (without BOM).
//
// Runes that ANSI cannot represent are replaced by the ASCII substitute
// byte rather than failing the save.
func Encode(text string, mode Mode) ([]byte, error) {
	enc, _, err := codecFor(mode)
	if err != nil {
		return nil, err
	}
	if mode == Ansi {
		return encodeAnsi(text), nil
	}

	out, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", mode, err)
	}
	return out, nil
}
