package textenc

import (
	"fmt"
	"strings"
)

// LineEnding represents the line ending style.
type LineEnding string

const (
	// LineEndingLF is Unix-style line ending (\n).
	LineEndingLF LineEnding = "lf"

	// LineEndingCRLF is Windows-style line ending (\r\n). Plasma writes this.
	LineEndingCRLF LineEnding = "crlf"

	// LineEndingCR is old Mac-style line ending (\r).
	LineEndingCR LineEnding = "cr"

	// LineEndingMixed indicates mixed line endings.
	LineEndingMixed LineEnding = "mixed"
)

// ParseLineEnding parses a line ending name. The empty string and "keep"
// map to LineEndingMixed, which NormalizeLineEndings leaves untouched.
func ParseLineEnding(s string) (LineEnding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lf", "unix":
		return LineEndingLF, nil
	case "crlf", "windows", "dos":
		return LineEndingCRLF, nil
	case "cr", "mac":
		return LineEndingCR, nil
	case "", "keep", "mixed":
		return LineEndingMixed, nil
	default:
		return LineEndingMixed, fmt.Errorf("unknown line ending %q", s)
	}
}

// DetectLineEnding detects the dominant line ending in text.
// Returns LineEndingMixed if multiple styles are found with similar frequency.
func DetectLineEnding(text string) LineEnding {
	var lf, crlf, cr int

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				crlf++
				i++
			} else {
				cr++
			}
		case '\n':
			lf++
		}
	}

	total := lf + crlf + cr
	if total == 0 {
		return LineEndingLF
	}

	// Mixed when more than one style has at least 10% of the total.
	threshold := max(total/10, 1)
	styles := 0
	for _, n := range []int{lf, crlf, cr} {
		if n >= threshold {
			styles++
		}
	}
	if styles > 1 {
		return LineEndingMixed
	}

	if crlf >= lf && crlf >= cr {
		return LineEndingCRLF
	}
	if cr > lf {
		return LineEndingCR
	}
	return LineEndingLF
}

// NormalizeLineEndings converts all line endings to the specified style.
// LineEndingMixed returns text unchanged.
func NormalizeLineEndings(text string, ending LineEnding) string {
	var newline string
	switch ending {
	case LineEndingLF:
		newline = "\n"
	case LineEndingCRLF:
		newline = "\r\n"
	case LineEndingCR:
		newline = "\r"
	default:
		return text
	}

	// First normalize everything to LF
	lf := strings.ReplaceAll(text, "\r\n", "\n")
	lf = strings.ReplaceAll(lf, "\r", "\n")
	if ending == LineEndingLF {
		return lf
	}
	return strings.ReplaceAll(lf, "\n", newline)
}

// CountLines counts the number of lines in text.
// A trailing newline does not start an extra line.
func CountLines(text string) int {
	if text == "" {
		return 0
	}

	lines := 1
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			lines++
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
		case '\n':
			lines++
		}
	}

	last := text[len(text)-1]
	if last == '\n' || last == '\r' {
		lines--
	}
	return lines
}
