// Package sjis handles text under the Shift_JIS encoding required for claim
// files: byte-length measurement, character-safe truncation, and the final
// UTF-8 to Shift_JIS transform.
package sjis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
	"golang.org/x/text/width"
)

// Replacement is substituted for characters Shift_JIS cannot represent.
const Replacement = '？'

// RuneLen returns the number of Shift_JIS bytes r encodes to, or ok=false if
// r has no Shift_JIS representation.
func RuneLen(r rune) (n int, ok bool) {
	if r < utf8.RuneSelf {
		return 1, true
	}
	b, _, err := transform.String(japanese.ShiftJIS.NewEncoder(), string(r))
	if err != nil {
		return 0, false
	}
	return len(b), true
}

// ByteLen returns the Shift_JIS byte length of s. Unrepresentable characters
// are counted as their replacement.
func ByteLen(s string) int {
	n := 0
	for _, r := range s {
		l, ok := RuneLen(r)
		if !ok {
			l, _ = RuneLen(Replacement)
		}
		n += l
	}
	return n
}

// Sanitize prepares free text for a claim field: half-width katakana are
// widened, the field delimiter and line breaks are replaced, and characters
// outside Shift_JIS become Replacement.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == ',':
			r = '，'
		case r == '\r' || r == '\n' || r == '\t':
			r = ' '
		case r >= 0xFF61 && r <= 0xFF9F:
			w := width.Widen.String(string(r))
			if w != "" {
				wr, _ := utf8.DecodeRuneInString(w)
				r = wr
			}
		}
		if _, ok := RuneLen(r); !ok {
			r = Replacement
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Truncate returns the longest prefix of s whose Shift_JIS encoding fits in
// max bytes. It never splits a character. s should already be sanitized.
func Truncate(s string, max int) string {
	n := 0
	for i, r := range s {
		l, ok := RuneLen(r)
		if !ok {
			l, _ = RuneLen(Replacement)
		}
		if n+l > max {
			return s[:i]
		}
		n += l
	}
	return s
}

// Encode converts UTF-8 text to Shift_JIS.
func Encode(s string) ([]byte, error) {
	b, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(s))
	if err != nil {
		return nil, fmt.Errorf("shift_jis encode: %w", err)
	}
	return b, nil
}

// Decode converts Shift_JIS bytes back to UTF-8.
func Decode(b []byte) (string, error) {
	s, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), b)
	if err != nil {
		return "", fmt.Errorf("shift_jis decode: %w", err)
	}
	return string(s), nil
}
