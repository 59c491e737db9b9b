package transport

import (
	"strings"
	"unicode/utf8"
)

// utf8Chunker turns arbitrary byte reads into strings that never end in the
// middle of a code point. The incomplete tail of one read is carried into
// the next.
type utf8Chunker struct {
	pending []byte
}

func (c *utf8Chunker) Push(p []byte) string {
	if len(c.pending) > 0 {
		p = append(c.pending, p...)
		c.pending = nil
	}
	cut := completePrefix(p)
	if cut < len(p) {
		c.pending = append([]byte(nil), p[cut:]...)
	}
	return decodeReplacing(p[:cut])
}

// Flush returns whatever is still held, with invalid bytes replaced.
func (c *utf8Chunker) Flush() string {
	if len(c.pending) == 0 {
		return ""
	}
	s := decodeReplacing(c.pending)
	c.pending = nil
	return s
}

// decodeReplacing converts p to a string, replacing every maximal invalid
// subsequence with one U+FFFD, the way a WHATWG TextDecoder does. "\xff\xfe"
// becomes two replacement characters, a truncated "\xe2\x82" becomes one.
func decodeReplacing(p []byte) string {
	if utf8.Valid(p) {
		return string(p)
	}
	var sb strings.Builder
	sb.Grow(len(p) + 2)
	for len(p) > 0 {
		r, size := utf8.DecodeRune(p)
		if r != utf8.RuneError || size > 1 {
			sb.Write(p[:size])
			p = p[size:]
			continue
		}
		sb.WriteRune(utf8.RuneError)
		p = p[maximalSubpart(p):]
	}
	return sb.String()
}

// maximalSubpart returns how many bytes at the start of p form the longest
// prefix of a well-formed sequence. It is at least 1.
func maximalSubpart(p []byte) int {
	need, lo, hi := 0, byte(0x80), byte(0xBF)
	switch c := p[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 1
	case c == 0xE0:
		need, lo = 2, 0xA0
	case c == 0xED:
		need, hi = 2, 0x9F
	case c >= 0xE1 && c <= 0xEF:
		need = 2
	case c == 0xF0:
		need, lo = 3, 0x90
	case c == 0xF4:
		need, hi = 3, 0x8F
	case c >= 0xF1 && c <= 0xF3:
		need = 3
	default:
		return 1
	}
	n := 1
	for n <= need && n < len(p) && p[n] >= lo && p[n] <= hi {
		lo, hi = 0x80, 0xBF
		n++
	}
	return n
}

// completePrefix returns the length of the longest prefix of p that does not
// end inside a multi-byte sequence that more bytes could still complete.
func completePrefix(p []byte) int {
	n := len(p)
	for back := 1; back <= utf8.UTFMax && back <= n; back++ {
		b := p[n-back]
		if !utf8.RuneStart(b) {
			continue
		}
		if utf8.FullRune(p[n-back:]) {
			return n
		}
		return n - back
	}
	return n
}
