// Package textdecode decodes backslash escape sequences embedded in free text.
package textdecode

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Status describes how Decode treated its input.
type Status int

const (
	// StatusPlain means the input contained no escape sequences.
	StatusPlain Status = iota
	// StatusDecoded means at least one escape sequence was decoded.
	StatusDecoded
	// StatusFallback means the input was malformed and returned unchanged.
	StatusFallback
)

func (s Status) String() string {
	switch s {
	case StatusPlain:
		return "plain"
	case StatusDecoded:
		return "decoded"
	case StatusFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Result holds the decoded text and how it was produced.
type Result struct {
	Text   string
	Status Status
}

// Degraded reports whether the decoder had to fall back to the raw input.
func (r Result) Degraded() bool {
	return r.Status == StatusFallback
}

var simpleEscapes = map[byte]rune{
	'\\': '\\',
	'\'': '\'',
	'"':  '"',
	'a':  '\a',
	'b':  '\b',
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'v':  '\v',
}

// Decode interprets \n, \t, \xHH, \uXXXX, \UXXXXXXXX, octal and quote escapes in text.
// Unknown escapes are kept verbatim. A truncated or invalid hex escape, or a
// trailing lone backslash, returns the original text with StatusFallback.
// Decode is not idempotent: decoding "\\u0041" twice yields "A".
func Decode(text string) Result {
	if !strings.Contains(text, `\`) {
		return Result{Text: text, Status: StatusPlain}
	}

	var sb strings.Builder
	sb.Grow(len(text))

	for i := 0; i < len(text); {
		c := text[i]
		if c != '\\' {
			sb.WriteByte(c)
			i++
			continue
		}

		if i+1 >= len(text) {
			return Result{Text: text, Status: StatusFallback}
		}

		next := text[i+1]
		if r, ok := simpleEscapes[next]; ok {
			sb.WriteRune(r)
			i += 2
			continue
		}

		switch {
		case next == '\n':
			// escaped line continuation
			i += 2
		case next >= '0' && next <= '7':
			end := i + 2
			for end < len(text) && end < i+4 && text[end] >= '0' && text[end] <= '7' {
				end++
			}
			v, _ := strconv.ParseUint(text[i+1:end], 8, 32)
			sb.WriteRune(rune(v))
			i = end
		case next == 'x' || next == 'u' || next == 'U':
			width := hexWidth(next)
			start := i + 2
			if start+width > len(text) {
				return Result{Text: text, Status: StatusFallback}
			}
			v, err := strconv.ParseUint(text[start:start+width], 16, 32)
			if err != nil {
				return Result{Text: text, Status: StatusFallback}
			}
			r := rune(v)
			if next == 'U' && !utf8.ValidRune(r) {
				return Result{Text: text, Status: StatusFallback}
			}
			sb.WriteRune(r)
			i = start + width
		default:
			sb.WriteByte('\\')
			sb.WriteByte(next)
			i += 2
		}
	}

	decoded := sb.String()
	if decoded == text {
		return Result{Text: text, Status: StatusPlain}
	}
	return Result{Text: decoded, Status: StatusDecoded}
}

func hexWidth(kind byte) int {
	switch kind {
	case 'x':
		return 2
	case 'u':
		return 4
	default:
		return 8
	}
}
