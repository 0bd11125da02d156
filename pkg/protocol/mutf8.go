package protocol

import (
	"unicode/utf16"
	"unicode/utf8"
)

// Java's modified UTF-8, as used by NBT string fields: U+0000 encodes as
// 0xC0 0x80, and code points at or above U+10000 encode as a surrogate pair
// with each half in the usual 3-byte form. Everything else matches standard
// UTF-8, so both directions have a fast path that returns the input
// unchanged.

// EncodeModifiedUTF8 converts s to modified UTF-8.
func EncodeModifiedUTF8(s string) []byte {
	if !needsModifiedUTF8(s) {
		return []byte(s)
	}

	out := make([]byte, 0, len(s)+4)
	for _, r := range s {
		switch {
		case r == 0:
			out = append(out, 0xc0, 0x80)
		case r < 0x10000:
			out = utf8.AppendRune(out, r)
		default:
			// utf8.AppendRune replaces surrogates with U+FFFD, so each half
			// is written in its 3-byte form by hand.
			hi, lo := utf16.EncodeRune(r)
			for _, h := range [2]rune{hi, lo} {
				out = append(out, 0xe0|byte(h>>12), 0x80|byte(h>>6)&0x3f, 0x80|byte(h)&0x3f)
			}
		}
	}
	return out
}

// DecodeModifiedUTF8 converts modified UTF-8 back to a string. Unpaired
// surrogates and other malformed sequences yield ErrInvalidUTF8.
func DecodeModifiedUTF8(b []byte) (string, error) {
	if utf8.Valid(b) {
		// Standard UTF-8 never contains the sequences that differ, so the
		// bytes are already the answer.
		return string(b), nil
	}

	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0:
			return "", ErrInvalidUTF8
		case c < 0x80:
			out = append(out, c)
			i++
		case c == 0xc0 && i+1 < len(b) && b[i+1] == 0x80:
			out = append(out, 0)
			i += 2
		default:
			r, size := utf8.DecodeRune(b[i:])
			if r != utf8.RuneError || size > 1 {
				out = append(out, b[i:i+size]...)
				i += size
				continue
			}
			// Possibly a surrogate pair: two 3-byte halves.
			hi, ok := decodeSurrogateHalf(b[i:])
			if !ok {
				return "", ErrInvalidUTF8
			}
			lo, ok := decodeSurrogateHalf(b[i+3:])
			if !ok {
				return "", ErrInvalidUTF8
			}
			combined := utf16.DecodeRune(hi, lo)
			if combined == utf8.RuneError {
				return "", ErrInvalidUTF8
			}
			out = utf8.AppendRune(out, combined)
			i += 6
		}
	}
	return string(out), nil
}

// needsModifiedUTF8 reports whether s contains a NUL or a code point that
// requires a surrogate pair.
func needsModifiedUTF8(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 || s[i] >= 0xf0 {
			return true
		}
	}
	return false
}

// decodeSurrogateHalf reads one UTF-16 surrogate encoded as a 3-byte
// sequence.
func decodeSurrogateHalf(b []byte) (rune, bool) {
	if len(b) < 3 || b[0]&0xf0 != 0xe0 || b[1]&0xc0 != 0x80 || b[2]&0xc0 != 0x80 {
		return 0, false
	}
	r := rune(b[0]&0x0f)<<12 | rune(b[1]&0x3f)<<6 | rune(b[2]&0x3f)
	if r < 0xd800 || r > 0xdfff {
		return 0, false
	}
	return r, true
}
