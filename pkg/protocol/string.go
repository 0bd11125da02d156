package protocol

import (
	"unicode/utf8"
)

// MaxStringLen is the maximum number of characters in a protocol string.
const MaxStringLen = 32767

// AppendString appends a VarInt-length-prefixed UTF-8 string to dst.
// Strings longer than MaxStringLen characters are rejected.
func AppendString(dst []byte, s string) ([]byte, error) {
	if utf8.RuneCountInString(s) > MaxStringLen {
		return dst, ErrStringTooLong
	}
	dst = AppendVarInt(dst, int32(len(s)))
	return append(dst, s...), nil
}

// DecodeString decodes a VarInt-length-prefixed UTF-8 string from the front
// of b, returning the string and the number of bytes consumed.
func DecodeString(b []byte) (string, int, error) {
	byteLen, n, err := DecodeVarInt(b)
	if err != nil {
		return "", 0, err
	}
	if byteLen < 0 {
		return "", 0, ErrInvalidUTF8
	}
	if len(b)-n < int(byteLen) {
		return "", 0, ErrIncomplete
	}
	raw := b[n : n+int(byteLen)]
	if !utf8.Valid(raw) {
		return "", 0, ErrInvalidUTF8
	}
	if utf8.RuneCount(raw) > MaxStringLen {
		return "", 0, ErrStringTooLong
	}
	return string(raw), n + int(byteLen), nil
}
