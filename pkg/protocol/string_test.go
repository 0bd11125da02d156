package protocol

import (
	"strings"
	"testing"
)

func TestStringRoundTrip(t *testing.T) {
	tests := []string{"", "a", "hello world", "héllo", "水水水", strings.Repeat("x", 32767)}
	for _, s := range tests {
		encoded, err := AppendString(nil, s)
		if err != nil {
			t.Fatalf("AppendString(%q): %v", s, err)
		}
		decoded, n, err := DecodeString(encoded)
		if err != nil {
			t.Fatalf("DecodeString(%q): %v", s, err)
		}
		if decoded != s || n != len(encoded) {
			t.Fatalf("roundtrip of %q: got (%q, %d)", s, decoded, n)
		}
	}
}

func TestStringTooLong(t *testing.T) {
	long := strings.Repeat("x", 32768)
	if _, err := AppendString(nil, long); err != ErrStringTooLong {
		t.Errorf("encode err = %v, want ErrStringTooLong", err)
	}

	encoded := AppendVarInt(nil, int32(len(long)))
	encoded = append(encoded, long...)
	if _, _, err := DecodeString(encoded); err != ErrStringTooLong {
		t.Errorf("decode err = %v, want ErrStringTooLong", err)
	}
}

func TestStringInvalidUTF8(t *testing.T) {
	encoded := AppendVarInt(nil, 2)
	encoded = append(encoded, 0xff, 0xfe)
	if _, _, err := DecodeString(encoded); err != ErrInvalidUTF8 {
		t.Errorf("err = %v, want ErrInvalidUTF8", err)
	}
}

func TestStringIncomplete(t *testing.T) {
	encoded, _ := AppendString(nil, "hello")
	if _, _, err := DecodeString(encoded[:3]); err != ErrIncomplete {
		t.Errorf("err = %v, want ErrIncomplete", err)
	}
}
