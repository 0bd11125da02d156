package protocol

import (
	"math"
	"testing"
)

func TestVarIntBoundaries(t *testing.T) {
	tests := []struct {
		value int32
		len   int
	}{
		{0, 1},
		{1, 1},
		{127, 1},
		{128, 2},
		{255, 2},
		{2097151, 3},
		{2147483647, 5},
		{-1, 5},
	}

	for _, tt := range tests {
		encoded := AppendVarInt(nil, tt.value)
		if len(encoded) != tt.len {
			t.Errorf("AppendVarInt(%d) wrote %d bytes, want %d", tt.value, len(encoded), tt.len)
		}
		if got := VarIntLen(tt.value); got != tt.len {
			t.Errorf("VarIntLen(%d) = %d, want %d", tt.value, got, tt.len)
		}

		decoded, n, err := DecodeVarInt(encoded)
		if err != nil {
			t.Errorf("DecodeVarInt(%d): %v", tt.value, err)
			continue
		}
		if decoded != tt.value || n != tt.len {
			t.Errorf("DecodeVarInt roundtrip of %d: got (%d, %d)", tt.value, decoded, n)
		}
	}
}

func TestVarIntRoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 64, 12345, -12345, math.MaxInt32, math.MinInt32, math.MaxInt32 - 1, math.MinInt32 + 1}
	for i := int32(0); i < 31; i++ {
		values = append(values, 1<<i, -(1 << i), (1<<i)-1, (1<<i)+1)
	}

	for _, v := range values {
		encoded := AppendVarInt(nil, v)
		decoded, n, err := DecodeVarInt(encoded)
		if err != nil {
			t.Fatalf("DecodeVarInt(%d): %v", v, err)
		}
		if decoded != v || n != len(encoded) {
			t.Fatalf("roundtrip of %d: got (%d, %d)", v, decoded, n)
		}
	}
}

func TestVarIntIncomplete(t *testing.T) {
	encoded := AppendVarInt(nil, math.MaxInt32)
	for i := 0; i < len(encoded); i++ {
		if _, _, err := DecodeVarInt(encoded[:i]); err != ErrIncomplete {
			t.Errorf("DecodeVarInt of %d-byte prefix: err = %v, want ErrIncomplete", i, err)
		}
	}
}

func TestVarIntTooLarge(t *testing.T) {
	b := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	if _, _, err := DecodeVarInt(b); err != ErrVarIntTooLarge {
		t.Errorf("err = %v, want ErrVarIntTooLarge", err)
	}
}

func TestVarLongRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, math.MaxInt64, math.MinInt64, math.MaxInt32, math.MinInt32}
	for i := int64(0); i < 63; i++ {
		values = append(values, 1<<i, -(1 << i), (1<<i)-1)
	}

	for _, v := range values {
		encoded := AppendVarLong(nil, v)
		if len(encoded) != VarLongLen(v) {
			t.Fatalf("VarLongLen(%d) = %d, want %d", v, VarLongLen(v), len(encoded))
		}
		decoded, n, err := DecodeVarLong(encoded)
		if err != nil {
			t.Fatalf("DecodeVarLong(%d): %v", v, err)
		}
		if decoded != v || n != len(encoded) {
			t.Fatalf("roundtrip of %d: got (%d, %d)", v, decoded, n)
		}
	}
}

func TestVarLongTooLarge(t *testing.T) {
	b := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	if _, _, err := DecodeVarLong(b); err != ErrVarLongTooLarge {
		t.Errorf("err = %v, want ErrVarLongTooLarge", err)
	}
}
