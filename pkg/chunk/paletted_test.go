package chunk

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"
)

func identityBits(v BlockState) uint64 { return uint64(v) }

func TestPalettedContainerRandomAssignments(t *testing.T) {
	const length = 100
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 20; trial++ {
		c := NewPalettedContainer[BlockState](length)

		init := BlockState(rng.Intn(64))
		c.Fill(init)

		var mirror [length]BlockState
		for i := range mirror {
			mirror[i] = init
		}

		for step := 0; step < length*10; step++ {
			idx := rng.Intn(length)
			val := BlockState(rng.Intn(64))

			if old := c.Set(idx, val); old != mirror[idx] {
				t.Fatalf("Set(%d, %d) returned %d, want %d", idx, val, old, mirror[idx])
			}
			mirror[idx] = val

			c.Optimize()

			for i, want := range mirror {
				if got := c.Get(i); got != want {
					t.Fatalf("trial %d step %d: Get(%d) = %d, want %d", trial, step, i, got, want)
				}
			}
		}
	}
}

func TestPalettedContainerRepresentationUpgrades(t *testing.T) {
	c := NewPalettedContainer[BlockState](SectionBlockCount)

	if c.indirect != nil || c.direct != nil {
		t.Fatal("new container should be single")
	}

	// Writing the existing value keeps the single representation.
	c.Set(0, 0)
	if c.indirect != nil || c.direct != nil {
		t.Fatal("no-op Set should not upgrade")
	}

	// A divergent value upgrades to indirect.
	c.Set(5, 1)
	if c.indirect == nil {
		t.Fatal("expected indirect after two distinct values")
	}

	// 17 distinct values force the direct representation.
	for v := BlockState(2); v <= 16; v++ {
		c.Set(int(v), v)
	}
	if c.direct == nil {
		t.Fatal("expected direct after 17 distinct values")
	}

	// Filling every cell with one value collapses back to single.
	c.Fill(7)
	if c.indirect != nil || c.direct != nil {
		t.Fatal("Fill should collapse to single")
	}
}

func TestPalettedContainerOptimizeDowngrades(t *testing.T) {
	c := NewPalettedContainer[BlockState](64)
	for v := BlockState(0); v < 20; v++ {
		c.Set(int(v), v)
	}
	if c.direct == nil {
		t.Fatal("expected direct")
	}

	// Rewrite everything to two values; optimize should find indirect.
	for i := 0; i < 64; i++ {
		c.Set(i, BlockState(i%2))
	}
	c.Optimize()
	if c.indirect == nil {
		t.Fatal("expected indirect after optimize")
	}

	for i := 0; i < 64; i++ {
		c.Set(i, 9)
	}
	c.Optimize()
	if c.indirect != nil || c.direct != nil {
		t.Fatal("expected single after optimize")
	}
	if c.Get(10) != 9 {
		t.Fatal("value lost during optimize")
	}
}

func TestEncodeSingle(t *testing.T) {
	// An air-filled block container encodes as bits_per_entry=0, one palette
	// entry, zero longs.
	c := NewPalettedContainer[BlockState](SectionBlockCount)
	got := c.EncodeMC(nil, identityBits, 4, 8, 15)
	want := []byte{0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("encoded = % x, want % x", got, want)
	}
}

func TestEncodeIndirect(t *testing.T) {
	// Alternating states 1 and 2 across all 4096 cells.
	c := NewPalettedContainer[BlockState](SectionBlockCount)
	for i := 0; i < SectionBlockCount; i++ {
		if i%2 == 0 {
			c.Set(i, 1)
		} else {
			c.Set(i, 2)
		}
	}

	// Drop the initial air entry the upgrade path left in the palette.
	c.Optimize()

	got := c.EncodeMC(nil, identityBits, 4, 8, 15)

	if got[0] != 4 {
		t.Fatalf("bits per entry = %d, want 4", got[0])
	}
	// Palette: length 2, entries 1 and 2.
	if got[1] != 2 || got[2] != 1 || got[3] != 2 {
		t.Fatalf("palette = % x", got[1:4])
	}
	// Long count 256 as a VarInt: 0x80 0x02.
	if got[4] != 0x80 || got[5] != 0x02 {
		t.Fatalf("long count = % x", got[4:6])
	}
	if len(got) != 6+256*8 {
		t.Fatalf("encoded length = %d, want %d", len(got), 6+256*8)
	}

	// First long packs indices 0,1,0,1,... LSB-first at 4 bits each.
	first := binary.BigEndian.Uint64(got[6:14])
	for j := 0; j < 16; j++ {
		idx := first >> (j * 4) & 0xf
		if idx != uint64(j%2) {
			t.Fatalf("entry %d of first long = %d, want %d", j, idx, j%2)
		}
	}
}

func TestEncodeDirectFallback(t *testing.T) {
	// 17 distinct values cannot fit an indirect palette; the direct form
	// writes directBits per entry with no palette.
	c := NewPalettedContainer[BlockState](64)
	for i := 0; i < 64; i++ {
		c.Set(i, BlockState(i%17)+100)
	}
	if c.direct == nil {
		t.Fatal("expected direct representation")
	}

	const directBits = 15
	got := c.EncodeMC(nil, identityBits, 4, 8, directBits)
	if got[0] != directBits {
		t.Fatalf("bits per entry = %d, want %d", got[0], directBits)
	}
	longCount := (64 + (64/directBits - 1)) / (64 / directBits)
	if int32(got[1]) != int32(longCount) {
		t.Fatalf("long count byte = %d, want %d", got[1], longCount)
	}

	first := binary.BigEndian.Uint64(got[2:10])
	for j := 0; j < 64/directBits; j++ {
		v := first >> (j * directBits) & (1<<directBits - 1)
		if v != uint64(j%17)+100 {
			t.Fatalf("entry %d = %d, want %d", j, v, j%17+100)
		}
	}
}

func TestEncodeIndirectBiomeNoMinimum(t *testing.T) {
	// Biomes use min_indirect_bits = 0, so a two-entry palette packs at one
	// bit per entry.
	c := NewPalettedContainer[BiomeID](SectionBiomeCount)
	for i := 0; i < SectionBiomeCount; i++ {
		c.Set(i, BiomeID(i%2))
	}
	got := c.EncodeMC(nil, func(b BiomeID) uint64 { return uint64(b) }, 0, 3, 6)
	if got[0] != 1 {
		t.Fatalf("bits per entry = %d, want 1", got[0])
	}
	// 64 one-bit entries fit in a single long.
	if got[4] != 1 || len(got) != 5+8 {
		t.Fatalf("long count = %d, len = %d", got[4], len(got))
	}
}
