package world

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/go-mclib/server/pkg/chunk"
	"github.com/go-mclib/server/pkg/protocol"
)

// frameReader walks a decoded chunk data frame the way a client would.
type frameReader struct {
	t    *testing.T
	data []byte
	off  int
}

func (r *frameReader) u8() byte {
	b := r.data[r.off]
	r.off++
	return b
}

func (r *frameReader) i16() int16 {
	v := int16(binary.BigEndian.Uint16(r.data[r.off:]))
	r.off += 2
	return v
}

func (r *frameReader) i32() int32 {
	v := int32(binary.BigEndian.Uint32(r.data[r.off:]))
	r.off += 4
	return v
}

func (r *frameReader) i64() uint64 {
	v := binary.BigEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

func (r *frameReader) varInt() int32 {
	v, n, err := protocol.DecodeVarInt(r.data[r.off:])
	if err != nil {
		r.t.Fatalf("varint at offset %d: %v", r.off, err)
	}
	r.off += n
	return v
}

// palettedCells decodes one paletted container into per-cell values.
func (r *frameReader) palettedCells(cells, minBits, maxBits int) []uint64 {
	out := make([]uint64, cells)

	bitsPerEntry := int(r.u8())
	if bitsPerEntry == 0 {
		value := uint64(r.varInt())
		if n := r.varInt(); n != 0 {
			r.t.Fatalf("single form with %d longs", n)
		}
		for i := range out {
			out[i] = value
		}
		return out
	}

	var palette []uint64
	if bitsPerEntry <= maxBits {
		if bitsPerEntry < minBits {
			r.t.Fatalf("bits per entry %d below minimum %d", bitsPerEntry, minBits)
		}
		count := r.varInt()
		palette = make([]uint64, count)
		for i := range palette {
			palette[i] = uint64(r.varInt())
		}
	}

	longCount := int(r.varInt())
	perLong := 64 / bitsPerEntry
	if want := (cells + perLong - 1) / perLong; longCount != want {
		r.t.Fatalf("long count = %d, want %d", longCount, want)
	}
	mask := uint64(1)<<bitsPerEntry - 1

	i := 0
	for l := 0; l < longCount; l++ {
		word := r.i64()
		for j := 0; j < perLong && i < cells; j++ {
			idx := word >> (j * bitsPerEntry) & mask
			if palette != nil {
				if int(idx) >= len(palette) {
					r.t.Fatalf("palette index %d out of bounds", idx)
				}
				out[i] = palette[idx]
			} else {
				out[i] = idx
			}
			i++
		}
	}
	return out
}

func TestChunkInitPacketRoundTrip(t *testing.T) {
	layer := NewLayer(testInfo())
	pos := chunk.Pos{X: -7, Z: 12}

	rng := rand.New(rand.NewSource(99))
	c := chunk.NewChunk(512)

	// A solid section, an untouched air section, and a noisy section.
	c.FillBlockStateSection(0, 1)
	for i := 0; i < 3000; i++ {
		c.SetBlockState(rng.Intn(16), 32+rng.Intn(16), rng.Intn(16), chunk.BlockState(rng.Intn(40)))
	}
	for i := 0; i < 40; i++ {
		c.SetBiome(rng.Intn(4), rng.Intn(8), rng.Intn(4), chunk.BiomeID(rng.Intn(6)))
	}

	lc := layer.InsertChunk(pos, c)

	enc := protocol.NewPacketEncoder()
	if err := layer.WriteChunkInit(enc, pos); err != nil {
		t.Fatal(err)
	}

	dec := protocol.NewPacketDecoder()
	dec.QueueBytes(enc.Take())
	frame, err := dec.TryNextPacket()
	if err != nil || frame == nil {
		t.Fatalf("TryNextPacket = (%v, %v)", frame, err)
	}
	if frame.ID != ChunkDataID {
		t.Fatalf("packet id = %#x, want %#x", frame.ID, ChunkDataID)
	}

	r := &frameReader{t: t, data: frame.Body}

	if x := r.i32(); x != pos.X {
		t.Fatalf("x = %d, want %d", x, pos.X)
	}
	if z := r.i32(); z != pos.Z {
		t.Fatalf("z = %d, want %d", z, pos.Z)
	}

	// Empty heightmaps compound: TAG_Compound, empty name, TAG_End.
	if r.u8() != 0x0a || r.u8() != 0 || r.u8() != 0 || r.u8() != 0 {
		t.Fatal("heightmaps compound is not empty")
	}

	dataSize := int(r.varInt())
	dataEnd := r.off + dataSize

	for s := 0; s < lc.Height()/chunk.SectionHeight; s++ {
		nonAir := r.i16()
		if want := lc.ToChunk().Section(s).NonAirCount(); nonAir != want {
			t.Fatalf("section %d non-air = %d, want %d", s, nonAir, want)
		}

		blocks := r.palettedCells(chunk.SectionBlockCount, 4, 8)
		for i, v := range blocks {
			x, z, y := i%16, i/16%16, i/256+s*16
			if want := lc.BlockState(x, y, z); chunk.BlockState(v) != want {
				t.Fatalf("block (%d,%d,%d) = %d, want %d", x, y, z, v, want)
			}
		}

		biomes := r.palettedCells(chunk.SectionBiomeCount, 0, 3)
		for i, v := range biomes {
			x, z, y := i%4, i/4%4, i/16+s*4
			if want := lc.Biome(x, y, z); chunk.BiomeID(v) != want {
				t.Fatalf("biome (%d,%d,%d) = %d, want %d", x, y, z, v, want)
			}
		}
	}

	if r.off != dataEnd {
		t.Fatalf("section data ends at %d, want %d", r.off, dataEnd)
	}

	if n := r.varInt(); n != 0 {
		t.Fatalf("block entity count = %d, want 0", n)
	}
	for i := 0; i < 6; i++ {
		if n := r.varInt(); n != 0 {
			t.Fatalf("light field %d = %d, want 0", i, n)
		}
	}
	if r.off != len(r.data) {
		t.Fatalf("%d trailing bytes", len(r.data)-r.off)
	}
}

func TestChunkInitPacketBlockEntities(t *testing.T) {
	layer := NewLayer(testInfo())
	pos := chunk.Pos{X: 0, Z: 0}
	c := chunk.NewChunk(512)

	// State 1 has a block entity kind in the fake registry; state 2 does not.
	c.SetBlockState(3, 20, 9, 1)
	c.SetBlockEntity(3, 20, 9, chunk.Compound{})
	c.SetBlockState(0, 0, 0, 2)
	c.SetBlockEntity(0, 0, 0, chunk.Compound{})

	lc := layer.InsertChunk(pos, c)

	enc := protocol.NewPacketEncoder()
	if err := lc.WriteInitPacket(enc, pos, layer.Info()); err != nil {
		t.Fatal(err)
	}
	dec := protocol.NewPacketDecoder()
	dec.QueueBytes(enc.Take())
	frame, err := dec.TryNextPacket()
	if err != nil || frame == nil {
		t.Fatalf("TryNextPacket = (%v, %v)", frame, err)
	}

	r := &frameReader{t: t, data: frame.Body}
	r.off = 8 + 4 // position + empty heightmaps
	r.off += int(r.varInt())

	if n := r.varInt(); n != 1 {
		t.Fatalf("block entity count = %d, want 1", n)
	}
	packedXZ := r.u8()
	if packedXZ != 3<<4|9 {
		t.Fatalf("packed xz = %#x", packedXZ)
	}
	if y := r.i16(); y != 20+int16(layer.Info().MinY) {
		t.Fatalf("y = %d", y)
	}
	if kind := r.varInt(); kind != 8 {
		t.Fatalf("kind = %d, want 8", kind)
	}
}
