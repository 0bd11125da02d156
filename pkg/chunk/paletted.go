package chunk

import (
	"encoding/binary"
	"math/bits"

	"github.com/go-mclib/server/pkg/protocol"
)

// maxIndirectPalette is the largest palette the indirect representation can
// hold; indices are stored as half-bytes.
const maxIndirectPalette = 16

// PalettedContainer is a compact representation of a fixed-length cell array
// drawn from a small set of distinct values. It has three representations and
// moves between them as cells are written:
//
//   - single: every cell holds the same value.
//   - indirect: up to 16 distinct values in a palette, cells are 4-bit
//     palette indices.
//   - direct: one value per cell.
//
// Reads and writes are on the hot path of chunk mutation, so the
// representation is a hand-rolled tagged union rather than an interface.
type PalettedContainer[T comparable] struct {
	length   int
	single   T
	indirect *indirect[T]
	direct   []T
}

type indirect[T comparable] struct {
	// palette always has at least two entries while this representation is
	// active.
	palette []T
	// indices holds one 4-bit palette index per cell, two per byte,
	// low nibble first.
	indices []byte
}

// NewPalettedContainer returns a container of the given length with every
// cell set to the zero value of T.
func NewPalettedContainer[T comparable](length int) *PalettedContainer[T] {
	if length <= 0 {
		panic("paletted container length must be positive")
	}
	return &PalettedContainer[T]{length: length}
}

// Len returns the number of cells.
func (c *PalettedContainer[T]) Len() int { return c.length }

// Fill sets every cell to v and collapses to the single representation.
func (c *PalettedContainer[T]) Fill(v T) {
	c.single = v
	c.indirect = nil
	c.direct = nil
}

// Get returns the cell at index i. The index must be in bounds.
func (c *PalettedContainer[T]) Get(i int) T {
	switch {
	case c.direct != nil:
		return c.direct[i]
	case c.indirect != nil:
		return c.indirect.get(i)
	default:
		return c.single
	}
}

// Set writes v to the cell at index i and returns the previous value,
// upgrading the representation if needed. The index must be in bounds.
func (c *PalettedContainer[T]) Set(i int, v T) T {
	switch {
	case c.direct != nil:
		old := c.direct[i]
		c.direct[i] = v
		return old
	case c.indirect != nil:
		if old, ok := c.indirect.set(i, v); ok {
			return old
		}
		// Palette is full; upgrade to direct.
		dir := make([]T, c.length)
		for j := range dir {
			dir[j] = c.indirect.get(j)
		}
		old := dir[i]
		dir[i] = v
		c.direct = dir
		c.indirect = nil
		return old
	default:
		if c.single == v {
			return v
		}
		ind := &indirect[T]{
			palette: []T{c.single, v},
			indices: make([]byte, (c.length+1)/2),
		}
		ind.indices[i/2] = 1 << (i % 2 * 4)
		old := c.single
		c.indirect = ind
		return old
	}
}

// Optimize compacts the representation if a smaller one can hold the current
// contents. Cell values are unchanged.
func (c *PalettedContainer[T]) Optimize() {
	switch {
	case c.direct != nil:
		ind := &indirect[T]{indices: make([]byte, (c.length+1)/2)}
		for i, v := range c.direct {
			if _, ok := ind.set(i, v); !ok {
				return
			}
		}
		c.direct = nil
		if len(ind.palette) == 1 {
			c.single = ind.palette[0]
		} else {
			c.indirect = ind
		}
	case c.indirect != nil:
		// Rebuild to drop palette entries no cell references anymore.
		ind := &indirect[T]{indices: make([]byte, (c.length+1)/2)}
		for i := 0; i < c.length; i++ {
			ind.set(i, c.indirect.get(i))
		}
		if len(ind.palette) == 1 {
			c.single = ind.palette[0]
			c.indirect = nil
		} else {
			c.indirect = ind
		}
	}
}

// EncodeMC appends the container in the network chunk format: a bits-per-entry
// byte, the palette for the single and indirect forms, and the bit-packed
// data array. toBits converts a cell value to its id on the wire.
//
// The indirect form needs max(minIndirectBits, bitWidth(len(palette)-1)) bits
// per entry; if that exceeds maxIndirectBits for the cell domain, the
// container is encoded in the direct form instead.
func (c *PalettedContainer[T]) EncodeMC(dst []byte, toBits func(T) uint64, minIndirectBits, maxIndirectBits, directBits int) []byte {
	switch {
	case c.direct != nil:
		return c.encodeDirect(dst, toBits, directBits)
	case c.indirect != nil:
		ind := c.indirect
		bitsPerEntry := max(minIndirectBits, bitWidth(len(ind.palette)-1))
		if bitsPerEntry > maxIndirectBits {
			return c.encodeDirect(dst, toBits, directBits)
		}

		dst = append(dst, byte(bitsPerEntry))
		dst = protocol.AppendVarInt(dst, int32(len(ind.palette)))
		for _, v := range ind.palette {
			dst = protocol.AppendVarInt(dst, int32(toBits(v)))
		}
		dst = protocol.AppendVarInt(dst, int32(packedLongCount(c.length, bitsPerEntry)))
		return appendPackedLongs(dst, c.length, bitsPerEntry, func(i int) uint64 {
			return uint64(ind.indices[i/2] >> (i % 2 * 4) & 0xf)
		})
	default:
		dst = append(dst, 0)
		dst = protocol.AppendVarInt(dst, int32(toBits(c.single)))
		return protocol.AppendVarInt(dst, 0)
	}
}

func (c *PalettedContainer[T]) encodeDirect(dst []byte, toBits func(T) uint64, directBits int) []byte {
	dst = append(dst, byte(directBits))
	dst = protocol.AppendVarInt(dst, int32(packedLongCount(c.length, directBits)))
	return appendPackedLongs(dst, c.length, directBits, func(i int) uint64 {
		return toBits(c.Get(i))
	})
}

func (ind *indirect[T]) get(i int) T {
	return ind.palette[ind.indices[i/2]>>(i%2*4)&0xf]
}

// set writes v to cell i, growing the palette if needed. It reports false
// without modifying anything when the palette is full and v is not in it.
func (ind *indirect[T]) set(i int, v T) (old T, ok bool) {
	idx := -1
	for j, p := range ind.palette {
		if p == v {
			idx = j
			break
		}
	}
	if idx == -1 {
		if len(ind.palette) >= maxIndirectPalette {
			return old, false
		}
		idx = len(ind.palette)
		ind.palette = append(ind.palette, v)
	}

	old = ind.get(i)
	shift := i % 2 * 4
	ind.indices[i/2] = ind.indices[i/2]&^(0xf<<shift) | byte(idx)<<shift
	return old, true
}

// bitWidth returns the minimum number of bits needed to represent n.
func bitWidth(n int) int {
	return bits.Len(uint(n))
}

// packedLongCount returns how many longs hold count entries at the given
// width, with entries never split across long boundaries.
func packedLongCount(count, bitsPerEntry int) int {
	perLong := 64 / bitsPerEntry
	return (count + perLong - 1) / perLong
}

// appendPackedLongs emits count entries as big-endian longs, each entry
// occupying bitsPerEntry bits starting from the LSB of its long.
func appendPackedLongs(dst []byte, count, bitsPerEntry int, get func(i int) uint64) []byte {
	perLong := 64 / bitsPerEntry
	for i := 0; i < count; {
		var word uint64
		for j := 0; j < perLong && i < count; j++ {
			word |= get(i) << (j * bitsPerEntry)
			i++
		}
		dst = binary.BigEndian.AppendUint64(dst, word)
	}
	return dst
}
