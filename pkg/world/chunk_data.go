package world

import (
	"encoding/binary"
	"math/bits"

	"github.com/Tnze/go-mc/nbt"

	"github.com/go-mclib/server/pkg/chunk"
	"github.com/go-mclib/server/pkg/protocol"
)

// ChunkDataID is the clientbound play-state chunk data packet id.
const ChunkDataID int32 = 0x24

// WriteInitPacket appends the chunk initialization packet for this chunk to
// the encoder, building and caching the framed bytes if the cache is stale.
func (lc *LoadedChunk) WriteInitPacket(enc *protocol.PacketEncoder, pos chunk.Pos, info *Info) error {
	if len(lc.cachedPacket) == 0 {
		frame, err := buildChunkInitFrame(lc.chunk, pos, info)
		if err != nil {
			return err
		}
		lc.cachedPacket = frame
	}
	enc.AppendFrameBytes(lc.cachedPacket)
	return nil
}

// buildChunkInitFrame serializes the full chunk data packet and frames it
// with the layer's compression threshold.
func buildChunkInitFrame(c *chunk.Chunk, pos chunk.Pos, info *Info) ([]byte, error) {
	var body []byte

	body = binary.BigEndian.AppendUint32(body, uint32(pos.X))
	body = binary.BigEndian.AppendUint32(body, uint32(pos.Z))

	heightmaps, err := nbt.Marshal(map[string]any{})
	if err != nil {
		return nil, err
	}
	body = append(body, heightmaps...)

	blocksAndBiomes := appendSections(nil, c, info)
	body = protocol.AppendVarInt(body, int32(len(blocksAndBiomes)))
	body = append(body, blocksAndBiomes...)

	body, err = appendBlockEntities(body, c, info)
	if err != nil {
		return nil, err
	}

	// Light data is not tracked here; empty masks and arrays let the client
	// treat missing light as zero.
	for i := 0; i < 4; i++ {
		body = protocol.AppendVarInt(body, 0) // empty bit set
	}
	body = protocol.AppendVarInt(body, 0) // sky light arrays
	body = protocol.AppendVarInt(body, 0) // block light arrays

	return protocol.AppendFrame(nil, ChunkDataID, body, info.Threshold)
}

// appendSections emits, per section, the non-air block count and the block
// state and biome paletted containers.
func appendSections(dst []byte, c *chunk.Chunk, info *Info) []byte {
	blockBits := bitWidth(info.Blocks.StateCount() - 1)
	biomeBits := bitWidth(info.Biomes.Len() - 1)

	for i := 0; i < c.SectionCount(); i++ {
		sect := c.Section(i)
		dst = binary.BigEndian.AppendUint16(dst, uint16(sect.NonAirCount()))
		dst = sect.BlockStates().EncodeMC(dst, func(b chunk.BlockState) uint64 {
			return uint64(b)
		}, 4, 8, blockBits)
		dst = sect.Biomes().EncodeMC(dst, func(b chunk.BiomeID) uint64 {
			return uint64(b)
		}, 0, 3, biomeBits)
	}
	return dst
}

// appendBlockEntities emits the block entity array. Entries whose block state
// has no block entity kind in the registry are skipped.
func appendBlockEntities(dst []byte, c *chunk.Chunk, info *Info) ([]byte, error) {
	type entry struct {
		packedXZ byte
		y        int16
		kind     int32
		data     chunk.Compound
	}

	var entries []entry
	c.ForEachBlockEntity(func(idx uint32, data chunk.Compound) {
		x := int(idx % 16)
		z := int(idx / 16 % 16)
		y := int(idx / 256)

		state := c.Section(y / chunk.SectionHeight).BlockStates().Get(int(idx) % chunk.SectionBlockCount)
		kind, ok := info.Blocks.BlockEntityKind(state)
		if !ok {
			return
		}
		entries = append(entries, entry{
			packedXZ: byte(x<<4 | z),
			y:        int16(y) + int16(info.MinY),
			kind:     kind,
			data:     data,
		})
	})

	dst = protocol.AppendVarInt(dst, int32(len(entries)))
	for _, e := range entries {
		dst = append(dst, e.packedXZ)
		dst = binary.BigEndian.AppendUint16(dst, uint16(e.y))
		dst = protocol.AppendVarInt(dst, e.kind)
		data, err := nbt.Marshal(e.data)
		if err != nil {
			return nil, err
		}
		dst = append(dst, data...)
	}
	return dst, nil
}

// bitWidth returns the minimum number of bits needed to represent n.
func bitWidth(n int) int {
	return bits.Len(uint(n))
}
