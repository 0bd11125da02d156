package world

import (
	"github.com/go-mclib/server/pkg/chunk"
)

// LoadedChunk is a chunk that is live in a layer. It tracks how many clients
// can see it and caches the serialized chunk initialization packet.
//
// Mutations that can change the outbound packet bytes clear the cache;
// writing a value a cell already holds does not.
type LoadedChunk struct {
	chunk       *chunk.Chunk
	viewerCount uint32
	// cachedPacket holds the framed chunk-init packet; empty means stale.
	cachedPacket []byte
}

func newLoadedChunk(height int) *LoadedChunk {
	return &LoadedChunk{chunk: chunk.NewChunk(height)}
}

// ViewerCount returns the number of clients currently viewing this chunk.
func (lc *LoadedChunk) ViewerCount() uint32 { return lc.viewerCount }

// IncrementViewers records a client gaining sight of the chunk.
func (lc *LoadedChunk) IncrementViewers() { lc.viewerCount++ }

// DecrementViewers records a client losing sight of the chunk.
func (lc *LoadedChunk) DecrementViewers() {
	if lc.viewerCount == 0 {
		panic("viewer count underflow")
	}
	lc.viewerCount--
}

// Height returns the chunk height in blocks.
func (lc *LoadedChunk) Height() int { return lc.chunk.Height() }

// Replace swaps in the given chunk data, resizing it to this chunk's height
// first. The previous data is returned.
func (lc *LoadedChunk) Replace(c *chunk.Chunk) *chunk.Chunk {
	c.SetHeight(lc.Height())
	lc.cachedPacket = lc.cachedPacket[:0]
	old := lc.chunk
	lc.chunk = c
	return old
}

// ToChunk returns the underlying chunk data. Mutating it directly bypasses
// cache invalidation; use the LoadedChunk accessors instead.
func (lc *LoadedChunk) ToChunk() *chunk.Chunk { return lc.chunk }

// BlockState returns the block state at the given chunk-relative position.
func (lc *LoadedChunk) BlockState(x, y, z int) chunk.BlockState {
	return lc.chunk.BlockState(x, y, z)
}

// SetBlockState writes a block state, invalidating the packet cache if the
// value changed.
func (lc *LoadedChunk) SetBlockState(x, y, z int, v chunk.BlockState) chunk.BlockState {
	old := lc.chunk.SetBlockState(x, y, z, v)
	if old != v {
		lc.cachedPacket = lc.cachedPacket[:0]
	}
	return old
}

// FillBlockStateSection fills a section with one block state.
func (lc *LoadedChunk) FillBlockStateSection(sy int, v chunk.BlockState) {
	lc.chunk.FillBlockStateSection(sy, v)
	lc.cachedPacket = lc.cachedPacket[:0]
}

// Biome returns the biome at the given position.
func (lc *LoadedChunk) Biome(x, y, z int) chunk.BiomeID {
	return lc.chunk.Biome(x, y, z)
}

// SetBiome writes a biome, invalidating the packet cache if the value
// changed.
func (lc *LoadedChunk) SetBiome(x, y, z int, b chunk.BiomeID) chunk.BiomeID {
	old := lc.chunk.SetBiome(x, y, z, b)
	if old != b {
		lc.cachedPacket = lc.cachedPacket[:0]
	}
	return old
}

// FillBiomeSection fills a section's biomes with one value.
func (lc *LoadedChunk) FillBiomeSection(sy int, b chunk.BiomeID) {
	lc.chunk.FillBiomeSection(sy, b)
	lc.cachedPacket = lc.cachedPacket[:0]
}

// BlockEntity returns the block entity at the given position, if any.
func (lc *LoadedChunk) BlockEntity(x, y, z int) (chunk.Compound, bool) {
	return lc.chunk.BlockEntity(x, y, z)
}

// SetBlockEntity sets or removes a block entity and invalidates the cache.
func (lc *LoadedChunk) SetBlockEntity(x, y, z int, data chunk.Compound) chunk.Compound {
	lc.cachedPacket = lc.cachedPacket[:0]
	return lc.chunk.SetBlockEntity(x, y, z, data)
}

// ClearBlockEntities removes all block entities.
func (lc *LoadedChunk) ClearBlockEntities() {
	if lc.chunk.BlockEntityCount() == 0 {
		return
	}
	lc.chunk.ClearBlockEntities()
	lc.cachedPacket = lc.cachedPacket[:0]
}

// ShrinkToFit reclaims unused capacity.
func (lc *LoadedChunk) ShrinkToFit() {
	if len(lc.cachedPacket) == 0 {
		lc.cachedPacket = nil
	}
	lc.chunk.ShrinkToFit()
}
