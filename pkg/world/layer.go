package world

import (
	"github.com/go-mclib/server/pkg/chunk"
	"github.com/go-mclib/server/pkg/protocol"
)

// Info carries the dimension parameters every chunk in a layer shares. The
// registry sizes bound the paletted container bit widths; the threshold
// frames cached chunk packets.
type Info struct {
	Height    int
	MinY      int
	Blocks    BlockRegistry
	Biomes    BiomeRegistry
	Threshold int32
}

// Layer owns the live chunks of one dimension. It is driven from a single
// goroutine per tick loop; it performs no locking of its own.
type Layer struct {
	info   Info
	chunks map[chunk.Pos]*LoadedChunk
}

// NewLayer returns an empty layer. The height must be a positive multiple of
// 16.
func NewLayer(info Info) *Layer {
	if info.Height <= 0 || info.Height%chunk.SectionHeight != 0 {
		panic("layer height must be a positive multiple of 16")
	}
	return &Layer{
		info:   info,
		chunks: make(map[chunk.Pos]*LoadedChunk),
	}
}

// Info returns the layer's dimension parameters.
func (l *Layer) Info() *Info { return &l.info }

// Chunk returns the loaded chunk at pos, or nil.
func (l *Layer) Chunk(pos chunk.Pos) *LoadedChunk {
	return l.chunks[pos]
}

// Len returns the number of loaded chunks.
func (l *Layer) Len() int { return len(l.chunks) }

// InsertChunk makes the given chunk data live at pos, resizing it to the
// layer height. An existing chunk at the position has its data replaced and
// keeps its viewers. The loaded chunk is returned.
func (l *Layer) InsertChunk(pos chunk.Pos, c *chunk.Chunk) *LoadedChunk {
	lc := l.chunks[pos]
	if lc == nil {
		lc = newLoadedChunk(l.info.Height)
		l.chunks[pos] = lc
	}
	lc.Replace(c)
	return lc
}

// RemoveChunk removes the chunk at pos and returns its data, or nil if no
// chunk was loaded there.
func (l *Layer) RemoveChunk(pos chunk.Pos) *chunk.Chunk {
	lc := l.chunks[pos]
	if lc == nil {
		return nil
	}
	delete(l.chunks, pos)
	return lc.chunk
}

// RetainChunks removes every chunk for which fn returns false.
func (l *Layer) RetainChunks(fn func(pos chunk.Pos, lc *LoadedChunk) bool) {
	for pos, lc := range l.chunks {
		if !fn(pos, lc) {
			delete(l.chunks, pos)
		}
	}
}

// ForEachChunk calls fn for every loaded chunk.
func (l *Layer) ForEachChunk(fn func(pos chunk.Pos, lc *LoadedChunk)) {
	for pos, lc := range l.chunks {
		fn(pos, lc)
	}
}

// WriteChunkInit appends the chunk-init packet for the chunk at pos to the
// encoder.
func (l *Layer) WriteChunkInit(enc *protocol.PacketEncoder, pos chunk.Pos) error {
	lc := l.chunks[pos]
	if lc == nil {
		return nil
	}
	return lc.WriteInitPacket(enc, pos, &l.info)
}

// Positions returns the positions of all loaded chunks, for building a
// visibility BVH.
func (l *Layer) Positions() []chunk.Pos {
	out := make([]chunk.Pos, 0, len(l.chunks))
	for pos := range l.chunks {
		out = append(out, pos)
	}
	return out
}
