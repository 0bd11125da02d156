package anvil

import (
	"math/bits"

	"github.com/Tnze/go-mc/nbt"

	"github.com/go-mclib/server/pkg/chunk"
	"github.com/go-mclib/server/pkg/protocol"
	"github.com/go-mclib/server/pkg/world"
)

// NBT shapes of an Anvil chunk, as written by vanilla since 1.18.
type chunkNBT struct {
	Sections      []sectionNBT     `nbt:"sections"`
	BlockEntities []chunk.Compound `nbt:"block_entities"`
}

type sectionNBT struct {
	Y           int8           `nbt:"Y"`
	BlockStates blockStatesNBT `nbt:"block_states"`
	Biomes      biomesNBT      `nbt:"biomes"`
}

type blockStatesNBT struct {
	Palette []blockPaletteEntry `nbt:"palette"`
	Data    []int64             `nbt:"data"`
}

type blockPaletteEntry struct {
	Name       string            `nbt:"Name"`
	Properties map[string]string `nbt:"Properties"`
}

type biomesNBT struct {
	Palette []string `nbt:"palette"`
	Data    []int64  `nbt:"data"`
}

// ParseChunk converts the NBT payload of one Anvil chunk into the chunk
// model. The chunk height is 16 blocks per section found; section Y values
// are rebased so the lowest section becomes y = 0.
func ParseChunk(data []byte, blocks world.BlockRegistry, biomes world.BiomeRegistry) (*chunk.Chunk, error) {
	var root chunkNBT
	if err := nbt.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Sections == nil {
		return nil, ErrMissingSections
	}
	if len(root.Sections) == 0 {
		return chunk.NewChunk(0), nil
	}

	minSectY := int(root.Sections[0].Y)
	for _, sect := range root.Sections[1:] {
		minSectY = min(minSectY, int(sect.Y))
	}

	c := chunk.NewChunk(len(root.Sections) * chunk.SectionHeight)

	for _, sect := range root.Sections {
		sy := int(sect.Y) - minSectY
		if sy < 0 || sy >= c.SectionCount() {
			return nil, ErrBadSectionY
		}

		if err := parseBlockStates(c, sy, &sect.BlockStates, blocks); err != nil {
			return nil, err
		}
		if err := parseBiomes(c, sy, &sect.Biomes, biomes); err != nil {
			return nil, err
		}
	}

	if err := parseBlockEntities(c, root.BlockEntities, minSectY); err != nil {
		return nil, err
	}

	return c, nil
}

func parseBlockStates(c *chunk.Chunk, sy int, states *blockStatesNBT, blocks world.BlockRegistry) error {
	if states.Palette == nil {
		return ErrMissingPalette
	}
	if len(states.Palette) == 0 || len(states.Palette) > chunk.SectionBlockCount {
		return ErrBadPaletteLen
	}

	palette := make([]chunk.BlockState, 0, len(states.Palette))
	for _, entry := range states.Palette {
		state, err := resolveBlockState(&entry, blocks)
		if err != nil {
			return err
		}
		palette = append(palette, state)
	}

	if len(palette) == 1 {
		c.FillBlockStateSection(sy, palette[0])
		return nil
	}

	bitsPerIdx := max(4, bitWidth(len(palette)-1))
	idxsPerLong := 64 / bitsPerIdx
	if len(states.Data) != longCount(chunk.SectionBlockCount, idxsPerLong) {
		return ErrBadPackedDataLen
	}
	mask := uint64(1)<<bitsPerIdx - 1

	i := 0
	for _, long := range states.Data {
		word := uint64(long)
		for j := 0; j < idxsPerLong && i < chunk.SectionBlockCount; j++ {
			idx := word >> (j * bitsPerIdx) & mask
			if int(idx) >= len(palette) {
				return ErrBadPaletteIndex
			}

			x := i % 16
			z := i / 16 % 16
			y := i / 256
			c.SetBlockState(x, sy*chunk.SectionHeight+y, z, palette[idx])
			i++
		}
	}
	return nil
}

func parseBiomes(c *chunk.Chunk, sy int, b *biomesNBT, biomes world.BiomeRegistry) error {
	if b.Palette == nil {
		return ErrMissingPalette
	}
	if len(b.Palette) == 0 || len(b.Palette) > chunk.SectionBiomeCount {
		return ErrBadPaletteLen
	}

	palette := make([]chunk.BiomeID, 0, len(b.Palette))
	for _, name := range b.Palette {
		decoded, err := protocol.DecodeModifiedUTF8([]byte(name))
		if err != nil || decoded == "" {
			return &BadBiomeError{Name: name}
		}
		// Biomes the registry does not know fall back to the default biome
		// rather than failing the whole chunk.
		id, _ := biomes.BiomeByName(decoded)
		palette = append(palette, id)
	}

	if len(palette) == 1 {
		c.FillBiomeSection(sy, palette[0])
		return nil
	}

	bitsPerIdx := bitWidth(len(palette) - 1)
	idxsPerLong := 64 / bitsPerIdx
	if len(b.Data) != longCount(chunk.SectionBiomeCount, idxsPerLong) {
		return ErrBadPackedDataLen
	}
	mask := uint64(1)<<bitsPerIdx - 1

	i := 0
	for _, long := range b.Data {
		word := uint64(long)
		for j := 0; j < idxsPerLong && i < chunk.SectionBiomeCount; j++ {
			idx := word >> (j * bitsPerIdx) & mask
			if int(idx) >= len(palette) {
				return ErrBadPaletteIndex
			}

			x := i % 4
			z := i / 4 % 4
			y := i / 16
			c.SetBiome(x, sy*4+y, z, palette[idx])
			i++
		}
	}
	return nil
}

func resolveBlockState(entry *blockPaletteEntry, blocks world.BlockRegistry) (chunk.BlockState, error) {
	if entry.Name == "" {
		return 0, &UnknownBlockError{Name: entry.Name}
	}
	name, err := protocol.DecodeModifiedUTF8([]byte(entry.Name))
	if err != nil {
		return 0, &UnknownBlockError{Name: entry.Name}
	}

	state, ok := blocks.BlockByName(name)
	if !ok {
		return 0, &UnknownBlockError{Name: name}
	}
	for prop, value := range entry.Properties {
		if !blocks.PropName(prop) {
			return 0, &UnknownPropError{Block: name, Name: prop}
		}
		if !blocks.PropValue(value) {
			return 0, &UnknownPropValueError{Block: name, Name: prop, Value: value}
		}
		state = blocks.SetProp(state, prop, value)
	}
	return state, nil
}

// parseBlockEntities normalizes block entity positions into chunk-relative
// coordinates and stores their data on the chunk.
func parseBlockEntities(c *chunk.Chunk, entities []chunk.Compound, minSectY int) error {
	for _, comp := range entities {
		id, ok := comp["id"].(string)
		if !ok || id == "" {
			return ErrBadBlockEntity
		}
		if _, err := protocol.DecodeModifiedUTF8([]byte(id)); err != nil {
			return ErrBadBlockEntity
		}

		x, okX := comp["x"].(int32)
		y, okY := comp["y"].(int32)
		z, okZ := comp["z"].(int32)
		if !okX || !okY || !okZ {
			return ErrBadBlockEntity
		}

		relY := int(y) - minSectY*chunk.SectionHeight
		if relY < 0 || relY >= c.Height() {
			return ErrBadBlockEntity
		}

		delete(comp, "keepPacked")
		c.SetBlockEntity(mod16(int(x)), relY, mod16(int(z)), comp)
	}
	return nil
}

func mod16(v int) int {
	return (v%16 + 16) % 16
}

func longCount(cells, idxsPerLong int) int {
	return (cells + idxsPerLong - 1) / idxsPerLong
}

// bitWidth returns the minimum number of bits needed to represent n.
func bitWidth(n int) int {
	return bits.Len(uint(n))
}
