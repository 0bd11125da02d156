package chunk

// BlockState is a block state id within the block registry.
type BlockState int32

// BiomeID is a biome id within the biome registry.
type BiomeID int32

// Air is the block state every new section is filled with.
const Air BlockState = 0

// Compound is a decoded NBT compound.
type Compound = map[string]any

const (
	// SectionHeight is the side length of a section in blocks.
	SectionHeight = 16
	// SectionBlockCount is the number of block cells in a section.
	SectionBlockCount = 16 * 16 * 16
	// SectionBiomeCount is the number of biome cells in a section; biomes
	// have 4x4x4 block resolution.
	SectionBiomeCount = 4 * 4 * 4
)

// Section is a 16x16x16 cube of blocks with its own biome grid and a cached
// count of non-air blocks.
type Section struct {
	blockStates *PalettedContainer[BlockState]
	biomes      *PalettedContainer[BiomeID]
	nonAirCount int16
}

func newSection() Section {
	return Section{
		blockStates: NewPalettedContainer[BlockState](SectionBlockCount),
		biomes:      NewPalettedContainer[BiomeID](SectionBiomeCount),
	}
}

// NonAirCount returns the number of blocks in the section that are not air.
func (s *Section) NonAirCount() int16 { return s.nonAirCount }

// BlockStates returns the section's block state container.
func (s *Section) BlockStates() *PalettedContainer[BlockState] { return s.blockStates }

// Biomes returns the section's biome container.
func (s *Section) Biomes() *PalettedContainer[BiomeID] { return s.biomes }

func (s *Section) setBlockState(idx int, v BlockState) BlockState {
	old := s.blockStates.Set(idx, v)
	if old != v {
		if old == Air {
			s.nonAirCount++
		}
		if v == Air {
			s.nonAirCount--
		}
	}
	return old
}

func (s *Section) fillBlockStates(v BlockState) {
	s.blockStates.Fill(v)
	if v == Air {
		s.nonAirCount = 0
	} else {
		s.nonAirCount = SectionBlockCount
	}
}

// Chunk is a 16x16 column of sections together with its block entities.
// Block coordinates are relative to the chunk: x and z in [0, 16), y in
// [0, height).
type Chunk struct {
	sections []Section
	// blockEntities maps the packed cell index y*256 + z*16 + x to the block
	// entity's NBT data.
	blockEntities map[uint32]Compound
}

// NewChunk returns a chunk of the given height with every block set to air
// and every biome set to the zero biome. The height must be a non-negative
// multiple of 16; it only changes through SetHeight.
func NewChunk(height int) *Chunk {
	if height < 0 || height%SectionHeight != 0 {
		panic("chunk height must be a non-negative multiple of 16")
	}
	sections := make([]Section, height/SectionHeight)
	for i := range sections {
		sections[i] = newSection()
	}
	return &Chunk{
		sections:      sections,
		blockEntities: make(map[uint32]Compound),
	}
}

// Height returns the chunk height in blocks.
func (c *Chunk) Height() int { return len(c.sections) * SectionHeight }

// SectionCount returns the number of sections.
func (c *Chunk) SectionCount() int { return len(c.sections) }

// Section returns the section with the given index, counted from the bottom
// of the chunk.
func (c *Chunk) Section(i int) *Section { return &c.sections[i] }

// SetHeight resizes the chunk to a new height, truncating or extending with
// air sections at the top.
func (c *Chunk) SetHeight(height int) {
	if height < 0 || height%SectionHeight != 0 {
		panic("chunk height must be a non-negative multiple of 16")
	}
	want := height / SectionHeight
	for len(c.sections) > want {
		c.sections = c.sections[:len(c.sections)-1]
	}
	for len(c.sections) < want {
		c.sections = append(c.sections, newSection())
	}
	for idx := range c.blockEntities {
		if int(idx/256) >= height {
			delete(c.blockEntities, idx)
		}
	}
}

// BlockState returns the block state at the given chunk-relative position.
func (c *Chunk) BlockState(x, y, z int) BlockState {
	return c.sections[y/SectionHeight].blockStates.Get(blockIndex(x, y, z))
}

// SetBlockState writes a block state and returns the previous one.
func (c *Chunk) SetBlockState(x, y, z int, v BlockState) BlockState {
	return c.sections[y/SectionHeight].setBlockState(blockIndex(x, y, z), v)
}

// FillBlockStateSection fills the section with index sy with a single block
// state.
func (c *Chunk) FillBlockStateSection(sy int, v BlockState) {
	c.sections[sy].fillBlockStates(v)
}

// Biome returns the biome at the given position. Biome coordinates are in
// 4-block cells: x and z in [0, 4), y in [0, height/4).
func (c *Chunk) Biome(x, y, z int) BiomeID {
	return c.sections[y/4].biomes.Get(biomeIndex(x, y, z))
}

// SetBiome writes a biome and returns the previous one.
func (c *Chunk) SetBiome(x, y, z int, b BiomeID) BiomeID {
	return c.sections[y/4].biomes.Set(biomeIndex(x, y, z), b)
}

// FillBiomeSection fills the section with index sy with a single biome.
func (c *Chunk) FillBiomeSection(sy int, b BiomeID) {
	c.sections[sy].biomes.Fill(b)
}

// BlockEntity returns the block entity data at the given position, if any.
func (c *Chunk) BlockEntity(x, y, z int) (Compound, bool) {
	data, ok := c.blockEntities[packBlockEntityIndex(x, y, z)]
	return data, ok
}

// SetBlockEntity sets or, with nil data, removes the block entity at the
// given position. The previous data is returned.
func (c *Chunk) SetBlockEntity(x, y, z int, data Compound) Compound {
	idx := packBlockEntityIndex(x, y, z)
	old := c.blockEntities[idx]
	if data == nil {
		delete(c.blockEntities, idx)
	} else {
		c.blockEntities[idx] = data
	}
	return old
}

// ClearBlockEntities removes all block entities from the chunk.
func (c *Chunk) ClearBlockEntities() {
	clear(c.blockEntities)
}

// BlockEntityCount returns the number of block entities in the chunk.
func (c *Chunk) BlockEntityCount() int { return len(c.blockEntities) }

// ForEachBlockEntity calls fn for every block entity with its packed cell
// index y*256 + z*16 + x.
func (c *Chunk) ForEachBlockEntity(fn func(idx uint32, data Compound)) {
	for idx, data := range c.blockEntities {
		fn(idx, data)
	}
}

// Optimize compacts every section's containers.
func (c *Chunk) Optimize() {
	for i := range c.sections {
		c.sections[i].blockStates.Optimize()
		c.sections[i].biomes.Optimize()
	}
}

// ShrinkToFit reclaims unused capacity.
func (c *Chunk) ShrinkToFit() {
	c.sections = c.sections[:len(c.sections):len(c.sections)]
}

func blockIndex(x, y, z int) int {
	return (y%SectionHeight)*256 + z*16 + x
}

func biomeIndex(x, y, z int) int {
	return (y%4)*16 + z*4 + x
}

func packBlockEntityIndex(x, y, z int) uint32 {
	return uint32(y)*256 + uint32(z)*16 + uint32(x)
}
