package world

import "github.com/go-mclib/server/pkg/chunk"

// BlockRegistry resolves block states. It is implemented by an external data
// module; this package only consumes it.
type BlockRegistry interface {
	// StateCount returns the total number of block states. It bounds the bit
	// width of direct paletted encoding.
	StateCount() int
	// BlockByName returns the default state of the named block.
	BlockByName(name string) (chunk.BlockState, bool)
	// PropName reports whether a block property with the given name exists.
	PropName(name string) bool
	// PropValue reports whether the given property value exists.
	PropValue(value string) bool
	// SetProp refines a state with one property key/value pair. States the
	// pair does not apply to are returned unchanged.
	SetProp(s chunk.BlockState, name, value string) chunk.BlockState
	// BlockEntityKind returns the block entity type id for states that carry
	// a block entity, e.g. chests.
	BlockEntityKind(s chunk.BlockState) (int32, bool)
}

// BiomeRegistry resolves biomes by name. Implemented externally.
type BiomeRegistry interface {
	// Len returns the number of registered biomes.
	Len() int
	// BiomeByName resolves a biome identifier to its id.
	BiomeByName(name string) (chunk.BiomeID, bool)
}
