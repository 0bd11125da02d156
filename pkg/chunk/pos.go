package chunk

// Pos identifies a chunk column by its chunk coordinates.
type Pos struct {
	X, Z int32
}

// PosAt returns the chunk position containing the given block coordinates.
func PosAt(blockX, blockZ int32) Pos {
	return Pos{X: blockX >> 4, Z: blockZ >> 4}
}

// ChunkPos makes Pos usable as a BVH value.
func (p Pos) ChunkPos() Pos { return p }

// RegionPos returns the position of the region file containing this chunk.
func (p Pos) RegionPos() RegionPos {
	return RegionPos{X: p.X >> 5, Z: p.Z >> 5}
}

// DistanceSquared returns the squared chunk distance between p and o.
func (p Pos) DistanceSquared(o Pos) uint64 {
	dx := int64(p.X) - int64(o.X)
	dz := int64(p.Z) - int64(o.Z)
	return uint64(dx*dx + dz*dz)
}

// RegionPos identifies a 32x32 chunk region.
type RegionPos struct {
	X, Z int32
}

// View is the set of chunk positions visible to a client, a square of side
// 2*Dist+1 centered on Pos.
type View struct {
	Pos  Pos
	Dist int32
}

// Contains reports whether p is inside the view.
func (v View) Contains(p Pos) bool {
	dx := p.X - v.Pos.X
	dz := p.Z - v.Pos.Z
	return -v.Dist <= dx && dx <= v.Dist && -v.Dist <= dz && dz <= v.Dist
}

// BoundingBox returns the inclusive corners of the view.
func (v View) BoundingBox() (min, max Pos) {
	return Pos{v.Pos.X - v.Dist, v.Pos.Z - v.Dist}, Pos{v.Pos.X + v.Dist, v.Pos.Z + v.Dist}
}

// ForEach calls fn for every position in the view.
func (v View) ForEach(fn func(Pos)) {
	for z := v.Pos.Z - v.Dist; z <= v.Pos.Z+v.Dist; z++ {
		for x := v.Pos.X - v.Dist; x <= v.Pos.X+v.Dist; x++ {
			fn(Pos{X: x, Z: z})
		}
	}
}

// Diff calls fn for every position in v that is not in old.
func (v View) Diff(old View, fn func(Pos)) {
	v.ForEach(func(p Pos) {
		if !old.Contains(p) {
			fn(p)
		}
	})
}
