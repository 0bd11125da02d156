package chunk

// HasPos is implemented by values that live at a chunk position. Pos itself
// implements it.
type HasPos interface {
	ChunkPos() Pos
}

// DefaultMaxSurfaceArea is the leaf threshold used by NewBvh.
const DefaultMaxSurfaceArea = 8 * 4

// Bvh is an axis-aligned bounding volume hierarchy over chunk positions,
// used to dispatch per-chunk visibility queries. Build and Query run on a
// single goroutine; the tree is not safe for concurrent mutation.
type Bvh[T HasPos] struct {
	nodes          []bvhNode
	values         []T
	maxSurfaceArea int32
}

// bvhNode is either an internal node (left and right are child indices) or a
// leaf holding a contiguous range of the values array. Nodes are stored in
// post-order with the root last.
type bvhNode struct {
	bounds      aabb
	left, right int32
	start, end  int32
	leaf        bool
}

type aabb struct {
	min, max Pos
}

func pointAabb(p Pos) aabb {
	return aabb{min: p, max: p}
}

// surfaceArea is the perimeter of the box: the sum of its side lengths.
func (a aabb) surfaceArea() int32 {
	return (a.lengthX() + a.lengthZ()) * 2
}

func (a aabb) lengthX() int32 { return a.max.X - a.min.X }
func (a aabb) lengthZ() int32 { return a.max.Z - a.min.Z }

// union returns the smallest box containing both a and o.
func (a aabb) union(o aabb) aabb {
	return aabb{
		min: Pos{min(a.min.X, o.min.X), min(a.min.Z, o.min.Z)},
		max: Pos{max(a.max.X, o.max.X), max(a.max.Z, o.max.Z)},
	}
}

func (a aabb) intersects(o aabb) bool {
	return a.min.X <= o.max.X && a.max.X >= o.min.X &&
		a.min.Z <= o.max.Z && a.max.Z >= o.min.Z
}

// NewBvh returns an empty tree with the default leaf threshold.
func NewBvh[T HasPos]() *Bvh[T] {
	return &Bvh[T]{maxSurfaceArea: DefaultMaxSurfaceArea}
}

// NewBvhWithLeafSize returns an empty tree that stops splitting nodes once
// their bounds' surface area is at or below maxSurfaceArea.
func NewBvhWithLeafSize[T HasPos](maxSurfaceArea int32) *Bvh[T] {
	if maxSurfaceArea <= 0 {
		panic("max surface area must be positive")
	}
	return &Bvh[T]{maxSurfaceArea: maxSurfaceArea}
}

// Build replaces the tree contents with the given values, reordering them
// internally by recursive median-midpoint partitioning.
func (b *Bvh[T]) Build(values []T) {
	b.nodes = b.nodes[:0]
	b.values = append(b.values[:0], values...)

	if bounds, ok := valueBounds(b.values); ok {
		b.buildRec(bounds, 0, len(b.values))
	}
}

func (b *Bvh[T]) buildRec(bounds aabb, start, end int) {
	if bounds.surfaceArea() <= b.maxSurfaceArea {
		b.nodes = append(b.nodes, bvhNode{
			bounds: bounds,
			start:  int32(start),
			end:    int32(end),
			leaf:   true,
		})
		return
	}

	values := b.values[start:end]

	// Split along the longer side at the spatial midpoint. A fancier
	// heuristic like SAH probably doesn't matter here.
	var point int
	if bounds.lengthX() >= bounds.lengthZ() {
		mid := middle(bounds.min.X, bounds.max.X)
		point = partition(values, func(v T) bool { return v.ChunkPos().X >= mid })
	} else {
		mid := middle(bounds.min.Z, bounds.max.Z)
		point = partition(values, func(v T) bool { return v.ChunkPos().Z >= mid })
	}

	if point == 0 || point == len(values) {
		// Degenerate split; every value landed on one side.
		b.nodes = append(b.nodes, bvhNode{
			bounds: bounds,
			start:  int32(start),
			end:    int32(end),
			leaf:   true,
		})
		return
	}

	leftBounds, _ := valueBounds(b.values[start : start+point])
	rightBounds, _ := valueBounds(b.values[start+point : end])

	b.buildRec(leftBounds, start, start+point)
	left := int32(len(b.nodes) - 1)

	b.buildRec(rightBounds, start+point, end)
	right := int32(len(b.nodes) - 1)

	b.nodes = append(b.nodes, bvhNode{
		bounds: bounds,
		left:   left,
		right:  right,
	})
}

// Query calls fn for every value whose position is inside the view.
func (b *Bvh[T]) Query(view View, fn func(T)) {
	if len(b.nodes) == 0 {
		return
	}
	minPos, maxPos := view.BoundingBox()
	b.queryRec(&b.nodes[len(b.nodes)-1], view, aabb{min: minPos, max: maxPos}, fn)
}

func (b *Bvh[T]) queryRec(node *bvhNode, view View, viewAabb aabb, fn func(T)) {
	if !node.bounds.intersects(viewAabb) {
		return
	}
	if node.leaf {
		for _, v := range b.values[node.start:node.end] {
			if view.Contains(v.ChunkPos()) {
				fn(v)
			}
		}
		return
	}
	b.queryRec(&b.nodes[node.left], view, viewAabb, fn)
	b.queryRec(&b.nodes[node.right], view, viewAabb, fn)
}

// ShrinkToFit reclaims unused capacity.
func (b *Bvh[T]) ShrinkToFit() {
	b.nodes = b.nodes[:len(b.nodes):len(b.nodes)]
	b.values = b.values[:len(b.values):len(b.values)]
}

func valueBounds[T HasPos](values []T) (aabb, bool) {
	if len(values) == 0 {
		return aabb{}, false
	}
	bounds := pointAabb(values[0].ChunkPos())
	for _, v := range values[1:] {
		bounds = bounds.union(pointAabb(v.ChunkPos()))
	}
	return bounds, true
}

// middle avoids intermediate overflow for coordinates near the i32 limits.
func middle(min, max int32) int32 {
	return int32((int64(min) + int64(max)) / 2)
}

// partition moves values satisfying pred to the front of s and returns the
// partition point.
func partition[T any](s []T, pred func(T) bool) int {
	point := 0
	for i := range s {
		if pred(s[i]) {
			s[point], s[i] = s[i], s[point]
			point++
		}
	}
	return point
}
