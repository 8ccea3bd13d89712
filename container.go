// Package boxtree implements a sparse voxel volume engine: a cubic voxel
// field addressed by point queries, bulk range writes and range clears,
// with colors and user payload deduplicated through palettes, and a
// hierarchy of downsampled color MIPs maintained per interior node.
//
// See spec.md for the full specification this module implements. The
// architecture — tagged node/brick unions, a numeric-key arena instead of
// a pointer graph, popcount-compressed occupancy bitmaps, a read-only dump
// surface — is modeled on github.com/gaissmai/bart's multibit trie, with
// bart's 256-way stride narrowed to a 64-way (N^3 = 4^3) sectant
// fan-out (see SPEC_FULL.md and DESIGN.md).
package boxtree

import (
	"math/bits"

	"github.com/gaissmai/boxtree/internal/palette"
	"github.com/gaissmai/boxtree/internal/pool"
	"github.com/gaissmai/boxtree/internal/spatial"
)

// childKeys is the side-table payload for an Internal node: the 64 child
// keys, pool.EMPTY where no child is present.
type childKeys [spatial.SectantCount]uint32

func emptyChildKeys() childKeys {
	var ck childKeys
	for i := range ck {
		ck[i] = pool.EMPTY
	}
	return ck
}

// Container is the public sparse voxel volume. The zero value is not
// ready to use; construct with New.
//
// Not safe for concurrent mutation; any number of readers may observe a
// snapshot while no mutation is in flight (spec.md §5).
type Container[T VoxelData] struct {
	size     uint32
	brickDim uint32

	autoSimplify bool

	nodes    *pool.Pool[node[T]]
	children *pool.Pool[childKeys]
	mips     *pool.Pool[brick]

	colors   *palette.Palette[Albedo]
	payloads *palette.Palette[T]

	strategy   *MIPStrategy
	mipEnabled bool
}

const rootKey uint32 = 0

// New creates a Container covering a cube of the given edge length,
// storing voxels in bricks of the given edge length.
//
// size must equal brickDim * 4^k for some integer k >= 1, and brickDim
// must be a power of two no larger than size/4 (spec.md §3).
func New[T VoxelData](size, brickDim uint32) (*Container[T], error) {
	if brickDim == 0 || brickDim&(brickDim-1) != 0 {
		return nil, ErrInvalidBrickDimension
	}
	if !isPowerOf4Multiple(size, brickDim) {
		return nil, ErrInvalidSize
	}
	if size < brickDim*spatial.N {
		return nil, ErrInvalidStructure
	}

	c := &Container[T]{
		size:         size,
		brickDim:     brickDim,
		autoSimplify: true,
		nodes:        pool.New[node[T]](),
		children:     pool.New[childKeys](),
		mips:         pool.New[brick](),
		colors:       palette.New(func(a Albedo) bool { return a.IsTransparent() }),
		payloads:     palette.New(func(p T) bool { return p.IsEmpty() }),
		strategy:     defaultMIPStrategy(),
	}

	k := c.allocNode(nothingNode[T]())
	if k != rootKey {
		panic("boxtree: root key must be 0")
	}

	return c, nil
}

// isPowerOf4Multiple reports whether size == brickDim * 4^k for some k>=0.
// Whether k must additionally be >=1 is InvalidStructure's concern, not
// this one (spec.md §7: InvalidSize and InvalidStructure are distinct
// failure modes, e.g. size = brick_dim*3 is InvalidSize while
// size = brick_dim (k=0) is InvalidStructure).
func isPowerOf4Multiple(size, brickDim uint32) bool {
	if brickDim == 0 || size%brickDim != 0 {
		return false
	}
	q := size / brickDim
	if q == 0 {
		return false
	}
	// q must be a power of 4.
	if q&(q-1) != 0 {
		return false
	}
	return bits.TrailingZeros32(q)%2 == 0
}

// Size returns the edge length of the covered cube, in voxels.
func (c *Container[T]) Size() uint32 {
	return c.size
}

// BrickDim returns the edge length of a voxel brick.
func (c *Container[T]) BrickDim() uint32 {
	return c.brickDim
}

// SetAutoSimplify toggles the post-write simplification pass
// (spec.md §4.3, default on).
func (c *Container[T]) SetAutoSimplify(on bool) {
	c.autoSimplify = on
}

func (c *Container[T]) rootBounds() spatial.Cube {
	return spatial.Cube{Min: spatial.V3{}, Size: c.size}
}

// allocNode pushes n into the node pool and dense-aligns the children and
// mips side-tables (spec.md §4.1: "allocating a node must allocate a slot
// in each side-table").
func (c *Container[T]) allocNode(n node[T]) uint32 {
	key := c.nodes.Push(n)
	ckKey := c.children.Push(emptyChildKeys())
	mipKey := c.mips.Push(emptyBrick())
	if ckKey != key || mipKey != key {
		panic("boxtree: side tables fell out of dense alignment with the node pool")
	}
	return key
}

// releaseNode frees key's slot in the node pool and both side-tables.
func (c *Container[T]) releaseNode(key uint32) {
	c.nodes.Release(key)
	c.children.Release(key)
	c.mips.Release(key)
}

func (c *Container[T]) node(key uint32) *node[T] {
	return c.nodes.Get(key)
}

func (c *Container[T]) childrenOf(key uint32) *childKeys {
	return c.children.Get(key)
}

func (c *Container[T]) mipOf(key uint32) *brick {
	return c.mips.Get(key)
}
