package boxtree

import "github.com/gaissmai/boxtree/internal/bitset64"

// brickKind tags the three brick storage variants (spec.md §3).
type brickKind uint8

const (
	brickEmpty brickKind = iota
	brickSolid
	brickParted
)

// brick is a voxel brick: Empty (no storage), Solid (one word for every
// cell) or Parted (a dense brickDim^3 array of words, x-major then y then
// z, per spatial.FlatIndex).
type brick struct {
	kind  brickKind
	solid paletteWord   // valid iff kind == brickSolid
	cells []paletteWord // valid iff kind == brickParted, len == brickDim^3
}

func emptyBrick() brick {
	return brick{kind: brickEmpty}
}

// at returns the word stored at the brick-local flat index.
func (b brick) at(flat uint32) paletteWord {
	switch b.kind {
	case brickEmpty:
		return emptyWord
	case brickSolid:
		return b.solid
	default:
		return b.cells[flat]
	}
}

// isEmpty reports whether b carries no content.
func (b brick) isEmpty() bool {
	return b.kind == brickEmpty
}

// nodeKind tags the four node variants (spec.md §3).
type nodeKind uint8

const (
	nodeNothing nodeKind = iota
	nodeInternal
	nodeLeaf
	nodeUniformLeaf
)

// node is a tagged-union tree node. Internal nodes carry an occupancy
// bitmap directly (ocbits); their 64 child keys live in the container's
// children side-table, keyed by the node's pool key, per spec.md §3/§4.1.
// Leaf and UniformLeaf cache their own occupancy in ocbits rather than via
// a side table, since it is cheap to maintain incrementally on every
// brick write (see DESIGN.md).
type node[T VoxelData] struct {
	kind nodeKind

	ocbits bitset64.Set

	uniform    brick   // valid iff kind == nodeUniformLeaf
	leafBricks []brick // valid iff kind == nodeLeaf, len == 64
}

func nothingNode[T VoxelData]() node[T] {
	return node[T]{kind: nodeNothing}
}

func internalNode[T VoxelData]() node[T] {
	return node[T]{kind: nodeInternal}
}

func uniformLeafNode[T VoxelData](b brick) node[T] {
	var occ bitset64.Set
	if !b.isEmpty() {
		occ = allSectantsSet
	}
	return node[T]{kind: nodeUniformLeaf, uniform: b, ocbits: occ}
}

func leafNode[T VoxelData](bricks []brick) node[T] {
	n := node[T]{kind: nodeLeaf, leafBricks: bricks}
	for s, b := range bricks {
		if !b.isEmpty() {
			n.ocbits.MustSet(uint(s))
		}
	}
	return n
}

// allSectantsSet is the occupancy bitmap with all 64 bits set.
const allSectantsSet bitset64.Set = 1<<64 - 1

// isEmpty reports whether the node carries no content at all.
func (n node[T]) isEmpty() bool {
	switch n.kind {
	case nodeNothing:
		return true
	case nodeInternal, nodeLeaf:
		return n.ocbits.IsEmpty()
	case nodeUniformLeaf:
		return n.uniform.isEmpty()
	}
	return true
}
