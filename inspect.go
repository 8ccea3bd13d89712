package boxtree

import (
	"fmt"
	"strings"

	"github.com/gaissmai/boxtree/internal/spatial"
)

// NodeKind identifies which of the four node variants a NodeView
// describes.
type NodeKind = nodeKind

// Re-export the four node kinds for callers of Inspect.
const (
	KindNothing     = nodeNothing
	KindInternal    = nodeInternal
	KindLeaf        = nodeLeaf
	KindUniformLeaf = nodeUniformLeaf
)

// NodeView is a read-only snapshot of one tree node, exposed to
// renderers and caches per spec.md §6.2 ("node kind, occupancy bitmap,
// child keys, brick storage, palette arrays"). It mirrors
// github.com/gaissmai/bart's dumper.go/stringify.go read-only dump API,
// generalized from a routing trie to a voxel tree.
//
// NodeView has no Bounds field: a pool key alone does not carry a path
// from the root, so bounds are only meaningful while traversing (see
// DumpString, which tracks them alongside each visited key).
type NodeView[T VoxelData] struct {
	Kind          NodeKind
	OccupancyBits uint64 // bit s set iff sectant s is present and non-Nothing
	Children      int    // number of set bits in OccupancyBits

	// ChildKeys holds the 64 child pool keys, pool.EMPTY where absent.
	// Populated only when Kind == KindInternal.
	ChildKeys [spatial.SectantCount]uint32

	// Bricks holds one decoded Entry per sectant, populated only when
	// Kind == KindLeaf. For KindUniformLeaf, use UniformEntry instead.
	Bricks []Entry[T]

	// UniformEntry holds the single repeated entry, populated only when
	// Kind == KindUniformLeaf.
	UniformEntry Entry[T]
}

// Inspect returns a NodeView for the node currently occupying key, or
// false if key does not refer to a live node.
func (c *Container[T]) Inspect(key uint32) (NodeView[T], bool) {
	n := c.nodes.Get(key)
	if n == nil {
		return NodeView[T]{}, false
	}

	view := NodeView[T]{
		Kind:          n.kind,
		OccupancyBits: uint64(n.ocbits),
		Children:      n.ocbits.Size(),
	}

	switch n.kind {
	case nodeInternal:
		ck := c.childrenOf(key)
		view.ChildKeys = *ck
	case nodeLeaf:
		// One representative Entry per sectant (cell 0 of its brick). A
		// Parted brick's remaining cells differ and are only reachable
		// through BrickWordAt.
		view.Bricks = make([]Entry[T], spatial.SectantCount)
		for s, b := range n.leafBricks {
			view.Bricks[s] = c.entryFromWord(b.at(0))
		}
	case nodeUniformLeaf:
		view.UniformEntry = c.entryFromWord(n.uniform.at(0))
	}

	return view, true
}

// BrickWordAt returns the decoded entry at brick-local flat index flat
// within sectant s of the Leaf or UniformLeaf node occupying key.
func (c *Container[T]) BrickWordAt(key uint32, s uint8, flat uint32) (Entry[T], bool) {
	n := c.nodes.Get(key)
	if n == nil {
		return Entry[T]{}, false
	}
	switch n.kind {
	case nodeLeaf:
		return c.entryFromWord(n.leafBricks[s].at(flat)), true
	case nodeUniformLeaf:
		return c.entryFromWord(n.uniform.at(flat)), true
	default:
		return Entry[T]{}, false
	}
}

// RootKey returns the pool key of the root node, stable for the
// Container's lifetime.
func (c *Container[T]) RootKey() uint32 {
	return rootKey
}

// Palette exposes the interned color and payload values in interning
// order, for diagnostics.
func (c *Container[T]) Palette() (colors []Albedo, payloads []T) {
	return c.colors.All(), c.payloads.All()
}

// ColorAt returns the color stored at a palette index, as returned by an
// Entry's internal index (exposed for tooling that already holds a raw
// palette index, e.g. a renderer reading back a GPU-side palette table).
func (c *Container[T]) ColorAt(idx uint16) (Albedo, bool) {
	return c.colors.At(idx)
}

// PayloadAt returns the payload stored at a palette index.
func (c *Container[T]) PayloadAt(idx uint16) (T, bool) {
	return c.payloads.At(idx)
}

// MIPAt samples the MIP cell at local (in [0, BrickDim())³) of the node
// occupying key, for diagnostics and tests. ok is false if the cell is
// empty or key is not a live node.
func (c *Container[T]) MIPAt(key uint32, local spatial.V3) (color Albedo, ok bool) {
	if !c.nodes.KeyIsValid(key) {
		return Albedo{}, false
	}
	flat := spatial.FlatIndex(local, c.brickDim)
	w := c.mipOf(key).at(flat)
	return c.colors.At(w.colorIdx())
}

// DumpString renders the tree structure as indented text, in the manner
// of bart's dumper.go: one line per visited node, children indented
// under their parent.
func (c *Container[T]) DumpString() string {
	var b strings.Builder
	c.dumpNode(&b, rootKey, c.rootBounds(), 0)
	return b.String()
}

func (c *Container[T]) dumpNode(b *strings.Builder, key uint32, bounds spatial.Cube, depth int) {
	n := c.node(key)
	indent := strings.Repeat("  ", depth)

	switch n.kind {
	case nodeNothing:
		fmt.Fprintf(b, "%snothing @%d size=%d\n", indent, key, bounds.Size)
	case nodeUniformLeaf:
		fmt.Fprintf(b, "%suniform_leaf @%d size=%d empty=%t\n", indent, key, bounds.Size, n.uniform.isEmpty())
	case nodeLeaf:
		fmt.Fprintf(b, "%sleaf @%d size=%d occupied=%d/64\n", indent, key, bounds.Size, n.ocbits.Size())
	case nodeInternal:
		fmt.Fprintf(b, "%sinternal @%d size=%d children=%d/64\n", indent, key, bounds.Size, n.ocbits.Size())
		ck := c.childrenOf(key)
		for s := 0; s < spatial.SectantCount; s++ {
			if c.nodes.KeyIsValid(ck[s]) {
				c.dumpNode(b, ck[s], bounds.ChildBoundsFor(uint8(s)), depth+1)
			}
		}
	}
}
