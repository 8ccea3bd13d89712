package boxtree

import (
	"github.com/gaissmai/boxtree/internal/pool"
	"github.com/gaissmai/boxtree/internal/spatial"
)

// InsertAtLOD fills the cubic region [pos, pos+size) with entry. A region
// that is not aligned to a leaf boundary may affect the whole enclosing
// leaf(s) it touches, trading point precision for O(log n) bulk writes
// (spec.md §4.3, "Bulk writes").
func (c *Container[T]) InsertAtLOD(pos spatial.V3, size uint32, entry Entry[T]) error {
	if !c.rootBounds().Contains(pos) {
		return ErrOutOfBounds
	}
	if size == 0 || entry.IsEmpty() {
		return nil
	}

	word, err := c.internEntry(entry)
	if err != nil {
		return err
	}

	c.bulkApply(rootKey, c.rootBounds(), pos, size, word, false)
	if c.mipEnabled {
		c.RecalculateMips()
	}
	return nil
}

// ClearAtLOD erases the cubic region [pos, pos+size), subject to the same
// leaf-alignment rule as InsertAtLOD.
func (c *Container[T]) ClearAtLOD(pos spatial.V3, size uint32) error {
	if !c.rootBounds().Contains(pos) {
		return ErrOutOfBounds
	}
	if size == 0 {
		return nil
	}

	c.bulkApply(rootKey, c.rootBounds(), pos, size, emptyWord, true)
	if c.mipEnabled {
		c.RecalculateMips()
	}
	return nil
}

// bulkApply applies word (or clears, when isClear) to the intersection of
// the node at key/bounds with the target region. It returns whether the
// node holds any content once the operation completes, so the caller can
// maintain its own occupancy bit.
func (c *Container[T]) bulkApply(key uint32, bounds spatial.Cube, regionMin spatial.V3, regionSize uint32, word paletteWord, isClear bool) bool {
	if !cubesOverlap(bounds, regionMin, regionSize) {
		return !c.node(key).isEmpty()
	}

	leafSize := c.brickDim * spatial.N

	// Whole-node fill/clear: either the region fully encloses this node's
	// bounds, or we've reached leaf granularity and the alignment rule
	// permits snapping a partial overlap to the whole leaf.
	if cubeFullyEnclosed(bounds, regionMin, regionSize) || bounds.Size == leafSize {
		n := c.node(key)
		if n.kind == nodeInternal {
			c.releaseAllChildren(key)
		}
		if isClear || word == emptyWord {
			*n = nothingNode[T]()
			return false
		}
		*n = uniformLeafNode[T](brick{kind: brickSolid, solid: word})
		return true
	}

	n := c.node(key)
	if n.kind != nodeInternal {
		c.demoteToInternal(key, bounds, n)
		n = c.node(key)
	}

	ck := c.childrenOf(key)
	for s := 0; s < spatial.SectantCount; s++ {
		childBounds := bounds.ChildBoundsFor(uint8(s))
		if !cubesOverlap(childBounds, regionMin, regionSize) {
			continue
		}

		childKey := ck[s]
		if !c.nodes.KeyIsValid(childKey) {
			childKey = c.allocNode(nothingNode[T]())
			ck[s] = childKey
		}

		if c.bulkApply(childKey, childBounds, regionMin, regionSize, word, isClear) {
			n.ocbits.MustSet(uint(s))
		} else {
			c.releaseNode(childKey)
			ck[s] = pool.EMPTY
			n.ocbits.MustClear(uint(s))
		}
	}

	if c.autoSimplify {
		c.trySimplify(key)
		n = c.node(key)
	}
	return !n.isEmpty()
}

// demoteToInternal rewrites the node at key, currently Nothing or
// UniformLeaf, as an Internal node whose 64 children reproduce its prior
// content, so bulkApply can recurse per sectant.
func (c *Container[T]) demoteToInternal(key uint32, bounds spatial.Cube, n *node[T]) {
	switch n.kind {
	case nodeNothing:
		*n = internalNode[T]()

	case nodeUniformLeaf:
		b := n.uniform
		*n = internalNode[T]()
		if b.isEmpty() {
			return
		}

		n2 := c.node(key)
		n2.ocbits = allSectantsSet
		ck := c.childrenOf(key)
		for s := 0; s < spatial.SectantCount; s++ {
			ck[s] = c.allocNode(uniformLeafNode[T](brick{kind: brickSolid, solid: b.solid}))
		}
	}
}

// cubesOverlap reports whether c and the axis-aligned cube
// [regionMin, regionMin+regionSize) intersect.
func cubesOverlap(c spatial.Cube, regionMin spatial.V3, regionSize uint32) bool {
	return c.Min.X < regionMin.X+regionSize && regionMin.X < c.Min.X+c.Size &&
		c.Min.Y < regionMin.Y+regionSize && regionMin.Y < c.Min.Y+c.Size &&
		c.Min.Z < regionMin.Z+regionSize && regionMin.Z < c.Min.Z+c.Size
}

// cubeFullyEnclosed reports whether c lies entirely within
// [regionMin, regionMin+regionSize).
func cubeFullyEnclosed(c spatial.Cube, regionMin spatial.V3, regionSize uint32) bool {
	return regionMin.X <= c.Min.X && c.Min.X+c.Size <= regionMin.X+regionSize &&
		regionMin.Y <= c.Min.Y && c.Min.Y+c.Size <= regionMin.Y+regionSize &&
		regionMin.Z <= c.Min.Z && c.Min.Z+c.Size <= regionMin.Z+regionSize
}
