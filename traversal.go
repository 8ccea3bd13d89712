package boxtree

import (
	"github.com/gaissmai/boxtree/internal/pool"
	"github.com/gaissmai/boxtree/internal/spatial"
)

// descend walks from startKey towards the deepest node covering point,
// returning that node's key and its bounds (spec.md §4.5).
//
// point must lie within bounds on entry.
func (c *Container[T]) descend(startKey uint32, bounds spatial.Cube, point spatial.V3) (uint32, spatial.Cube) {
	key := startKey

	for {
		n := c.node(key)
		if n == nil || n.kind != nodeInternal {
			return key, bounds
		}

		s := bounds.SectantFor(point)
		ck := c.childrenOf(key)
		childKey := ck[s]
		if childKey == pool.EMPTY || !c.nodes.KeyIsValid(childKey) {
			return key, bounds
		}

		key = childKey
		bounds = bounds.ChildBoundsFor(s)
	}
}
