package boxtree

import (
	"github.com/gaissmai/boxtree/internal/pool"
	"github.com/gaissmai/boxtree/internal/spatial"
)

// pathStep records one step of a point write's top-down descent, so the
// write can be followed by a bottom-up occupancy/simplification fixup
// without re-descending.
type pathStep struct {
	parentKey    uint32
	parentBounds spatial.Cube
	sectant      uint8
}

// Get returns the entry stored at pos, or the empty entry if pos is
// unwritten or lies outside the volume (spec.md §4.3, "Point read").
func (c *Container[T]) Get(pos spatial.V3) Entry[T] {
	return c.entryFromWord(c.wordAt(pos))
}

// Insert writes entry as the complete new content of the voxel at pos,
// replacing whatever was there. An effectively-empty entry is a no-op
// (use Clear to erase a voxel).
func (c *Container[T]) Insert(pos spatial.V3, entry Entry[T]) error {
	if !c.rootBounds().Contains(pos) {
		return ErrOutOfBounds
	}
	if entry.IsEmpty() {
		return nil
	}
	word, err := c.internEntry(entry)
	if err != nil {
		return err
	}
	return c.placeWord(pos, word)
}

// Update writes only the components present in entry, preserving
// whichever component is not present (spec.md §4.3).
func (c *Container[T]) Update(pos spatial.V3, entry Entry[T]) error {
	if !c.rootBounds().Contains(pos) {
		return ErrOutOfBounds
	}

	existing := c.wordAt(pos)
	colorIdx := existing.colorIdx()
	payloadIdx := existing.payloadIdx()
	changed := false

	if albedo, ok := entry.Albedo(); ok {
		idx, err := c.colors.Intern(albedo)
		if err != nil {
			return ErrPaletteExhausted
		}
		if idx != colorIdx {
			changed = true
		}
		colorIdx = idx
	}
	if payload, ok := entry.Payload(); ok {
		idx, err := c.payloads.Intern(payload)
		if err != nil {
			return ErrPaletteExhausted
		}
		if idx != payloadIdx {
			changed = true
		}
		payloadIdx = idx
	}

	if !changed {
		return nil
	}
	return c.placeWord(pos, makeWord(colorIdx, payloadIdx))
}

// Clear erases both components of the voxel at pos.
func (c *Container[T]) Clear(pos spatial.V3) error {
	if !c.rootBounds().Contains(pos) {
		return ErrOutOfBounds
	}
	if c.wordAt(pos) == emptyWord {
		return nil
	}
	return c.placeWord(pos, emptyWord)
}

// internEntry interns entry's components, returning the packed word. It
// performs no tree mutation, so a PaletteExhausted failure here leaves the
// container untouched (spec.md §7).
func (c *Container[T]) internEntry(entry Entry[T]) (paletteWord, error) {
	colorIdx := uint16(emptyWord.colorIdx())
	if albedo, ok := entry.Albedo(); ok {
		idx, err := c.colors.Intern(albedo)
		if err != nil {
			return 0, ErrPaletteExhausted
		}
		colorIdx = idx
	}
	payloadIdx := uint16(emptyWord.payloadIdx())
	if payload, ok := entry.Payload(); ok {
		idx, err := c.payloads.Intern(payload)
		if err != nil {
			return 0, ErrPaletteExhausted
		}
		payloadIdx = idx
	}
	return makeWord(colorIdx, payloadIdx), nil
}

// wordAt reads the raw palette word stored at pos without interning
// anything. Returns emptyWord for an unwritten or out-of-bounds position.
func (c *Container[T]) wordAt(pos spatial.V3) paletteWord {
	bounds := c.rootBounds()
	if !bounds.Contains(pos) {
		return emptyWord
	}

	key, nodeBounds := c.descend(rootKey, bounds, pos)
	n := c.node(key)
	switch n.kind {
	case nodeLeaf:
		s := nodeBounds.SectantFor(pos)
		return n.leafBricks[s].at(c.flatIndexIn(nodeBounds, pos, s))
	case nodeUniformLeaf:
		s := nodeBounds.SectantFor(pos)
		return n.uniform.at(c.flatIndexIn(nodeBounds, pos, s))
	default:
		return emptyWord
	}
}

// flatIndexIn returns pos's flat brick-local index within sectant s of a
// node spanning nodeBounds.
func (c *Container[T]) flatIndexIn(nodeBounds spatial.Cube, pos spatial.V3, s uint8) uint32 {
	childBounds := nodeBounds.ChildBoundsFor(s)
	local := spatial.V3{
		X: pos.X - childBounds.Min.X,
		Y: pos.Y - childBounds.Min.Y,
		Z: pos.Z - childBounds.Min.Z,
	}
	return spatial.FlatIndex(local, c.brickDim)
}

func (c *Container[T]) entryFromWord(w paletteWord) Entry[T] {
	if isWordEmpty[T](w, c.colors, c.payloads) {
		return EmptyEntry[T]()
	}

	albedo, hasColor := c.colors.At(w.colorIdx())
	payload, hasPayload := c.payloads.At(w.payloadIdx())

	switch {
	case hasColor && hasPayload:
		return Complex[T](albedo, payload)
	case hasColor:
		return Visual[T](albedo)
	case hasPayload:
		return Informative[T](payload)
	default:
		return EmptyEntry[T]()
	}
}

// ensurePath descends from the root towards pos, promoting Nothing nodes
// to Internal and allocating missing children as needed, stopping at the
// node whose bounds equal one brick times N (the level that stores
// bricks directly). It returns the steps taken so the caller can run a
// bottom-up fixup after writing.
func (c *Container[T]) ensurePath(pos spatial.V3) ([]pathStep, uint32, spatial.Cube) {
	bounds := c.rootBounds()
	key := rootKey
	leafSize := c.brickDim * spatial.N

	var path []pathStep
	for bounds.Size > leafSize {
		n := c.node(key)
		if n.kind == nodeNothing {
			*n = internalNode[T]()
		}

		s := bounds.SectantFor(pos)
		ck := c.childrenOf(key)
		childKey := ck[s]
		if !c.nodes.KeyIsValid(childKey) {
			childKey = c.allocNode(nothingNode[T]())
			ck[s] = childKey
		}

		path = append(path, pathStep{parentKey: key, parentBounds: bounds, sectant: s})
		key = childKey
		bounds = bounds.ChildBoundsFor(s)
	}

	return path, key, bounds
}

// writeLeafLevel applies word to the single voxel at pos within the
// brick-storing node at key/bounds, handling Nothing->Leaf promotion and
// UniformLeaf->Leaf demotion (spec.md §4.3).
func (c *Container[T]) writeLeafLevel(key uint32, bounds spatial.Cube, pos spatial.V3, word paletteWord) {
	n := c.node(key)
	s := bounds.SectantFor(pos)
	flat := c.flatIndexIn(bounds, pos, s)
	cellCount := c.brickDim * c.brickDim * c.brickDim

	switch n.kind {
	case nodeNothing:
		if word == emptyWord {
			return
		}
		bricks := make([]brick, spatial.SectantCount)
		for i := range bricks {
			bricks[i] = emptyBrick()
		}
		writeBrickCell(&bricks[s], flat, word, cellCount)
		*n = leafNode[T](bricks)

	case nodeUniformLeaf:
		if n.uniform.at(flat) == word {
			return
		}
		bricks := make([]brick, spatial.SectantCount)
		for i := range bricks {
			bricks[i] = copyBrick(n.uniform)
		}
		writeBrickCell(&bricks[s], flat, word, cellCount)
		*n = leafNode[T](bricks)

	case nodeLeaf:
		writeBrickCell(&n.leafBricks[s], flat, word, cellCount)
		if n.leafBricks[s].isEmpty() {
			n.ocbits.MustClear(uint(s))
		} else {
			n.ocbits.MustSet(uint(s))
		}
	}
}

// placeWord is the shared core of Insert/Update/Clear: it descends
// (creating structure as needed), writes the single voxel, then fixes up
// occupancy bits and runs auto-simplification back up to the root.
func (c *Container[T]) placeWord(pos spatial.V3, word paletteWord) error {
	path, key, bounds := c.ensurePath(pos)
	c.writeLeafLevel(key, bounds, pos, word)
	c.fixupPath(path, key)
	if c.mipEnabled {
		c.updateMipAlongPath(path, key, bounds, pos)
	}
	return nil
}

// fixupPath walks the descent path bottom-up, maintaining the Internal
// occupancy invariant (bit s set iff children[s] is present and not the
// Nothing node) and, when auto-simplify is on, collapsing uniform or
// emptied subtrees (spec.md §4.3, "Simplification").
func (c *Container[T]) fixupPath(path []pathStep, leafKey uint32) {
	key := leafKey
	for i := len(path) - 1; i >= 0; i-- {
		if c.autoSimplify {
			c.trySimplify(key)
		}

		n := c.node(key)
		step := path[i]
		parent := c.node(step.parentKey)
		pck := c.childrenOf(step.parentKey)

		if n.kind == nodeNothing {
			c.releaseNode(key)
			pck[step.sectant] = pool.EMPTY
			parent.ocbits.MustClear(uint(step.sectant))
		} else {
			parent.ocbits.MustSet(uint(step.sectant))
		}

		key = step.parentKey
	}

	if c.autoSimplify {
		c.trySimplify(rootKey)
	}
}

// trySimplify attempts the collapses from spec.md §4.3's "Simplification"
// list for the node at key: Leaf -> UniformLeaf, Internal -> UniformLeaf,
// and any now-empty node -> Nothing.
func (c *Container[T]) trySimplify(key uint32) {
	n := c.node(key)

	switch n.kind {
	case nodeLeaf:
		if v, ok := uniformSolidOf(n.leafBricks); ok {
			*n = uniformLeafNode[T](brick{kind: brickSolid, solid: v})
		}
	case nodeInternal:
		if v, ok := c.allChildrenUniformSolid(key); ok {
			c.releaseAllChildren(key)
			*n = uniformLeafNode[T](brick{kind: brickSolid, solid: v})
		}
	}

	n = c.node(key)
	if n.kind != nodeNothing && n.isEmpty() {
		*n = nothingNode[T]()
	}
}

// uniformSolidOf reports whether every brick in bricks is Solid with the
// same non-empty word.
func uniformSolidOf(bricks []brick) (paletteWord, bool) {
	first := bricks[0]
	if first.kind != brickSolid || first.solid == emptyWord {
		return 0, false
	}
	for _, b := range bricks[1:] {
		if b.kind != brickSolid || b.solid != first.solid {
			return 0, false
		}
	}
	return first.solid, true
}

// allChildrenUniformSolid reports whether the Internal node at key has
// all 64 sectants occupied by a UniformLeaf(Solid(v)) child sharing the
// same non-empty v.
func (c *Container[T]) allChildrenUniformSolid(key uint32) (paletteWord, bool) {
	n := c.node(key)
	if n.ocbits != allSectantsSet {
		return 0, false
	}

	ck := c.childrenOf(key)
	var v paletteWord
	for s := 0; s < spatial.SectantCount; s++ {
		childKey := ck[s]
		if !c.nodes.KeyIsValid(childKey) {
			return 0, false
		}
		child := c.node(childKey)
		if child.kind != nodeUniformLeaf || child.uniform.kind != brickSolid {
			return 0, false
		}
		if s == 0 {
			v = child.uniform.solid
		} else if child.uniform.solid != v {
			return 0, false
		}
	}
	if v == emptyWord {
		return 0, false
	}
	return v, true
}

// releaseAllChildren releases every present child of the Internal node at
// key and clears the side-table slots.
func (c *Container[T]) releaseAllChildren(key uint32) {
	ck := c.childrenOf(key)
	for s := 0; s < spatial.SectantCount; s++ {
		if c.nodes.KeyIsValid(ck[s]) {
			c.releaseNode(ck[s])
		}
		ck[s] = pool.EMPTY
	}
}
