package boxtree

// writeBrickCell applies the single-cell brick transition table from
// spec.md §4.3: Empty/Solid transition to Parted on a differing write,
// Parted writes in place, and any Parted brick collapses back to
// Solid/Empty once uniform.
func writeBrickCell(b *brick, flat uint32, word paletteWord, cellCount uint32) {
	switch b.kind {
	case brickEmpty:
		if word == emptyWord {
			return
		}
		cells := make([]paletteWord, cellCount)
		for i := range cells {
			cells[i] = emptyWord
		}
		cells[flat] = word
		*b = brick{kind: brickParted, cells: cells}
	case brickSolid:
		if word == b.solid {
			return
		}
		cells := make([]paletteWord, cellCount)
		for i := range cells {
			cells[i] = b.solid
		}
		cells[flat] = word
		*b = brick{kind: brickParted, cells: cells}
	case brickParted:
		b.cells[flat] = word
	}

	if b.kind == brickParted {
		collapsePartedIfUniform(b)
	}
}

// collapsePartedIfUniform demotes a Parted brick to Solid or Empty once
// every cell holds the same word.
func collapsePartedIfUniform(b *brick) {
	first := b.cells[0]
	for _, w := range b.cells[1:] {
		if w != first {
			return
		}
	}
	if first == emptyWord {
		*b = brick{kind: brickEmpty}
	} else {
		*b = brick{kind: brickSolid, solid: first}
	}
}

// copyBrick returns an independent copy of b, deep-copying the Parted
// backing array so two bricks never alias the same slice.
func copyBrick(b brick) brick {
	if b.kind == brickParted {
		cells := make([]paletteWord, len(b.cells))
		copy(cells, b.cells)
		return brick{kind: brickParted, cells: cells}
	}
	return b
}
