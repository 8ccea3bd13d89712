package boxtree

import "github.com/gaissmai/boxtree/internal/palette"

// paletteWord is the 32-bit packed word from spec.md §3: low 16 bits index
// the color palette, high 16 bits index the payload palette. Either half
// may be palette.NoneIndex.
type paletteWord uint32

const emptyWord paletteWord = paletteWord(palette.NoneIndex) | paletteWord(palette.NoneIndex)<<16

func makeWord(colorIdx, payloadIdx uint16) paletteWord {
	return paletteWord(colorIdx) | paletteWord(payloadIdx)<<16
}

func (w paletteWord) colorIdx() uint16 {
	return uint16(w)
}

func (w paletteWord) payloadIdx() uint16 {
	return uint16(w >> 16)
}

// isWordEmpty reports whether w resolves to "none" in both halves, consulting
// the palettes so a (rare, defensive) empty-but-interned entry is also
// treated as empty, per spec.md §4.4.
func isWordEmpty[T VoxelData](w paletteWord, colors *palette.Palette[Albedo], payloads *palette.Palette[T]) bool {
	return colors.IsEmptyIndex(w.colorIdx()) && payloads.IsEmptyIndex(w.payloadIdx())
}
