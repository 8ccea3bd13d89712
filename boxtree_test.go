package boxtree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaissmai/boxtree/internal/spatial"
)

// tag is a minimal VoxelData implementation used throughout these tests.
type tag string

func (t tag) IsEmpty() bool { return t == "" }

func p(x, y, z uint32) spatial.V3 { return spatial.V3{X: x, Y: y, Z: z} }

var red = RGBA(0xFF, 0, 0, 0xFF)
var green = RGBA(0, 0xFF, 0, 0xFF)
var blue = RGBA(0, 0, 0xFF, 0xFF)

// S1: constructor validation.
func TestS1ConstructorValidation(t *testing.T) {
	_, err := New[tag](128, 8)
	require.NoError(t, err)

	_, err = New[tag](24, 8)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = New[tag](32, 3)
	assert.ErrorIs(t, err, ErrInvalidBrickDimension)
}

// S2/S3: point insert, overwrite, and isolation from neighboring voxels.
func TestS2S3PointInsertAndOverwrite(t *testing.T) {
	tr, err := New[tag](32, 8)
	require.NoError(t, err)

	require.NoError(t, tr.Insert(p(0, 0, 0), Visual[tag](red)))
	assert.True(t, tr.Get(p(0, 0, 0)).Equal(Visual[tag](red)))
	assert.True(t, tr.Get(p(0, 0, 1)).Equal(EmptyEntry[tag]()))

	require.NoError(t, tr.Insert(p(0, 0, 0), Visual[tag](green)))
	assert.True(t, tr.Get(p(0, 0, 0)).Equal(Visual[tag](green)))
}

// S4/S5: bulk insert and bulk clear, with the alignment rule.
func TestS4S5BulkInsertAndClear(t *testing.T) {
	tr, err := New[tag](128, 8)
	require.NoError(t, err)

	require.NoError(t, tr.InsertAtLOD(p(0, 0, 0), 16, Visual[tag](blue)))
	for z := uint32(0); z < 16; z++ {
		for y := uint32(0); y < 16; y++ {
			for x := uint32(0); x < 16; x++ {
				require.Truef(t, tr.Get(p(x, y, z)).Equal(Visual[tag](blue)), "(%d,%d,%d)", x, y, z)
			}
		}
	}

	require.NoError(t, tr.ClearAtLOD(p(5, 5, 5), 64))
	for z := uint32(5); z < 8; z++ {
		for y := uint32(5); y < 8; y++ {
			for x := uint32(5); x < 8; x++ {
				require.Truef(t, tr.Get(p(x, y, z)).IsEmpty(), "(%d,%d,%d)", x, y, z)
			}
		}
	}
}

// S6: MIP sampling under BoxFilter at a single-level tree.
func TestS6MIPBoxFilterScenario(t *testing.T) {
	tr, err := New[tag](4, 1)
	require.NoError(t, err)
	tr.SetAutoSimplify(false)

	tr.MipStrategy().SetMethodAt(1, BoxFilter())

	for _, pos := range []spatial.V3{p(0, 0, 0), p(0, 1, 0), p(1, 0, 0)} {
		require.NoError(t, tr.Insert(pos, Visual[tag](red)))
	}
	for _, pos := range []spatial.V3{p(0, 0, 1), p(0, 1, 1), p(1, 0, 1)} {
		require.NoError(t, tr.Insert(pos, Visual[tag](green)))
	}

	tr.MipStrategy().Enable()

	color, ok := tr.MIPAt(tr.RootKey(), p(0, 0, 0))
	require.True(t, ok)

	want := uint8(math.Round(math.Sqrt(255.0 * 255.0 / 2)))
	assert.InDelta(t, want, color.R, 1)
	assert.InDelta(t, want, color.G, 1)
	assert.InDelta(t, 0, color.B, 1)
	assert.InDelta(t, 255, color.A, 1)
}

// Property 6/7: insert then get round-trips, and is idempotent.
func TestRoundTripAndIdempotence(t *testing.T) {
	tr, err := New[tag](16, 4)
	require.NoError(t, err)

	entry := Complex[tag](red, tag("payload"))
	pos := p(3, 4, 5)

	require.NoError(t, tr.Insert(pos, entry))
	assert.True(t, tr.Get(pos).Equal(entry))

	require.NoError(t, tr.Insert(pos, entry))
	assert.True(t, tr.Get(pos).Equal(entry))
}

// Property 8: insert then clear yields Empty.
func TestClearErasesVoxel(t *testing.T) {
	tr, err := New[tag](16, 4)
	require.NoError(t, err)

	pos := p(1, 1, 1)
	require.NoError(t, tr.Insert(pos, Visual[tag](red)))
	require.NoError(t, tr.Clear(pos))
	assert.True(t, tr.Get(pos).IsEmpty())
}

// Clearing the sole voxel of a Leaf that sits below an Internal ancestor
// collapses and releases that Leaf (and possibly the ancestor above it)
// via auto-simplification. With MIPs enabled this must not panic: the
// released node's stale key must not be dereferenced while walking the
// MIP update back up to the root (spec.md §4.3 "Simplification" +
// §4.6 "update_mip").
func TestClearOnMultiLevelTreeWithMipsEnabledDoesNotPanic(t *testing.T) {
	tr, err := New[tag](64, 4)
	require.NoError(t, err)
	require.Greater(t, tr.Size(), tr.BrickDim()*spatial.N, "tree must have an Internal ancestor above the leaf level")

	tr.MipStrategy().Enable()

	pos := p(0, 0, 0)
	require.NoError(t, tr.Insert(pos, Visual[tag](red)))

	assert.NotPanics(t, func() {
		require.NoError(t, tr.Clear(pos))
	})
	assert.True(t, tr.Get(pos).IsEmpty())

	root, ok := tr.Inspect(tr.RootKey())
	require.True(t, ok)
	assert.Equal(t, KindNothing, root.Kind)
}

// Same scenario via Update, which also writes emptyWord to a node's last
// occupied cell and drives the same collapse-then-MIP-update path.
func TestUpdateToEmptyOnMultiLevelTreeWithMipsEnabledDoesNotPanic(t *testing.T) {
	tr, err := New[tag](64, 4)
	require.NoError(t, err)

	tr.MipStrategy().Enable()

	pos := p(0, 0, 0)
	require.NoError(t, tr.Insert(pos, Complex[tag](red, tag("d"))))

	assert.NotPanics(t, func() {
		require.NoError(t, tr.Update(pos, Complex[tag](RGBA(0, 0, 0, 0), tag(""))))
	})
	assert.True(t, tr.Get(pos).IsEmpty())
}

// Property 9: update after insert preserves the untouched component.
func TestUpdatePreservesOtherComponent(t *testing.T) {
	tr, err := New[tag](16, 4)
	require.NoError(t, err)

	pos := p(2, 2, 2)
	require.NoError(t, tr.Insert(pos, Complex[tag](red, tag("d"))))
	require.NoError(t, tr.Update(pos, Visual[tag](green)))

	assert.True(t, tr.Get(pos).Equal(Complex[tag](green, tag("d"))))
}

// Property 10: writing a transparent color or empty payload is a no-op.
func TestEmptyWritesAreNoOps(t *testing.T) {
	tr, err := New[tag](16, 4)
	require.NoError(t, err)

	pos := p(6, 6, 6)
	require.NoError(t, tr.Insert(pos, Visual[tag](RGBA(1, 2, 3, 0))))
	assert.True(t, tr.Get(pos).IsEmpty())

	require.NoError(t, tr.Insert(pos, Informative[tag](tag(""))))
	assert.True(t, tr.Get(pos).IsEmpty())
}

// Property 11: the boundary at tree_size is out of the half-open volume.
func TestBoundaryIsHalfOpen(t *testing.T) {
	tr, err := New[tag](32, 8)
	require.NoError(t, err)

	assert.True(t, tr.Get(p(32, 0, 0)).IsEmpty())
	assert.True(t, tr.Get(p(0, 32, 0)).IsEmpty())
	assert.True(t, tr.Get(p(0, 0, 32)).IsEmpty())

	err = tr.Insert(p(32, 0, 0), Visual[tag](red))
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

// Property 12: size must be brick_dim * 4^k for k in [1,4].
func TestSizeMustBePowerOf4Multiple(t *testing.T) {
	brickDim := uint32(2)
	for k := 1; k <= 4; k++ {
		size := brickDim
		for i := 0; i < k; i++ {
			size *= 4
		}
		_, err := New[tag](size, brickDim)
		assert.NoErrorf(t, err, "size=%d (k=%d) should be valid", size, k)
	}

	_, err := New[tag](brickDim*3, brickDim)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

// InvalidStructure is distinct from InvalidSize: a tree_size that is a
// valid brick_dim*4^k shape but too small to subdivide at all (k=0).
func TestInvalidStructureForUndersizedTree(t *testing.T) {
	_, err := New[tag](8, 8)
	assert.ErrorIs(t, err, ErrInvalidStructure)
}

// Property 1: auto-simplification must never change observable get(p).
func TestAutoSimplifyPreservesObservableContent(t *testing.T) {
	tr, err := New[tag](16, 4)
	require.NoError(t, err)

	positions := []spatial.V3{}
	for z := uint32(0); z < 4; z++ {
		for y := uint32(0); y < 4; y++ {
			for x := uint32(0); x < 4; x++ {
				positions = append(positions, p(x, y, z))
			}
		}
	}

	for _, pos := range positions {
		require.NoError(t, tr.Insert(pos, Visual[tag](red)))
	}
	for _, pos := range positions {
		assert.Truef(t, tr.Get(pos).Equal(Visual[tag](red)), "(%+v)", pos)
	}

	// Breaking uniformity and restoring it must round-trip cleanly through
	// whatever collapses/expands auto-simplification performs.
	require.NoError(t, tr.Insert(p(0, 0, 0), Visual[tag](green)))
	assert.True(t, tr.Get(p(0, 0, 0)).Equal(Visual[tag](green)))
	for _, pos := range positions[1:] {
		assert.True(t, tr.Get(pos).Equal(Visual[tag](red)))
	}

	require.NoError(t, tr.Insert(p(0, 0, 0), Visual[tag](red)))
	for _, pos := range positions {
		assert.True(t, tr.Get(pos).Equal(Visual[tag](red)))
	}
}

// Inspect must expose occupancy bits, child keys and brick-derived
// entries per spec.md §6.2.
func TestInspectExposesOccupancyAndChildren(t *testing.T) {
	tr, err := New[tag](64, 4)
	require.NoError(t, err)

	require.NoError(t, tr.Insert(p(0, 0, 0), Visual[tag](red)))

	root, ok := tr.Inspect(tr.RootKey())
	require.True(t, ok)
	assert.Equal(t, KindInternal, root.Kind)
	assert.Equal(t, 1, root.Children)
	assert.NotEqual(t, uint64(0), root.OccupancyBits)

	s := uint8(0)
	childKey := root.ChildKeys[s]
	require.NotEqual(t, uint32(0xFFFFFFFF), childKey)

	child, ok := tr.Inspect(childKey)
	require.True(t, ok)
	assert.Equal(t, KindLeaf, child.Kind)
	require.Len(t, child.Bricks, 64)
	assert.True(t, child.Bricks[0].Equal(Visual[tag](red)))

	entry, ok := tr.BrickWordAt(childKey, 0, 0)
	require.True(t, ok)
	assert.True(t, entry.Equal(Visual[tag](red)))

	assert.NotEmpty(t, tr.DumpString())
}

// Property 5: get(p) never panics and returns a well-formed Entry for
// every point in and around the bounds.
func TestGetNeverPanics(t *testing.T) {
	tr, err := New[tag](16, 4)
	require.NoError(t, err)
	require.NoError(t, tr.Insert(p(1, 1, 1), Visual[tag](red)))

	for _, pos := range []spatial.V3{p(0, 0, 0), p(15, 15, 15), p(16, 16, 16), p(1000, 1000, 1000)} {
		assert.NotPanics(t, func() { tr.Get(pos) })
	}
}

// Auto-simplify off must not collapse an emptied subtree back to Nothing,
// but get(p) must still observe it as empty (spec.md invariant 2's
// "non-Nothing" wording vs. content emptiness are distinct).
func TestAutoSimplifyOffKeepsStructureButReportsEmpty(t *testing.T) {
	tr, err := New[tag](16, 4)
	require.NoError(t, err)
	tr.SetAutoSimplify(false)

	pos := p(0, 0, 0)
	require.NoError(t, tr.Insert(pos, Visual[tag](red)))
	require.NoError(t, tr.Clear(pos))
	assert.True(t, tr.Get(pos).IsEmpty())

	root, ok := tr.Inspect(tr.RootKey())
	require.True(t, ok)
	assert.Equal(t, KindLeaf, root.Kind)
}

// Property 14: toggling MIPs on (which triggers an implicit
// RecalculateMips) must sample the same root MIP cell as an explicit
// RecalculateMips call with the same strategy.
func TestMipRecalculateMatchesEnable(t *testing.T) {
	build := func() *Container[tag] {
		tr, err := New[tag](4, 1)
		require.NoError(t, err)
		tr.SetAutoSimplify(false)
		tr.MipStrategy().SetMethodAt(1, BoxFilter())
		for _, pos := range []spatial.V3{p(0, 0, 0), p(0, 1, 0), p(1, 0, 0)} {
			require.NoError(t, tr.Insert(pos, Visual[tag](red)))
		}
		for _, pos := range []spatial.V3{p(0, 0, 1), p(0, 1, 1), p(1, 0, 1)} {
			require.NoError(t, tr.Insert(pos, Visual[tag](green)))
		}
		return tr
	}

	enabled := build()
	enabled.MipStrategy().Enable()
	wantColor, wantOK := enabled.MIPAt(enabled.RootKey(), p(0, 0, 0))

	recalculated := build()
	recalculated.MipStrategy().Enable()
	recalculated.RecalculateMips()
	gotColor, gotOK := recalculated.MIPAt(recalculated.RootKey(), p(0, 0, 0))

	require.Equal(t, wantOK, gotOK)
	assert.Equal(t, wantColor, gotColor)
}

// The BD resampling variants sample the underlying leaf voxels directly
// at Internal nodes rather than children's MIPs (spec.md §4.6).
func TestMipBDVariantSamplesLeafVoxelsDirectly(t *testing.T) {
	tr, err := New[tag](64, 4)
	require.NoError(t, err)

	require.NoError(t, tr.InsertAtLOD(p(0, 0, 0), 32, Visual[tag](red)))
	require.NoError(t, tr.InsertAtLOD(p(32, 0, 0), 32, Visual[tag](blue)))

	tr.MipStrategy().SetMethodAt(2, PointFilterBD())
	tr.MipStrategy().Enable()

	root, ok := tr.Inspect(tr.RootKey())
	require.True(t, ok)
	require.Equal(t, KindInternal, root.Kind)

	color, ok := tr.MIPAt(tr.RootKey(), p(0, 0, 0))
	require.True(t, ok)
	assert.True(t, color == red || color == blue)
}

// PaletteExhausted must be returned once more than 65534 distinct colors
// have been interned, and must leave the targeted voxel unwritten.
func TestPaletteExhaustionLeavesVoxelUnwritten(t *testing.T) {
	tr, err := New[tag](16, 4)
	require.NoError(t, err)

	for i := 0; i < 65535; i++ {
		c := Albedo{R: uint8(i), G: uint8(i >> 8), B: uint8(i >> 16), A: 0xFF}
		_, internErr := tr.colors.Intern(c)
		require.NoError(t, internErr)
	}

	pos := p(1, 1, 1)
	err = tr.Insert(pos, Visual[tag](RGBA(0xAB, 0xCD, 0xEF, 0xFF)))
	assert.ErrorIs(t, err, ErrPaletteExhausted)
	assert.True(t, tr.Get(pos).IsEmpty())
}

// Bulk insert/clear whose region is not aligned to a leaf boundary is
// permitted to affect the whole enclosing leaf but never less than the
// requested region (spec.md §4.3, "Alignment rule").
func TestBulkAlignmentNeverUndershoots(t *testing.T) {
	tr, err := New[tag](32, 8)
	require.NoError(t, err)

	require.NoError(t, tr.InsertAtLOD(p(3, 3, 3), 5, Visual[tag](red)))
	for z := uint32(3); z < 8; z++ {
		for y := uint32(3); y < 8; y++ {
			for x := uint32(3); x < 8; x++ {
				require.Truef(t, tr.Get(p(x, y, z)).Equal(Visual[tag](red)), "(%d,%d,%d)", x, y, z)
			}
		}
	}
}
