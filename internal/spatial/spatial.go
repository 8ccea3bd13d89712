// Package spatial implements the cube bounds, sectant indexing and flat
// brick projection that drive tree descent (spec.md §4.2).
//
// The value-type-threaded-through-recursion shape (geometry recomputed at
// each descent step rather than cached per node) follows the same
// convention github.com/gaissmai/bart uses for its stridePath: bounds are
// cheap to derive and storing them per node would just be another
// invariant to keep in sync.
package spatial

// N is the edge of the sub-partition a node represents; a node has
// N*N*N = 64 child slots called sectants.
const N = 4

// SectantCount is N^3.
const SectantCount = N * N * N

// OOBSectant is the sentinel "out of bounds / not a sectant" value.
const OOBSectant = 64

// V3 is an unsigned integer 3D vector (voxel-space position or size).
type V3 struct {
	X, Y, Z uint32
}

// Add returns a + b.
func (a V3) Add(b V3) V3 {
	return V3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

// Cube represents a node's axis-aligned bounds.
type Cube struct {
	Min  V3
	Size uint32
}

// Contains reports whether p lies within the cube, half-open on every axis.
func (c Cube) Contains(p V3) bool {
	return p.X >= c.Min.X && p.X < c.Min.X+c.Size &&
		p.Y >= c.Min.Y && p.Y < c.Min.Y+c.Size &&
		p.Z >= c.Min.Z && p.Z < c.Min.Z+c.Size
}

// sectantOffset is the 64-entry lookup table of each sectant's
// (x,y,z)/N offset, indexed by sx + sy*N + sz*N*N.
var sectantOffset = func() [SectantCount]V3 {
	var lut [SectantCount]V3
	for sz := uint32(0); sz < N; sz++ {
		for sy := uint32(0); sy < N; sy++ {
			for sx := uint32(0); sx < N; sx++ {
				lut[sx+sy*N+sz*N*N] = V3{sx, sy, sz}
			}
		}
	}
	return lut
}()

// SectantFor maps a point known to be contained in the cube to its
// sectant index in [0, 64). The ordering fixes the occupancy bitmap bits.
func (c Cube) SectantFor(p V3) uint8 {
	childSize := c.Size / N
	sx := (p.X - c.Min.X) / childSize
	sy := (p.Y - c.Min.Y) / childSize
	sz := (p.Z - c.Min.Z) / childSize
	if sx >= N {
		sx = N - 1
	}
	if sy >= N {
		sy = N - 1
	}
	if sz >= N {
		sz = N - 1
	}
	return uint8(sx + sy*N + sz*N*N)
}

// ChildBoundsFor returns the bounds of sectant s.
func (c Cube) ChildBoundsFor(s uint8) Cube {
	childSize := c.Size / N
	off := sectantOffset[s]
	return Cube{
		Min:  c.Min.Add(V3{off.X * childSize, off.Y * childSize, off.Z * childSize}),
		Size: childSize,
	}
}

// FlatIndex projects a brick-local 3D coordinate to its linear array index,
// using x-major, then y, then z ordering: x + y*d + z*d*d.
//
// This ordering is observable via bulk operations and must not change.
func FlatIndex(local V3, d uint32) uint32 {
	return local.X + local.Y*d + local.Z*d*d
}

// LocalFromFlat is the inverse of FlatIndex.
func LocalFromFlat(idx, d uint32) V3 {
	x := idx % d
	idx /= d
	y := idx % d
	z := idx / d
	return V3{x, y, z}
}
