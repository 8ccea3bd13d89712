package boxtree

import (
	"math"

	"github.com/gaissmai/boxtree/internal/palette"
	"github.com/gaissmai/boxtree/internal/spatial"
)

// mipMethodKind tags the five resampling methods of spec.md §4.6.
type mipMethodKind uint8

const (
	methodBoxFilter mipMethodKind = iota
	methodPointFilter
	methodPointFilterBD
	methodPosterize
	methodPosterizeBD
)

// MIPResamplingMethod selects how a MIP cell aggregates its samples.
type MIPResamplingMethod struct {
	kind      mipMethodKind
	threshold float64 // clustering threshold, Posterize/PosterizeBD only
}

// BoxFilter averages samples in gamma-squared space (mean of c², then
// square root, per channel).
func BoxFilter() MIPResamplingMethod { return MIPResamplingMethod{kind: methodBoxFilter} }

// PointFilter takes the most frequent sample, reading from children's
// MIPs at Internal nodes.
func PointFilter() MIPResamplingMethod { return MIPResamplingMethod{kind: methodPointFilter} }

// PointFilterBD is PointFilter, but at Internal nodes it samples the
// underlying leaf voxels directly instead of children's MIPs.
func PointFilterBD() MIPResamplingMethod { return MIPResamplingMethod{kind: methodPointFilterBD} }

// Posterize clusters samples by gamma-space distance, thr scaled by 255,
// and returns the most populous cluster's representative.
func Posterize(thr float64) MIPResamplingMethod {
	return MIPResamplingMethod{kind: methodPosterize, threshold: thr}
}

// PosterizeBD is Posterize, sampling underlying leaf voxels directly at
// Internal nodes instead of children's MIPs.
func PosterizeBD(thr float64) MIPResamplingMethod {
	return MIPResamplingMethod{kind: methodPosterizeBD, threshold: thr}
}

func (m MIPResamplingMethod) isBD() bool {
	return m.kind == methodPointFilterBD || m.kind == methodPosterizeBD
}

// MIPStrategy holds the per-level resampling method and per-level color
// similarity threshold used when interning a freshly resampled MIP color
// (spec.md §4.6, "Strategy configuration").
//
// Level 1 is the deepest MIP, nearest the leaves; higher numbers are
// coarser (see DESIGN.md for why this convention was chosen over the
// source's level numbering).
type MIPStrategy struct {
	methods       map[int]MIPResamplingMethod
	similarityThr map[int]float64
}

func defaultMIPStrategy() *MIPStrategy {
	return &MIPStrategy{
		methods:       map[int]MIPResamplingMethod{1: Posterize(0.05)},
		similarityThr: map[int]float64{},
	}
}

func (s *MIPStrategy) methodFor(level int) MIPResamplingMethod {
	if m, ok := s.methods[level]; ok {
		return m
	}
	return BoxFilter()
}

func (s *MIPStrategy) similarityThresholdFor(level int) float64 {
	return s.similarityThr[level]
}

// mipLevelOf computes a node's MIP level from its bounds: level 1 is a
// node whose bounds equal brick_dim*N (the deepest brick-storing level),
// and the level rises by one for each further factor of N in the bounds.
func (c *Container[T]) mipLevelOf(bounds spatial.Cube) int {
	ratio := bounds.Size / c.brickDim
	level := 0
	for ratio > 1 {
		ratio /= spatial.N
		level++
	}
	return level
}

// StrategyUpdater is a fluent builder for reconfiguring a Container's MIP
// strategy, returned by Container.MipStrategy.
type StrategyUpdater[T VoxelData] struct {
	c *Container[T]
}

// MipStrategy returns a builder for reconfiguring MIP behavior.
func (c *Container[T]) MipStrategy() *StrategyUpdater[T] {
	return &StrategyUpdater[T]{c: c}
}

// Enable turns MIPs on, triggering a full RecalculateMips if they were
// previously off (spec.md §4.6, "Enabling MIPs").
func (u *StrategyUpdater[T]) Enable() *StrategyUpdater[T] {
	if !u.c.mipEnabled {
		u.c.mipEnabled = true
		u.c.RecalculateMips()
	}
	return u
}

// Disable turns MIPs off. Existing MIP bricks are left in place but are
// no longer maintained.
func (u *StrategyUpdater[T]) Disable() *StrategyUpdater[T] {
	u.c.mipEnabled = false
	return u
}

// SetMethodAt sets the resampling method used at the given MIP level.
func (u *StrategyUpdater[T]) SetMethodAt(level int, m MIPResamplingMethod) *StrategyUpdater[T] {
	u.c.strategy.methods[level] = m
	return u
}

// SetColorSimilarityThresholdAt sets the palette-reuse threshold for
// colors resampled at the given MIP level.
func (u *StrategyUpdater[T]) SetColorSimilarityThresholdAt(level int, thr float64) *StrategyUpdater[T] {
	u.c.strategy.similarityThr[level] = thr
	return u
}

// Reset restores the default strategy (level 1 Posterize(0.05), all
// other levels BoxFilter, no similarity thresholds).
func (u *StrategyUpdater[T]) Reset() *StrategyUpdater[T] {
	u.c.strategy = defaultMIPStrategy()
	return u
}

// RecalculateMips rebuilds every MIP in the tree.
func (u *StrategyUpdater[T]) RecalculateMips() {
	u.c.RecalculateMips()
}

// RecalculateMips rebuilds every node's MIP brick from scratch via a
// post-order traversal, children before parents, since non-BD resamplers
// at Internal nodes read their children's MIPs (spec.md §4.6).
func (c *Container[T]) RecalculateMips() {
	c.zeroMips(rootKey)
	c.recalcSubtree(rootKey, c.rootBounds())
}

func (c *Container[T]) zeroMips(key uint32) {
	*c.mipOf(key) = emptyBrick()
	n := c.node(key)
	if n.kind != nodeInternal {
		return
	}
	ck := c.childrenOf(key)
	for s := 0; s < spatial.SectantCount; s++ {
		if c.nodes.KeyIsValid(ck[s]) {
			c.zeroMips(ck[s])
		}
	}
}

func (c *Container[T]) recalcSubtree(key uint32, bounds spatial.Cube) {
	n := c.node(key)
	switch n.kind {
	case nodeNothing, nodeUniformLeaf:
		return
	case nodeLeaf:
		c.recalculateMip(key, bounds)
	case nodeInternal:
		ck := c.childrenOf(key)
		for s := 0; s < spatial.SectantCount; s++ {
			if c.nodes.KeyIsValid(ck[s]) {
				c.recalcSubtree(ck[s], bounds.ChildBoundsFor(uint8(s)))
			}
		}
		c.recalculateMip(key, bounds)
	}
}

// recalculateMip recomputes every cell of one node's MIP brick.
func (c *Container[T]) recalculateMip(key uint32, bounds spatial.Cube) {
	d := c.brickDim
	for z := uint32(0); z < d; z++ {
		for y := uint32(0); y < d; y++ {
			for x := uint32(0); x < d; x++ {
				c.resampleAndWrite(key, bounds, spatial.V3{X: x, Y: y, Z: z})
			}
		}
	}
}

// updateMipAlongPath recomputes the single MIP cell touched by pos at
// leafKey (spanning leafBounds) and at every recorded ancestor, deepest
// first.
//
// fixupPath (run by the caller just before this) may have collapsed
// leafKey, and a contiguous run of its ancestors, to Nothing and released
// them (spec.md §4.3, "Simplification") — a released key's slot is nil in
// every pool, so each step is skipped rather than dereferenced once that
// happens. Ancestors above the released run are unaffected by the
// release itself but still had a child disappear, so they still need
// their MIP cell resampled; the walk keeps going rather than stopping at
// the first released key.
func (c *Container[T]) updateMipAlongPath(path []pathStep, leafKey uint32, leafBounds spatial.Cube, pos spatial.V3) {
	key := leafKey
	bounds := leafBounds
	if c.nodes.KeyIsValid(key) {
		c.resampleAndWrite(key, bounds, c.mipCellFor(bounds, pos))
	}

	for i := len(path) - 1; i >= 0; i-- {
		key = path[i].parentKey
		bounds = path[i].parentBounds
		if !c.nodes.KeyIsValid(key) {
			continue
		}
		c.resampleAndWrite(key, bounds, c.mipCellFor(bounds, pos))
	}
}

func (c *Container[T]) mipCellFor(bounds spatial.Cube, pos spatial.V3) spatial.V3 {
	ratio := bounds.Size / c.brickDim
	local := spatial.V3{X: pos.X - bounds.Min.X, Y: pos.Y - bounds.Min.Y, Z: pos.Z - bounds.Min.Z}
	cell := spatial.V3{X: local.X / ratio, Y: local.Y / ratio, Z: local.Z / ratio}
	max := c.brickDim - 1
	if cell.X > max {
		cell.X = max
	}
	if cell.Y > max {
		cell.Y = max
	}
	if cell.Z > max {
		cell.Z = max
	}
	return cell
}

// resampleAndWrite computes the aggregated color for one MIP cell of the
// node at key/bounds and writes it into that node's MIP brick.
//
// key may have been released by a caller's prior simplification pass
// (see updateMipAlongPath); guard the same way descend does rather than
// dereferencing a freed pool slot.
func (c *Container[T]) resampleAndWrite(key uint32, bounds spatial.Cube, mipLocal spatial.V3) {
	n := c.node(key)
	if n == nil {
		return
	}
	level := c.mipLevelOf(bounds)

	var samples []Albedo
	switch n.kind {
	case nodeNothing:
		return
	case nodeUniformLeaf:
		if !c.mipOf(key).isEmpty() {
			*c.mipOf(key) = emptyBrick()
		}
		return
	case nodeLeaf:
		samples = c.sampleLeafWindow(n, bounds, mipLocal)
	case nodeInternal:
		method := c.strategy.methodFor(level)
		samples = c.sampleInternalCell(key, bounds, mipLocal, method.isBD())
	default:
		return
	}

	color, ok := aggregate(c.strategy.methodFor(level), samples)
	flat := spatial.FlatIndex(mipLocal, c.brickDim)
	cellCount := c.brickDim * c.brickDim * c.brickDim

	var word paletteWord
	if ok {
		word = makeWord(c.internMipColor(color, level), palette.NoneIndex)
	} else {
		word = emptyWord
	}
	writeBrickCell(c.mipOf(key), flat, word, cellCount)
}

// sampleLeafWindow gathers the actual voxels of the window, node_size/brick_dim
// voxels wide on each axis, that downsample into mipLocal (spec.md §4.6, "Leaf").
func (c *Container[T]) sampleLeafWindow(n *node[T], bounds spatial.Cube, mipLocal spatial.V3) []Albedo {
	ratio := bounds.Size / c.brickDim
	windowMin := spatial.V3{X: mipLocal.X * ratio, Y: mipLocal.Y * ratio, Z: mipLocal.Z * ratio}

	var samples []Albedo
	for dz := uint32(0); dz < ratio; dz++ {
		for dy := uint32(0); dy < ratio; dy++ {
			for dx := uint32(0); dx < ratio; dx++ {
				local := spatial.V3{X: windowMin.X + dx, Y: windowMin.Y + dy, Z: windowMin.Z + dz}
				abs := bounds.Min.Add(local)
				s := bounds.SectantFor(abs)
				childBounds := bounds.ChildBoundsFor(s)
				within := spatial.V3{X: abs.X - childBounds.Min.X, Y: abs.Y - childBounds.Min.Y, Z: abs.Z - childBounds.Min.Z}
				flat := spatial.FlatIndex(within, c.brickDim)
				w := n.leafBricks[s].at(flat)
				if color, ok := c.colors.At(w.colorIdx()); ok {
					samples = append(samples, color)
				}
			}
		}
	}
	return samples
}

// sampleInternalCell gathers one representative sample per child whose
// sub-volume overlaps mipLocal's physical footprint, reading from the
// child's MIP (non-BD) or its actual voxels (BD). See DESIGN.md for why
// this generalizes spec.md §4.6's "sample N³ positions from the N³
// children's MIPs" to arbitrary brick_dim.
func (c *Container[T]) sampleInternalCell(key uint32, bounds spatial.Cube, mipLocal spatial.V3, bd bool) []Albedo {
	ratio := bounds.Size / c.brickDim
	cellMin := spatial.V3{X: mipLocal.X * ratio, Y: mipLocal.Y * ratio, Z: mipLocal.Z * ratio}
	cellMax := spatial.V3{X: cellMin.X + ratio, Y: cellMin.Y + ratio, Z: cellMin.Z + ratio}
	childSize := bounds.Size / spatial.N

	var samples []Albedo
	ck := c.childrenOf(key)
	for s := 0; s < spatial.SectantCount; s++ {
		childKey := ck[s]
		if !c.nodes.KeyIsValid(childKey) {
			continue
		}

		childBounds := bounds.ChildBoundsFor(uint8(s))
		childMin := spatial.V3{X: childBounds.Min.X - bounds.Min.X, Y: childBounds.Min.Y - bounds.Min.Y, Z: childBounds.Min.Z - bounds.Min.Z}
		childMax := spatial.V3{X: childMin.X + childSize, Y: childMin.Y + childSize, Z: childMin.Z + childSize}

		ovMin, ovMax, ok := overlap1D3(childMin, childMax, cellMin, cellMax)
		if !ok {
			continue
		}
		center := spatial.V3{X: (ovMin.X + ovMax.X) / 2, Y: (ovMin.Y + ovMax.Y) / 2, Z: (ovMin.Z + ovMax.Z) / 2}
		relToChild := spatial.V3{X: center.X - childMin.X, Y: center.Y - childMin.Y, Z: center.Z - childMin.Z}

		if bd {
			abs := bounds.Min.Add(childMin).Add(relToChild)
			w := c.wordAt(abs)
			if color, ok := c.colors.At(w.colorIdx()); ok {
				samples = append(samples, color)
			}
			continue
		}

		child := c.node(childKey)
		switch child.kind {
		case nodeUniformLeaf:
			if color, ok := c.colors.At(child.uniform.solid.colorIdx()); ok && !child.uniform.isEmpty() {
				samples = append(samples, color)
			}
		case nodeLeaf, nodeInternal:
			childRatio := childSize / c.brickDim
			childMipLocal := spatial.V3{X: relToChild.X / childRatio, Y: relToChild.Y / childRatio, Z: relToChild.Z / childRatio}
			flat := spatial.FlatIndex(childMipLocal, c.brickDim)
			w := c.mipOf(childKey).at(flat)
			if color, ok := c.colors.At(w.colorIdx()); ok {
				samples = append(samples, color)
			}
		}
	}
	return samples
}

// overlap1D3 intersects two axis-aligned boxes given as [min,max) corners
// on all three axes at once, reporting whether the intersection is
// non-empty.
func overlap1D3(aMin, aMax, bMin, bMax spatial.V3) (spatial.V3, spatial.V3, bool) {
	min := spatial.V3{X: maxU32(aMin.X, bMin.X), Y: maxU32(aMin.Y, bMin.Y), Z: maxU32(aMin.Z, bMin.Z)}
	max := spatial.V3{X: minU32(aMax.X, bMax.X), Y: minU32(aMax.Y, bMax.Y), Z: minU32(aMax.Z, bMax.Z)}
	if min.X >= max.X || min.Y >= max.Y || min.Z >= max.Z {
		return spatial.V3{}, spatial.V3{}, false
	}
	return min, max, true
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// internMipColor interns color for use at the given MIP level, reusing
// an existing palette entry within the level's similarity threshold
// instead of creating a new one (spec.md §4.6, "Strategy configuration").
func (c *Container[T]) internMipColor(color Albedo, level int) uint16 {
	if thr := c.strategy.similarityThresholdFor(level); thr > 0 {
		limit := thr * 255
		for idx, v := range c.colors.All() {
			if channelDistance(color, v) <= limit {
				return uint16(idx)
			}
		}
	}
	idx, err := c.colors.Intern(color)
	if err != nil {
		return palette.NoneIndex
	}
	return idx
}

// channelDistance is the Euclidean RGB distance between two colors,
// expressed in the same 0..255 channel units spec.md's thresholds use.
func channelDistance(a, b Albedo) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// aggregate reduces samples to a single color per the method's family.
func aggregate(m MIPResamplingMethod, samples []Albedo) (Albedo, bool) {
	if len(samples) == 0 {
		return Albedo{}, false
	}
	switch m.kind {
	case methodBoxFilter:
		return boxFilterMean(samples), true
	case methodPointFilter, methodPointFilterBD:
		return mostFrequent(samples), true
	case methodPosterize, methodPosterizeBD:
		return posterizeRepresentative(samples, m.threshold), true
	}
	return Albedo{}, false
}

// boxFilterMean averages samples in gamma-squared space: per channel,
// mean of c², then square root (spec.md §4.6, "BoxFilter").
func boxFilterMean(samples []Albedo) Albedo {
	var sumR, sumG, sumB, sumA float64
	for _, s := range samples {
		sumR += float64(s.R) * float64(s.R)
		sumG += float64(s.G) * float64(s.G)
		sumB += float64(s.B) * float64(s.B)
		sumA += float64(s.A) * float64(s.A)
	}
	n := float64(len(samples))
	return Albedo{
		R: roundU8(math.Sqrt(sumR / n)),
		G: roundU8(math.Sqrt(sumG / n)),
		B: roundU8(math.Sqrt(sumB / n)),
		A: roundU8(math.Sqrt(sumA / n)),
	}
}

// mostFrequent returns the most common sample, breaking ties by first
// occurrence for a deterministic result (spec.md §4.6, "PointFilter").
func mostFrequent(samples []Albedo) Albedo {
	counts := make(map[Albedo]int, len(samples))
	order := make([]Albedo, 0, len(samples))
	for _, s := range samples {
		if counts[s] == 0 {
			order = append(order, s)
		}
		counts[s]++
	}
	best := order[0]
	bestCount := counts[best]
	for _, s := range order[1:] {
		if counts[s] > bestCount {
			best = s
			bestCount = counts[s]
		}
	}
	return best
}

// posterizeCluster accumulates a running gamma-space representative for
// one color cluster.
type posterizeCluster struct {
	sumSqR, sumSqG, sumSqB, sumSqA float64
	count                          int
}

func (pc *posterizeCluster) representative() Albedo {
	n := float64(pc.count)
	return Albedo{
		R: roundU8(math.Sqrt(pc.sumSqR / n)),
		G: roundU8(math.Sqrt(pc.sumSqG / n)),
		B: roundU8(math.Sqrt(pc.sumSqB / n)),
		A: roundU8(math.Sqrt(pc.sumSqA / n)),
	}
}

func (pc *posterizeCluster) add(s Albedo) {
	pc.sumSqR += float64(s.R) * float64(s.R)
	pc.sumSqG += float64(s.G) * float64(s.G)
	pc.sumSqB += float64(s.B) * float64(s.B)
	pc.sumSqA += float64(s.A) * float64(s.A)
	pc.count++
}

// posterizeRepresentative clusters samples by gamma-space L2 distance
// and returns the most populous cluster's representative (spec.md §4.6,
// "Posterize").
func posterizeRepresentative(samples []Albedo, thr float64) Albedo {
	limit := thr * 255
	var clusters []*posterizeCluster

	for _, s := range samples {
		placed := false
		for _, cl := range clusters {
			if channelDistance(s, cl.representative()) <= limit {
				cl.add(s)
				placed = true
				break
			}
		}
		if !placed {
			cl := &posterizeCluster{}
			cl.add(s)
			clusters = append(clusters, cl)
		}
	}

	best := clusters[0]
	for _, cl := range clusters[1:] {
		if cl.count > best.count {
			best = cl
		}
	}
	return best.representative()
}

func roundU8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
