package spatial

import "testing"

func TestCubeContains(t *testing.T) {
	c := Cube{Min: V3{0, 0, 0}, Size: 8}

	if !c.Contains(V3{0, 0, 0}) {
		t.Fatalf("origin should be contained")
	}
	if !c.Contains(V3{7, 7, 7}) {
		t.Fatalf("(7,7,7) should be contained in a size-8 cube")
	}
	if c.Contains(V3{8, 0, 0}) {
		t.Fatalf("(8,0,0) should not be contained: boundary is half-open")
	}
}

func TestSectantForAndChildBounds(t *testing.T) {
	c := Cube{Min: V3{0, 0, 0}, Size: 16}

	s := c.SectantFor(V3{0, 0, 0})
	if s != 0 {
		t.Fatalf("SectantFor(origin) = %d, want 0", s)
	}

	s = c.SectantFor(V3{15, 15, 15})
	if s != 63 {
		t.Fatalf("SectantFor(15,15,15) = %d, want 63", s)
	}

	child := c.ChildBoundsFor(s)
	if child.Size != 4 {
		t.Fatalf("child size = %d, want 4", child.Size)
	}
	if child.Min != (V3{12, 12, 12}) {
		t.Fatalf("child min = %+v, want (12,12,12)", child.Min)
	}
}

func TestChildBoundsRoundTrip(t *testing.T) {
	c := Cube{Min: V3{32, 0, 64}, Size: 64}
	for s := uint8(0); s < SectantCount; s++ {
		child := c.ChildBoundsFor(s)
		mid := V3{child.Min.X, child.Min.Y, child.Min.Z}
		if got := c.SectantFor(mid); got != s {
			t.Fatalf("sectant %d: SectantFor(child.Min) = %d", s, got)
		}
	}
}

func TestFlatIndexRoundTrip(t *testing.T) {
	const d = 8
	for z := uint32(0); z < d; z++ {
		for y := uint32(0); y < d; y++ {
			for x := uint32(0); x < d; x++ {
				local := V3{x, y, z}
				flat := FlatIndex(local, d)
				back := LocalFromFlat(flat, d)
				if back != local {
					t.Fatalf("FlatIndex/LocalFromFlat round trip failed for %+v: got %+v", local, back)
				}
			}
		}
	}
}
