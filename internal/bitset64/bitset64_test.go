package bitset64

import "testing"

func TestSetBasic(t *testing.T) {
	var s Set

	if !s.IsEmpty() {
		t.Fatalf("fresh set should be empty")
	}

	s.MustSet(3)
	s.MustSet(7)
	s.MustSet(63)

	if s.IsEmpty() {
		t.Fatalf("set with bits should not be empty")
	}
	if s.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", s.Size())
	}
	for _, bit := range []uint{3, 7, 63} {
		if !s.Test(bit) {
			t.Fatalf("Test(%d) = false, want true", bit)
		}
	}
	if s.Test(4) {
		t.Fatalf("Test(4) = true, want false")
	}

	s.MustClear(7)
	if s.Test(7) {
		t.Fatalf("bit 7 should be cleared")
	}
	if s.Size() != 2 {
		t.Fatalf("Size() after clear = %d, want 2", s.Size())
	}
}

func TestFirstSet(t *testing.T) {
	var s Set
	if _, ok := s.FirstSet(); ok {
		t.Fatalf("empty set should report no first bit")
	}

	s.MustSet(5)
	s.MustSet(2)
	first, ok := s.FirstSet()
	if !ok || first != 2 {
		t.Fatalf("FirstSet() = (%d, %v), want (2, true)", first, ok)
	}
}

func TestAll(t *testing.T) {
	var s Set
	want := []uint{1, 10, 40, 63}
	for _, bit := range want {
		s.MustSet(bit)
	}

	got := s.All()
	if len(got) != len(want) {
		t.Fatalf("All() returned %d bits, want %d", len(got), len(want))
	}
	for i, bit := range want {
		if got[i] != bit {
			t.Fatalf("All()[%d] = %d, want %d", i, got[i], bit)
		}
	}
}

func TestRank0(t *testing.T) {
	var s Set
	s.MustSet(0)
	s.MustSet(5)
	s.MustSet(10)

	cases := []struct {
		idx  uint
		want int
	}{
		{0, 0},
		{5, 1},
		{10, 2},
		{63, 2},
	}
	for _, tc := range cases {
		if got := s.Rank0(tc.idx); got != tc.want {
			t.Fatalf("Rank0(%d) = %d, want %d", tc.idx, got, tc.want)
		}
	}
}
