package palette

import "testing"

func isZero(v int) bool { return v == 0 }

func TestInternDeduplicates(t *testing.T) {
	p := New(isZero)

	idx1, err := p.Intern(42)
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	idx2, err := p.Intern(42)
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if idx1 != idx2 {
		t.Fatalf("Intern should return the same index for equal values: %d != %d", idx1, idx2)
	}

	idx3, err := p.Intern(7)
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if idx3 == idx1 {
		t.Fatalf("distinct values must get distinct indices")
	}
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}
}

func TestInternEmptyReturnsNoneIndex(t *testing.T) {
	p := New(isZero)
	idx, err := p.Intern(0)
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if idx != NoneIndex {
		t.Fatalf("Intern(empty) = %d, want NoneIndex", idx)
	}
	if p.Len() != 0 {
		t.Fatalf("interning an empty value should not grow the palette")
	}
}

func TestAtAndIsEmptyIndex(t *testing.T) {
	p := New(isZero)
	idx, _ := p.Intern(99)

	v, ok := p.At(idx)
	if !ok || v != 99 {
		t.Fatalf("At(%d) = (%d, %v), want (99, true)", idx, v, ok)
	}
	if p.IsEmptyIndex(idx) {
		t.Fatalf("a real entry should not be reported as empty")
	}
	if !p.IsEmptyIndex(NoneIndex) {
		t.Fatalf("NoneIndex should always be empty")
	}

	if _, ok := p.At(NoneIndex); ok {
		t.Fatalf("At(NoneIndex) should report not-ok")
	}
}

func TestExhaustion(t *testing.T) {
	p := New(isZero)
	for i := 1; i <= MaxEntries; i++ {
		if _, err := p.Intern(i); err != nil {
			t.Fatalf("Intern(%d) failed before reaching MaxEntries: %v", i, err)
		}
	}
	if _, err := p.Intern(MaxEntries + 1); err == nil {
		t.Fatalf("expected exhaustion error after MaxEntries distinct values")
	}
}
