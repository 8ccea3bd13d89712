// Package palette implements the two deduplicating maps (spec.md §4.4)
// that back color and payload storage: an append-only vector of distinct
// values plus a reverse index built for O(1) interning.
//
// The reverse index hashes keys with github.com/dolthub/maphash's generic
// Hasher, the same technique _examples/flier-goutil/pkg/arena/swiss/map.go
// uses to hash an arbitrary comparable type without boxing it through
// interface{} or restricting callers to string/int keys.
package palette

import "github.com/dolthub/maphash"

// NoneIndex is the reserved 16-bit index meaning "no entry".
const NoneIndex uint16 = 0xFFFF

// MaxEntries is the largest number of distinct values a palette may hold
// in one session (the 65535th slot is reserved as NoneIndex).
const MaxEntries = int(NoneIndex)

// ErrExhausted is returned by Intern when a distinct value beyond the
// first MaxEntries would be interned.
type ErrExhausted struct{}

func (ErrExhausted) Error() string { return "palette exhausted: no more than 65535 distinct entries are supported" }

// Palette deduplicates values of type T, handing out monotonic 16-bit
// indices. The zero value is not ready to use; construct with New.
type Palette[T comparable] struct {
	values  []T
	index   map[uint64][]uint16
	hasher  maphash.Hasher[T]
	isEmpty func(T) bool
}

// New creates a palette. isEmpty reports whether a candidate value should
// be treated as "none" instead of being interned (spec.md: transparent
// colors, or payloads for which the user's is_empty predicate holds).
func New[T comparable](isEmpty func(T) bool) *Palette[T] {
	return &Palette[T]{
		index:   make(map[uint64][]uint16),
		hasher:  maphash.NewHasher[T](),
		isEmpty: isEmpty,
	}
}

// Intern returns the index for v, appending a new entry if v was not seen
// before. Empty values (per isEmpty) always return NoneIndex and are never
// stored.
func (p *Palette[T]) Intern(v T) (uint16, error) {
	if p.isEmpty(v) {
		return NoneIndex, nil
	}

	h := p.hasher.Hash(v)
	for _, idx := range p.index[h] {
		if p.values[idx] == v {
			return idx, nil
		}
	}

	if len(p.values) >= MaxEntries {
		return NoneIndex, ErrExhausted{}
	}

	idx := uint16(len(p.values))
	p.values = append(p.values, v)
	p.index[h] = append(p.index[h], idx)
	return idx, nil
}

// At returns the value stored at idx. ok is false for NoneIndex or an
// out-of-range index.
func (p *Palette[T]) At(idx uint16) (value T, ok bool) {
	if idx == NoneIndex || int(idx) >= len(p.values) {
		return value, false
	}
	return p.values[idx], true
}

// IsEmptyIndex reports whether idx resolves to "none": either the
// reserved sentinel, or (defensively) an entry the isEmpty predicate
// would reject.
func (p *Palette[T]) IsEmptyIndex(idx uint16) bool {
	v, ok := p.At(idx)
	if !ok {
		return true
	}
	return p.isEmpty(v)
}

// Len returns the number of distinct values interned so far.
func (p *Palette[T]) Len() int {
	return len(p.values)
}

// All returns the palette's values in interning order. The slice must
// not be mutated by the caller.
func (p *Palette[T]) All() []T {
	return p.values
}
