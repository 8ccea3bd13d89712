package boxtree

// ErrorKind is a comparable sentinel error (spec.md §7). It is usable
// with errors.Is the same way the stdlib's own sentinel errors are,
// following the thin-stdlib-wrap precedent of
// _examples/flier-goutil/pkg/xerrors rather than adopting a third-party
// error-kind framework: a pure in-memory data structure with five fixed
// failure modes does not need one.
type ErrorKind string

func (e ErrorKind) Error() string {
	return string(e)
}

const (
	// ErrInvalidSize reports that tree_size fails the brick_dim*4^k
	// constructor precondition.
	ErrInvalidSize ErrorKind = "boxtree: invalid size: tree_size must equal brick_dim * 4^k for some integer k >= 1"

	// ErrInvalidBrickDimension reports that brick_dim is zero or not a
	// power of two.
	ErrInvalidBrickDimension ErrorKind = "boxtree: invalid brick dimension: must be a power of two"

	// ErrInvalidStructure reports that tree_size < brick_dim * N.
	ErrInvalidStructure ErrorKind = "boxtree: invalid structure: tree_size must be at least brick_dim * 4"

	// ErrOutOfBounds reports that a position lies outside [0, tree_size)
	// on some axis.
	ErrOutOfBounds ErrorKind = "boxtree: position out of bounds"

	// ErrPaletteExhausted reports that more than 65534 distinct colors or
	// payloads have been interned in one session.
	ErrPaletteExhausted ErrorKind = "boxtree: palette exhausted"
)
