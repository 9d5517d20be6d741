package bundle

import "fmt"

// ---------------------------------------------------------------------------
// DefinitionPool: insertion-ordered, handle-addressed definitions
// ---------------------------------------------------------------------------

// DefinitionPool stores definitions addressed by handle. Slot 0 is
// reserved so that handle 0 stays the null reference; real handles start
// at 1 and are assigned in insertion order. The pool grows monotonically
// within a session; entries are never removed or compacted.
type DefinitionPool struct {
	// entries[0] is the reserved null slot and always nil.
	entries []Definition
}

// NewDefinitionPool creates an empty pool with the reserved null slot.
func NewDefinitionPool() *DefinitionPool {
	return &DefinitionPool{
		entries: make([]Definition, 1),
	}
}

// Len returns the number of definitions, excluding the reserved slot.
func (p *DefinitionPool) Len() int {
	return len(p.entries) - 1
}

// Insert appends a definition and returns its handle.
func (p *DefinitionPool) Insert(def Definition) Handle {
	p.entries = append(p.entries, def)
	return Handle(len(p.entries) - 1)
}

// Get returns the definition for a handle. The null handle and
// out-of-range handles fail with ErrInvalidHandle.
func (p *DefinitionPool) Get(h Handle) (Definition, error) {
	if h == NullHandle || int(h) >= len(p.entries) {
		return nil, fmt.Errorf("%w: definition %d (pool has %d)", ErrInvalidHandle, h, p.Len())
	}
	return p.entries[h], nil
}

// Contains reports whether h resolves to an entry (or is null).
func (p *DefinitionPool) Contains(h Handle) bool {
	return int(h) < len(p.entries)
}

// Each calls fn for every definition in handle order.
func (p *DefinitionPool) Each(fn func(Handle, Definition)) {
	for i := 1; i < len(p.entries); i++ {
		fn(Handle(i), p.entries[i])
	}
}
