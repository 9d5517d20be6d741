package bundle

import (
	"fmt"
	"unsafe"
)

// ---------------------------------------------------------------------------
// Handles
// ---------------------------------------------------------------------------

// Handle is a stable integer reference into the string pool or the
// definition pool. Handles are assigned sequentially at insertion time and
// never reused. Handle 0 is the null handle and resolves to nothing.
type Handle uint32

// NullHandle is the reserved "no reference" handle.
const NullHandle Handle = 0

// IsNull reports whether the handle is the null handle.
func (h Handle) IsNull() bool {
	return h == NullHandle
}

// ---------------------------------------------------------------------------
// StringPool: deduplicated, insertion-ordered interned strings
// ---------------------------------------------------------------------------

// StringPool is a deduplicated table of interned strings. Entries are
// addressed by handle, starting at 1 in insertion order. Interning the same
// content twice yields the same handle.
//
// In zero-copy mode the entry contents alias the bundle's backing storage;
// they remain valid only as long as the backing mapping.
type StringPool struct {
	entries []string
	index   map[string]Handle
}

// NewStringPool creates an empty string pool.
func NewStringPool() *StringPool {
	return &StringPool{
		index: make(map[string]Handle),
	}
}

// Len returns the number of interned strings.
func (p *StringPool) Len() int {
	return len(p.entries)
}

// Intern returns the handle for s, adding it to the pool if absent.
func (p *StringPool) Intern(s string) Handle {
	if h, ok := p.index[s]; ok {
		return h
	}
	p.entries = append(p.entries, s)
	h := Handle(len(p.entries))
	p.index[s] = h
	return h
}

// Lookup returns the handle for s without inserting, or NullHandle if s
// has not been interned.
func (p *StringPool) Lookup(s string) Handle {
	return p.index[s]
}

// Resolve returns the string for a handle. The null handle resolves to the
// empty string; out-of-range handles fail with ErrInvalidHandle.
func (p *StringPool) Resolve(h Handle) (string, error) {
	if h == NullHandle {
		return "", nil
	}
	if int(h) > len(p.entries) {
		return "", fmt.Errorf("%w: string %d (pool has %d)", ErrInvalidHandle, h, len(p.entries))
	}
	return p.entries[h-1], nil
}

// Contains reports whether h resolves to an entry (or is null).
func (p *StringPool) Contains(h Handle) bool {
	return int(h) <= len(p.entries)
}

// All returns the interned strings in handle order. The slice is shared
// with the pool and must not be mutated.
func (p *StringPool) All() []string {
	return p.entries
}

// Append adds an entry positionally without a dedup check and returns its
// handle. Unlike Intern, duplicate content gets a fresh handle; the dedup
// index keeps pointing at the first occurrence. Rebuilding a decoded pool
// must use this, not Intern: collapsing duplicates would shift every
// handle after them.
func (p *StringPool) Append(s string) Handle {
	p.load(s)
	return Handle(len(p.entries))
}

// load appends a decoded entry without a dedup check. The decode path
// inserts entries in pool order; duplicate content in the input keeps its
// original handle spacing so re-encoding stays byte-stable.
func (p *StringPool) load(s string) {
	p.entries = append(p.entries, s)
	if _, ok := p.index[s]; !ok {
		p.index[s] = Handle(len(p.entries))
	}
}

// detach replaces every entry with an owned copy, severing any aliasing
// of backing storage. The index is rebuilt so its keys are owned too.
func (p *StringPool) detach() {
	owned := make(map[string]Handle, len(p.index))
	for i, s := range p.entries {
		c := string(append([]byte(nil), s...))
		p.entries[i] = c
		if _, ok := owned[c]; !ok {
			owned[c] = Handle(i + 1)
		}
	}
	p.index = owned
}

// borrowString views a byte slice as a string without copying. Used by the
// zero-copy decode path; the result aliases b.
func borrowString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
