package bundle

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
)

// ---------------------------------------------------------------------------
// Memory-mapped bundles
// ---------------------------------------------------------------------------

// mapping holds a read-only memory mapping backing a zero-copy bundle.
// The mapping stays alive while any holder retains the bundle; the last
// Close unmaps it and closes the file.
type mapping struct {
	mem  mmap.MMap
	file *os.File
	refs atomic.Int64
}

func (m *mapping) release() error {
	n := m.refs.Add(-1)
	if n > 0 {
		return nil
	}
	if n < 0 {
		return fmt.Errorf("%w: close without matching retain", ErrBundleClosed)
	}
	err := m.mem.Unmap()
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenMapped decodes a bundle in mapped mode: the file is memory-mapped
// read-only and string pool entries alias the mapping instead of being
// copied. The returned bundle must be Closed; string values obtained from
// it are invalid after the last Close.
//
// Mapped bundles are for reading. Mutating one and re-encoding works, but
// the encode must happen before Close while borrowed strings are live.
func OpenMapped(path string) (*Bundle, error) {
	return OpenMappedWithTable(path, DefaultTable())
}

// OpenMappedWithTable decodes in mapped mode with an injected opcode table.
func OpenMappedWithTable(path string, table *OpcodeTable) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	mem, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}

	br, err := decode(mem, true, table)
	if err != nil {
		mem.Unmap()
		f.Close()
		return nil, err
	}

	m := &mapping{mem: mem, file: f}
	m.refs.Store(1)

	log.Debugf("mapped %s: %d bytes", path, len(mem))
	return &Bundle{
		flags:   br.header.Flags,
		strings: br.strings,
		defs:    br.defs,
		table:   table,
		backing: m,
	}, nil
}

// Mapped reports whether the bundle's strings alias a memory mapping.
func (b *Bundle) Mapped() bool {
	return b.backing != nil
}

// Retain adds a reference to a mapped bundle, letting another read-only
// user Close it independently. A no-op for owned bundles.
func (b *Bundle) Retain() *Bundle {
	if b.backing != nil {
		b.backing.refs.Add(1)
	}
	return b
}

// Close drops one reference to the backing mapping, unmapping it when the
// last reference is gone. A no-op for owned bundles. Closing more times
// than Open-plus-Retain produced references fails with ErrBundleClosed.
func (b *Bundle) Close() error {
	if b.backing == nil {
		return nil
	}
	return b.backing.release()
}

// Detach converts a zero-copy bundle into an owned one in place: every
// string pool entry aliasing backing storage is copied out, after which
// the bundle no longer depends on the mapping or caller-owned bytes. For
// mapped bundles the mapping reference held by the bundle is released.
func (b *Bundle) Detach() error {
	b.strings.detach()
	if b.backing == nil {
		return nil
	}
	m := b.backing
	b.backing = nil
	return m.release()
}
