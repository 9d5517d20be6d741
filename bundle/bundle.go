package bundle

import "fmt"

// ---------------------------------------------------------------------------
// Bundle: the decoded container
// ---------------------------------------------------------------------------

// Bundle is the in-memory form of a script bundle: header flags plus the
// string and definition pools. A Bundle is obtained from one of the
// decode constructors (which either produce a fully-linked graph or fail
// without exposing a partial one) or built empty for programmatic
// construction.
//
// Decode and encode are single-threaded and deterministic. Distinct
// Bundles are safe to use from separate goroutines; mutating one Bundle
// requires external exclusive access. Read-only sharing of a mapped
// Bundle is supported through Retain/Close reference counting.
type Bundle struct {
	flags   uint32
	strings *StringPool
	defs    *DefinitionPool
	table   *OpcodeTable
	backing *mapping // nil for owned bundles
}

// New creates an empty Bundle using the built-in opcode table.
func New() *Bundle {
	return NewWithTable(DefaultTable())
}

// NewWithTable creates an empty Bundle with an injected opcode table.
func NewWithTable(table *OpcodeTable) *Bundle {
	return &Bundle{
		strings: NewStringPool(),
		defs:    NewDefinitionPool(),
		table:   table,
	}
}

// FromBytes decodes a bundle in owned mode: all string content is copied
// out of data, which may be discarded or reused afterwards.
//
// The layout is canonical: the string section follows the header, the
// definition section follows it and ends the bundle. Trailing bytes after
// the definition section are rejected.
func FromBytes(data []byte) (*Bundle, error) {
	return FromBytesWithTable(data, DefaultTable())
}

// FromBytesWithTable decodes in owned mode with an injected opcode table.
func FromBytesWithTable(data []byte, table *OpcodeTable) (*Bundle, error) {
	br, err := decode(data, false, table)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		flags:   br.header.Flags,
		strings: br.strings,
		defs:    br.defs,
		table:   table,
	}, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Flags returns the header flag word. Unknown bits are preserved.
func (b *Bundle) Flags() uint32 {
	return b.flags
}

// SetFlags replaces the header flag word.
func (b *Bundle) SetFlags(flags uint32) {
	b.flags = flags
}

// Table returns the opcode table the bundle decodes and encodes with.
func (b *Bundle) Table() *OpcodeTable {
	return b.table
}

// Strings returns the bundle's string pool.
func (b *Bundle) Strings() *StringPool {
	return b.strings
}

// Definitions returns the bundle's definition pool.
func (b *Bundle) Definitions() *DefinitionPool {
	return b.defs
}

// Intern interns a string and returns its handle.
func (b *Bundle) Intern(s string) Handle {
	return b.strings.Intern(s)
}

// ResolveString resolves a string handle.
func (b *Bundle) ResolveString(h Handle) (string, error) {
	return b.strings.Resolve(h)
}

// Define inserts a definition and returns its handle.
func (b *Bundle) Define(def Definition) Handle {
	return b.defs.Insert(def)
}

// Definition resolves a definition handle.
func (b *Bundle) Definition(h Handle) (Definition, error) {
	return b.defs.Get(h)
}

// ---------------------------------------------------------------------------
// Typed definition accessors
// ---------------------------------------------------------------------------

func typedDef[T Definition](b *Bundle, h Handle) (T, error) {
	var zero T
	def, err := b.defs.Get(h)
	if err != nil {
		return zero, err
	}
	typed, ok := def.(T)
	if !ok {
		return zero, fmt.Errorf("%w: definition %d is a %s", ErrInvalidHandle, h, def.Kind())
	}
	return typed, nil
}

// Type resolves a handle to a type definition.
func (b *Bundle) Type(h Handle) (*Type, error) { return typedDef[*Type](b, h) }

// Class resolves a handle to a class definition.
func (b *Bundle) Class(h Handle) (*Class, error) { return typedDef[*Class](b, h) }

// Field resolves a handle to a field definition.
func (b *Bundle) Field(h Handle) (*Field, error) { return typedDef[*Field](b, h) }

// Function resolves a handle to a function definition.
func (b *Bundle) Function(h Handle) (*Function, error) { return typedDef[*Function](b, h) }

// Enum resolves a handle to an enum definition.
func (b *Bundle) Enum(h Handle) (*Enum, error) { return typedDef[*Enum](b, h) }

// EnumMember resolves a handle to an enum member definition.
func (b *Bundle) EnumMember(h Handle) (*EnumMember, error) { return typedDef[*EnumMember](b, h) }

// Parameter resolves a handle to a parameter definition.
func (b *Bundle) Parameter(h Handle) (*Parameter, error) { return typedDef[*Parameter](b, h) }

// Local resolves a handle to a local definition.
func (b *Bundle) Local(h Handle) (*Local, error) { return typedDef[*Local](b, h) }

// SourceFile resolves a handle to a source file definition.
func (b *Bundle) SourceFile(h Handle) (*SourceFile, error) { return typedDef[*SourceFile](b, h) }

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Encode serializes the bundle. It validates that the graph is closed
// (every referenced handle resolves or is null) and fails with
// ErrDanglingReference otherwise. Encode has no side effects on the
// bundle and may be called repeatedly; an unmodified decoded bundle
// re-encodes to the exact input bytes.
func (b *Bundle) Encode() ([]byte, error) {
	bw := &bundleWriter{
		strings: b.strings,
		defs:    b.defs,
		table:   b.table,
		flags:   b.flags,
	}
	return bw.encode()
}
