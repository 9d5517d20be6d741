// Package wire provides a CBOR interchange form for script bundles.
//
// A Snapshot is a flattened, self-describing rendition of a bundle's
// pools, meant for tooling that wants to inspect or transport bundle
// content without speaking the binary container format. Snapshots use
// canonical CBOR, so equal bundles marshal to equal bytes.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/corvid-lang/corvid/bundle"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is the interchange form of a bundle. Handles keep their pool
// values, so the record graph is isomorphic to the bundle graph.
type Snapshot struct {
	Version uint32      `cbor:"version"`
	Flags   uint32      `cbor:"flags"`
	Strings []string    `cbor:"strings"`
	Defs    []DefRecord `cbor:"defs"`
}

// DefRecord is one flattened definition. Kind selects which fields are
// meaningful; the rest stay at their zero values and are omitted.
type DefRecord struct {
	Kind uint8  `cbor:"kind"`
	Name uint32 `cbor:"name,omitempty"`

	Owner      uint32   `cbor:"owner,omitempty"`
	Type       uint32   `cbor:"type,omitempty"`
	Base       uint32   `cbor:"base,omitempty"`
	Return     uint32   `cbor:"return,omitempty"`
	Element    uint32   `cbor:"element,omitempty"`
	Underlying uint32   `cbor:"underlying,omitempty"`
	Fields     []uint32 `cbor:"fields,omitempty"`
	Methods    []uint32 `cbor:"methods,omitempty"`
	Params     []uint32 `cbor:"params,omitempty"`
	Locals     []uint32 `cbor:"locals,omitempty"`
	Members    []uint32 `cbor:"members,omitempty"`

	Flags      uint32 `cbor:"flags,omitempty"`
	TypeKind   uint8  `cbor:"typekind,omitempty"`
	Size       uint32 `cbor:"size,omitempty"`
	Value      int64  `cbor:"value,omitempty"`
	SourceFile uint32 `cbor:"srcfile,omitempty"`
	SourceLine uint32 `cbor:"srcline,omitempty"`
	Index      uint32 `cbor:"index,omitempty"`

	// Body is the function's opcode stream in its container encoding.
	Body    []byte `cbor:"body,omitempty"`
	HasBody bool   `cbor:"hasbody,omitempty"`
}

// Marshal serializes a snapshot to canonical CBOR bytes.
func Marshal(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// Unmarshal deserializes a snapshot from CBOR bytes.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("wire: unmarshal snapshot: %w", err)
	}
	return &s, nil
}

func handles(hs []bundle.Handle) []uint32 {
	if len(hs) == 0 {
		return nil
	}
	out := make([]uint32, len(hs))
	for i, h := range hs {
		out[i] = uint32(h)
	}
	return out
}

func unhandles(vs []uint32) []bundle.Handle {
	if len(vs) == 0 {
		return nil
	}
	out := make([]bundle.Handle, len(vs))
	for i, v := range vs {
		out[i] = bundle.Handle(v)
	}
	return out
}

// Export flattens a bundle into a snapshot. String content is copied, so
// the snapshot stays valid after a mapped bundle is closed.
func Export(b *bundle.Bundle) (*Snapshot, error) {
	s := &Snapshot{
		Version: bundle.BundleVersion,
		Flags:   b.Flags(),
	}

	pool := b.Strings().All()
	s.Strings = make([]string, len(pool))
	for i, str := range pool {
		s.Strings[i] = string(append([]byte(nil), str...))
	}

	var exportErr error
	b.Definitions().Each(func(h bundle.Handle, def bundle.Definition) {
		if exportErr != nil {
			return
		}
		rec, err := exportDef(b, def)
		if err != nil {
			exportErr = fmt.Errorf("wire: definition %d: %w", h, err)
			return
		}
		s.Defs = append(s.Defs, rec)
	})
	if exportErr != nil {
		return nil, exportErr
	}
	return s, nil
}

func exportDef(b *bundle.Bundle, def bundle.Definition) (DefRecord, error) {
	rec := DefRecord{Kind: uint8(def.Kind())}

	switch d := def.(type) {
	case *bundle.Type:
		rec.Name = uint32(d.Name)
		rec.TypeKind = uint8(d.TypeKind)
		rec.Element = uint32(d.Element)
		rec.Size = d.Size
	case *bundle.Class:
		rec.Name = uint32(d.Name)
		rec.Flags = uint32(d.Flags)
		rec.Base = uint32(d.Base)
		rec.Fields = handles(d.Fields)
		rec.Methods = handles(d.Methods)
	case *bundle.Field:
		rec.Name = uint32(d.Name)
		rec.Owner = uint32(d.Owner)
		rec.Type = uint32(d.Type)
		rec.Flags = uint32(d.Flags)
	case *bundle.Function:
		rec.Name = uint32(d.Name)
		rec.Owner = uint32(d.Owner)
		rec.Flags = uint32(d.Flags)
		rec.Return = uint32(d.Return)
		rec.Params = handles(d.Params)
		rec.Locals = handles(d.Locals)
		rec.SourceFile = uint32(d.Source.File)
		rec.SourceLine = d.Source.Line
		if d.Body != nil {
			code, err := bundle.EncodeBody(d.Body.Code, b.Table())
			if err != nil {
				return rec, err
			}
			rec.Body = code
			rec.HasBody = true
		}
	case *bundle.Enum:
		rec.Name = uint32(d.Name)
		rec.Underlying = uint32(d.Underlying)
		rec.Size = uint32(d.Size)
		rec.Members = handles(d.Members)
	case *bundle.EnumMember:
		rec.Name = uint32(d.Name)
		rec.Owner = uint32(d.Owner)
		rec.Value = d.Value
	case *bundle.Parameter:
		rec.Name = uint32(d.Name)
		rec.Type = uint32(d.Type)
		rec.Flags = uint32(d.Flags)
	case *bundle.Local:
		rec.Name = uint32(d.Name)
		rec.Type = uint32(d.Type)
	case *bundle.SourceFile:
		rec.Name = uint32(d.Path)
		rec.Index = d.Index
	default:
		return rec, fmt.Errorf("unsupported definition kind %d", def.Kind())
	}
	return rec, nil
}

// Import rebuilds an owned bundle from a snapshot using the built-in
// opcode table.
func Import(s *Snapshot) (*bundle.Bundle, error) {
	return ImportWithTable(s, bundle.DefaultTable())
}

// ImportWithTable rebuilds an owned bundle from a snapshot.
func ImportWithTable(s *Snapshot, table *bundle.OpcodeTable) (*bundle.Bundle, error) {
	b := bundle.NewWithTable(table)
	b.SetFlags(s.Flags)

	// Positional append, not Intern: snapshot string tables may carry
	// duplicate entries (decoded pools preserve duplicate spacing), and
	// collapsing them would shift every later handle.
	for _, str := range s.Strings {
		b.Strings().Append(str)
	}

	for i, rec := range s.Defs {
		def, err := importDef(rec, table)
		if err != nil {
			return nil, fmt.Errorf("wire: definition %d: %w", i+1, err)
		}
		b.Define(def)
	}
	return b, nil
}

func importDef(rec DefRecord, table *bundle.OpcodeTable) (bundle.Definition, error) {
	switch bundle.DefKind(rec.Kind) {
	case bundle.DefType:
		return &bundle.Type{
			Name:     bundle.Handle(rec.Name),
			TypeKind: bundle.TypeKind(rec.TypeKind),
			Element:  bundle.Handle(rec.Element),
			Size:     rec.Size,
		}, nil
	case bundle.DefClass:
		return &bundle.Class{
			Name:    bundle.Handle(rec.Name),
			Flags:   bundle.ClassFlags(rec.Flags),
			Base:    bundle.Handle(rec.Base),
			Fields:  unhandles(rec.Fields),
			Methods: unhandles(rec.Methods),
		}, nil
	case bundle.DefField:
		return &bundle.Field{
			Name:  bundle.Handle(rec.Name),
			Owner: bundle.Handle(rec.Owner),
			Type:  bundle.Handle(rec.Type),
			Flags: bundle.FieldFlags(rec.Flags),
		}, nil
	case bundle.DefFunction:
		fn := &bundle.Function{
			Name:   bundle.Handle(rec.Name),
			Owner:  bundle.Handle(rec.Owner),
			Flags:  bundle.FunctionFlags(rec.Flags),
			Return: bundle.Handle(rec.Return),
			Params: unhandles(rec.Params),
			Locals: unhandles(rec.Locals),
			Source: bundle.SourceRef{
				File: bundle.Handle(rec.SourceFile),
				Line: rec.SourceLine,
			},
		}
		if rec.HasBody {
			code, err := bundle.DecodeBody(rec.Body, table)
			if err != nil {
				return nil, err
			}
			fn.Body = &bundle.FunctionBody{Code: code}
		}
		return fn, nil
	case bundle.DefEnum:
		return &bundle.Enum{
			Name:       bundle.Handle(rec.Name),
			Underlying: bundle.Handle(rec.Underlying),
			Size:       uint8(rec.Size),
			Members:    unhandles(rec.Members),
		}, nil
	case bundle.DefEnumMember:
		return &bundle.EnumMember{
			Name:  bundle.Handle(rec.Name),
			Owner: bundle.Handle(rec.Owner),
			Value: rec.Value,
		}, nil
	case bundle.DefParameter:
		return &bundle.Parameter{
			Name:  bundle.Handle(rec.Name),
			Type:  bundle.Handle(rec.Type),
			Flags: bundle.ParamFlags(rec.Flags),
		}, nil
	case bundle.DefLocal:
		return &bundle.Local{
			Name: bundle.Handle(rec.Name),
			Type: bundle.Handle(rec.Type),
		}, nil
	case bundle.DefSourceFile:
		return &bundle.SourceFile{
			Path:  bundle.Handle(rec.Name),
			Index: rec.Index,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported definition kind %d", rec.Kind)
	}
}
