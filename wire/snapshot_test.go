package wire

import (
	"bytes"
	"testing"

	"github.com/corvid-lang/corvid/bundle"
)

func buildSnapshotBundle(t testing.TB) *bundle.Bundle {
	t.Helper()

	b := bundle.New()
	sInt := b.Intern("Int32")
	sPawn := b.Intern("Pawn")
	sHealth := b.Intern("health")
	sHello := b.Intern("hello")

	b.Define(&bundle.Type{Name: sInt, TypeKind: bundle.TypePrimitive})
	b.Define(&bundle.Class{Name: sPawn, Methods: []bundle.Handle{3}})
	b.Define(&bundle.Function{
		Name:   sHealth,
		Owner:  2,
		Flags:  bundle.FuncHasBody,
		Return: 1,
		Body: &bundle.FunctionBody{Code: []bundle.Instruction{
			{Op: bundle.OpStrConst, Operands: []bundle.Operand{bundle.HandleOp(bundle.OpdString, sHello)}},
			{Op: bundle.OpReturn},
		}},
	})
	b.Define(&bundle.Enum{Name: b.Intern("Direction"), Underlying: 1, Size: 4, Members: []bundle.Handle{5}})
	b.Define(&bundle.EnumMember{Name: b.Intern("North"), Owner: 4, Value: -7})
	b.SetFlags(bundle.BundleFlagDebugInfo)
	return b
}

func TestSnapshotExportImport(t *testing.T) {
	src := buildSnapshotBundle(t)

	snap, err := Export(src)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if snap.Flags != bundle.BundleFlagDebugInfo {
		t.Errorf("snapshot flags = %d", snap.Flags)
	}
	if len(snap.Strings) != 6 || snap.Strings[1] != "Pawn" {
		t.Errorf("snapshot strings = %v", snap.Strings)
	}
	if len(snap.Defs) != 5 {
		t.Fatalf("snapshot defs = %d, want 5", len(snap.Defs))
	}

	back, err := Import(snap)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	// The imported bundle encodes identically to the original.
	want, err := src.Encode()
	if err != nil {
		t.Fatalf("source Encode failed: %v", err)
	}
	got, err := back.Encode()
	if err != nil {
		t.Fatalf("imported Encode failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("import/export cycle changed container bytes")
	}
}

func TestSnapshotMarshalCanonical(t *testing.T) {
	src := buildSnapshotBundle(t)
	snap, err := Export(src)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	a, err := Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	b, err := Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("canonical marshal not deterministic")
	}

	back, err := Unmarshal(a)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(back.Defs) != len(snap.Defs) || back.Flags != snap.Flags {
		t.Errorf("unmarshaled snapshot = %+v", back)
	}
	if back.Defs[2].HasBody != true || len(back.Defs[2].Body) == 0 {
		t.Errorf("function record lost body: %+v", back.Defs[2])
	}
}

// Decoded pools may carry positional duplicates; Import must rebuild them
// without collapsing, or every handle past the first duplicate shifts.
func TestSnapshotImportDuplicateStrings(t *testing.T) {
	snap := &Snapshot{
		Version: bundle.BundleVersion,
		Strings: []string{"dup", "other", "dup"},
		Defs: []DefRecord{{
			Kind: uint8(bundle.DefLocal),
			Name: 3,
		}},
	}

	b, err := Import(snap)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if b.Strings().Len() != 3 {
		t.Fatalf("imported pool has %d strings, want 3", b.Strings().Len())
	}
	l, err := b.Local(1)
	if err != nil {
		t.Fatal(err)
	}
	s, err := b.ResolveString(l.Name)
	if err != nil || s != "dup" {
		t.Errorf("ResolveString(%d) = %q, %v, want dup", l.Name, s, err)
	}
}

func TestSnapshotRoundTripDuplicateStrings(t *testing.T) {
	src := bundle.New()
	src.Strings().Append("dup")
	src.Strings().Append("other")
	src.Strings().Append("dup")
	src.Define(&bundle.Local{Name: 3})

	snap, err := Export(src)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	back, err := Import(snap)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	want, err := src.Encode()
	if err != nil {
		t.Fatalf("source Encode failed: %v", err)
	}
	got, err := back.Encode()
	if err != nil {
		t.Fatalf("imported Encode failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("duplicate-carrying pool changed container bytes through the cycle")
	}
}

func TestSnapshotUnmarshalGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte("not cbor at all")); err == nil {
		t.Error("garbage accepted")
	}
}

func TestSnapshotImportBadBody(t *testing.T) {
	snap := &Snapshot{
		Version: bundle.BundleVersion,
		Strings: []string{"f"},
		Defs: []DefRecord{{
			Kind:    uint8(bundle.DefFunction),
			Name:    1,
			HasBody: true,
			Body:    []byte{0xEE}, // not a known opcode
		}},
	}
	if _, err := Import(snap); err == nil {
		t.Error("body with unknown opcode accepted")
	}
}

func TestSnapshotImportUnknownKind(t *testing.T) {
	snap := &Snapshot{Defs: []DefRecord{{Kind: 0x7F}}}
	if _, err := Import(snap); err == nil {
		t.Error("unknown definition kind accepted")
	}
}
