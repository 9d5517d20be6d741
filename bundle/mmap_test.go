package bundle

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writeTestBundleFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.cvb")
	if err := os.WriteFile(path, encodeTestBundle(t), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestOpenMapped(t *testing.T) {
	path := writeTestBundleFile(t)

	b, err := OpenMapped(path)
	if err != nil {
		t.Fatalf("OpenMapped failed: %v", err)
	}
	defer b.Close()

	if !b.Mapped() {
		t.Error("Mapped() = false for mapped bundle")
	}
	cls, err := b.Class(2)
	if err != nil {
		t.Fatalf("Class(2) failed: %v", err)
	}
	name, _ := b.ResolveString(cls.Name)
	if name != "Pawn" {
		t.Errorf("class name = %q, want Pawn", name)
	}
}

func TestOpenMappedMissingFile(t *testing.T) {
	if _, err := OpenMapped(filepath.Join(t.TempDir(), "absent.cvb")); err == nil {
		t.Error("OpenMapped of missing file succeeded")
	}
}

func TestOpenMappedCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cvb")
	data := encodeTestBundle(t)
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenMapped(path); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("err = %v, want ErrChecksumMismatch", err)
	}
}

// Mapped and owned decodes of the same file expose identical content and
// re-encode to identical bytes.
func TestMappedOwnedEquivalence(t *testing.T) {
	path := writeTestBundleFile(t)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	mapped, err := OpenMapped(path)
	if err != nil {
		t.Fatalf("OpenMapped failed: %v", err)
	}
	defer mapped.Close()
	owned, err := FromBytes(raw)
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}

	if mapped.Strings().Len() != owned.Strings().Len() {
		t.Fatalf("string counts differ: %d vs %d", mapped.Strings().Len(), owned.Strings().Len())
	}
	for h := Handle(1); int(h) <= owned.Strings().Len(); h++ {
		a, _ := mapped.ResolveString(h)
		b, _ := owned.ResolveString(h)
		if a != b {
			t.Errorf("string %d: mapped %q, owned %q", h, a, b)
		}
	}

	fromMapped, err := mapped.Encode()
	if err != nil {
		t.Fatalf("mapped Encode failed: %v", err)
	}
	fromOwned, err := owned.Encode()
	if err != nil {
		t.Fatalf("owned Encode failed: %v", err)
	}
	if !bytes.Equal(fromMapped, fromOwned) || !bytes.Equal(fromMapped, raw) {
		t.Error("mapped and owned encodes differ from input")
	}
}

func TestMappedRetainClose(t *testing.T) {
	path := writeTestBundleFile(t)
	b, err := OpenMapped(path)
	if err != nil {
		t.Fatalf("OpenMapped failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		r := b.Retain()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer r.Close()
			if _, err := r.ResolveString(1); err != nil {
				t.Errorf("ResolveString in reader goroutine: %v", err)
			}
		}()
	}
	wg.Wait()

	if err := b.Close(); err != nil {
		t.Fatalf("final Close failed: %v", err)
	}
	if err := b.Close(); !errors.Is(err, ErrBundleClosed) {
		t.Errorf("double Close err = %v, want ErrBundleClosed", err)
	}
}

func TestMappedDetachOutlivesClose(t *testing.T) {
	path := writeTestBundleFile(t)
	b, err := OpenMapped(path)
	if err != nil {
		t.Fatalf("OpenMapped failed: %v", err)
	}

	want, _ := b.ResolveString(2)
	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if b.Mapped() {
		t.Error("Mapped() = true after Detach")
	}

	// The mapping is gone; the strings must not be.
	got, _ := b.ResolveString(2)
	if got != want {
		t.Errorf("string after Detach = %q, want %q", got, want)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close after Detach failed: %v", err)
	}
}

func TestOwnedCloseIsNoop(t *testing.T) {
	b, err := FromBytes(encodeTestBundle(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("owned Close = %v, want nil", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("repeated owned Close = %v, want nil", err)
	}
}
