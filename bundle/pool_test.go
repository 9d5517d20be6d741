package bundle

import (
	"errors"
	"testing"
)

func TestDefinitionPoolInsertGet(t *testing.T) {
	p := NewDefinitionPool()
	h1 := p.Insert(&Local{Name: 1, Type: 2})
	h2 := p.Insert(&SourceFile{Path: 3})

	if h1 != 1 || h2 != 2 {
		t.Errorf("handles = %d, %d, want 1, 2", h1, h2)
	}
	if p.Len() != 2 {
		t.Errorf("Len = %d, want 2", p.Len())
	}

	def, err := p.Get(h1)
	if err != nil {
		t.Fatalf("Get(%d) failed: %v", h1, err)
	}
	if def.Kind() != DefLocal {
		t.Errorf("Get(%d).Kind = %v, want local", h1, def.Kind())
	}
}

func TestDefinitionPoolNullHandle(t *testing.T) {
	p := NewDefinitionPool()
	p.Insert(&Local{})

	if _, err := p.Get(NullHandle); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Get(null) err = %v, want ErrInvalidHandle", err)
	}
	if _, err := p.Get(7); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Get(7) err = %v, want ErrInvalidHandle", err)
	}
}

func TestDefinitionPoolContains(t *testing.T) {
	p := NewDefinitionPool()
	p.Insert(&Local{})

	if !p.Contains(NullHandle) {
		t.Error("Contains(null) = false")
	}
	if !p.Contains(1) {
		t.Error("Contains(1) = false")
	}
	if p.Contains(2) {
		t.Error("Contains(2) = true")
	}
}

func TestDefinitionPoolEachOrder(t *testing.T) {
	p := NewDefinitionPool()
	p.Insert(&Local{})
	p.Insert(&Parameter{})
	p.Insert(&SourceFile{})

	var handles []Handle
	var kinds []DefKind
	p.Each(func(h Handle, def Definition) {
		handles = append(handles, h)
		kinds = append(kinds, def.Kind())
	})

	if len(handles) != 3 || handles[0] != 1 || handles[1] != 2 || handles[2] != 3 {
		t.Errorf("Each handles = %v, want [1 2 3]", handles)
	}
	if kinds[0] != DefLocal || kinds[1] != DefParameter || kinds[2] != DefSourceFile {
		t.Errorf("Each kinds = %v", kinds)
	}
}
