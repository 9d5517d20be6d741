package bundle

import (
	"fmt"
	"math"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("corvid.bundle")

// ---------------------------------------------------------------------------
// BundleReader: decodes a bundle from a byte source
// ---------------------------------------------------------------------------

// bundleReader walks a byte source and produces a fully-linked Bundle.
// Any sub-component error aborts the whole decode; a partial graph is
// never returned.
type bundleReader struct {
	data   []byte
	header Header
	table  *OpcodeTable

	// borrow controls string ownership: true makes string pool entries
	// alias the backing data (zero-copy), false copies them out.
	borrow bool

	strings *StringPool
	defs    *DefinitionPool
}

func decode(data []byte, borrow bool, table *OpcodeTable) (*bundleReader, error) {
	br := &bundleReader{
		data:    data,
		table:   table,
		borrow:  borrow,
		strings: NewStringPool(),
		defs:    NewDefinitionPool(),
	}

	r := NewReader(data)
	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	br.header = header

	actual := Checksum(data[PayloadStart:])
	if err := VerifyChecksum(header.Checksum, actual); err != nil {
		return nil, err
	}

	if header.StringOffset > uint64(len(data)) || header.DefOffset > uint64(len(data)) {
		return nil, fmt.Errorf("%w: section offset beyond input (%d bytes)", ErrCorruptHeader, len(data))
	}

	if err := br.readStringPool(r); err != nil {
		return nil, fmt.Errorf("string pool: %w", err)
	}
	if err := br.readDefinitionPool(r); err != nil {
		return nil, fmt.Errorf("definition pool: %w", err)
	}

	// The definition section ends the bundle. Trailing bytes would be
	// checksummed but dropped on re-encode, so they are rejected rather
	// than silently breaking byte stability.
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after definition section", ErrCorruptHeader, r.Remaining())
	}

	log.Debugf("decoded bundle: %d strings, %d definitions, %d bytes", br.strings.Len(), br.defs.Len(), len(data))
	return br, nil
}

// readStringPool bulk-loads the string section in handle order.
func (br *bundleReader) readStringPool(r *Reader) error {
	r.Seek(int(br.header.StringOffset))

	for i := uint32(0); i < br.header.StringCount; i++ {
		b, err := r.ReadPrefixedBytes()
		if err != nil {
			return fmt.Errorf("entry %d: %w", i+1, err)
		}
		if br.borrow {
			br.strings.load(borrowString(b))
		} else {
			br.strings.load(string(b))
		}
	}
	return nil
}

// readDefinitionPool reads the definition section. Handle references are
// not validated here: the pool is read linearly and definitions may
// legally reference entries that appear later. Encode validates closure.
func (br *bundleReader) readDefinitionPool(r *Reader) error {
	r.Seek(int(br.header.DefOffset))

	for i := uint32(0); i < br.header.DefCount; i++ {
		def, err := br.readDefinition(r)
		if err != nil {
			return fmt.Errorf("definition %d: %w", i+1, err)
		}
		br.defs.Insert(def)
	}
	return nil
}

func (br *bundleReader) readDefinition(r *Reader) (Definition, error) {
	start := r.Offset()
	tag, err := r.ReadU8()
	if err != nil {
		return nil, err
	}

	switch DefKind(tag) {
	case DefType:
		return br.readType(r)
	case DefClass:
		return br.readClass(r)
	case DefField:
		return br.readField(r)
	case DefFunction:
		return br.readFunction(r)
	case DefEnum:
		return br.readEnum(r)
	case DefEnumMember:
		return br.readEnumMember(r)
	case DefParameter:
		return br.readParameter(r)
	case DefLocal:
		return br.readLocal(r)
	case DefSourceFile:
		return br.readSourceFile(r)
	default:
		// An unknown tag cannot be skipped: the entry's size is unknown,
		// so skipping would desynchronize every subsequent offset.
		return nil, fmt.Errorf("%w: tag 0x%02X at offset %d", ErrUnsupportedDefinitionKind, tag, start)
	}
}

func readHandle(r *Reader) (Handle, error) {
	v, err := r.ReadVarUint()
	if err != nil {
		return NullHandle, err
	}
	// Truncating would alias a small valid handle and re-encode to
	// different bytes.
	if v > math.MaxUint32 {
		return NullHandle, fmt.Errorf("%w: handle value %d exceeds 32 bits", ErrCorruptHeader, v)
	}
	return Handle(v), nil
}

func readHandleList(r *Reader) ([]Handle, error) {
	count, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	handles := make([]Handle, 0, min(count, 4096))
	for i := uint64(0); i < count; i++ {
		h, err := readHandle(r)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func (br *bundleReader) readType(r *Reader) (*Type, error) {
	var t Type
	var err error
	if t.Name, err = readHandle(r); err != nil {
		return nil, err
	}
	kind, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	t.TypeKind = TypeKind(kind)
	if t.Element, err = readHandle(r); err != nil {
		return nil, err
	}
	size, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	t.Size = uint32(size)
	return &t, nil
}

func (br *bundleReader) readClass(r *Reader) (*Class, error) {
	var c Class
	var err error
	if c.Name, err = readHandle(r); err != nil {
		return nil, err
	}
	flags, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	c.Flags = ClassFlags(flags)
	if c.Base, err = readHandle(r); err != nil {
		return nil, err
	}
	if c.Fields, err = readHandleList(r); err != nil {
		return nil, err
	}
	if c.Methods, err = readHandleList(r); err != nil {
		return nil, err
	}
	return &c, nil
}

func (br *bundleReader) readField(r *Reader) (*Field, error) {
	var f Field
	var err error
	if f.Name, err = readHandle(r); err != nil {
		return nil, err
	}
	if f.Owner, err = readHandle(r); err != nil {
		return nil, err
	}
	if f.Type, err = readHandle(r); err != nil {
		return nil, err
	}
	flags, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	f.Flags = FieldFlags(flags)
	return &f, nil
}

func (br *bundleReader) readFunction(r *Reader) (*Function, error) {
	var fn Function
	var err error
	if fn.Name, err = readHandle(r); err != nil {
		return nil, err
	}
	if fn.Owner, err = readHandle(r); err != nil {
		return nil, err
	}
	flags, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	fn.Flags = FunctionFlags(flags)
	if fn.Return, err = readHandle(r); err != nil {
		return nil, err
	}
	if fn.Params, err = readHandleList(r); err != nil {
		return nil, err
	}
	if fn.Locals, err = readHandleList(r); err != nil {
		return nil, err
	}
	if fn.Source.File, err = readHandle(r); err != nil {
		return nil, err
	}
	line, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	fn.Source.Line = uint32(line)

	hasBody, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if hasBody != 0 {
		codeLen, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		code, err := r.ReadBytes(int(codeLen))
		if err != nil {
			return nil, err
		}
		body, err := DecodeBody(code, br.table)
		if err != nil {
			return nil, err
		}
		fn.Body = &FunctionBody{Code: body}
	}
	return &fn, nil
}

func (br *bundleReader) readEnum(r *Reader) (*Enum, error) {
	var e Enum
	var err error
	if e.Name, err = readHandle(r); err != nil {
		return nil, err
	}
	if e.Underlying, err = readHandle(r); err != nil {
		return nil, err
	}
	if e.Size, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if e.Members, err = readHandleList(r); err != nil {
		return nil, err
	}
	return &e, nil
}

func (br *bundleReader) readEnumMember(r *Reader) (*EnumMember, error) {
	var m EnumMember
	var err error
	if m.Name, err = readHandle(r); err != nil {
		return nil, err
	}
	if m.Owner, err = readHandle(r); err != nil {
		return nil, err
	}
	if m.Value, err = r.ReadI64(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (br *bundleReader) readParameter(r *Reader) (*Parameter, error) {
	var p Parameter
	var err error
	if p.Name, err = readHandle(r); err != nil {
		return nil, err
	}
	if p.Type, err = readHandle(r); err != nil {
		return nil, err
	}
	flags, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	p.Flags = ParamFlags(flags)
	return &p, nil
}

func (br *bundleReader) readLocal(r *Reader) (*Local, error) {
	var l Local
	var err error
	if l.Name, err = readHandle(r); err != nil {
		return nil, err
	}
	if l.Type, err = readHandle(r); err != nil {
		return nil, err
	}
	return &l, nil
}

func (br *bundleReader) readSourceFile(r *Reader) (*SourceFile, error) {
	var s SourceFile
	var err error
	if s.Path, err = readHandle(r); err != nil {
		return nil, err
	}
	idx, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	s.Index = uint32(idx)
	return &s, nil
}
