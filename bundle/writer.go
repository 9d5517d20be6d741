package bundle

import "fmt"

// ---------------------------------------------------------------------------
// BundleWriter: serializes a Bundle back to bytes
// ---------------------------------------------------------------------------

// bundleWriter encodes a bundle's pools into the wire format. Encoding is
// the one point where the whole graph must be internally consistent:
// every handle referenced by any definition must resolve (or be null), or
// the encode fails with ErrDanglingReference and the bundle is left
// untouched.
type bundleWriter struct {
	strings *StringPool
	defs    *DefinitionPool
	table   *OpcodeTable
	flags   uint32
}

func (bw *bundleWriter) encode() ([]byte, error) {
	if err := bw.validate(); err != nil {
		return nil, err
	}

	w := NewWriter()
	writeHeader(w, bw.flags)

	stringOffset := w.Len()
	for _, s := range bw.strings.All() {
		w.WriteString(s)
	}

	defOffset := w.Len()
	var encodeErr error
	bw.defs.Each(func(h Handle, def Definition) {
		if encodeErr != nil {
			return
		}
		if err := bw.writeDefinition(w, def); err != nil {
			encodeErr = fmt.Errorf("definition %d: %w", h, err)
		}
	})
	if encodeErr != nil {
		return nil, encodeErr
	}

	w.PatchU64(headerStringOffsetOff, uint64(stringOffset))
	w.PatchU32(headerStringCountOff, uint32(bw.strings.Len()))
	w.PatchU64(headerDefOffsetOff, uint64(defOffset))
	w.PatchU32(headerDefCountOff, uint32(bw.defs.Len()))

	data := w.Bytes()
	w.PatchU32(headerChecksumOff, Checksum(data[PayloadStart:]))

	log.Debugf("encoded bundle: %d strings, %d definitions, %d bytes", bw.strings.Len(), bw.defs.Len(), len(data))
	return data, nil
}

// ---------------------------------------------------------------------------
// Graph closure validation
// ---------------------------------------------------------------------------

func (bw *bundleWriter) validate() error {
	var err error
	bw.defs.Each(func(h Handle, def Definition) {
		if err == nil {
			err = bw.validateDefinition(h, def)
		}
	})
	return err
}

func (bw *bundleWriter) validateDefinition(h Handle, def Definition) error {
	str := func(field string, sh Handle) error {
		if !bw.strings.Contains(sh) {
			return fmt.Errorf("%w: %s %d references string %d of %s (pool has %d)",
				ErrDanglingReference, def.Kind(), h, sh, field, bw.strings.Len())
		}
		return nil
	}
	ref := func(field string, dh Handle) error {
		if !bw.defs.Contains(dh) {
			return fmt.Errorf("%w: %s %d references definition %d of %s (pool has %d)",
				ErrDanglingReference, def.Kind(), h, dh, field, bw.defs.Len())
		}
		return nil
	}
	refs := func(field string, handles []Handle) error {
		for _, dh := range handles {
			if err := ref(field, dh); err != nil {
				return err
			}
		}
		return nil
	}

	switch d := def.(type) {
	case *Type:
		return firstErr(str("name", d.Name), ref("element", d.Element))
	case *Class:
		return firstErr(str("name", d.Name), ref("base", d.Base),
			refs("fields", d.Fields), refs("methods", d.Methods))
	case *Field:
		return firstErr(str("name", d.Name), ref("owner", d.Owner), ref("type", d.Type))
	case *Function:
		if err := firstErr(str("name", d.Name), ref("owner", d.Owner), ref("return", d.Return),
			refs("params", d.Params), refs("locals", d.Locals), ref("source", d.Source.File)); err != nil {
			return err
		}
		if d.Body != nil {
			return bw.validateBody(h, d.Body)
		}
		return nil
	case *Enum:
		return firstErr(str("name", d.Name), ref("underlying", d.Underlying), refs("members", d.Members))
	case *EnumMember:
		return firstErr(str("name", d.Name), ref("owner", d.Owner))
	case *Parameter:
		return firstErr(str("name", d.Name), ref("type", d.Type))
	case *Local:
		return firstErr(str("name", d.Name), ref("type", d.Type))
	case *SourceFile:
		return str("path", d.Path)
	default:
		return fmt.Errorf("%w: tag 0x%02X", ErrUnsupportedDefinitionKind, byte(def.Kind()))
	}
}

// validateBody checks handle operands inside an instruction stream.
func (bw *bundleWriter) validateBody(h Handle, body *FunctionBody) error {
	for _, ins := range body.Code {
		for _, opd := range ins.Operands {
			switch opd.Kind {
			case OpdString:
				if !bw.strings.Contains(opd.Handle()) {
					return fmt.Errorf("%w: function %d body offset %d references string %d (pool has %d)",
						ErrDanglingReference, h, ins.Offset, opd.Handle(), bw.strings.Len())
				}
			case OpdDef:
				if !bw.defs.Contains(opd.Handle()) {
					return fmt.Errorf("%w: function %d body offset %d references definition %d (pool has %d)",
						ErrDanglingReference, h, ins.Offset, opd.Handle(), bw.defs.Len())
				}
			}
		}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Definition serialization
// ---------------------------------------------------------------------------

func writeHandle(w *Writer, h Handle) {
	w.WriteVarUint(uint64(h))
}

func writeHandleList(w *Writer, handles []Handle) {
	w.WriteVarUint(uint64(len(handles)))
	for _, h := range handles {
		writeHandle(w, h)
	}
}

func (bw *bundleWriter) writeDefinition(w *Writer, def Definition) error {
	w.WriteU8(byte(def.Kind()))

	switch d := def.(type) {
	case *Type:
		writeHandle(w, d.Name)
		w.WriteU8(byte(d.TypeKind))
		writeHandle(w, d.Element)
		w.WriteVarUint(uint64(d.Size))
	case *Class:
		writeHandle(w, d.Name)
		w.WriteU16(uint16(d.Flags))
		writeHandle(w, d.Base)
		writeHandleList(w, d.Fields)
		writeHandleList(w, d.Methods)
	case *Field:
		writeHandle(w, d.Name)
		writeHandle(w, d.Owner)
		writeHandle(w, d.Type)
		w.WriteU16(uint16(d.Flags))
	case *Function:
		writeHandle(w, d.Name)
		writeHandle(w, d.Owner)
		w.WriteU32(uint32(d.Flags))
		writeHandle(w, d.Return)
		writeHandleList(w, d.Params)
		writeHandleList(w, d.Locals)
		writeHandle(w, d.Source.File)
		w.WriteVarUint(uint64(d.Source.Line))
		if d.Body == nil {
			w.WriteU8(0)
		} else {
			w.WriteU8(1)
			code, err := EncodeBody(d.Body.Code, bw.table)
			if err != nil {
				return err
			}
			w.WriteU32(uint32(len(code)))
			w.WriteBytes(code)
		}
	case *Enum:
		writeHandle(w, d.Name)
		writeHandle(w, d.Underlying)
		w.WriteU8(d.Size)
		writeHandleList(w, d.Members)
	case *EnumMember:
		writeHandle(w, d.Name)
		writeHandle(w, d.Owner)
		w.WriteI64(d.Value)
	case *Parameter:
		writeHandle(w, d.Name)
		writeHandle(w, d.Type)
		w.WriteU8(byte(d.Flags))
	case *Local:
		writeHandle(w, d.Name)
		writeHandle(w, d.Type)
	case *SourceFile:
		writeHandle(w, d.Path)
		w.WriteVarUint(uint64(d.Index))
	default:
		return fmt.Errorf("%w: tag 0x%02X", ErrUnsupportedDefinitionKind, byte(def.Kind()))
	}
	return nil
}
