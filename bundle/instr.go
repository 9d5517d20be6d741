package bundle

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Operand is one decoded instruction operand. Integer kinds (including
// handles and relative offsets) live in Int with their sign preserved;
// float kinds live in Float; OpdBytes payloads live in Bytes.
type Operand struct {
	Kind  OperandKind
	Int   int64
	Float float64
	Bytes []byte
}

// Handle returns the operand as a pool handle. Only meaningful for
// OpdString and OpdDef operands.
func (o Operand) Handle() Handle {
	return Handle(uint32(o.Int))
}

// Instruction is one decoded bytecode operation. Offset is the byte
// position of the opcode within its function body; instructions are
// addressed by this offset, never by pool handle.
type Instruction struct {
	Offset   uint32
	Op       Opcode
	Operands []Operand
}

// HandleOp builds a string- or definition-handle operand.
func HandleOp(kind OperandKind, h Handle) Operand {
	return Operand{Kind: kind, Int: int64(h)}
}

// IntOp builds an integer operand of the given kind.
func IntOp(kind OperandKind, v int64) Operand {
	return Operand{Kind: kind, Int: v}
}

// OffsetOp builds a relative jump offset operand. The offset is measured
// from the position immediately after the instruction's own encoding.
func OffsetOp(rel int16) Operand {
	return Operand{Kind: OpdOffset, Int: int64(rel)}
}

// FloatOp builds a float operand of the given kind.
func FloatOp(kind OperandKind, v float64) Operand {
	return Operand{Kind: kind, Float: v}
}

// BytesOp builds a length-prefixed byte-run operand.
func BytesOp(b []byte) Operand {
	return Operand{Kind: OpdBytes, Bytes: b}
}

// ---------------------------------------------------------------------------
// Body decoding
// ---------------------------------------------------------------------------

// DecodeBody decodes a function body's opcode stream into instructions,
// walking byte by byte under the opcode table. An opcode tag outside the
// table fails with ErrUnknownOpcode carrying the byte value and its exact
// body offset: opcode boundaries cannot be resynchronized after a bad tag,
// so decoding never skips.
//
// Relative jump offsets are preserved in their encoded form; they are not
// resolved to instruction indices.
func DecodeBody(code []byte, table *OpcodeTable) ([]Instruction, error) {
	r := NewReader(code)
	var body []Instruction

	for r.Remaining() > 0 {
		start := r.Offset()
		tag, _ := r.ReadU8()
		info := table.Info(Opcode(tag))
		if info == nil {
			return nil, fmt.Errorf("%w: byte 0x%02X at body offset %d", ErrUnknownOpcode, tag, start)
		}

		ins := Instruction{Offset: uint32(start), Op: Opcode(tag)}
		if len(info.Operands) > 0 {
			ins.Operands = make([]Operand, len(info.Operands))
			for i, kind := range info.Operands {
				opd, err := readOperand(r, kind)
				if err != nil {
					return nil, fmt.Errorf("decoding %s operand %d at body offset %d: %w", info.Name, i, start, err)
				}
				ins.Operands[i] = opd
			}
		}
		body = append(body, ins)
	}

	return body, nil
}

func readOperand(r *Reader, kind OperandKind) (Operand, error) {
	opd := Operand{Kind: kind}
	var err error

	switch kind {
	case OpdU8:
		var v uint8
		v, err = r.ReadU8()
		opd.Int = int64(v)
	case OpdI8:
		var v int8
		v, err = r.ReadI8()
		opd.Int = int64(v)
	case OpdU16:
		var v uint16
		v, err = r.ReadU16()
		opd.Int = int64(v)
	case OpdI16, OpdOffset:
		var v int16
		v, err = r.ReadI16()
		opd.Int = int64(v)
	case OpdU32, OpdString, OpdDef:
		var v uint32
		v, err = r.ReadU32()
		opd.Int = int64(v)
	case OpdI32:
		var v int32
		v, err = r.ReadI32()
		opd.Int = int64(v)
	case OpdU64:
		var v uint64
		v, err = r.ReadU64()
		opd.Int = int64(v)
	case OpdI64:
		opd.Int, err = r.ReadI64()
	case OpdF32:
		var v float32
		v, err = r.ReadF32()
		opd.Float = float64(v)
	case OpdF64:
		opd.Float, err = r.ReadF64()
	case OpdBytes:
		opd.Bytes, err = r.ReadPrefixedBytes()
	default:
		err = fmt.Errorf("invalid operand kind %d", kind)
	}

	return opd, err
}

// ---------------------------------------------------------------------------
// Body encoding
// ---------------------------------------------------------------------------

// EncodeBody encodes instructions back into an opcode stream. Decoding a
// body and re-encoding it without modification reproduces the input bytes
// exactly, including the relative form of jump offsets.
func EncodeBody(body []Instruction, table *OpcodeTable) ([]byte, error) {
	w := NewWriter()
	for _, ins := range body {
		if err := encodeInstruction(w, ins, table); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func encodeInstruction(w *Writer, ins Instruction, table *OpcodeTable) error {
	info := table.Info(ins.Op)
	if info == nil {
		return fmt.Errorf("%w: byte 0x%02X", ErrUnknownOpcode, byte(ins.Op))
	}
	if len(ins.Operands) != len(info.Operands) {
		return fmt.Errorf("opcode %s expects %d operands, have %d", info.Name, len(info.Operands), len(ins.Operands))
	}

	w.WriteU8(byte(ins.Op))
	for i, kind := range info.Operands {
		opd := ins.Operands[i]
		if opd.Kind != kind {
			return fmt.Errorf("opcode %s operand %d: kind %d, want %d", info.Name, i, opd.Kind, kind)
		}
		writeOperand(w, opd)
	}
	return nil
}

func writeOperand(w *Writer, opd Operand) {
	switch opd.Kind {
	case OpdU8:
		w.WriteU8(uint8(opd.Int))
	case OpdI8:
		w.WriteI8(int8(opd.Int))
	case OpdU16:
		w.WriteU16(uint16(opd.Int))
	case OpdI16, OpdOffset:
		w.WriteI16(int16(opd.Int))
	case OpdU32, OpdString, OpdDef:
		w.WriteU32(uint32(opd.Int))
	case OpdI32:
		w.WriteI32(int32(opd.Int))
	case OpdU64:
		w.WriteU64(uint64(opd.Int))
	case OpdI64:
		w.WriteI64(opd.Int)
	case OpdF32:
		w.WriteF32(float32(opd.Float))
	case OpdF64:
		w.WriteF64(opd.Float)
	case OpdBytes:
		w.WritePrefixedBytes(opd.Bytes)
	}
}

// EncodedSize returns the wire size of one instruction under the table,
// including the opcode byte.
func (t *OpcodeTable) EncodedSize(ins Instruction) int {
	info := t.Info(ins.Op)
	if info == nil {
		return 0
	}
	size := 1
	for i, kind := range info.Operands {
		if n := kind.fixedSize(); n >= 0 {
			size += n
			continue
		}
		// variable size: varint length prefix plus payload
		if i < len(ins.Operands) {
			size += varUintSize(uint64(len(ins.Operands[i].Bytes))) + len(ins.Operands[i].Bytes)
		}
	}
	return size
}

// Target resolves a relative jump operand to an absolute body offset. The
// stored operand stays in its relative form; this is a read-side helper.
func (t *OpcodeTable) Target(ins Instruction, operand int) int {
	return int(ins.Offset) + t.EncodedSize(ins) + int(ins.Operands[operand].Int)
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// FormatInstruction renders one instruction as "offset  NAME operands".
// Jump operands show the resolved absolute target alongside the relative
// offset.
func (t *OpcodeTable) FormatInstruction(ins Instruction) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%04d  %s", ins.Offset, t.Name(ins.Op))
	for i, opd := range ins.Operands {
		switch opd.Kind {
		case OpdOffset:
			fmt.Fprintf(&sb, " %+d (-> %04d)", opd.Int, t.Target(ins, i))
		case OpdString:
			fmt.Fprintf(&sb, " str:%d", opd.Int)
		case OpdDef:
			fmt.Fprintf(&sb, " def:%d", opd.Int)
		case OpdF32, OpdF64:
			fmt.Fprintf(&sb, " %g", opd.Float)
		case OpdBytes:
			fmt.Fprintf(&sb, " [%d bytes]", len(opd.Bytes))
		default:
			fmt.Fprintf(&sb, " %d", opd.Int)
		}
	}
	return sb.String()
}

// Disassemble returns a full listing of a function body.
func (t *OpcodeTable) Disassemble(body []Instruction) string {
	lines := make([]string, len(body))
	for i, ins := range body {
		lines[i] = t.FormatInstruction(ins)
	}
	return strings.Join(lines, "\n")
}
