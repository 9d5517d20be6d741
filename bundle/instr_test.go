package bundle

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Body round trips
// ---------------------------------------------------------------------------

func TestBodyRoundTripSimple(t *testing.T) {
	table := DefaultTable()
	w := NewWriter()
	w.WriteU8(byte(OpI32Const))
	w.WriteI32(42)
	w.WriteU8(byte(OpStrConst))
	w.WriteU32(3)
	w.WriteU8(byte(OpReturn))
	code := w.Bytes()

	body, err := DecodeBody(code, table)
	if err != nil {
		t.Fatalf("DecodeBody failed: %v", err)
	}
	if len(body) != 3 {
		t.Fatalf("decoded %d instructions, want 3", len(body))
	}
	if body[0].Op != OpI32Const || body[0].Operands[0].Int != 42 {
		t.Errorf("instruction 0 = %+v", body[0])
	}
	if body[1].Op != OpStrConst || body[1].Operands[0].Handle() != 3 {
		t.Errorf("instruction 1 = %+v", body[1])
	}
	if body[1].Offset != 5 {
		t.Errorf("instruction 1 offset = %d, want 5", body[1].Offset)
	}

	out, err := EncodeBody(body, table)
	if err != nil {
		t.Fatalf("EncodeBody failed: %v", err)
	}
	if !bytes.Equal(out, code) {
		t.Errorf("re-encoded body differs:\n got % x\nwant % x", out, code)
	}
}

// Jump offsets must survive a decode/encode cycle in their exact relative
// form, forward and backward.
func TestBodyRoundTripJumps(t *testing.T) {
	table := DefaultTable()
	w := NewWriter()
	// 0000: JUMP +4            -> 0007
	w.WriteU8(byte(OpJump))
	w.WriteI16(4)
	// 0003: I8_CONST 1
	w.WriteU8(byte(OpI8Const))
	w.WriteI8(1)
	// 0005: NOP, NOP
	w.WriteU8(byte(OpNop))
	w.WriteU8(byte(OpNop))
	// 0007: JUMP_IF_FALSE -10  -> 0000
	w.WriteU8(byte(OpJumpIfFalse))
	w.WriteI16(-10)
	// 0010: RETURN
	w.WriteU8(byte(OpReturn))
	code := w.Bytes()

	body, err := DecodeBody(code, table)
	if err != nil {
		t.Fatalf("DecodeBody failed: %v", err)
	}

	if body[0].Operands[0].Int != 4 {
		t.Errorf("forward jump operand = %d, want 4", body[0].Operands[0].Int)
	}
	if got := table.Target(body[0], 0); got != 7 {
		t.Errorf("forward jump target = %d, want 7", got)
	}
	if body[4].Operands[0].Int != -10 {
		t.Errorf("backward jump operand = %d, want -10", body[4].Operands[0].Int)
	}
	if got := table.Target(body[4], 0); got != 0 {
		t.Errorf("backward jump target = %d, want 0", got)
	}

	out, err := EncodeBody(body, table)
	if err != nil {
		t.Fatalf("EncodeBody failed: %v", err)
	}
	if !bytes.Equal(out, code) {
		t.Errorf("jump body not byte-stable:\n got % x\nwant % x", out, code)
	}
}

func TestBodyRoundTripVariableOperands(t *testing.T) {
	table := DefaultTable()
	ins := []Instruction{
		{Op: OpProfile, Operands: []Operand{BytesOp([]byte("hot/loop")), IntOp(OpdU8, 1)}},
		{Op: OpF64Const, Operands: []Operand{FloatOp(OpdF64, 2.25)}},
		{Op: OpReturn},
	}

	code, err := EncodeBody(ins, table)
	if err != nil {
		t.Fatalf("EncodeBody failed: %v", err)
	}
	body, err := DecodeBody(code, table)
	if err != nil {
		t.Fatalf("DecodeBody failed: %v", err)
	}
	if string(body[0].Operands[0].Bytes) != "hot/loop" {
		t.Errorf("bytes operand = %q", body[0].Operands[0].Bytes)
	}
	if body[1].Operands[0].Float != 2.25 {
		t.Errorf("float operand = %v", body[1].Operands[0].Float)
	}

	out, err := EncodeBody(body, table)
	if err != nil {
		t.Fatalf("re-encode failed: %v", err)
	}
	if !bytes.Equal(out, code) {
		t.Error("variable-operand body not byte-stable")
	}
}

// ---------------------------------------------------------------------------
// Decode failures
// ---------------------------------------------------------------------------

func TestDecodeBodyUnknownOpcode(t *testing.T) {
	table := DefaultTable()
	w := NewWriter()
	w.WriteU8(byte(OpNop))
	w.WriteU8(byte(OpI8Const))
	w.WriteI8(5)
	w.WriteU8(0xEE) // not in the table

	_, err := DecodeBody(w.Bytes(), table)
	if !errors.Is(err, ErrUnknownOpcode) {
		t.Fatalf("err = %v, want ErrUnknownOpcode", err)
	}
	// The error names the bad byte and its exact offset.
	if !strings.Contains(err.Error(), "0xEE") || !strings.Contains(err.Error(), "offset 3") {
		t.Errorf("error lacks byte/offset detail: %v", err)
	}
}

func TestDecodeBodyTruncatedOperand(t *testing.T) {
	table := DefaultTable()
	w := NewWriter()
	w.WriteU8(byte(OpI32Const))
	w.WriteU8(0x01) // only 1 of 4 operand bytes

	_, err := DecodeBody(w.Bytes(), table)
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("err = %v, want ErrUnexpectedEOF", err)
	}
}

// ---------------------------------------------------------------------------
// Encode failures
// ---------------------------------------------------------------------------

func TestEncodeBodyOperandMismatch(t *testing.T) {
	table := DefaultTable()

	_, err := EncodeBody([]Instruction{{Op: OpI32Const}}, table)
	if err == nil {
		t.Error("missing operand accepted")
	}

	_, err = EncodeBody([]Instruction{
		{Op: OpI32Const, Operands: []Operand{IntOp(OpdU8, 1)}},
	}, table)
	if err == nil {
		t.Error("wrong operand kind accepted")
	}

	_, err = EncodeBody([]Instruction{{Op: Opcode(0xEE)}}, table)
	if !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("unknown opcode err = %v, want ErrUnknownOpcode", err)
	}
}

// ---------------------------------------------------------------------------
// Sizes and disassembly
// ---------------------------------------------------------------------------

func TestEncodedSize(t *testing.T) {
	table := DefaultTable()
	cases := []struct {
		ins  Instruction
		want int
	}{
		{Instruction{Op: OpNop}, 1},
		{Instruction{Op: OpJump, Operands: []Operand{OffsetOp(0)}}, 3},
		{Instruction{Op: OpInvokeStatic, Operands: []Operand{
			OffsetOp(0), IntOp(OpdU16, 1), HandleOp(OpdDef, 2), IntOp(OpdU16, 0),
		}}, 11},
		{Instruction{Op: OpProfile, Operands: []Operand{BytesOp([]byte("abc")), IntOp(OpdU8, 1)}}, 6},
	}
	for _, c := range cases {
		if got := table.EncodedSize(c.ins); got != c.want {
			t.Errorf("EncodedSize(%s) = %d, want %d", table.Name(c.ins.Op), got, c.want)
		}
	}
}

func TestFormatInstruction(t *testing.T) {
	table := DefaultTable()
	w := NewWriter()
	w.WriteU8(byte(OpJump))
	w.WriteI16(4)
	w.WriteU8(byte(OpStrConst))
	w.WriteU32(2)
	body, err := DecodeBody(w.Bytes(), table)
	if err != nil {
		t.Fatal(err)
	}

	got := table.FormatInstruction(body[0])
	if got != "0000  JUMP +4 (-> 0007)" {
		t.Errorf("FormatInstruction = %q", got)
	}
	got = table.FormatInstruction(body[1])
	if got != "0003  STR_CONST str:2" {
		t.Errorf("FormatInstruction = %q", got)
	}

	listing := table.Disassemble(body)
	if !strings.Contains(listing, "JUMP") || !strings.Contains(listing, "STR_CONST") {
		t.Errorf("Disassemble = %q", listing)
	}
}
