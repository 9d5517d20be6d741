package bundle

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies a single bytecode instruction.
type Opcode byte

// Constants and literals
const (
	OpNop       Opcode = 0x00 // no operation
	OpNull      Opcode = 0x01 // push null reference
	OpTrue      Opcode = 0x02 // push true
	OpFalse     Opcode = 0x03 // push false
	OpI8Const   Opcode = 0x04 // push 8-bit signed integer
	OpI16Const  Opcode = 0x05 // push 16-bit signed integer
	OpI32Const  Opcode = 0x06 // push 32-bit signed integer
	OpI64Const  Opcode = 0x07 // push 64-bit signed integer
	OpU8Const   Opcode = 0x08 // push 8-bit unsigned integer
	OpU16Const  Opcode = 0x09 // push 16-bit unsigned integer
	OpU32Const  Opcode = 0x0A // push 32-bit unsigned integer
	OpU64Const  Opcode = 0x0B // push 64-bit unsigned integer
	OpF32Const  Opcode = 0x0C // push 32-bit float
	OpF64Const  Opcode = 0x0D // push 64-bit float
	OpStrConst  Opcode = 0x0E // push interned string (string handle)
	OpEnumConst Opcode = 0x0F // push enum value (enum handle, member handle)
)

// Values and assignment
const (
	OpAssign Opcode = 0x10 // assign top of stack to assignable
	OpLocal  Opcode = 0x11 // load local (local handle)
	OpParam  Opcode = 0x12 // load parameter (parameter handle)
	OpField  Opcode = 0x13 // load object field (field handle)
	OpThis   Opcode = 0x14 // push current receiver
)

// Object lifecycle and calls
const (
	OpNew           Opcode = 0x15 // allocate instance (class handle)
	OpDelete        Opcode = 0x16 // release instance
	OpConstruct     Opcode = 0x17 // construct value (arg count, type handle)
	OpInvokeStatic  Opcode = 0x18 // call by function handle (exit offset, line, function, call flags)
	OpInvokeVirtual Opcode = 0x19 // call by name (exit offset, line, name handle, call flags)
	OpParamEnd      Opcode = 0x1A // argument list terminator
	OpReturn        Opcode = 0x1B // return from function
)

// Control flow. Jump operands are signed byte offsets relative to the
// position immediately after the instruction's own encoding.
const (
	OpJump          Opcode = 0x1C // unconditional jump
	OpJumpIfFalse   Opcode = 0x1D // pop, jump if false
	OpSkip          Opcode = 0x1E // skip over inlined expression
	OpConditional   Opcode = 0x1F // ternary (false branch offset, exit offset)
	OpSwitch        Opcode = 0x20 // switch dispatch (scrutinee type, first case offset)
	OpSwitchLabel   Opcode = 0x21 // case label (next case offset, body offset)
	OpSwitchDefault Opcode = 0x22 // default case marker
)

// Conversions and runtime queries
const (
	OpEquals      Opcode = 0x23 // structural equality (type handle)
	OpNotEquals   Opcode = 0x24 // structural inequality (type handle)
	OpDynamicCast Opcode = 0x25 // checked downcast (class handle, cast flags)
	OpEnumToInt   Opcode = 0x26 // enum -> integer (enum type handle, width)
	OpIntToEnum   Opcode = 0x27 // integer -> enum (enum type handle, width)
	OpToString    Opcode = 0x28 // value -> string (type handle)
	OpToVariant   Opcode = 0x29 // box into variant (type handle)
	OpFromVariant Opcode = 0x2A // unbox from variant (type handle)
	OpRefToBool   Opcode = 0x2B // reference null test
	OpWeakToRef   Opcode = 0x2C // upgrade weak reference
	OpRefToWeak   Opcode = 0x2D // downgrade to weak reference
)

// Array intrinsics
const (
	OpArrayClear   Opcode = 0x2E // clear array (array type handle)
	OpArraySize    Opcode = 0x2F // array length (array type handle)
	OpArrayResize  Opcode = 0x30 // resize array (array type handle)
	OpArrayPush    Opcode = 0x31 // append element (array type handle)
	OpArrayPop     Opcode = 0x32 // remove last element (array type handle)
	OpArrayElement Opcode = 0x33 // index element (array type handle)
)

// Debug support
const (
	OpBreakpoint Opcode = 0x34 // debugger breakpoint site
	OpProfile    Opcode = 0x35 // profiling probe (name bytes, enabled)
)

// ---------------------------------------------------------------------------
// Operand shapes
// ---------------------------------------------------------------------------

// OperandKind describes the wire encoding of one instruction operand.
type OperandKind uint8

const (
	OpdU8     OperandKind = iota + 1 // unsigned 8-bit
	OpdI8                            // signed 8-bit
	OpdU16                           // unsigned 16-bit
	OpdI16                           // signed 16-bit
	OpdU32                           // unsigned 32-bit
	OpdI32                           // signed 32-bit
	OpdU64                           // unsigned 64-bit
	OpdI64                           // signed 64-bit
	OpdF32                           // 32-bit float
	OpdF64                           // 64-bit float
	OpdString                        // string pool handle, 32-bit
	OpdDef                           // definition pool handle, 32-bit
	OpdOffset                        // signed 16-bit relative jump offset
	OpdBytes                         // varint length-prefixed byte run
)

// fixedSize returns the encoded operand size, or -1 for variable-size
// operands.
func (k OperandKind) fixedSize() int {
	switch k {
	case OpdU8, OpdI8:
		return 1
	case OpdU16, OpdI16, OpdOffset:
		return 2
	case OpdU32, OpdI32, OpdF32, OpdString, OpdDef:
		return 4
	case OpdU64, OpdI64, OpdF64:
		return 8
	default:
		return -1
	}
}

// OpcodeInfo holds the name and operand shape of one opcode.
type OpcodeInfo struct {
	Name     string
	Operands []OperandKind
}

// ---------------------------------------------------------------------------
// OpcodeTable: injectable opcode specification
// ---------------------------------------------------------------------------

// OpcodeTable maps opcode bytes to their operand shapes. The table is a
// format-version concern: the bundle codec walks instruction streams
// purely by table lookup, so supporting a future format version means
// supplying a different table, not changing codec control flow.
type OpcodeTable struct {
	version uint32
	infos   [256]*OpcodeInfo
}

// NewOpcodeTable creates an empty table for a format version.
func NewOpcodeTable(version uint32) *OpcodeTable {
	return &OpcodeTable{version: version}
}

// Version returns the format version the table describes.
func (t *OpcodeTable) Version() uint32 {
	return t.version
}

// Define registers an opcode. Redefining a tag replaces the prior entry.
func (t *OpcodeTable) Define(op Opcode, name string, operands ...OperandKind) {
	t.infos[op] = &OpcodeInfo{Name: name, Operands: operands}
}

// Info returns the metadata for an opcode, or nil if the opcode is not in
// the table.
func (t *OpcodeTable) Info(op Opcode) *OpcodeInfo {
	return t.infos[op]
}

// Name returns the opcode mnemonic, or a hex placeholder for unknown tags.
func (t *OpcodeTable) Name(op Opcode) string {
	if info := t.infos[op]; info != nil {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN_%02X", byte(op))
}

// defaultTable is the built-in opcode specification for the current
// format version.
var defaultTable = buildDefaultTable()

// DefaultTable returns the built-in opcode table for BundleVersion.
func DefaultTable() *OpcodeTable {
	return defaultTable
}

func buildDefaultTable() *OpcodeTable {
	t := NewOpcodeTable(BundleVersion)

	t.Define(OpNop, "NOP")
	t.Define(OpNull, "NULL")
	t.Define(OpTrue, "TRUE")
	t.Define(OpFalse, "FALSE")
	t.Define(OpI8Const, "I8_CONST", OpdI8)
	t.Define(OpI16Const, "I16_CONST", OpdI16)
	t.Define(OpI32Const, "I32_CONST", OpdI32)
	t.Define(OpI64Const, "I64_CONST", OpdI64)
	t.Define(OpU8Const, "U8_CONST", OpdU8)
	t.Define(OpU16Const, "U16_CONST", OpdU16)
	t.Define(OpU32Const, "U32_CONST", OpdU32)
	t.Define(OpU64Const, "U64_CONST", OpdU64)
	t.Define(OpF32Const, "F32_CONST", OpdF32)
	t.Define(OpF64Const, "F64_CONST", OpdF64)
	t.Define(OpStrConst, "STR_CONST", OpdString)
	t.Define(OpEnumConst, "ENUM_CONST", OpdDef, OpdDef)

	t.Define(OpAssign, "ASSIGN")
	t.Define(OpLocal, "LOCAL", OpdDef)
	t.Define(OpParam, "PARAM", OpdDef)
	t.Define(OpField, "FIELD", OpdDef)
	t.Define(OpThis, "THIS")

	t.Define(OpNew, "NEW", OpdDef)
	t.Define(OpDelete, "DELETE")
	t.Define(OpConstruct, "CONSTRUCT", OpdU8, OpdDef)
	t.Define(OpInvokeStatic, "INVOKE_STATIC", OpdOffset, OpdU16, OpdDef, OpdU16)
	t.Define(OpInvokeVirtual, "INVOKE_VIRTUAL", OpdOffset, OpdU16, OpdString, OpdU16)
	t.Define(OpParamEnd, "PARAM_END")
	t.Define(OpReturn, "RETURN")

	t.Define(OpJump, "JUMP", OpdOffset)
	t.Define(OpJumpIfFalse, "JUMP_IF_FALSE", OpdOffset)
	t.Define(OpSkip, "SKIP", OpdOffset)
	t.Define(OpConditional, "CONDITIONAL", OpdOffset, OpdOffset)
	t.Define(OpSwitch, "SWITCH", OpdDef, OpdOffset)
	t.Define(OpSwitchLabel, "SWITCH_LABEL", OpdOffset, OpdOffset)
	t.Define(OpSwitchDefault, "SWITCH_DEFAULT")

	t.Define(OpEquals, "EQUALS", OpdDef)
	t.Define(OpNotEquals, "NOT_EQUALS", OpdDef)
	t.Define(OpDynamicCast, "DYNAMIC_CAST", OpdDef, OpdU8)
	t.Define(OpEnumToInt, "ENUM_TO_INT", OpdDef, OpdU8)
	t.Define(OpIntToEnum, "INT_TO_ENUM", OpdDef, OpdU8)
	t.Define(OpToString, "TO_STRING", OpdDef)
	t.Define(OpToVariant, "TO_VARIANT", OpdDef)
	t.Define(OpFromVariant, "FROM_VARIANT", OpdDef)
	t.Define(OpRefToBool, "REF_TO_BOOL")
	t.Define(OpWeakToRef, "WEAK_TO_REF")
	t.Define(OpRefToWeak, "REF_TO_WEAK")

	t.Define(OpArrayClear, "ARRAY_CLEAR", OpdDef)
	t.Define(OpArraySize, "ARRAY_SIZE", OpdDef)
	t.Define(OpArrayResize, "ARRAY_RESIZE", OpdDef)
	t.Define(OpArrayPush, "ARRAY_PUSH", OpdDef)
	t.Define(OpArrayPop, "ARRAY_POP", OpdDef)
	t.Define(OpArrayElement, "ARRAY_ELEMENT", OpdDef)

	t.Define(OpBreakpoint, "BREAKPOINT", OpdU16, OpdU32, OpdU16, OpdU16, OpdU8, OpdU64)
	t.Define(OpProfile, "PROFILE", OpdBytes, OpdU8)

	return t
}
