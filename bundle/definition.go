package bundle

// ---------------------------------------------------------------------------
// Definition kinds
// ---------------------------------------------------------------------------

// DefKind tags the variant of a definition record.
type DefKind uint8

const (
	DefType       DefKind = 0x01 // type descriptor
	DefClass      DefKind = 0x02 // class with fields and methods
	DefField      DefKind = 0x03 // class field
	DefFunction   DefKind = 0x04 // function, optionally with a bytecode body
	DefEnum       DefKind = 0x05 // enum with members
	DefEnumMember DefKind = 0x06 // single enum member
	DefParameter  DefKind = 0x07 // function parameter
	DefLocal      DefKind = 0x08 // function local variable
	DefSourceFile DefKind = 0x09 // source file path record
)

// String returns the kind's mnemonic.
func (k DefKind) String() string {
	switch k {
	case DefType:
		return "type"
	case DefClass:
		return "class"
	case DefField:
		return "field"
	case DefFunction:
		return "function"
	case DefEnum:
		return "enum"
	case DefEnumMember:
		return "enum-member"
	case DefParameter:
		return "parameter"
	case DefLocal:
		return "local"
	case DefSourceFile:
		return "source-file"
	default:
		return "unknown"
	}
}

// ---------------------------------------------------------------------------
// Flag bitfields
//
// Flags are stored as fixed-width integers. Only the named bits have
// defined meaning; reserved bits round-trip through decode and encode
// unchanged.
// ---------------------------------------------------------------------------

// Visibility is the two-bit access level shared by class members.
type Visibility uint8

const (
	VisPublic    Visibility = 0
	VisProtected Visibility = 1
	VisPrivate   Visibility = 2
)

// ClassFlags is the packed flag word of a class definition.
type ClassFlags uint16

const (
	ClassIsAbstract ClassFlags = 1 << 2
	ClassIsFinal    ClassFlags = 1 << 3
	ClassIsNative   ClassFlags = 1 << 4
	ClassIsStruct   ClassFlags = 1 << 5
)

// Visibility extracts the access level bits.
func (f ClassFlags) Visibility() Visibility {
	return Visibility(f & 0x3)
}

// FieldFlags is the packed flag word of a field definition.
type FieldFlags uint16

const (
	FieldIsStatic   FieldFlags = 1 << 2
	FieldIsNative   FieldFlags = 1 << 3
	FieldIsEditable FieldFlags = 1 << 4
	FieldIsConst    FieldFlags = 1 << 5
)

// Visibility extracts the access level bits.
func (f FieldFlags) Visibility() Visibility {
	return Visibility(f & 0x3)
}

// FunctionFlags is the packed flag word of a function definition.
type FunctionFlags uint32

const (
	FuncIsStatic   FunctionFlags = 1 << 2
	FuncIsFinal    FunctionFlags = 1 << 3
	FuncIsNative   FunctionFlags = 1 << 4
	FuncIsExec     FunctionFlags = 1 << 5
	FuncIsCallback FunctionFlags = 1 << 6
	FuncIsOperator FunctionFlags = 1 << 7
	FuncHasBody    FunctionFlags = 1 << 8
)

// Visibility extracts the access level bits.
func (f FunctionFlags) Visibility() Visibility {
	return Visibility(f & 0x3)
}

// ParamFlags is the packed flag word of a parameter definition.
type ParamFlags uint8

const (
	ParamIsOptional ParamFlags = 1 << 0
	ParamIsOut      ParamFlags = 1 << 1
	ParamIsConst    ParamFlags = 1 << 2
)

// ---------------------------------------------------------------------------
// Definition records
//
// Cross references between definitions are handle fields, never embedded
// copies. The graph stays acyclic at the ownership level even though the
// logical relationships (class <-> members) point both ways.
// ---------------------------------------------------------------------------

// Definition is one tagged record in the definition pool.
type Definition interface {
	Kind() DefKind
}

// TypeKind classifies a type descriptor.
type TypeKind uint8

const (
	TypePrimitive   TypeKind = 0x00 // built-in scalar, named
	TypeClass       TypeKind = 0x01 // reference to a class definition
	TypeRef         TypeKind = 0x02 // strong reference wrapper
	TypeWeakRef     TypeKind = 0x03 // weak reference wrapper
	TypeArray       TypeKind = 0x04 // dynamically sized array
	TypeStaticArray TypeKind = 0x05 // fixed-size array
)

// Type describes a primitive, class, reference, or array type.
type Type struct {
	Name     Handle   // string pool
	TypeKind TypeKind // descriptor variant
	Element  Handle   // definition pool: element type or class (null for primitives)
	Size     uint32   // static array length, 0 otherwise
}

// Class defines a class: flags, base class, and member handles.
type Class struct {
	Name    Handle // string pool
	Flags   ClassFlags
	Base    Handle   // definition pool: base class, null for roots
	Fields  []Handle // definition pool: field handles
	Methods []Handle // definition pool: function handles
}

// Field defines a class field.
type Field struct {
	Name  Handle // string pool
	Owner Handle // definition pool: owning class
	Type  Handle // definition pool: field type
	Flags FieldFlags
}

// SourceRef locates a function in its source file.
type SourceRef struct {
	File Handle // definition pool: SourceFile, null if unknown
	Line uint32
}

// Function defines a function, optionally with a bytecode body.
type Function struct {
	Name   Handle // string pool
	Owner  Handle // definition pool: owning class, null for globals
	Flags  FunctionFlags
	Return Handle   // definition pool: return type, null for void
	Params []Handle // definition pool: parameter handles
	Locals []Handle // definition pool: local handles
	Source SourceRef
	Body   *FunctionBody // nil when the function has no body
}

// FunctionBody holds a decoded instruction stream.
type FunctionBody struct {
	Code []Instruction
}

// Enum defines an enum and its member handles.
type Enum struct {
	Name       Handle // string pool
	Underlying Handle // definition pool: underlying type
	Size       uint8  // storage width in bytes
	Members    []Handle
}

// EnumMember defines a single named enum value.
type EnumMember struct {
	Name  Handle // string pool
	Owner Handle // definition pool: owning enum
	Value int64
}

// Parameter defines a function parameter.
type Parameter struct {
	Name  Handle // string pool
	Type  Handle // definition pool
	Flags ParamFlags
}

// Local defines a function local variable.
type Local struct {
	Name Handle // string pool
	Type Handle // definition pool
}

// SourceFile records a script source path.
type SourceFile struct {
	Path  Handle // string pool
	Index uint32 // compiler-assigned file ordinal
}

func (*Type) Kind() DefKind       { return DefType }
func (*Class) Kind() DefKind      { return DefClass }
func (*Field) Kind() DefKind      { return DefField }
func (*Function) Kind() DefKind   { return DefFunction }
func (*Enum) Kind() DefKind       { return DefEnum }
func (*EnumMember) Kind() DefKind { return DefEnumMember }
func (*Parameter) Kind() DefKind  { return DefParameter }
func (*Local) Kind() DefKind      { return DefLocal }
func (*SourceFile) Kind() DefKind { return DefSourceFile }
