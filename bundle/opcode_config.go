package bundle

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ---------------------------------------------------------------------------
// TOML-defined opcode tables
// ---------------------------------------------------------------------------

// opcodeConfig is the on-disk shape of an opcode table definition:
//
//	version = 2
//
//	[[opcode]]
//	tag = 0x20
//	name = "JUMP"
//	operands = ["offset"]
type opcodeConfig struct {
	Version uint32         `toml:"version"`
	Opcodes []opcodeRecord `toml:"opcode"`
}

type opcodeRecord struct {
	Tag      uint16   `toml:"tag"`
	Name     string   `toml:"name"`
	Operands []string `toml:"operands"`
}

var operandKindNames = map[string]OperandKind{
	"u8":     OpdU8,
	"i8":     OpdI8,
	"u16":    OpdU16,
	"i16":    OpdI16,
	"u32":    OpdU32,
	"i32":    OpdI32,
	"u64":    OpdU64,
	"i64":    OpdI64,
	"f32":    OpdF32,
	"f64":    OpdF64,
	"string": OpdString,
	"def":    OpdDef,
	"offset": OpdOffset,
	"bytes":  OpdBytes,
}

// ParseOpcodeTable builds an opcode table from TOML data. Custom tables
// let a bundle carry tooling-specific instruction sets without rebuilding;
// decoders and encoders accept any table with the same shape guarantees as
// the built-in one.
func ParseOpcodeTable(data []byte) (*OpcodeTable, error) {
	var cfg opcodeConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse error in opcode table: %w", err)
	}
	if len(cfg.Opcodes) == 0 {
		return nil, fmt.Errorf("opcode table defines no opcodes")
	}

	t := NewOpcodeTable(cfg.Version)
	for _, rec := range cfg.Opcodes {
		if rec.Tag > 0xFF {
			return nil, fmt.Errorf("opcode %q: tag 0x%X out of range", rec.Name, rec.Tag)
		}
		if rec.Name == "" {
			return nil, fmt.Errorf("opcode 0x%02X: missing name", rec.Tag)
		}
		if t.Info(Opcode(rec.Tag)) != nil {
			return nil, fmt.Errorf("opcode %q: tag 0x%02X already defined", rec.Name, rec.Tag)
		}
		kinds := make([]OperandKind, len(rec.Operands))
		for i, name := range rec.Operands {
			kind, ok := operandKindNames[name]
			if !ok {
				return nil, fmt.Errorf("opcode %q: unknown operand kind %q", rec.Name, name)
			}
			kinds[i] = kind
		}
		t.Define(Opcode(rec.Tag), rec.Name, kinds...)
	}
	return t, nil
}

// LoadOpcodeTable reads and parses an opcode table definition file.
func LoadOpcodeTable(path string) (*OpcodeTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	t, err := ParseOpcodeTable(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
