package bundle

import "errors"

// ---------------------------------------------------------------------------
// Codec Error Types
// ---------------------------------------------------------------------------

var (
	ErrInvalidMagic              = errors.New("invalid magic number: expected CRVB")
	ErrVersionMismatch           = errors.New("bundle version mismatch")
	ErrCorruptHeader             = errors.New("corrupt bundle header")
	ErrUnexpectedEOF             = errors.New("unexpected end of bundle data")
	ErrChecksumMismatch          = errors.New("payload checksum mismatch")
	ErrInvalidHandle             = errors.New("invalid pool handle")
	ErrUnsupportedDefinitionKind = errors.New("unsupported definition kind")
	ErrUnknownOpcode             = errors.New("unknown opcode")
	ErrDanglingReference         = errors.New("dangling pool reference")
	ErrBundleClosed              = errors.New("bundle backing storage released")
)
