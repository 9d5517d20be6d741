package bundle

import "fmt"

// ---------------------------------------------------------------------------
// Bundle Format Constants
// ---------------------------------------------------------------------------

// BundleMagic is the magic number identifying a Corvid script bundle.
var BundleMagic = [4]byte{'C', 'R', 'V', 'B'}

// Bundle format version
// v1: initial format
// v2: varint handles in definition records, source references on functions
const BundleVersion uint32 = 2

// Bundle header size in bytes
// magic(4) + version(4) + checksum(4) + flags(4) + stringOffset(8) +
// stringCount(4) + defOffset(8) + defCount(4) = 40
const HeaderSize = 40

// PayloadStart is the offset of the first checksummed byte: everything
// after the header's checksum field is payload.
const PayloadStart = 12

// Bundle flags
const (
	BundleFlagNone      uint32 = 0
	BundleFlagDebugInfo uint32 = 1 << 0 // bodies carry breakpoint/profile sites
)

// ---------------------------------------------------------------------------
// Header
// ---------------------------------------------------------------------------

// Header is the fixed-size bundle header. The section offsets locate the
// pools without a linear scan; the checksum covers the payload region.
type Header struct {
	Magic        [4]byte
	Version      uint32
	Checksum     uint32
	Flags        uint32
	StringOffset uint64
	StringCount  uint32
	DefOffset    uint64
	DefCount     uint32
}

// readHeader decodes and validates the fixed-size header.
func readHeader(r *Reader) (Header, error) {
	var h Header
	if r.Remaining() < HeaderSize {
		return h, fmt.Errorf("%w: %d bytes, need %d", ErrCorruptHeader, r.Remaining(), HeaderSize)
	}

	magic, _ := r.ReadBytes(4)
	copy(h.Magic[:], magic)
	if h.Magic != BundleMagic {
		return h, fmt.Errorf("%w: got %q", ErrInvalidMagic, magic)
	}

	h.Version, _ = r.ReadU32()
	if h.Version != BundleVersion {
		return h, fmt.Errorf("%w: expected %d, got %d", ErrVersionMismatch, BundleVersion, h.Version)
	}

	h.Checksum, _ = r.ReadU32()
	h.Flags, _ = r.ReadU32()
	h.StringOffset, _ = r.ReadU64()
	h.StringCount, _ = r.ReadU32()
	h.DefOffset, _ = r.ReadU64()
	h.DefCount, _ = r.ReadU32()
	return h, nil
}

// writeHeader writes the header with placeholder checksum and section
// offsets; both are back-patched once the payload is serialized.
func writeHeader(w *Writer, flags uint32) {
	w.WriteBytes(BundleMagic[:])
	w.WriteU32(BundleVersion)
	w.WriteU32(0) // checksum, patched last
	w.WriteU32(flags)
	w.WriteU64(0) // string pool offset, patched
	w.WriteU32(0) // string pool count, patched
	w.WriteU64(0) // definition pool offset, patched
	w.WriteU32(0) // definition pool count, patched
}

// header field offsets for back-patching
const (
	headerChecksumOff     = 8
	headerStringOffsetOff = 16
	headerStringCountOff  = 24
	headerDefOffsetOff    = 28
	headerDefCountOff     = 36
)
