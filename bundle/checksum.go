package bundle

import (
	"fmt"
	"hash/crc32"
)

// ---------------------------------------------------------------------------
// Payload checksum
// ---------------------------------------------------------------------------

// Checksum computes the CRC32 (IEEE) of a payload region.
func Checksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// VerifyChecksum compares an expected checksum against the actual one and
// fails with ErrChecksumMismatch carrying both values.
func VerifyChecksum(expected, actual uint32) error {
	if expected != actual {
		return fmt.Errorf("%w: header declares %08x, payload hashes to %08x", ErrChecksumMismatch, expected, actual)
	}
	return nil
}
