// Package bundle implements the Corvid script bundle codec.
//
// This package contains:
//   - Binary decoding/encoding of compiled script bundles
//   - Deduplicated string pool and handle-addressed definition pool
//   - Table-driven bytecode instruction codec
//   - CRC32 payload integrity checking
//   - Owned-buffer and memory-mapped (zero-copy) view modes
package bundle
