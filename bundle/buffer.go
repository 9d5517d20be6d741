package bundle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Reader: cursor-based binary decoding
// ---------------------------------------------------------------------------

// Reader decodes fixed-width integers, varints, and length-prefixed byte
// runs from a byte slice. The slice may be an owned buffer or a borrowed
// view into a memory mapping; the Reader never copies or mutates it.
//
// All multi-byte integers are little-endian. Reads past the end of the
// data fail with ErrUnexpectedEOF and leave the cursor unchanged; no
// partial reads are returned.
type Reader struct {
	data []byte
	off  int
}

// NewReader creates a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the current cursor position.
func (r *Reader) Offset() int {
	return r.off
}

// Seek sets the cursor position.
func (r *Reader) Seek(off int) {
	r.off = off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// eof builds an ErrUnexpectedEOF with the failing offset and need.
func (r *Reader) eof(n int) error {
	return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrUnexpectedEOF, n, r.off, len(r.data)-r.off)
}

// ReadU8 reads an unsigned 8-bit integer.
func (r *Reader) ReadU8() (uint8, error) {
	if r.off+1 > len(r.data) {
		return 0, r.eof(1)
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

// ReadU16 reads an unsigned 16-bit integer.
func (r *Reader) ReadU16() (uint16, error) {
	if r.off+2 > len(r.data) {
		return 0, r.eof(2)
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

// ReadU32 reads an unsigned 32-bit integer.
func (r *Reader) ReadU32() (uint32, error) {
	if r.off+4 > len(r.data) {
		return 0, r.eof(4)
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

// ReadU64 reads an unsigned 64-bit integer.
func (r *Reader) ReadU64() (uint64, error) {
	if r.off+8 > len(r.data) {
		return 0, r.eof(8)
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v, nil
}

// ReadI8 reads a signed 8-bit integer.
func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

// ReadI16 reads a signed 16-bit integer.
func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

// ReadI32 reads a signed 32-bit integer.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadI64 reads a signed 64-bit integer.
func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadF32 reads a 32-bit float.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

// ReadF64 reads a 64-bit float.
func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	return math.Float64frombits(v), err
}

// ReadVarUint reads a variable-length unsigned integer.
// Uses 7 bits per byte with the high bit as continuation flag.
func (r *Reader) ReadVarUint() (uint64, error) {
	var v uint64
	var shift uint
	for i := r.off; i < len(r.data); i++ {
		b := r.data[i]
		if shift >= 64 {
			return 0, fmt.Errorf("%w: varint overflow at offset %d", ErrCorruptHeader, r.off)
		}
		v |= uint64(b&0x7F) << shift
		if b < 0x80 {
			r.off = i + 1
			return v, nil
		}
		shift += 7
	}
	return 0, r.eof(1)
}

// ReadVarInt reads a zigzag-encoded variable-length signed integer.
func (r *Reader) ReadVarInt() (int64, error) {
	uv, err := r.ReadVarUint()
	if err != nil {
		return 0, err
	}
	return int64((uv >> 1) ^ -(uv & 1)), nil
}

// ReadBytes reads n raw bytes. The returned slice aliases the underlying
// data; callers that need an independent copy must make one.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.data) {
		return nil, r.eof(n)
	}
	b := r.data[r.off : r.off+n : r.off+n]
	r.off += n
	return b, nil
}

// ReadPrefixedBytes reads a varint length followed by that many bytes.
func (r *Reader) ReadPrefixedBytes() ([]byte, error) {
	length, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	if length > uint64(len(r.data)-r.off) {
		return nil, r.eof(int(length))
	}
	return r.ReadBytes(int(length))
}

// ReadString reads a varint length-prefixed string, copying the content.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadPrefixedBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ---------------------------------------------------------------------------
// Writer: append-only binary encoding with back-patch support
// ---------------------------------------------------------------------------

// Writer encodes the bundle wire format into a growable buffer.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Bytes returns the written bytes. The slice is valid until the next write
// and may be mutated in place for header back-patching.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// WriteU8 writes an unsigned 8-bit integer.
func (w *Writer) WriteU8(v uint8) {
	w.buf.WriteByte(v)
}

// WriteU16 writes an unsigned 16-bit integer.
func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// WriteU32 writes an unsigned 32-bit integer.
func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteU64 writes an unsigned 64-bit integer.
func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteI8 writes a signed 8-bit integer.
func (w *Writer) WriteI8(v int8) {
	w.WriteU8(uint8(v))
}

// WriteI16 writes a signed 16-bit integer.
func (w *Writer) WriteI16(v int16) {
	w.WriteU16(uint16(v))
}

// WriteI32 writes a signed 32-bit integer.
func (w *Writer) WriteI32(v int32) {
	w.WriteU32(uint32(v))
}

// WriteI64 writes a signed 64-bit integer.
func (w *Writer) WriteI64(v int64) {
	w.WriteU64(uint64(v))
}

// WriteF32 writes a 32-bit float.
func (w *Writer) WriteF32(v float32) {
	w.WriteU32(math.Float32bits(v))
}

// WriteF64 writes a 64-bit float.
func (w *Writer) WriteF64(v float64) {
	w.WriteU64(math.Float64bits(v))
}

// WriteVarUint writes a variable-length unsigned integer.
func (w *Writer) WriteVarUint(v uint64) {
	for v >= 0x80 {
		w.buf.WriteByte(byte(v) | 0x80)
		v >>= 7
	}
	w.buf.WriteByte(byte(v))
}

// WriteVarInt writes a zigzag-encoded variable-length signed integer.
func (w *Writer) WriteVarInt(v int64) {
	w.WriteVarUint(uint64((v << 1) ^ (v >> 63)))
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf.Write(b)
}

// WritePrefixedBytes writes a varint length followed by the bytes.
func (w *Writer) WritePrefixedBytes(b []byte) {
	w.WriteVarUint(uint64(len(b)))
	w.buf.Write(b)
}

// WriteString writes a varint length-prefixed string.
func (w *Writer) WriteString(s string) {
	w.WriteVarUint(uint64(len(s)))
	w.buf.WriteString(s)
}

// PatchU32 overwrites a previously written uint32 at the given offset.
func (w *Writer) PatchU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(w.buf.Bytes()[off:], v)
}

// PatchU64 overwrites a previously written uint64 at the given offset.
func (w *Writer) PatchU64(off int, v uint64) {
	binary.LittleEndian.PutUint64(w.buf.Bytes()[off:], v)
}

// varUintSize returns the encoded size of a varint value.
func varUintSize(v uint64) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}
	return n
}
