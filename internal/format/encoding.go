package format

import "encoding/binary"

// Binary encoding utilities for header words.
//
// Headers are always written little-endian regardless of the host, so a
// dump of the arena reads the same everywhere.

// PutI64 writes an int64 value to b at off in little-endian format.
func PutI64(b []byte, off int, v int64) {
	binary.LittleEndian.PutUint64(b[off:off+8], uint64(v))
}

// PutU64 writes a uint64 value to b at off in little-endian format.
func PutU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

// ReadI64 reads an int64 value from b at off in little-endian format.
func ReadI64(b []byte, off int) int64 {
	return int64(binary.LittleEndian.Uint64(b[off : off+8]))
}

// ReadU64 reads a uint64 value from b at off in little-endian format.
func ReadU64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}

// Header is the decoded form of a block header.
type Header struct {
	Size      uint64 // payload bytes, excluding the header
	Allocated bool
	Link      uint64 // next free address when free, requested size when allocated
}

// DecodeHeader decodes the header starting at b[off].
func DecodeHeader(b []byte, off int) (Header, error) {
	if off < 0 || off+HeaderSize > len(b) {
		return Header{}, ErrTruncated
	}
	raw := ReadI64(b, off+SizeWordOffset)
	h := Header{Link: ReadU64(b, off+LinkWordOffset)}
	if raw < 0 {
		h.Allocated = true
		raw = -raw
	}
	h.Size = uint64(raw)
	return h, nil
}

// EncodeHeader writes h at b[off].
func EncodeHeader(b []byte, off int, h Header) {
	raw := int64(h.Size)
	if h.Allocated {
		raw = -raw
	}
	PutI64(b, off+SizeWordOffset, raw)
	PutU64(b, off+LinkWordOffset, h.Link)
}
