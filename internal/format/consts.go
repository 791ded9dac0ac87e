// Package format holds the byte layout of heap block headers and the
// low-level helpers used to read and write them. Everything that touches raw
// header bytes goes through this package so offset arithmetic lives in one
// place.
package format

const (
	// HeaderSize is the number of bytes of metadata preceding every block
	// payload, free or allocated.
	//
	// Layout (little-endian):
	//   0x00  int64   size word: payload bytes, negative when allocated
	//   0x08  uint64  link word: next free block address, or requested size
	HeaderSize = 16

	// SizeWordOffset is the offset of the size word within a header.
	SizeWordOffset = 0x00

	// LinkWordOffset is the offset of the link word within a header.
	LinkWordOffset = 0x08

	// HeaderAlignment is the required alignment of every header address.
	HeaderAlignment = 8

	// HeaderAlignmentMask is HeaderAlignment-1.
	HeaderAlignmentMask = HeaderAlignment - 1

	// Granule is the unit payload sizes are rounded to. Keeping it equal to
	// HeaderAlignment means a header carved right after any payload is
	// already aligned.
	Granule = HeaderAlignment

	// MinSplitPayload is the smallest payload a block carved off by a split
	// may have.
	MinSplitPayload = Granule

	// NilLink terminates the free list.
	NilLink = 0
)
