package format

// Alignment utilities for heap blocks. Alignments are powers of two; callers
// guarantee that, these helpers do not check it.

// AlignUp returns the smallest multiple of align that is >= v.
//
// Example:
//
//	AlignUp(1, 8)   = 8
//	AlignUp(8, 8)   = 8
//	AlignUp(9, 16)  = 16
//	AlignUp(0, 64)  = 0
func AlignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// AlignUpPtr is AlignUp for addresses.
func AlignUpPtr(v, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}

// Align8 returns n aligned up to the next header boundary.
func Align8(n uint64) uint64 {
	return (n + HeaderAlignmentMask) &^ HeaderAlignmentMask
}

// IsAligned reports whether v is a multiple of align.
func IsAligned(v, align uintptr) bool {
	return v&(align-1) == 0
}

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
