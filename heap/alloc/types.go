package alloc

// Addr is the address of a byte inside a donated region or a pool.
type Addr = uintptr

// Allocator is the byte allocation contract served by this package.
//
// Implementations:
//   - FreeListAllocator: best-fit free list with an optional size-class accelerator
//   - global.Heap: serialized facade that grows a FreeListAllocator on demand
type Allocator interface {
	// Alloc returns the address of size bytes aligned to align, together with
	// a slice over exactly those bytes. align must be a power of two.
	Alloc(size, align uint64) (Addr, []byte, error)

	// Dealloc releases an allocation. size and align must match the Alloc
	// call that produced ptr; violations panic with a *Fault.
	Dealloc(ptr Addr, size, align uint64)

	// TotalBytes is the capacity of every donated region plus pool storage.
	TotalBytes() uint64

	// UsedBytes is the footprint of live blocks plus touched pools.
	UsedBytes() uint64

	// AvailableBytes is TotalBytes - UsedBytes.
	AvailableBytes() uint64
}

// Block describes one block found while walking a region.
type Block struct {
	Header    Addr   // address of the block header
	Payload   Addr   // Header + format.HeaderSize
	Size      uint64 // payload bytes, excluding the header
	Allocated bool
	Requested uint64 // caller's requested size, allocated blocks only
	Region    int    // index of the owning region
}

// End returns the address one past the block's payload.
func (b Block) End() Addr { return b.Payload + Addr(b.Size) }

// RegionInfo describes one donated region.
type RegionInfo struct {
	Start Addr
	Len   uint64
}
