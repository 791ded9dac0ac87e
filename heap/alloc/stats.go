package alloc

import "github.com/joshuapare/kheap/internal/format"

// allocatorStats holds internal allocator counters.
type allocatorStats struct {
	AllocCalls   int // Total Alloc() calls
	DeallocCalls int // Total Dealloc() calls
	Failures     int // Alloc() calls that returned ErrNoMemory
	PoolHits     int // Allocations served by a pool
	PoolDeclines int // Pool probes that found their class already used
	PoolReleases int // Deallocs ignored because they hit a pool
	Splits       int // Tail splits
	LeadSplits   int // Alignment prefix splits
	Coalesces    int // Pairwise merges
}

// Stats is a snapshot of allocator counters and free-list shape.
type Stats struct {
	allocatorStats

	TotalBytes      uint64
	UsedBytes       uint64
	AvailableBytes  uint64
	AllocationCount int
	Regions         int
	PoolsInUse      int
	FreeBlocks      int
	FreeBytes       uint64 // payload bytes in free blocks
	LargestFree     uint64
	Fragmentation   float64
}

// Stats returns a snapshot. It walks the free list, so it is O(free blocks).
func (fa *FreeListAllocator) Stats() Stats {
	s := Stats{
		allocatorStats:  fa.stats,
		TotalBytes:      fa.total,
		UsedBytes:       fa.used,
		AvailableBytes:  fa.AvailableBytes(),
		AllocationCount: fa.count,
		Regions:         len(fa.arena.regions),
		PoolsInUse:      fa.PoolsInUse(),
	}
	fa.eachFree(func(_ Addr, size uint64) {
		s.FreeBlocks++
		s.FreeBytes += size
		s.LargestFree = max(s.LargestFree, size)
	})
	if s.FreeBytes > 0 {
		s.Fragmentation = 1 - float64(s.LargestFree)/float64(s.FreeBytes)
	}
	return s
}

// Counters returns a Stats holding only the call counters. It never reads the
// arena, so it is safe after the regions have been released.
func (fa *FreeListAllocator) Counters() Stats {
	return Stats{allocatorStats: fa.stats}
}

func (fa *FreeListAllocator) eachFree(fn func(hdr Addr, size uint64)) {
	for cur := fa.head; cur != format.NilLink; {
		h := fa.arena.header(cur)
		fn(cur, h.Size)
		cur = Addr(h.Link)
	}
}

// FreeBlocks returns the number of blocks on the free list.
func (fa *FreeListAllocator) FreeBlocks() int {
	n := 0
	fa.eachFree(func(Addr, uint64) { n++ })
	return n
}

// LargestFree returns the payload size of the largest free block.
func (fa *FreeListAllocator) LargestFree() uint64 {
	var largest uint64
	fa.eachFree(func(_ Addr, size uint64) { largest = max(largest, size) })
	return largest
}
