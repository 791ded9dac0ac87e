// Package alloc provides a byte heap allocator over caller-donated memory regions.
//
// # Overview
//
// This package is the bottom of a memory hierarchy: it has no allocator
// beneath it. Callers donate raw regions ([]byte) and the allocator carves
// them into blocks, each preceded by a 16-byte header written inside the
// region itself. Nothing about a block is stored outside the arena.
//
// # Allocator Interface
//
// The core abstraction is the Allocator interface:
//
//   - Alloc(size, align): allocate size bytes at a power-of-two alignment
//   - Dealloc(ptr, size, align): release an allocation
//   - TotalBytes / UsedBytes / AvailableBytes: O(1) accounting
//
// FreeListAllocator additionally exposes Init and AddMemory for donating
// regions, and Walk, Verify, Stats and Dump for inspection.
//
// # Usage Example
//
//	fa, err := alloc.New(nil) // DefaultConfig
//	if err != nil {
//	    return err
//	}
//	fa.Init(make([]byte, 1<<20))
//
//	ptr, buf, err := fa.Alloc(256, 16)
//	if err != nil {
//	    return err
//	}
//	copy(buf, payload)
//
//	fa.Dealloc(ptr, 256, 16)
//
// # Block Header
//
//	0x00  int64   size word: payload bytes; negative while allocated
//	0x08  uint64  link word: next free header (free) or requested size (allocated)
//
// The header always sits at payload - 16. Sizes never include the header.
//
// # Free List
//
// Free blocks form a singly linked list kept in address order. Alloc takes
// the smallest block that fits (best fit, earlier block on ties, exact match
// stops the search), splits off a free tail when the surplus exceeds one
// header, and leaves any alignment lead behind as a free prefix. Dealloc
// links the block back in and coalesces: list neighbours merge when they are
// also physical neighbours inside the same region, so blocks never merge
// across region boundaries.
//
// # Size-Class Accelerator
//
// With pools enabled (the default), requests are first offered to up to 8
// one-shot pools (32 B to 512 KiB). The smallest class that covers both size
// and alignment serves the request once; afterwards that class declines and
// the free list is used. Deallocating a pool address is a no-op and the pool
// is never reused:
//
//	Class 0:     32 bytes
//	Class 1:    128 bytes
//	Class 2:    512 bytes
//	Class 3:      2 KB
//	Class 4:      8 KB
//	Class 5:     32 KB
//	Class 6:    128 KB
//	Class 7:    512 KB
//
// Pool capacity counts toward TotalBytes from construction and toward
// UsedBytes from first use.
//
// # Errors
//
// Running out of memory is an ordinary error (ErrNoMemory). Contract
// violations (double free, mismatched size, undersized Init region, use
// before Init) panic with a *Fault, since the heap can no longer be trusted.
//
// # Thread Safety
//
// Allocator instances are not thread-safe. Callers must synchronize access
// externally or use the global package.
//
// # Related Packages
//
//   - github.com/joshuapare/kheap/heap/global: serialized, self-growing facade
//   - github.com/joshuapare/kheap/heap/metrics: Prometheus collector
//   - github.com/joshuapare/kheap/internal/format: header layout and alignment
package alloc
