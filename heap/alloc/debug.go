package alloc

import (
	"fmt"
	"io"
	"os"
)

// Runtime debug flag for allocation logging - controlled by KHEAP_LOG_ALLOC env var.
var logAlloc = os.Getenv("KHEAP_LOG_ALLOC") != ""

// debugLogf prints allocator trace messages to stderr.
func debugLogf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[ALLOC] "+format+"\n", args...)
}

// Dump writes a map of every region, block and pool to w.
func (fa *FreeListAllocator) Dump(w io.Writer) error {
	s := fa.Stats()
	if _, err := fmt.Fprintf(w, "=== HEAP (%s) total=%d used=%d available=%d live=%d ===\n",
		fa.cfg.Name, s.TotalBytes, s.UsedBytes, s.AvailableBytes, s.AllocationCount); err != nil {
		return err
	}
	for i, r := range fa.arena.regions {
		if _, err := fmt.Fprintf(w, "region %d [%#x, %#x) %d bytes\n", i, r.start, r.end(), len(r.mem)); err != nil {
			return err
		}
	}
	var werr error
	err := fa.Walk(func(b Block) bool {
		state := "free"
		if b.Allocated {
			state = fmt.Sprintf("used (requested %d)", b.Requested)
		}
		_, werr = fmt.Fprintf(w, "  %#x  %8d  %s\n", b.Header, b.Size, state)
		return werr == nil
	})
	if err != nil {
		return err
	}
	if werr != nil {
		return werr
	}
	for _, p := range fa.pools {
		state := "unused"
		if p.used {
			state = fmt.Sprintf("used at %#x", p.base)
		}
		if _, err := fmt.Fprintf(w, "pool %8d  %s\n", p.capacity, state); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "free blocks=%d largest=%d fragmentation=%.1f%%\n",
		s.FreeBlocks, s.LargestFree, 100*s.Fragmentation)
	return err
}
