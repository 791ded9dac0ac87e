package alloc

import (
	"errors"
	"fmt"

	"github.com/joshuapare/kheap/internal/format"
)

// InvariantError reports a broken heap invariant found by Verify.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "alloc: invariant violated: " + e.Msg
}

func invariantf(format string, args ...any) error {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}

// Walk visits every block of every region in address order. Returning false
// from fn stops the walk. Walk fails if a header chain does not tile its
// region exactly.
func (fa *FreeListAllocator) Walk(fn func(Block) bool) error {
	for ri := range fa.arena.regions {
		r := &fa.arena.regions[ri]
		off := 0
		for off < len(r.mem) {
			h, err := format.DecodeHeader(r.mem, off)
			if err != nil {
				return invariantf("region %d: header at offset %d: %v", ri, off, err)
			}
			b := Block{
				Header:    r.start + Addr(off),
				Payload:   r.start + Addr(off) + format.HeaderSize,
				Size:      h.Size,
				Allocated: h.Allocated,
				Region:    ri,
			}
			if h.Allocated {
				b.Requested = h.Link
			}
			next := off + format.HeaderSize + int(h.Size)
			if next > len(r.mem) || next <= off {
				return invariantf("region %d: block at %#x (size %d) overruns region end %#x",
					ri, b.Header, h.Size, r.end())
			}
			if !fn(b) {
				return nil
			}
			off = next
		}
	}
	return nil
}

// Verify checks the heap's structural and accounting invariants:
//   - block headers tile each region exactly
//   - the free list is strictly address ordered and holds exactly the free blocks
//   - no two free blocks are physical neighbours (coalescing is complete)
//   - used bytes equal live block footprints plus touched pools
//   - UsedBytes + AvailableBytes == TotalBytes
func (fa *FreeListAllocator) Verify() error {
	free := make(map[Addr]uint64)
	var used, total uint64
	live := 0
	var lastFreeEnd, uncoalesced Addr
	lastRegion := -1

	err := fa.Walk(func(b Block) bool {
		if b.Allocated {
			used += format.HeaderSize + b.Size
			live++
			lastFreeEnd = 0
		} else {
			if lastFreeEnd == b.Header && lastRegion == b.Region {
				uncoalesced = b.Header
				return false
			}
			free[b.Header] = b.Size
			lastFreeEnd = b.End()
		}
		lastRegion = b.Region
		return true
	})
	if err != nil {
		return err
	}
	if uncoalesced != 0 {
		return invariantf("free block at %#x follows a free neighbour without being coalesced", uncoalesced)
	}

	for _, r := range fa.arena.regions {
		total += uint64(len(r.mem))
	}
	for _, p := range fa.pools {
		total += p.capacity
		if p.used {
			used += p.capacity
		}
	}

	var last Addr
	listed := 0
	for cur := fa.head; cur != format.NilLink; {
		h, err := fa.arena.readHeader(cur)
		if err != nil {
			return invariantf("free list entry %#x: %v", cur, err)
		}
		if h.Allocated {
			return invariantf("free list entry %#x is allocated", cur)
		}
		if cur <= last {
			return invariantf("free list out of address order: %#x after %#x", cur, last)
		}
		if size, ok := free[cur]; !ok || size != h.Size {
			return invariantf("free list entry %#x is not a free block of the heap", cur)
		}
		listed++
		last = cur
		cur = Addr(h.Link)
	}
	if listed != len(free) {
		return invariantf("free list holds %d blocks, heap has %d free blocks", listed, len(free))
	}

	var errs []error
	if total != fa.total {
		errs = append(errs, invariantf("total bytes %d, regions and pools add up to %d", fa.total, total))
	}
	if used != fa.used {
		errs = append(errs, invariantf("used bytes %d, live blocks and pools add up to %d", fa.used, used))
	}
	if live != fa.count {
		errs = append(errs, invariantf("allocation count %d, heap has %d live blocks", fa.count, live))
	}
	if fa.UsedBytes()+fa.AvailableBytes() != fa.TotalBytes() {
		errs = append(errs, invariantf("used %d + available %d != total %d",
			fa.UsedBytes(), fa.AvailableBytes(), fa.TotalBytes()))
	}
	return errors.Join(errs...)
}
