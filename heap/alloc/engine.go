package alloc

import (
	"fmt"
	"math"

	"github.com/joshuapare/kheap/internal/format"
)

// fit is a free block chosen for an allocation.
type fit struct {
	prev Addr   // free block linking to addr, 0 if addr is the head
	addr Addr   // header address
	size uint64 // payload bytes
	lead uint64 // bytes to skip so the payload lands on the requested alignment
}

// maxRequest bounds size and alignment so block arithmetic cannot wrap. No
// region can hold a request this large.
const maxRequest = math.MaxInt >> 1

// payloadSize rounds a request up to the granule. Allocated blocks always
// carry at least one granule so their size word is never zero.
func payloadSize(size uint64) uint64 {
	return max(format.Align8(size), format.Granule)
}

// leadFor returns how far past hdr a block must start so its payload is
// aligned to align. A non-zero lead always leaves room for a free prefix
// block (header plus one granule).
func leadFor(hdr Addr, align uint64) uint64 {
	if align <= format.HeaderAlignment {
		return 0
	}
	payload := hdr + format.HeaderSize
	p := format.AlignUpPtr(payload, Addr(align))
	if p == payload {
		return 0
	}
	if p-payload < format.HeaderSize+format.MinSplitPayload {
		p = format.AlignUpPtr(payload+format.HeaderSize+format.MinSplitPayload, Addr(align))
	}
	return uint64(p - payload)
}

// Alloc allocates size bytes aligned to align.
//
// The accelerator is probed first; on a miss the free list is searched
// best-fit, the chosen block is split when its surplus exceeds one header,
// and the payload address is returned. The returned slice covers exactly
// size bytes.
func (fa *FreeListAllocator) Alloc(size, align uint64) (Addr, []byte, error) {
	fa.mustInit("alloc")
	fa.stats.AllocCalls++

	if align == 0 {
		align = 1
	}
	if !format.IsPowerOfTwo(align) {
		return 0, nil, fmt.Errorf("%w: %d", ErrBadAlign, align)
	}
	if size > maxRequest || align > maxRequest {
		fa.stats.Failures++
		return 0, nil, fmt.Errorf("%w: %d bytes aligned to %d exceeds any region", ErrNoMemory, size, align)
	}

	if ptr, buf, ok := fa.tryAccelerate(size, align); ok {
		return ptr, buf, nil
	}

	need := payloadSize(size)
	c, ok := fa.bestFit(need, align)
	if !ok {
		fa.stats.Failures++
		if logAlloc {
			debugLogf("Alloc(%d, %d): no fit, %d free blocks, largest=%d, available=%d",
				size, align, fa.FreeBlocks(), fa.LargestFree(), fa.AvailableBytes())
		}
		return 0, nil, fmt.Errorf("%w: %d bytes aligned to %d", ErrNoMemory, size, align)
	}

	hdr, blockSize := fa.carve(c, need, size)
	fa.used += format.HeaderSize + blockSize
	fa.count++

	payload := hdr + format.HeaderSize
	buf, err := fa.arena.bytes(payload, size)
	if err != nil {
		panic(fmt.Errorf("alloc: corrupt heap after carve: %w", err))
	}
	return payload, buf, nil
}

// bestFit walks the free list for the smallest block that can hold need
// bytes at the requested alignment. Ties keep the earlier block; an exact
// match ends the walk.
func (fa *FreeListAllocator) bestFit(need, align uint64) (fit, bool) {
	var best fit
	found := false

	var prev Addr
	for cur := fa.head; cur != format.NilLink; {
		h := fa.arena.header(cur)
		lead := leadFor(cur, align)
		if h.Size >= need && h.Size-need >= lead && (!found || h.Size < best.size) {
			best = fit{prev: prev, addr: cur, size: h.Size, lead: lead}
			found = true
			if h.Size-need == lead {
				break
			}
		}
		prev = cur
		cur = Addr(h.Link)
	}
	return best, found
}

// carve takes c out of the free list and marks need bytes of it allocated.
// Any alignment lead is left behind as a free prefix, and a surplus larger
// than one header is split off as a free tail. Both stay in address order.
// Returns the allocated header and its final payload size.
func (fa *FreeListAllocator) carve(c fit, need, requested uint64) (Addr, uint64) {
	hdr, size, prev := c.addr, c.size, c.prev
	next := Addr(fa.arena.header(hdr).Link)

	if c.lead > 0 {
		suffix := hdr + Addr(c.lead)
		fa.arena.writeHeader(hdr, format.Header{Size: c.lead - format.HeaderSize, Link: uint64(suffix)})
		prev, hdr, size = hdr, suffix, size-c.lead
		fa.stats.LeadSplits++
	}

	if size-need > format.HeaderSize {
		tail := hdr + format.HeaderSize + Addr(need)
		fa.arena.writeHeader(tail, format.Header{Size: size - need - format.HeaderSize, Link: uint64(next)})
		fa.stats.Splits++
		if logAlloc && size > 1024 {
			debugLogf("split %#x: block=%d need=%d remainder=%d", hdr, size, need, size-need-format.HeaderSize)
		}
		next = tail
		size = need
	}

	fa.link(prev, next)
	fa.arena.writeHeader(hdr, format.Header{Size: size, Allocated: true, Link: requested})
	return hdr, size
}

// link points prev (or the head when prev is 0) at next.
func (fa *FreeListAllocator) link(prev, next Addr) {
	if prev == format.NilLink {
		fa.head = next
		return
	}
	fa.arena.setLink(prev, next)
}

// Dealloc returns ptr to the free list and coalesces.
//
// Pool addresses are ignored. Anything else must be the payload of a live
// allocation of exactly size bytes; a double free or a mismatched size
// panics with a *Fault.
func (fa *FreeListAllocator) Dealloc(ptr Addr, size, align uint64) {
	fa.mustInit("dealloc")
	fa.stats.DeallocCalls++

	if _, ok := fa.poolOf(ptr); ok {
		fa.stats.PoolReleases++
		return
	}

	if align > 1 && !format.IsAligned(ptr, Addr(align)) {
		raise("dealloc", ptr, ErrInvalidDealloc, "address not aligned to %d", align)
	}
	if ptr < format.HeaderSize {
		raise("dealloc", ptr, ErrInvalidDealloc, "address below header size")
	}
	hdr := ptr - format.HeaderSize
	h, err := fa.arena.readHeader(hdr)
	if err != nil {
		raise("dealloc", ptr, ErrInvalidDealloc, "%v", err)
	}
	if !h.Allocated {
		raise("dealloc", ptr, ErrDoubleFree, "block of %d bytes is already free", h.Size)
	}
	if h.Link != size {
		raise("dealloc", ptr, ErrInvalidDealloc, "size %d does not match allocation of %d", size, h.Link)
	}

	fa.used -= format.HeaderSize + h.Size
	fa.count--
	fa.insertFree(hdr, h.Size)
	fa.coalesce()
}

// insertFree writes a free header at hdr and links it in address order.
func (fa *FreeListAllocator) insertFree(hdr Addr, size uint64) {
	var prev Addr
	cur := fa.head
	for cur != format.NilLink && cur < hdr {
		prev = cur
		cur = Addr(fa.arena.header(cur).Link)
	}
	fa.arena.writeHeader(hdr, format.Header{Size: size, Link: uint64(cur)})
	fa.link(prev, hdr)
}

// coalesce merges list neighbours that are also physical neighbours in the
// same region. A merged block is re-examined against its new successor, so
// runs of free blocks collapse in one pass.
func (fa *FreeListAllocator) coalesce() {
	cur := fa.head
	for cur != format.NilLink {
		h := fa.arena.header(cur)
		next := Addr(h.Link)
		if next == format.NilLink {
			return
		}
		if cur+format.HeaderSize+Addr(h.Size) == next && fa.arena.sameRegion(cur, next) {
			n := fa.arena.header(next)
			h.Size += format.HeaderSize + n.Size
			h.Link = n.Link
			fa.arena.writeHeader(cur, h)
			fa.stats.Coalesces++
			continue
		}
		cur = next
	}
}
