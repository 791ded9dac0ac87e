package alloc

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/joshuapare/kheap/internal/format"
)

// region is one donated range. mem[0] lives at start.
type region struct {
	start Addr
	mem   []byte
}

func (r *region) end() Addr { return r.start + Addr(len(r.mem)) }

// arena owns the donated regions and is the only code that touches header
// bytes. Regions are kept sorted by start so lookups are O(log R).
type arena struct {
	regions []region
}

// addrOf returns the address of b's first byte.
func addrOf(b []byte) Addr {
	return Addr(unsafe.Pointer(unsafe.SliceData(b)))
}

// alignRegion drops the prefix of mem that precedes the first header-aligned
// address. Returns nil when nothing is left.
func alignRegion(mem []byte) []byte {
	if len(mem) == 0 {
		return nil
	}
	start := addrOf(mem)
	skip := int(format.AlignUpPtr(start, format.HeaderAlignment) - start)
	if skip >= len(mem) {
		return nil
	}
	return mem[skip:]
}

// find returns the index of the region containing addr.
func (a *arena) find(addr Addr) (int, bool) {
	lo, hi := 0, len(a.regions)-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		r := &a.regions[mid]
		switch {
		case addr < r.start:
			hi = mid - 1
		case addr >= r.end():
			lo = mid + 1
		default:
			return mid, true
		}
	}
	return 0, false
}

// overlaps reports whether [start, end) intersects a registered region.
func (a *arena) overlaps(start, end Addr) bool {
	for i := range a.regions {
		r := &a.regions[i]
		if start < r.end() && r.start < end {
			return true
		}
	}
	return false
}

// insert registers mem, keeping regions sorted by start.
func (a *arena) insert(mem []byte) int {
	r := region{start: addrOf(mem), mem: mem}
	i := len(a.regions)
	for i > 0 && a.regions[i-1].start > r.start {
		i--
	}
	a.regions = append(a.regions, region{})
	copy(a.regions[i+1:], a.regions[i:])
	a.regions[i] = r
	return i
}

// locate maps the n bytes at addr to their region and offset.
func (a *arena) locate(addr Addr, n int) (*region, int, error) {
	i, ok := a.find(addr)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %#x", ErrBadAddr, addr)
	}
	r := &a.regions[i]
	off := int(addr - r.start)
	if n < 0 || n > len(r.mem)-off {
		return nil, 0, fmt.Errorf("%w: %#x+%d crosses region end %#x", ErrBadAddr, addr, n, r.end())
	}
	return r, off, nil
}

// readHeader decodes the header at addr.
func (a *arena) readHeader(addr Addr) (format.Header, error) {
	if !format.IsAligned(addr, format.HeaderAlignment) {
		return format.Header{}, fmt.Errorf("%w: %#x", format.ErrMisaligned, addr)
	}
	r, off, err := a.locate(addr, format.HeaderSize)
	if err != nil {
		return format.Header{}, err
	}
	return format.DecodeHeader(r.mem, off)
}

// header is readHeader for addresses the allocator produced itself. A
// failure here means the arena is corrupt.
func (a *arena) header(addr Addr) format.Header {
	h, err := a.readHeader(addr)
	if err != nil {
		panic(fmt.Errorf("alloc: corrupt heap reading header at %#x: %w", addr, err))
	}
	return h
}

func (a *arena) writeHeader(addr Addr, h format.Header) {
	r, off, err := a.locate(addr, format.HeaderSize)
	if err != nil {
		panic(fmt.Errorf("alloc: corrupt heap writing header at %#x: %w", addr, err))
	}
	format.EncodeHeader(r.mem, off, h)
}

// setLink rewrites only the link word of the header at addr.
func (a *arena) setLink(addr Addr, link Addr) {
	r, off, err := a.locate(addr, format.HeaderSize)
	if err != nil {
		panic(fmt.Errorf("alloc: corrupt heap linking %#x: %w", addr, err))
	}
	format.PutU64(r.mem, off+format.LinkWordOffset, uint64(link))
}

// bytes returns the n bytes starting at addr, capacity clipped to n.
func (a *arena) bytes(addr Addr, n uint64) ([]byte, error) {
	if n > math.MaxInt {
		return nil, fmt.Errorf("%w: %#x+%d crosses region end", ErrBadAddr, addr, n)
	}
	r, off, err := a.locate(addr, int(n))
	if err != nil {
		return nil, err
	}
	end := off + int(n)
	return r.mem[off:end:end], nil
}

// sameRegion reports whether x and y fall inside the same region.
func (a *arena) sameRegion(x, y Addr) bool {
	i, ok := a.find(x)
	if !ok {
		return false
	}
	r := &a.regions[i]
	return y >= r.start && y < r.end()
}
