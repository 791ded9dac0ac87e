package alloc

import (
	"github.com/joshuapare/kheap/internal/format"
)

// pool is a one-shot arena for a single size class. Once used it stays used:
// a dealloc against it is ignored and the class never serves again.
type pool struct {
	capacity uint64
	base     Addr
	mem      []byte // backing storage, nil until first use
	used     bool
}

func newPools(classes []uint64) []pool {
	if len(classes) == 0 {
		return nil
	}
	pools := make([]pool, len(classes))
	for i, sz := range classes {
		pools[i].capacity = sz
	}
	return pools
}

func (p *pool) contains(addr Addr) bool {
	return p.used && addr >= p.base && addr < p.base+Addr(p.capacity)
}

// activate obtains backing storage whose base satisfies align.
func (p *pool) activate(align uint64) {
	mem := make([]byte, p.capacity)
	if !format.IsAligned(addrOf(mem), Addr(align)) {
		// Go only guarantees page alignment for large objects; over-allocate
		// and slice at the first aligned address.
		raw := make([]byte, p.capacity+align-1)
		start := addrOf(raw)
		skip := format.AlignUpPtr(start, Addr(align)) - start
		mem = raw[skip : skip+Addr(p.capacity)]
	}
	p.mem = mem
	p.base = addrOf(mem)
	p.used = true
}

// tryAccelerate serves size/align from the smallest class that fits both, if
// that class was never used. It never falls through to a larger class.
func (fa *FreeListAllocator) tryAccelerate(size, align uint64) (Addr, []byte, bool) {
	for i := range fa.pools {
		p := &fa.pools[i]
		if p.capacity < size || p.capacity < align {
			continue
		}
		if p.used {
			fa.stats.PoolDeclines++
			return 0, nil, false
		}
		p.activate(align)
		fa.used += p.capacity
		fa.stats.PoolHits++
		return p.base, p.mem[:size:size], true
	}
	return 0, nil, false
}

// poolOf returns the index of the used pool containing addr.
func (fa *FreeListAllocator) poolOf(addr Addr) (int, bool) {
	for i := range fa.pools {
		if fa.pools[i].contains(addr) {
			return i, true
		}
	}
	return 0, false
}

// PoolsInUse returns how many size classes have been consumed.
func (fa *FreeListAllocator) PoolsInUse() int {
	n := 0
	for i := range fa.pools {
		if fa.pools[i].used {
			n++
		}
	}
	return n
}
