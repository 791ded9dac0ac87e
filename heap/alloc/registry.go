package alloc

import (
	"fmt"

	"github.com/joshuapare/kheap/internal/format"
)

// FreeListAllocator serves byte allocations out of donated regions using a
// best-fit, address-ordered free list, with an optional one-shot size-class
// accelerator in front of it.
//
// A FreeListAllocator is not safe for concurrent use; callers serialize
// access (see the global package).
type FreeListAllocator struct {
	cfg   Config
	arena arena
	pools []pool

	// head is the header address of the lowest free block, 0 when empty.
	head Addr

	total uint64
	used  uint64
	count int

	initialized bool

	stats allocatorStats
}

// New creates an allocator with no memory. Init must be called before use.
//
// Parameters:
//   - config: size class configuration (use nil for DefaultConfig)
func New(config *Config) (*FreeListAllocator, error) {
	if config == nil {
		config = &DefaultConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cfg := *config
	cfg.PoolClasses = append([]uint64(nil), config.PoolClasses...)

	return &FreeListAllocator{
		cfg:   cfg,
		pools: newPools(cfg.PoolClasses),
		total: cfg.PoolBytes(),
	}, nil
}

// Init donates the first region. It must be called exactly once, before any
// other operation. A region that cannot hold one block header after
// alignment is a fatal boot error and panics with a *Fault.
func (fa *FreeListAllocator) Init(mem []byte) {
	if fa.initialized {
		raise("init", 0, ErrAlreadyInit, "")
	}
	if err := fa.addRegion(mem); err != nil {
		raise("init", addrOf(mem), ErrRegionTooSmall, "%v", err)
	}
	fa.initialized = true
}

// AddMemory donates another region. The whole region becomes one free block,
// which is then coalesced with its neighbours.
func (fa *FreeListAllocator) AddMemory(mem []byte) error {
	fa.mustInit("add_memory")
	if err := fa.addRegion(mem); err != nil {
		return err
	}
	fa.coalesce()
	return nil
}

func (fa *FreeListAllocator) addRegion(mem []byte) error {
	aligned := alignRegion(mem)
	if len(aligned) < format.HeaderSize {
		return fmt.Errorf("%w: %w: %d bytes after alignment, header needs %d",
			ErrNoMemory, ErrRegionTooSmall, len(aligned), format.HeaderSize)
	}
	start := addrOf(aligned)
	if fa.arena.overlaps(start, start+Addr(len(aligned))) {
		return fmt.Errorf("%w: [%#x, %#x)", ErrRegionOverlap, start, start+Addr(len(aligned)))
	}

	fa.arena.insert(aligned)
	fa.total += uint64(len(aligned))
	fa.insertFree(start, uint64(len(aligned))-format.HeaderSize)

	if logAlloc {
		debugLogf("region [%#x, %#x) donated, %d bytes", start, start+Addr(len(aligned)), len(aligned))
	}
	return nil
}

func (fa *FreeListAllocator) mustInit(op string) {
	if !fa.initialized {
		raise(op, 0, ErrUninitialized, "")
	}
}

// TotalBytes returns the capacity of all regions plus pool storage.
func (fa *FreeListAllocator) TotalBytes() uint64 { return fa.total }

// UsedBytes returns the footprint (header included) of live blocks plus the
// capacity of every touched pool.
func (fa *FreeListAllocator) UsedBytes() uint64 { return fa.used }

// AvailableBytes returns TotalBytes - UsedBytes.
func (fa *FreeListAllocator) AvailableBytes() uint64 { return fa.total - fa.used }

// AllocationCount returns the number of live free-list allocations.
func (fa *FreeListAllocator) AllocationCount() int { return fa.count }

// Config returns the configuration the allocator was built with.
func (fa *FreeListAllocator) Config() Config { return fa.cfg }

// Regions lists the donated regions in address order.
func (fa *FreeListAllocator) Regions() []RegionInfo {
	out := make([]RegionInfo, len(fa.arena.regions))
	for i, r := range fa.arena.regions {
		out[i] = RegionInfo{Start: r.start, Len: uint64(len(r.mem))}
	}
	return out
}

// Bytes returns a view of n bytes at ptr, which must lie inside a region or
// a used pool.
func (fa *FreeListAllocator) Bytes(ptr Addr, n uint64) ([]byte, error) {
	if i, ok := fa.poolOf(ptr); ok {
		p := &fa.pools[i]
		off := uint64(ptr - p.base)
		if n > p.capacity-off {
			return nil, fmt.Errorf("%w: %#x+%d crosses pool end", ErrBadAddr, ptr, n)
		}
		return p.mem[off : off+n : off+n], nil
	}
	return fa.arena.bytes(ptr, n)
}
