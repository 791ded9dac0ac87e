// Package global provides Heap, a mutex-serialized allocator that grows
// itself from a Source when it runs out of memory.
package global

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/joshuapare/kheap/heap/alloc"
	"github.com/joshuapare/kheap/internal/format"
	"github.com/joshuapare/kheap/internal/logger"
	"github.com/joshuapare/kheap/internal/mmregion"
)

const (
	// DefaultInitialSize is the first region requested by New.
	DefaultInitialSize = 1 << 20

	// DefaultMinGrow is the smallest region requested when growing.
	DefaultMinGrow = 1 << 20

	// maxGrowRequest bounds the requests growth will try to serve so the
	// region size stays a positive int.
	maxGrowRequest = math.MaxInt >> 2
)

// ErrClosed is returned by operations on a closed Heap.
var ErrClosed = errors.New("global: heap closed")

// Options configures a Heap.
type Options struct {
	Config      *alloc.Config // nil means alloc.DefaultConfig
	InitialSize int           // first region size. Default: DefaultInitialSize
	MinGrow     int           // smallest growth region. Default: DefaultMinGrow
	MaxBytes    uint64        // cap on region bytes taken from Source, 0 for none
	Source      Source        // region supplier. Default: MmapSource
	Logger      *slog.Logger  // Default: logger.L
}

// Heap serializes access to a FreeListAllocator and donates a new region
// whenever an allocation would otherwise fail.
type Heap struct {
	mu sync.Mutex
	fa *alloc.FreeListAllocator

	src         Source
	minGrow     int
	maxBytes    uint64
	regionBytes uint64
	releases    []func() error
	grows       int
	closed      bool

	log *slog.Logger
}

var _ alloc.Allocator = (*Heap)(nil)

// New creates a Heap and donates its first region.
func New(opts Options) (*Heap, error) {
	if opts.InitialSize <= 0 {
		opts.InitialSize = DefaultInitialSize
	}
	if opts.MinGrow <= 0 {
		opts.MinGrow = DefaultMinGrow
	}
	if opts.Source == nil {
		opts.Source = MmapSource
	}
	if opts.Logger == nil {
		opts.Logger = logger.L
	}

	fa, err := alloc.New(opts.Config)
	if err != nil {
		return nil, err
	}

	h := &Heap{
		fa:       fa,
		src:      opts.Source,
		minGrow:  opts.MinGrow,
		maxBytes: opts.MaxBytes,
		log:      opts.Logger,
	}

	size := mmregion.RoundToPage(opts.InitialSize)
	if h.maxBytes > 0 && uint64(size) > h.maxBytes {
		return nil, fmt.Errorf("%w: initial region %d exceeds limit %d", alloc.ErrNoMemory, size, h.maxBytes)
	}
	mem, err := h.obtain(size)
	if err != nil {
		return nil, err
	}
	fa.Init(mem)

	h.log.Info("heap initialized",
		"config", fa.Config().Name,
		"region_bytes", len(mem),
		"total_bytes", fa.TotalBytes())
	return h, nil
}

// obtain takes a region from the source and remembers how to release it.
func (h *Heap) obtain(size int) ([]byte, error) {
	mem, release, err := h.src.Region(size)
	if err != nil {
		return nil, fmt.Errorf("global: obtain region of %d bytes: %w", size, err)
	}
	h.releases = append(h.releases, release)
	h.regionBytes += uint64(len(mem))
	return mem, nil
}

// Alloc allocates size bytes aligned to align, growing the heap once if the
// current regions cannot satisfy the request.
func (h *Heap) Alloc(size, align uint64) (alloc.Addr, []byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, nil, ErrClosed
	}

	ptr, buf, err := h.fa.Alloc(size, align)
	if err == nil || !errors.Is(err, alloc.ErrNoMemory) {
		return ptr, buf, err
	}

	if gerr := h.grow(size, align); gerr != nil {
		h.log.Warn("heap growth failed", "size", size, "align", align, "error", gerr)
		return 0, nil, errors.Join(err, gerr)
	}
	return h.fa.Alloc(size, align)
}

// grow donates a region large enough for one request of size at align.
func (h *Heap) grow(size, align uint64) error {
	if size > maxGrowRequest || align > maxGrowRequest {
		return fmt.Errorf("%w: %d bytes aligned to %d is beyond any region", alloc.ErrNoMemory, size, align)
	}
	need := format.AlignUp(size, format.Granule) + 2*format.HeaderSize + format.MinSplitPayload
	if align > format.HeaderAlignment {
		need += align
	}
	n := mmregion.RoundToPage(max(int(need), h.minGrow))

	if h.maxBytes > 0 && h.regionBytes+uint64(n) > h.maxBytes {
		return fmt.Errorf("%w: growing by %d would exceed limit %d", alloc.ErrNoMemory, n, h.maxBytes)
	}

	mem, err := h.obtain(n)
	if err != nil {
		return err
	}
	if err := h.fa.AddMemory(mem); err != nil {
		return err
	}
	h.grows++

	h.log.Info("heap grown",
		"region_bytes", n,
		"regions", len(h.fa.Regions()),
		"total_bytes", h.fa.TotalBytes(),
		"used_bytes", h.fa.UsedBytes())
	return nil
}

// Dealloc releases an allocation. Contract violations panic as in the
// underlying allocator; the lock is released first.
func (h *Heap) Dealloc(ptr alloc.Addr, size, align uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.fa.Dealloc(ptr, size, align)
}

// AddMemory donates a caller-owned region. The Heap never releases it, and it
// does not count against Options.MaxBytes.
func (h *Heap) AddMemory(mem []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	return h.fa.AddMemory(mem)
}

// TotalBytes returns the allocator's total capacity.
func (h *Heap) TotalBytes() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fa.TotalBytes()
}

// UsedBytes returns the allocator's used bytes.
func (h *Heap) UsedBytes() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fa.UsedBytes()
}

// AvailableBytes returns the allocator's available bytes.
func (h *Heap) AvailableBytes() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fa.AvailableBytes()
}

// Grows returns how many times the heap has grown.
func (h *Heap) Grows() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.grows
}

// Stats returns a snapshot of the allocator's counters. Once the heap is
// closed only the call counters are reported, since the regions are gone.
func (h *Heap) Stats() alloc.Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return h.fa.Counters()
	}
	return h.fa.Stats()
}

// Verify checks the allocator's invariants.
func (h *Heap) Verify() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	return h.fa.Verify()
}

// Dump writes the allocator's block map to w.
func (h *Heap) Dump(w io.Writer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	return h.fa.Dump(w)
}

// Close releases every region obtained from the Source. Addresses handed out
// by the Heap are invalid afterwards.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	for _, release := range h.releases {
		if err := release(); err != nil {
			errs = append(errs, err)
		}
	}
	h.releases = nil
	h.log.Info("heap closed", "regions_released", len(h.fa.Regions()), "grows", h.grows)
	return errors.Join(errs...)
}
