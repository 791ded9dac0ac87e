package global

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/kheap/heap/alloc"
	"github.com/joshuapare/kheap/internal/mmregion"
)

// countingSource hands out Go-heap regions and records releases.
type countingSource struct {
	mu       sync.Mutex
	sizes    []int
	released int
	fail     bool
}

func (s *countingSource) Region(size int) ([]byte, func() error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, func() error { return nil }, errors.New("source exhausted")
	}
	s.sizes = append(s.sizes, size)
	return make([]byte, size), func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.released++
		return nil
	}, nil
}

func newTestHeap(t *testing.T, opts Options) (*Heap, *countingSource, *bytes.Buffer) {
	t.Helper()

	src := &countingSource{}
	var logs bytes.Buffer
	if opts.Source == nil {
		opts.Source = src
	}
	if opts.Config == nil {
		opts.Config = &alloc.ConfigNoPools
	}
	opts.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	h, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h, src, &logs
}

func TestNew_DonatesInitialRegion(t *testing.T) {
	h, src, logs := newTestHeap(t, Options{InitialSize: 1})

	ps := mmregion.PageSize()
	assert.Equal(t, []int{ps}, src.sizes, "initial size rounds up to a page")
	assert.Equal(t, uint64(ps), h.TotalBytes())
	assert.Contains(t, logs.String(), "heap initialized")
	require.NoError(t, h.Verify())
}

func TestNew_BadConfig(t *testing.T) {
	_, err := New(Options{Config: &alloc.Config{PoolClasses: []uint64{3}}, Source: GoSource})
	require.ErrorIs(t, err, alloc.ErrBadConfig)
}

func TestNew_InitialExceedsLimit(t *testing.T) {
	_, err := New(Options{InitialSize: 1 << 20, MaxBytes: 4096, Source: GoSource})
	require.ErrorIs(t, err, alloc.ErrNoMemory)
}

func TestAlloc_GrowsOnExhaustion(t *testing.T) {
	ps := mmregion.PageSize()
	h, src, logs := newTestHeap(t, Options{InitialSize: ps, MinGrow: ps})

	// Larger than the first region; must trigger growth.
	size := uint64(3 * ps)
	ptr, buf, err := h.Alloc(size, 64)
	require.NoError(t, err)
	assert.Len(t, buf, int(size))
	assert.Zero(t, ptr%64)

	assert.Equal(t, 1, h.Grows())
	require.Len(t, src.sizes, 2)
	assert.GreaterOrEqual(t, src.sizes[1], 3*ps+64)
	assert.Zero(t, src.sizes[1]%ps)
	assert.Contains(t, logs.String(), "heap grown")
	require.NoError(t, h.Verify())

	h.Dealloc(ptr, size, 64)
	assert.Equal(t, uint64(0), h.UsedBytes())
}

func TestAlloc_NoGrowthWhenItFits(t *testing.T) {
	h, src, _ := newTestHeap(t, Options{InitialSize: 64 << 10})

	for i := 0; i < 100; i++ {
		_, _, err := h.Alloc(64, 8)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, h.Grows())
	assert.Len(t, src.sizes, 1)
}

func TestAlloc_RespectsLimit(t *testing.T) {
	ps := mmregion.PageSize()
	h, _, logs := newTestHeap(t, Options{InitialSize: ps, MinGrow: ps, MaxBytes: uint64(2 * ps)})

	_, _, err := h.Alloc(uint64(4*ps), 8)
	require.ErrorIs(t, err, alloc.ErrNoMemory)
	assert.Equal(t, 0, h.Grows())
	assert.Contains(t, logs.String(), "heap growth failed")
}

func TestAlloc_SourceFailure(t *testing.T) {
	ps := mmregion.PageSize()
	h, src, _ := newTestHeap(t, Options{InitialSize: ps})
	src.mu.Lock()
	src.fail = true
	src.mu.Unlock()

	_, _, err := h.Alloc(uint64(2*ps), 8)
	require.ErrorIs(t, err, alloc.ErrNoMemory)
	assert.ErrorContains(t, err, "source exhausted")
}

func TestAlloc_BadAlignDoesNotGrow(t *testing.T) {
	h, src, _ := newTestHeap(t, Options{})

	_, _, err := h.Alloc(8, 12)
	require.ErrorIs(t, err, alloc.ErrBadAlign)
	assert.Len(t, src.sizes, 1)
}

func TestAlloc_ImpossibleRequestDoesNotGrow(t *testing.T) {
	h, src, _ := newTestHeap(t, Options{InitialSize: 1 << 16, MinGrow: 1 << 16})
	before := h.TotalBytes()

	for _, size := range []uint64{1 << 63, math.MaxUint64, 1 << 62, 1 << 61} {
		for i := 0; i < 5; i++ {
			_, _, err := h.Alloc(size, 8)
			require.ErrorIs(t, err, alloc.ErrNoMemory, "size %d", size)
		}
	}
	_, _, err := h.Alloc(8, 1<<62)
	require.ErrorIs(t, err, alloc.ErrNoMemory)

	assert.Equal(t, 0, h.Grows())
	assert.Len(t, src.sizes, 1)
	assert.Equal(t, before, h.TotalBytes())
	require.NoError(t, h.Verify())
}

func TestAlloc_DonationsDoNotUseGrowthBudget(t *testing.T) {
	ps := mmregion.PageSize()
	h, src, _ := newTestHeap(t, Options{InitialSize: ps, MinGrow: ps, MaxBytes: uint64(2 * ps)})

	donated := make([]byte, 4*ps)
	require.NoError(t, h.AddMemory(donated))

	// Fill the donated block and the initial region exactly.
	_, _, err := h.Alloc(uint64(4*ps-16), 8)
	require.NoError(t, err)
	_, _, err = h.Alloc(uint64(ps-16), 8)
	require.NoError(t, err)
	assert.Equal(t, 0, h.Grows())

	_, _, err = h.Alloc(64, 8)
	require.NoError(t, err, "one page of growth fits the budget")
	assert.Equal(t, 1, h.Grows())
	assert.Len(t, src.sizes, 2)

	_, _, err = h.Alloc(uint64(ps), 8)
	require.ErrorIs(t, err, alloc.ErrNoMemory, "budget is spent")
}

func TestClose_InspectionIsSafe(t *testing.T) {
	h, _, _ := newTestHeap(t, Options{Source: MmapSource, InitialSize: 1 << 16})

	ptr, _, err := h.Alloc(128, 16)
	require.NoError(t, err)
	h.Dealloc(ptr, 128, 16)
	require.NoError(t, h.Close())

	s := h.Stats()
	assert.Equal(t, 1, s.AllocCalls)
	assert.Equal(t, 1, s.DeallocCalls)
	assert.Zero(t, s.Regions)
	assert.Zero(t, s.FreeBlocks)
	assert.Zero(t, s.TotalBytes)

	require.ErrorIs(t, h.Verify(), ErrClosed)
	var buf bytes.Buffer
	require.ErrorIs(t, h.Dump(&buf), ErrClosed)
	assert.Empty(t, buf.String())
}

func TestClose_ReleasesRegions(t *testing.T) {
	ps := mmregion.PageSize()
	h, src, _ := newTestHeap(t, Options{InitialSize: ps, MinGrow: ps})

	_, _, err := h.Alloc(uint64(2*ps), 8)
	require.NoError(t, err)
	require.NoError(t, h.AddMemory(make([]byte, ps)))

	require.NoError(t, h.Close())
	assert.Equal(t, 2, src.released, "only source regions are released")
	require.NoError(t, h.Close(), "second close is a no-op")
	assert.Equal(t, 2, src.released)

	_, _, err = h.Alloc(8, 8)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, h.AddMemory(make([]byte, ps)), ErrClosed)
}

func TestDealloc_PanicReleasesLock(t *testing.T) {
	h, _, _ := newTestHeap(t, Options{})

	ptr, _, err := h.Alloc(32, 8)
	require.NoError(t, err)
	h.Dealloc(ptr, 32, 8)

	assert.Panics(t, func() { h.Dealloc(ptr, 32, 8) })

	// The heap must still be usable.
	_, _, err = h.Alloc(32, 8)
	require.NoError(t, err)
}

func TestHeap_ConcurrentUse(t *testing.T) {
	h, _, _ := newTestHeap(t, Options{InitialSize: 16 << 10, MinGrow: 16 << 10, Config: &alloc.ConfigSmallPools})

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 200; i++ {
				size := uint64(16 + (w*31+i*7)%500)
				ptr, buf, err := h.Alloc(size, 16)
				if err != nil {
					return err
				}
				for j := range buf {
					buf[j] = byte(w)
				}
				for j := range buf {
					if buf[j] != byte(w) {
						return errors.New("payload clobbered by another worker")
					}
				}
				h.Dealloc(ptr, size, 16)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, h.Verify())

	s := h.Stats()
	assert.Equal(t, 0, s.AllocationCount)
	assert.Equal(t, s.TotalBytes, s.UsedBytes+s.AvailableBytes)
}

func TestMmapSource(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mapping test in short mode")
	}
	h, err := New(Options{Source: MmapSource, InitialSize: 64 << 10, Config: &alloc.ConfigNoPools})
	require.NoError(t, err)

	ptr, buf, err := h.Alloc(1000, 32)
	require.NoError(t, err)
	buf[999] = 1
	h.Dealloc(ptr, 1000, 32)
	require.NoError(t, h.Verify())
	require.NoError(t, h.Close())
}

func TestDefault(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping process-wide heap in short mode")
	}
	ptr, buf, err := Alloc(48, 16)
	require.NoError(t, err)
	assert.Len(t, buf, 48)
	Dealloc(ptr, 48, 16)

	h, err := Default()
	require.NoError(t, err)
	h2, _ := Default()
	assert.Same(t, h, h2)
}
