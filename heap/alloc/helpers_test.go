package alloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kheap/internal/format"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestAllocator creates an allocator over one fresh region of regionSize
// bytes. cfg nil means ConfigNoPools so engine tests are not intercepted by
// the accelerator.
func newTestAllocator(t testing.TB, regionSize int, cfg *Config) (*FreeListAllocator, []byte) {
	t.Helper()

	if cfg == nil {
		cfg = &ConfigNoPools
	}
	fa, err := New(cfg)
	require.NoError(t, err)

	mem := make([]byte, regionSize)
	require.True(t, format.IsAligned(addrOf(mem), format.HeaderAlignment),
		"Go should hand out header-aligned slices")
	fa.Init(mem)
	return fa, mem
}

// assertInvariants fails the test if Verify finds a broken invariant.
func assertInvariants(t testing.TB, fa *FreeListAllocator) {
	t.Helper()
	require.NoError(t, fa.Verify())
	require.Equal(t, fa.TotalBytes(), fa.UsedBytes()+fa.AvailableBytes(),
		"used + available must equal total")
}

// requireFault runs fn and requires it to panic with a *Fault carrying want.
func requireFault(t testing.TB, want error, fn func()) *Fault {
	t.Helper()

	var got any
	func() {
		defer func() { got = recover() }()
		fn()
	}()
	require.NotNil(t, got, "expected a panic carrying %v", want)

	f, ok := got.(*Fault)
	require.True(t, ok, "panic value should be *Fault, got %T: %v", got, got)
	require.True(t, errors.Is(f, want), "fault %v should wrap %v", f, want)
	return f
}

// mustAlloc allocates or fails the test.
func mustAlloc(t testing.TB, fa *FreeListAllocator, size, align uint64) (Addr, []byte) {
	t.Helper()
	ptr, buf, err := fa.Alloc(size, align)
	require.NoError(t, err, "Alloc(%d, %d)", size, align)
	require.Len(t, buf, int(size))
	return ptr, buf
}

// freeSizes returns the payload sizes on the free list in list order.
func freeSizes(fa *FreeListAllocator) []uint64 {
	var sizes []uint64
	fa.eachFree(func(_ Addr, size uint64) { sizes = append(sizes, size) })
	return sizes
}

// headerAt decodes the header of the block whose payload is ptr.
func headerAt(t testing.TB, fa *FreeListAllocator, ptr Addr) format.Header {
	t.Helper()
	h, err := fa.arena.readHeader(ptr - format.HeaderSize)
	require.NoError(t, err)
	return h
}

// releaseWithoutCoalesce performs the bookkeeping half of Dealloc so tests
// can build runs of uncoalesced free blocks.
func releaseWithoutCoalesce(t testing.TB, fa *FreeListAllocator, ptr Addr) {
	t.Helper()
	h := headerAt(t, fa, ptr)
	require.True(t, h.Allocated)
	fa.used -= format.HeaderSize + h.Size
	fa.count--
	fa.insertFree(ptr-format.HeaderSize, h.Size)
}

// inRegion reports whether ptr lies inside mem.
func inRegion(ptr Addr, mem []byte) bool {
	start := addrOf(mem)
	return ptr >= start && ptr < start+Addr(len(mem))
}
