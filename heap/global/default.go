package global

import (
	"sync"

	"github.com/joshuapare/kheap/heap/alloc"
)

var defaultHeap = sync.OnceValues(func() (*Heap, error) {
	return New(Options{})
})

// Default returns the process-wide Heap, created on first use with default
// Options.
func Default() (*Heap, error) {
	return defaultHeap()
}

// Alloc allocates from the process-wide Heap.
func Alloc(size, align uint64) (alloc.Addr, []byte, error) {
	h, err := Default()
	if err != nil {
		return 0, nil, err
	}
	return h.Alloc(size, align)
}

// Dealloc releases an allocation made by Alloc.
func Dealloc(ptr alloc.Addr, size, align uint64) {
	h, err := Default()
	if err != nil {
		return
	}
	h.Dealloc(ptr, size, align)
}
