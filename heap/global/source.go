package global

import (
	"github.com/joshuapare/kheap/internal/mmregion"
)

// Source supplies fresh regions. Region returns at least size bytes and a
// function that gives them back; release is never nil.
type Source interface {
	Region(size int) (mem []byte, release func() error, err error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(size int) ([]byte, func() error, error)

// Region calls f.
func (f SourceFunc) Region(size int) ([]byte, func() error, error) { return f(size) }

// MmapSource maps anonymous memory outside the Go heap.
var MmapSource Source = SourceFunc(func(size int) ([]byte, func() error, error) {
	mem, release, err := mmregion.Map(size)
	return mem, release, err
})

// GoSource allocates regions on the Go heap; they are freed by the garbage
// collector once the Heap is dropped.
var GoSource Source = SourceFunc(func(size int) ([]byte, func() error, error) {
	return make([]byte, size), func() error { return nil }, nil
})
