package alloc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMemory indicates no free block or pool could satisfy the request.
	ErrNoMemory = errors.New("alloc: no memory")

	// ErrRegionTooSmall indicates a donated region cannot hold one block header.
	ErrRegionTooSmall = errors.New("alloc: region too small")

	// ErrRegionOverlap indicates a donated region intersects a registered one.
	ErrRegionOverlap = errors.New("alloc: region overlaps an existing region")

	// ErrBadAlign indicates the requested alignment is not a power of two.
	ErrBadAlign = errors.New("alloc: alignment must be a power of two")

	// ErrBadConfig indicates an invalid Config.
	ErrBadConfig = errors.New("alloc: invalid config")

	// ErrBadAddr indicates an address that does not belong to any region.
	ErrBadAddr = errors.New("alloc: address outside every region")

	// ErrDoubleFree is carried by the Fault raised when a free block is freed again.
	ErrDoubleFree = errors.New("alloc: double free")

	// ErrInvalidDealloc is carried by the Fault raised when a deallocation
	// does not match a live allocation.
	ErrInvalidDealloc = errors.New("alloc: invalid deallocation")

	// ErrUninitialized is carried by the Fault raised when the allocator is
	// used before Init.
	ErrUninitialized = errors.New("alloc: allocator not initialized")

	// ErrAlreadyInit is carried by the Fault raised when Init runs twice.
	ErrAlreadyInit = errors.New("alloc: allocator already initialized")
)

// Fault is the panic value raised for contract violations: double frees,
// mismatched frees, an undersized Init region. The heap cannot be trusted
// after one of these, so they are not returned as errors.
type Fault struct {
	Op     string // operation that detected the violation
	Addr   Addr   // address involved, 0 if none
	Err    error  // one of the sentinel errors above
	Detail string
}

func (f *Fault) Error() string {
	msg := fmt.Sprintf("%s: %v", f.Op, f.Err)
	if f.Addr != 0 {
		msg += fmt.Sprintf(" at %#x", f.Addr)
	}
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	return msg
}

func (f *Fault) Unwrap() error { return f.Err }

// raise panics with a Fault.
func raise(op string, addr Addr, err error, format string, args ...any) {
	panic(&Fault{Op: op, Addr: addr, Err: err, Detail: fmt.Sprintf(format, args...)})
}
