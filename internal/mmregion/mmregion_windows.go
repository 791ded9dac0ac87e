//go:build windows

package mmregion

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Backend names the mechanism Map uses on this platform.
const Backend = "virtualalloc"

// PageSize returns the system page size.
func PageSize() int { return os.Getpagesize() }

// Map commits at least size bytes of zeroed read-write memory with
// VirtualAlloc, rounded up to whole pages.
func Map(size int) ([]byte, Release, error) {
	n, err := checkSize(size)
	if err != nil {
		return nil, noRelease, err
	}
	addr, err := windows.VirtualAlloc(0, uintptr(n), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, noRelease, fmt.Errorf("mmregion: VirtualAlloc %d bytes: %w", n, err)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
	return data, once(func() error { return windows.VirtualFree(addr, 0, windows.MEM_RELEASE) }), nil
}
