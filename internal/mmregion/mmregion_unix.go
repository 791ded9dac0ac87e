//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package mmregion

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Backend names the mechanism Map uses on this platform.
const Backend = "mmap"

// PageSize returns the system page size.
func PageSize() int { return unix.Getpagesize() }

// Map returns a private, zeroed, read-write anonymous mapping of at least
// size bytes, rounded up to whole pages. The memory is outside the Go heap
// and must be released explicitly.
func Map(size int) ([]byte, Release, error) {
	n, err := checkSize(size)
	if err != nil {
		return nil, noRelease, err
	}
	data, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, noRelease, fmt.Errorf("mmregion: mmap %d bytes: %w", n, err)
	}
	return data, once(func() error { return unix.Munmap(data) }), nil
}
