//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly) && !windows

package mmregion

import "os"

// Backend names the mechanism Map uses on this platform.
const Backend = "heap"

// PageSize returns the system page size.
func PageSize() int { return os.Getpagesize() }

// Map allocates from the Go heap when no anonymous mapping is available.
func Map(size int) ([]byte, Release, error) {
	n, err := checkSize(size)
	if err != nil {
		return nil, noRelease, err
	}
	return make([]byte, n), once(noRelease), nil
}
