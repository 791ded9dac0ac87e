// Package mmregion obtains anonymous, page-aligned memory from the operating
// system for use as allocator regions.
package mmregion

import (
	"errors"
	"fmt"
)

// ErrInvalidSize is returned for a non-positive mapping size.
var ErrInvalidSize = errors.New("mmregion: size must be positive")

// Release returns a mapping to the system. Calling it more than once is a no-op.
type Release func() error

// RoundToPage rounds n up to a whole number of pages.
func RoundToPage(n int) int {
	ps := PageSize()
	return (n + ps - 1) &^ (ps - 1)
}

func checkSize(size int) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if size > int(^uint(0)>>1)-PageSize() {
		return 0, fmt.Errorf("mmregion: size too large to map (%d bytes)", size)
	}
	return RoundToPage(size), nil
}

func noRelease() error { return nil }

// once wraps release so that only the first call reaches the system.
func once(release func() error) Release {
	done := false
	return func() error {
		if done {
			return nil
		}
		done = true
		return release()
	}
}
