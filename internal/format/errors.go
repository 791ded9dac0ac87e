package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a header.
	ErrTruncated = errors.New("format: truncated header")
	// ErrMisaligned indicates a header address was not HeaderAlignment aligned.
	ErrMisaligned = errors.New("format: misaligned header")
)
