package mmap

import "errors"

// Sentinel errors returned by the chunk address mapper. They are deliberately
// flat (no wrapped cause) since every one of them indicates a programming or
// on-disk-format invariant violation, never an OS-level failure.
var (
	// ErrAppendZeroOffset is returned when AppendRelativeEnd is called with
	// a relative end of zero — a chunk can't record a zero-length record.
	ErrAppendZeroOffset = errors.New("mmap: appended a zero-length relative offset")

	// ErrInvalidOffsetOrder is returned when a new relative/global end does
	// not strictly increase past the previous one.
	ErrInvalidOffsetOrder = errors.New("mmap: offsets must be strictly increasing")

	// ErrChunkNotContiguous is returned when IndexOnMmaps.Append is given a
	// chunk whose global start does not equal the index's current length.
	ErrChunkNotContiguous = errors.New("mmap: appended chunk does not start where the index ends")

	// ErrInconsistentState guards internal invariants that should be
	// unreachable given the checks above; seeing it means the index was
	// built incorrectly.
	ErrInconsistentState = errors.New("mmap: inconsistent index state")

	// ErrZeroExtension is returned by GrowableMmap.GrowAndApply when asked
	// to grow by zero bytes.
	ErrZeroExtension = errors.New("mmap: tried to extend storage with zero bytes")
)
