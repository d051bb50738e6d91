// Package fraos implements a crash-safe, append-only, memory-mapped record
// log with lock-free reads: a flat file of raw record bytes, a fixed-width
// sequence-number index into it, and a Database that keeps the two in sync
// under a single write mutex.
package fraos

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyRecordAppended is returned when any record in a batch passed
	// to Append has zero length. A zero-length record would collapse to an
	// indistinguishable offset in the seqno index.
	ErrEmptyRecordAppended = errors.New("fraos: appended a zero-length record")

	// ErrDataFileDamaged indicates the flat data file's contents could not
	// be reconciled with the seqno index.
	ErrDataFileDamaged = errors.New("fraos: data file damaged")

	// ErrIndexFileDamaged indicates the seqno index is not a whole number
	// of (offset, length) pairs, or recovery could not locate its actual
	// end.
	ErrIndexFileDamaged = errors.New("fraos: index file damaged")

	// ErrPathNotDir is returned when the database directory path exists
	// but is not a directory.
	ErrPathNotDir = errors.New("fraos: path exists and is not a directory")

	// ErrPathNotFound is returned when opening a read-only database whose
	// directory does not exist.
	ErrPathNotFound = errors.New("fraos: path not found")
)

// DataLengthError is returned when a read is asked for more bytes than the
// mapping backing the requested offset actually holds — the on-disk layout
// promises the seqno index and the flat file agree on every record's
// length, so seeing this means the two have drifted apart.
type DataLengthError struct {
	Actual    int
	Requested int
}

func (e *DataLengthError) Error() string {
	return fmt.Sprintf("fraos: invalid data length requested: have %d, requested %d", e.Actual, e.Requested)
}
