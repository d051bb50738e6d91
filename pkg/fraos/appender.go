package fraos

import (
	"os"
	"sync/atomic"

	fmmap "github.com/dcspark/chainvault/pkg/fraos/mmap"
)

// appender wraps a GrowableMmap with an atomically published watermark, so
// that GetData never has to take the mmap's internal read lock just to
// learn how much of the store is valid: actualSize is only stored after a
// write has fully landed, so any goroutine that observes a given value of
// actualSize is guaranteed (by Go's memory model, via the happens-before
// edge the store/load pair establishes) to see every byte up to it.
type appender struct {
	mmap       *fmmap.GrowableMmap
	actualSize atomic.Uint64
}

func newAppender(file *os.File, existingLength *int, writable bool) (*appender, error) {
	m, err := fmmap.New(file, existingLength, writable)
	if err != nil {
		return nil, err
	}

	a := &appender{mmap: m}
	a.actualSize.Store(uint64(m.Len()))
	return a, nil
}

// append grows the store by sizeInc bytes and hands the destination slice to
// write. Concurrent appenders are the caller's problem (Database serializes
// them with its own write mutex); append itself only guards against the
// GrowableMmap's internal lock.
func (a *appender) append(sizeInc int, write func([]byte) error) error {
	if sizeInc == 0 {
		return nil
	}

	if err := a.mmap.GrowAndApply(sizeInc, write); err != nil {
		return err
	}
	a.actualSize.Add(uint64(sizeInc))
	return nil
}

// getData returns the bytes at offset, or false if offset is beyond the
// published watermark.
func (a *appender) getData(offset int) ([]byte, bool) {
	if uint64(offset) >= a.actualSize.Load() {
		return nil, false
	}
	return a.mmap.GetSlice(offset)
}

func (a *appender) memorySize() int {
	return int(a.actualSize.Load())
}

func (a *appender) shrinkToSize() error {
	return a.mmap.ShrinkToSize()
}

func (a *appender) mmapsCount() int {
	return a.mmap.MmapsCount()
}

func (a *appender) close() error {
	return a.mmap.Close()
}
