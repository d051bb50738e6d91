package fraos

import (
	"fmt"
	"os"
)

// flatFile stores raw record bytes back to back, with no framing of its
// own — the seqnoIndex records where each record starts and how long it is.
type flatFile struct {
	inner *appender
}

func newFlatFile(path *string, existingLength *int, writable bool) (*flatFile, error) {
	var file *os.File
	if path != nil {
		f, err := openStoreFile(*path, writable)
		if err != nil {
			return nil, err
		}
		file = f
	}

	a, err := newAppender(file, existingLength, writable)
	if err != nil {
		return nil, err
	}
	return &flatFile{inner: a}, nil
}

// append writes records back to back and returns nothing — callers that
// need the assigned offsets compute them themselves before calling, exactly
// as the seqno index does when building its own update batch.
func (f *flatFile) append(records [][]byte) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if len(r) == 0 {
			return ErrEmptyRecordAppended
		}
	}

	sizeInc := 0
	for _, r := range records {
		sizeInc += len(r)
	}

	return f.inner.append(sizeInc, func(dst []byte) error {
		pos := 0
		for _, r := range records {
			n := copy(dst[pos:], r)
			if n != len(r) {
				return fmt.Errorf("fraos: short write into flat file mapping")
			}
			pos += n
		}
		return nil
	})
}

func (f *flatFile) getRecordAt(offset, length int) ([]byte, bool, error) {
	data, ok := f.inner.getData(offset)
	if !ok {
		return nil, false, nil
	}
	if len(data) < length {
		return nil, false, &DataLengthError{Actual: len(data), Requested: length}
	}
	out := make([]byte, length)
	copy(out, data[:length])
	return out, true, nil
}

func (f *flatFile) memorySize() int     { return f.inner.memorySize() }
func (f *flatFile) shrinkToSize() error { return f.inner.shrinkToSize() }
func (f *flatFile) mmapsCount() int     { return f.inner.mmapsCount() }
func (f *flatFile) close() error        { return f.inner.close() }
