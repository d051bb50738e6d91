package fraos

import (
	"encoding/binary"
	"os"
)

// entrySize is the width of one (offset, length) pair in the sequence
// number index: two little-endian uint64s. This module targets 64-bit
// hosts only; porting the on-disk format to a 32-bit host would require a
// format version bump, since these widths are fixed at 8 bytes each rather
// than word-sized.
const entrySize = 16

// seqNoIndex maps a monotonically increasing sequence number to the
// (offset, length) of the corresponding record in a flatFile.
type seqNoIndex struct {
	inner *appender
}

func newSeqNoIndex(path *string, writable bool) (*seqNoIndex, error) {
	idx, err := openSeqNoAppender(path, nil, writable)
	if err != nil {
		return nil, err
	}

	_, lastLen, ok, err := idx.last()
	if err != nil {
		return nil, err
	}
	if !ok {
		return idx, nil
	}
	if lastLen != 0 {
		return idx, nil
	}

	// The store was not shrunk to fit on its previous close (or crashed
	// mid-write): the index file may have a zero-padded tail left over
	// from a growth allocation. Binary-search for the real end.
	actualLen, err := idx.findActualEnd()
	if err != nil {
		return nil, err
	}
	existingBytes := entrySize * actualLen
	return openSeqNoAppender(path, &existingBytes, writable)
}

func openSeqNoAppender(path *string, existingLength *int, writable bool) (*seqNoIndex, error) {
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
	return &seqNoIndex{inner: a}, nil
}

// append adds the given (offset, length) pairs to the index and returns the
// sequence number assigned to the first of them.
func (s *seqNoIndex) append(records [][2]int) (int, bool, error) {
	if len(records) == 0 {
		return 0, false, nil
	}
	for _, r := range records {
		if r[1] == 0 {
			return 0, false, ErrEmptyRecordAppended
		}
	}

	sizeInc := entrySize * len(records)
	currentSeqno := s.len()

	err := s.inner.append(sizeInc, func(dst []byte) error {
		pos := 0
		for _, r := range records {
			binary.LittleEndian.PutUint64(dst[pos:pos+8], uint64(r[0]))
			binary.LittleEndian.PutUint64(dst[pos+8:pos+16], uint64(r[1]))
			pos += entrySize
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	return currentSeqno, true, nil
}

func (s *seqNoIndex) getOffsetAndLength(seqno int) (offset, length int, ok bool, err error) {
	data, found := s.inner.getData(seqno * entrySize)
	if !found {
		return 0, 0, false, nil
	}
	if len(data) < entrySize {
		return 0, 0, false, &DataLengthError{Actual: len(data), Requested: entrySize}
	}
	offset = int(binary.LittleEndian.Uint64(data[0:8]))
	length = int(binary.LittleEndian.Uint64(data[8:16]))
	return offset, length, true, nil
}

func (s *seqNoIndex) getLengthAt(seqno int) (int, error) {
	_, length, ok, err := s.getOffsetAndLength(seqno)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrIndexFileDamaged
	}
	return length, nil
}

func (s *seqNoIndex) len() int {
	return s.inner.memorySize() / entrySize
}

func (s *seqNoIndex) isEmpty() bool {
	return s.len() == 0
}

func (s *seqNoIndex) isCorrect() error {
	if s.inner.memorySize()%entrySize != 0 {
		return ErrIndexFileDamaged
	}
	return nil
}

func (s *seqNoIndex) last() (offset, length int, ok bool, err error) {
	if s.isEmpty() {
		return 0, 0, false, nil
	}
	return s.getOffsetAndLength(s.len() - 1)
}

func (s *seqNoIndex) shrinkToSize() error { return s.inner.shrinkToSize() }
func (s *seqNoIndex) mmapsCount() int     { return s.inner.mmapsCount() }
func (s *seqNoIndex) close() error        { return s.inner.close() }

// findActualEnd binary-searches a seqno index whose tail may be zero-padded
// (from an over-allocated growth that was never shrunk to fit) for the last
// entry with a non-zero length, returning the count of genuinely written
// entries. The index's lengths are always non-zero for a real entry, so a
// zero length can only mean "never written" — and because growth always
// extends the file monotonically, every written entry precedes every
// zero-padded one.
func (s *seqNoIndex) findActualEnd() (int, error) {
	start := 0
	length := s.len()
	end := length

	if end == 0 {
		return 0, nil
	}

	first, err := s.getLengthAt(start)
	if err != nil {
		return 0, err
	}
	if first == 0 {
		return 0, nil
	}

	lastLen, err := s.getLengthAt(end - 1)
	if err != nil {
		return 0, err
	}
	if lastLen != 0 {
		return end, nil
	}

	for start < length-1 {
		startLen, err := s.getLengthAt(start)
		if err != nil {
			return 0, err
		}
		nextLen, err := s.getLengthAt(start + 1)
		if err != nil {
			return 0, err
		}
		if startLen != 0 && nextLen == 0 {
			return start + 1, nil
		}

		mid := (start + end) / 2
		midLen, err := s.getLengthAt(mid)
		if err != nil {
			return 0, err
		}
		if midLen == 0 {
			end = mid
		} else {
			start = mid
		}
	}

	return 0, ErrIndexFileDamaged
}
