package mmap

import "sort"

// IndexDescriptor locates a record inside a specific backing mmap chunk.
type IndexDescriptor struct {
	MmapNumber int
	MmapOffset int
	Len        int
}

// MmapChunkAddressMapper tracks the end offset of every record appended to a
// single mmap chunk, relative to the chunk's own start, so that a global
// address can be translated into an (offset, length) pair inside the chunk.
//
// relativeInternalBounds is strictly increasing; relativeInternalBounds[i] is
// the end (exclusive) of the i-th record measured from globalChunkStart.
type MmapChunkAddressMapper struct {
	relativeInternalBounds []int
	globalChunkStart       int
}

// NewMmapChunkAddressMapper creates an empty mapper anchored at
// globalChunkStart.
func NewMmapChunkAddressMapper(globalChunkStart int) *MmapChunkAddressMapper {
	return &MmapChunkAddressMapper{globalChunkStart: globalChunkStart}
}

// GlobalChunkStart returns the global address this chunk begins at.
func (m *MmapChunkAddressMapper) GlobalChunkStart() int {
	return m.globalChunkStart
}

// Size returns the number of bytes recorded in this chunk so far.
func (m *MmapChunkAddressMapper) Size() int {
	if len(m.relativeInternalBounds) == 0 {
		return 0
	}
	return m.relativeInternalBounds[len(m.relativeInternalBounds)-1]
}

// GlobalChunkEnd returns the global address one past the last recorded byte.
func (m *MmapChunkAddressMapper) GlobalChunkEnd() int {
	return m.globalChunkStart + m.Size()
}

// IsEmpty reports whether no record has been recorded yet.
func (m *MmapChunkAddressMapper) IsEmpty() bool {
	return m.Size() == 0
}

// AppendGlobalEnd records a new record ending at the given global address.
func (m *MmapChunkAddressMapper) AppendGlobalEnd(globalEnd int) error {
	if globalEnd <= m.globalChunkStart {
		return ErrInvalidOffsetOrder
	}
	return m.AppendRelativeEnd(globalEnd - m.globalChunkStart)
}

// AppendRelativeEnd records a new record ending at relativeEnd bytes past
// globalChunkStart. relativeEnd must strictly increase past the previous end.
func (m *MmapChunkAddressMapper) AppendRelativeEnd(relativeEnd int) error {
	if relativeEnd == 0 {
		return ErrAppendZeroOffset
	}
	previousEnd := m.Size()
	if previousEnd >= relativeEnd {
		return ErrInvalidOffsetOrder
	}
	m.relativeInternalBounds = append(m.relativeInternalBounds, relativeEnd)
	return nil
}

// Find locates the record containing the given global address within this
// chunk. The mmap number on the returned descriptor is always zero — callers
// that manage multiple chunks (IndexOnMmaps) patch it in.
func (m *MmapChunkAddressMapper) Find(address int) (IndexDescriptor, bool) {
	if m.IsEmpty() || address < m.globalChunkStart || address >= m.GlobalChunkEnd() {
		return IndexDescriptor{}, false
	}

	relativeAddress := address - m.globalChunkStart
	if relativeAddress == 0 {
		return IndexDescriptor{MmapOffset: 0, Len: m.relativeInternalBounds[0]}, true
	}

	bounds := m.relativeInternalBounds
	pos := sort.SearchInts(bounds, relativeAddress)
	if pos < len(bounds) && bounds[pos] == relativeAddress {
		// address sits exactly on a boundary: it is the start of the NEXT
		// record, spanning [bounds[pos], bounds[pos+1]).
		if pos+1 >= len(bounds) {
			return IndexDescriptor{}, false
		}
		return IndexDescriptor{MmapOffset: relativeAddress, Len: bounds[pos+1] - relativeAddress}, true
	}

	// pos is the insertion point: address falls inside the record ending at
	// bounds[pos].
	return IndexDescriptor{MmapOffset: relativeAddress, Len: bounds[pos] - relativeAddress}, true
}

// IndexOnMmaps composes an ordered sequence of chunk address mappers into a
// single address space, binary-searching the chunk list before delegating to
// the chunk's own mapper.
type IndexOnMmaps struct {
	mmaps []*MmapChunkAddressMapper
}

// NewIndexOnMmaps creates an empty index.
func NewIndexOnMmaps() *IndexOnMmaps {
	return &IndexOnMmaps{}
}

// Append adds the next contiguous chunk to the index. A chunk with no
// recorded bytes is silently skipped. next must start exactly where the
// index currently ends.
func (idx *IndexOnMmaps) Append(next *MmapChunkAddressMapper) error {
	if next.IsEmpty() {
		return nil
	}
	if next.GlobalChunkStart() != idx.Len() {
		return ErrChunkNotContiguous
	}
	idx.mmaps = append(idx.mmaps, next)
	return nil
}

// Len returns the total number of bytes indexed across all chunks.
func (idx *IndexOnMmaps) Len() int {
	if len(idx.mmaps) == 0 {
		return 0
	}
	return idx.mmaps[len(idx.mmaps)-1].GlobalChunkEnd()
}

// IsEmpty reports whether the index has no recorded bytes.
func (idx *IndexOnMmaps) IsEmpty() bool {
	return idx.Len() == 0
}

// Find locates the record containing the global address, patching in the
// correct chunk (mmap) number.
func (idx *IndexOnMmaps) Find(address int) (IndexDescriptor, bool) {
	if len(idx.mmaps) == 0 || address < 0 || address >= idx.Len() {
		return IndexDescriptor{}, false
	}

	n := sort.Search(len(idx.mmaps), func(i int) bool {
		return idx.mmaps[i].GlobalChunkEnd() > address
	})
	if n >= len(idx.mmaps) || address < idx.mmaps[n].GlobalChunkStart() {
		return IndexDescriptor{}, false
	}

	desc, ok := idx.mmaps[n].Find(address)
	if !ok {
		return IndexDescriptor{}, false
	}
	desc.MmapNumber = n
	return desc, true
}
