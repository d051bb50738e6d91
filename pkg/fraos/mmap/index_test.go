package mmap

import "testing"

func TestMmapChunkAddressMapperBaseIndex(t *testing.T) {
	chunk0 := NewMmapChunkAddressMapper(0)
	if err := chunk0.AppendRelativeEnd(34); err != nil {
		t.Fatalf("append chunk0: %v", err)
	}

	chunk1 := NewMmapChunkAddressMapper(34)
	if err := chunk1.AppendRelativeEnd(8); err != nil {
		t.Fatalf("append chunk1 first: %v", err)
	}
	if err := chunk1.AppendRelativeEnd(33); err != nil {
		t.Fatalf("append chunk1 second: %v", err)
	}

	chunk2 := NewMmapChunkAddressMapper(67)
	if err := chunk2.AppendRelativeEnd(29); err != nil {
		t.Fatalf("append chunk2 first: %v", err)
	}
	if err := chunk2.AppendRelativeEnd(36); err != nil {
		t.Fatalf("append chunk2 second: %v", err)
	}
	if err := chunk2.AppendRelativeEnd(353); err != nil {
		t.Fatalf("append chunk2 third: %v", err)
	}

	idx := NewIndexOnMmaps()
	for i, c := range []*MmapChunkAddressMapper{chunk0, chunk1, chunk2} {
		if err := idx.Append(c); err != nil {
			t.Fatalf("append chunk %d: %v", i, err)
		}
	}

	cases := []struct {
		address int
		want    IndexDescriptor
		found   bool
	}{
		{0, IndexDescriptor{MmapNumber: 0, MmapOffset: 0, Len: 34}, true},
		{34, IndexDescriptor{MmapNumber: 1, MmapOffset: 0, Len: 8}, true},
		{42, IndexDescriptor{MmapNumber: 1, MmapOffset: 8, Len: 25}, true},
		{67, IndexDescriptor{MmapNumber: 2, MmapOffset: 0, Len: 29}, true},
		{96, IndexDescriptor{MmapNumber: 2, MmapOffset: 29, Len: 7}, true},
		{420, IndexDescriptor{}, false},
		{1000, IndexDescriptor{}, false},
	}

	for _, tc := range cases {
		got, ok := idx.Find(tc.address)
		if ok != tc.found {
			t.Fatalf("find(%d): found=%v want=%v", tc.address, ok, tc.found)
		}
		if ok && got != tc.want {
			t.Fatalf("find(%d) = %+v, want %+v", tc.address, got, tc.want)
		}
	}
}

func TestIndexOnMmapsMultipleChunks(t *testing.T) {
	idx := NewIndexOnMmaps()

	empty := NewMmapChunkAddressMapper(0)
	if err := idx.Append(empty); err != nil {
		t.Fatalf("appending an empty chunk should be a no-op: %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("index should still be empty, got len %d", idx.Len())
	}

	chunk0 := NewMmapChunkAddressMapper(0)
	if err := chunk0.AppendRelativeEnd(8); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := idx.Append(chunk0); err != nil {
		t.Fatalf("append chunk0: %v", err)
	}

	gapChunk := NewMmapChunkAddressMapper(9)
	if err := gapChunk.AppendRelativeEnd(1); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := idx.Append(gapChunk); err != ErrChunkNotContiguous {
		t.Fatalf("expected ErrChunkNotContiguous, got %v", err)
	}

	chunk1 := NewMmapChunkAddressMapper(8)
	if err := chunk1.AppendRelativeEnd(5); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := idx.Append(chunk1); err != nil {
		t.Fatalf("append contiguous chunk1: %v", err)
	}
	if idx.Len() != 13 {
		t.Fatalf("expected len 13, got %d", idx.Len())
	}
}

func TestMmapChunkAddressMapperRejectsNonIncreasing(t *testing.T) {
	m := NewMmapChunkAddressMapper(0)
	if err := m.AppendRelativeEnd(0); err != ErrAppendZeroOffset {
		t.Fatalf("expected ErrAppendZeroOffset, got %v", err)
	}
	if err := m.AppendRelativeEnd(10); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := m.AppendRelativeEnd(10); err != ErrInvalidOffsetOrder {
		t.Fatalf("expected ErrInvalidOffsetOrder for a repeated end, got %v", err)
	}
	if err := m.AppendRelativeEnd(5); err != ErrInvalidOffsetOrder {
		t.Fatalf("expected ErrInvalidOffsetOrder for a decreasing end, got %v", err)
	}
}
