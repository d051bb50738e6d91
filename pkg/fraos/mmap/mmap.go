// Package mmap implements a growable, append-only memory mapping.
//
// A GrowableMmap never remaps bytes that a reader may already hold a slice
// into: once a region of the file is mapped, it stays mapped for the
// lifetime of the GrowableMmap. Growth either extends the current active
// mapping in place (when it has spare capacity) or freezes it into the
// inactive chunk list and opens a fresh active mapping. This is a deliberate
// departure from a simpler truncate-and-remap scheme (the one
// github.com/marmos91/dittofs's pkg/wal/mmap.go and pkg/cache/mmap.go use):
// remapping in place would invalidate byte slices concurrent readers already
// hold.
package mmap

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

const (
	// maxMmapsCount is the number of inactive chunks allowed to accumulate
	// before they are compacted into a single mapping.
	maxMmapsCount = 2048
	// minMmapBytes is the smallest mapping GrowableMmap will ever create
	// for a file-backed store, to keep the number of mmap/remap syscalls
	// bounded when callers grow the file a little at a time.
	minMmapBytes = 4096 * 128
)

type activeMmap struct {
	raw    []byte
	bounds *MmapChunkAddressMapper
}

// GrowableMmap is a sequence of memory mappings addressed as one contiguous,
// append-only byte space. All mutation happens through the current active
// mapping; once full it is frozen (its tail trimmed to its logical length)
// and pushed onto the inactive list, and a new active mapping is opened.
type GrowableMmap struct {
	mu sync.RWMutex

	file     *os.File // nil for an in-memory (anonymous) mapping
	writable bool

	inactiveIndex  *IndexOnMmaps
	inactiveChunks [][]byte // raw mmap'd regions, parallel to inactiveIndex's chunks

	active *activeMmap
}

// New opens a GrowableMmap over file. If file is non-nil and existingLength
// is non-nil, exactly that many bytes (rather than the file's current size)
// are mapped as the initial inactive chunk — used when recovering a store
// whose on-disk size is ahead of its logically valid length. If file is nil,
// New creates an in-memory (anonymous-mapped) store. writable must match how
// file was opened: mapping PROT_WRITE over an O_RDONLY file descriptor fails
// with EACCES, so a read-only store maps PROT_READ only and GrowAndApply is
// never called on it.
func New(file *os.File, existingLength *int, writable bool) (*GrowableMmap, error) {
	g := &GrowableMmap{
		file:          file,
		writable:      writable,
		inactiveIndex: NewIndexOnMmaps(),
	}

	if file == nil {
		return g, nil
	}

	length, err := resolveLength(file, existingLength)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return g, nil
	}

	raw, err := unix.Mmap(int(file.Fd()), 0, length, g.protFlags(), unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: map existing file contents: %w", err)
	}

	bounds := NewMmapChunkAddressMapper(0)
	if err := bounds.AppendRelativeEnd(length); err != nil {
		return nil, err
	}
	g.inactiveIndex.mmaps = append(g.inactiveIndex.mmaps, bounds)
	g.inactiveChunks = append(g.inactiveChunks, raw)

	return g, nil
}

// protFlags returns the mmap protection bits matching how the backing file
// (if any) was opened.
func (g *GrowableMmap) protFlags() int {
	if g.writable {
		return unix.PROT_READ | unix.PROT_WRITE
	}
	return unix.PROT_READ
}

func resolveLength(file *os.File, existingLength *int) (int, error) {
	if existingLength != nil {
		return *existingLength, nil
	}
	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("mmap: stat backing file: %w", err)
	}
	return int(info.Size()), nil
}

// Len returns the total number of valid bytes across every chunk.
func (g *GrowableMmap) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lenLocked()
}

func (g *GrowableMmap) lenLocked() int {
	if g.active != nil {
		return g.active.bounds.GlobalChunkEnd()
	}
	return g.inactiveIndex.Len()
}

// MmapsCount returns the number of distinct memory mappings backing the
// store right now (inactive chunks plus the active one, if any). It exists
// for introspection and tests.
func (g *GrowableMmap) MmapsCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := len(g.inactiveChunks)
	if g.active != nil {
		n++
	}
	return n
}

// GrowAndApply extends the store by extension bytes and calls write with a
// slice of exactly that length to fill in. The returned error from write is
// propagated. GrowAndApply holds the write lock for the whole call, so it
// serializes with itself and with GetSlice (which takes the read lock); the
// new extent is recorded, advancing Len(), only after write returns
// successfully.
func (g *GrowableMmap) GrowAndApply(extension int, write func(dst []byte) error) error {
	if extension == 0 {
		return ErrZeroExtension
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	start, err := g.reserveLocked(extension)
	if err != nil {
		return err
	}
	dst := g.active.raw[start : start+extension]
	if err := write(dst); err != nil {
		return err
	}
	if err := g.active.bounds.AppendRelativeEnd(start + extension); err != nil {
		return err
	}

	if g.file != nil {
		if err := unix.Msync(g.active.raw, unix.MS_SYNC); err != nil {
			return fmt.Errorf("mmap: msync: %w", err)
		}
	}

	return g.rearrangeMmapsLocked()
}

// reserveLocked ensures the active mapping has room for extension more
// bytes (opening or freezing mappings as needed) and returns the offset
// within the active mapping to write at. Caller must hold g.mu for writing
// and must follow up with an AppendRelativeEnd call recording the same
// extension.
func (g *GrowableMmap) reserveLocked(extension int) (int, error) {
	switch {
	case g.active == nil:
		if err := g.openNewActiveLocked(extension); err != nil {
			return 0, err
		}
	case g.active.bounds.Size()+extension > len(g.active.raw):
		if err := g.freezeActiveLocked(); err != nil {
			return 0, err
		}
		if err := g.openNewActiveLocked(extension); err != nil {
			return 0, err
		}
	}

	return g.active.bounds.Size(), nil
}

func (g *GrowableMmap) openNewActiveLocked(extension int) error {
	globalStart := g.inactiveIndex.Len()
	size := extension
	if g.file != nil && size < minMmapBytes {
		size = minMmapBytes
	}

	raw, err := g.createMappingLocked(size, int64(globalStart))
	if err != nil {
		return err
	}

	g.active = &activeMmap{raw: raw, bounds: NewMmapChunkAddressMapper(globalStart)}
	return nil
}

func (g *GrowableMmap) createMappingLocked(size int, offset int64) ([]byte, error) {
	if g.file == nil {
		raw, err := unix.Mmap(-1, 0, size, g.protFlags(), unix.MAP_ANON|unix.MAP_PRIVATE)
		if err != nil {
			return nil, fmt.Errorf("mmap: anonymous map: %w", err)
		}
		return raw, nil
	}

	if err := g.file.Truncate(offset + int64(size)); err != nil {
		return nil, fmt.Errorf("mmap: extend backing file: %w", err)
	}
	raw, err := unix.Mmap(int(g.file.Fd()), offset, size, g.protFlags(), unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: map new chunk: %w", err)
	}
	return raw, nil
}

// freezeActiveLocked trims the active mapping to its logical length and
// demotes it to an inactive chunk. The underlying mapping is never
// unmapped here (only on Close), so slices returned by earlier GetSlice
// calls remain valid.
func (g *GrowableMmap) freezeActiveLocked() error {
	logical := g.active.raw[:g.active.bounds.Size()]
	if err := g.inactiveIndex.Append(g.active.bounds); err != nil {
		return err
	}
	g.inactiveChunks = append(g.inactiveChunks, logical)
	g.active = nil
	return nil
}

// rearrangeMmapsLocked compacts the inactive chunk list into a single
// mapping once it has grown past maxMmapsCount entries. Compaction only
// applies to file-backed stores: an in-memory store has nowhere cheaper to
// read a merged view from than the chunks it already holds.
func (g *GrowableMmap) rearrangeMmapsLocked() error {
	if g.file == nil || len(g.inactiveChunks) <= maxMmapsCount {
		return nil
	}

	total := g.inactiveIndex.Len()
	merged, err := unix.Mmap(int(g.file.Fd()), 0, total, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap: compact inactive chunks: %w", err)
	}

	bounds := NewMmapChunkAddressMapper(0)
	if err := bounds.AppendRelativeEnd(total); err != nil {
		return err
	}

	g.inactiveIndex = &IndexOnMmaps{mmaps: []*MmapChunkAddressMapper{bounds}}
	g.inactiveChunks = [][]byte{merged}
	return nil
}

// GetSlice returns the bytes starting at address and running to the end of
// the recorded extent that contains it (the region written by one
// GrowAndApply call, or a whole chunk for contents mapped at open or merged
// by compaction). Callers that know the exact record length
// (fraos always does, via the seqno index) slice the result down further
// themselves. The returned slice aliases mapped memory directly; it must not
// be retained past Close.
func (g *GrowableMmap) GetSlice(address int) ([]byte, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if address < g.inactiveIndex.Len() {
		desc, ok := g.inactiveIndex.Find(address)
		if !ok {
			return nil, false
		}
		chunk := g.inactiveChunks[desc.MmapNumber]
		return chunk[desc.MmapOffset : desc.MmapOffset+desc.Len], true
	}

	if g.active == nil {
		return nil, false
	}
	desc, ok := g.active.bounds.Find(address)
	if !ok {
		return nil, false
	}
	return g.active.raw[desc.MmapOffset : desc.MmapOffset+desc.Len], true
}

// ShrinkToSize truncates the backing file down to the logical length of the
// store, dropping any tail left over from over-sized mapping growth. It is a
// no-op for in-memory stores.
func (g *GrowableMmap) ShrinkToSize() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.file == nil {
		return nil
	}
	if err := g.file.Truncate(int64(g.lenLocked())); err != nil {
		return fmt.Errorf("mmap: shrink backing file: %w", err)
	}
	return nil
}

// Close unmaps every chunk (active and inactive) and closes the backing
// file, if any.
func (g *GrowableMmap) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if g.active != nil {
		note(unix.Munmap(g.active.raw))
		g.active = nil
	}
	for _, chunk := range g.inactiveChunks {
		note(unix.Munmap(chunk))
	}
	g.inactiveChunks = nil

	if g.file != nil {
		note(g.file.Close())
	}

	return firstErr
}
