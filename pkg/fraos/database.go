package fraos

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dcspark/chainvault/internal/logger"
	"github.com/dcspark/chainvault/pkg/metrics"
)

// Database composes a flatFile and a seqNoIndex under one write mutex,
// appending to the data file before the index on every write: if the
// process crashes between the two, the data file simply has a few trailing
// bytes the index never learns about (an orphan, but harmless — nothing
// ever addresses them). Appending in the other order would instead let the
// index reference bytes that were never written, which getRecordAt would
// then read into an attacker- or crash-controlled garbage slice.
type Database struct {
	flatfile   *flatFile
	seqnoIndex *seqNoIndex
	writeMu    sync.Mutex

	log     *slog.Logger
	metrics metrics.StorageMetrics
}

// Option configures optional observability hooks on a Database. The zero
// value (no options) is fully functional with zero overhead.
type Option func(*Database)

// WithLogger attaches a structured logger; every log line carries
// component="fraos".
func WithLogger(l *slog.Logger) Option {
	return func(d *Database) { d.log = l.With(logger.Component("fraos")) }
}

// WithMetrics attaches a StorageMetrics collector. Passing nil (the
// default) disables collection with zero overhead.
func WithMetrics(m metrics.StorageMetrics) Option {
	return func(d *Database) { d.metrics = m }
}

// File opens (creating if necessary, when writable) a Database rooted at
// dir, with the flat file at dir/data and the sequence number index at
// dir/seqno.
func File(dir string, writable bool, opts ...Option) (*Database, error) {
	if writable {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	} else {
		info, err := os.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrPathNotFound
			}
			return nil, fmt.Errorf("fraos: stat %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, ErrPathNotDir
		}
	}

	flatPath := filepath.Join(dir, "data")
	seqnoPath := filepath.Join(dir, "seqno")
	return newDatabase(&flatPath, &seqnoPath, writable, opts)
}

// FileReadOnly opens an existing Database at dir without permitting writes.
func FileReadOnly(dir string, opts ...Option) (*Database, error) {
	return File(dir, false, opts...)
}

// Memory opens an in-memory Database backed by anonymous mappings only,
// useful for tests and dry runs — nothing is ever written to disk and
// nothing survives process exit.
func Memory(opts ...Option) (*Database, error) {
	return newDatabase(nil, nil, true, opts)
}

func newDatabase(flatfilePath, seqnoPath *string, writable bool, opts []Option) (*Database, error) {
	d := &Database{log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(d)
	}

	seqnoIdx, err := newSeqNoIndex(seqnoPath, writable)
	if err != nil {
		return nil, err
	}
	if err := seqnoIdx.isCorrect(); err != nil {
		if d.metrics != nil {
			d.metrics.RecordCorruption("index_file")
		}
		return nil, err
	}

	existingLength := 0
	if offset, length, ok, err := seqnoIdx.last(); err != nil {
		return nil, err
	} else if ok {
		existingLength = offset + length
	}

	flat, err := newFlatFile(flatfilePath, &existingLength, writable)
	if err != nil {
		return nil, err
	}

	d.flatfile = flat
	d.seqnoIndex = seqnoIdx
	d.log.Debug("database opened", logger.RecordCount(seqnoIdx.len()))
	if d.metrics != nil {
		d.metrics.RecordWatermark(uint64(seqnoIdx.len()))
	}

	return d, nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0o755)
		}
		return fmt.Errorf("fraos: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return ErrPathNotDir
	}
	return nil
}

func openStoreFile(path string, writable bool) (*os.File, error) {
	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if !writable && os.IsNotExist(err) {
			return nil, ErrPathNotFound
		}
		return nil, fmt.Errorf("fraos: open %s: %w", path, err)
	}
	return f, nil
}

// AppendGetSeqno appends records and returns the sequence number assigned
// to the first of them. It returns ok=false if records is empty.
func (d *Database) AppendGetSeqno(records [][]byte) (seqno int, ok bool, err error) {
	if len(records) == 0 {
		return 0, false, nil
	}

	start := time.Now()
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	offset := d.flatfile.memorySize()
	update := make([][2]int, len(records))
	totalBytes := 0
	for i, r := range records {
		update[i] = [2]int{offset, len(r)}
		offset += len(r)
		totalBytes += len(r)
	}

	if err := d.flatfile.append(records); err != nil {
		d.log.Error("append failed writing data file", logger.Err(err))
		return 0, false, err
	}

	seqno, ok, err = d.seqnoIndex.append(update)
	if err != nil {
		d.log.Error("append failed writing seqno index", logger.Err(err))
		return seqno, ok, err
	}

	if d.metrics != nil {
		d.metrics.ObserveAppend(len(records), totalBytes, time.Since(start).Seconds())
		d.metrics.RecordWatermark(uint64(d.seqnoIndex.len()))
	}
	d.log.Debug("appended records", logger.SeqNo(uint64(seqno)), logger.RecordCount(len(records)))

	return seqno, ok, nil
}

// Append writes records, discarding the assigned sequence number.
func (d *Database) Append(records [][]byte) error {
	_, _, err := d.AppendGetSeqno(records)
	return err
}

// PutSeqno appends a single record and returns its sequence number.
func (d *Database) PutSeqno(record []byte) (int, error) {
	seqno, ok, err := d.AppendGetSeqno([][]byte{record})
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrIndexFileDamaged
	}
	return seqno, nil
}

// Put appends a single record, discarding its sequence number.
func (d *Database) Put(record []byte) error {
	_, err := d.PutSeqno(record)
	return err
}

// GetBySeqno returns the record at seqno, or ok=false if it doesn't exist.
func (d *Database) GetBySeqno(seqno int) ([]byte, bool, error) {
	start := time.Now()
	offset, length, ok, err := d.seqnoIndex.getOffsetAndLength(seqno)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	record, found, err := d.flatfile.getRecordAt(offset, length)
	if d.metrics != nil {
		d.metrics.ObserveGet(time.Since(start).Seconds())
	}
	return record, found, err
}

// Last returns the most recently appended record.
func (d *Database) Last() ([]byte, bool, error) {
	if d.IsEmpty() {
		return nil, false, nil
	}
	return d.GetBySeqno(d.Len() - 1)
}

// Len returns the number of records stored.
func (d *Database) Len() int { return d.seqnoIndex.len() }

// IsEmpty reports whether the database has no records.
func (d *Database) IsEmpty() bool { return d.seqnoIndex.isEmpty() }

// IterFromSeqno returns an iterator over records starting at seqno.
func (d *Database) IterFromSeqno(seqno int) *SeqNoIter {
	return newSeqNoIter(d, seqno)
}

// MmapsCountIndex and MmapsCountData report the number of distinct memory
// mappings currently backing the index and data files respectively; they
// exist for tests and introspection, not for production decision-making.
func (d *Database) MmapsCountIndex() int { return d.seqnoIndex.mmapsCount() }
func (d *Database) MmapsCountData() int  { return d.flatfile.mmapsCount() }

// Close shrinks both backing files down to their logical watermark and
// unmaps everything. Errors from shrinking are not fatal to unmapping: both
// steps are attempted, and the first error encountered is returned.
func (d *Database) Close() error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	note(d.seqnoIndex.shrinkToSize())
	note(d.flatfile.shrinkToSize())
	note(d.seqnoIndex.close())
	note(d.flatfile.close())

	if firstErr != nil {
		d.log.Error("close encountered an error", logger.Err(firstErr))
	} else {
		d.log.Debug("database closed")
	}

	return firstErr
}
