package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the ingestion stack.
// Use these keys consistently so log lines from fraos and multiverse can be
// aggregated and queried together.
const (
	// ========================================================================
	// Component identification
	// ========================================================================
	KeyComponent = "component" // "fraos", "multiverse", "source"

	// ========================================================================
	// Storage layer (fraos)
	// ========================================================================
	KeySeqNo        = "seqno"         // record sequence number
	KeyOffset       = "offset"        // byte offset in the flat file
	KeyLength       = "length"        // record byte length
	KeyRecordCount  = "record_count"  // number of records in an append batch
	KeyWatermark    = "watermark"     // Appender actual_size watermark
	KeyChunkCount   = "chunk_count"   // inactive mmap chunk count
	KeyCompacted    = "compacted"     // whether a compaction pass ran

	// ========================================================================
	// Multiverse / fork tracking
	// ========================================================================
	KeyBlockID     = "block_id"
	KeyParentID    = "parent_id"
	KeyBlockNumber = "block_number"
	KeyDepth       = "depth"
	KeyAgeGap      = "age_gap"
	KeyTipCount    = "tip_count"
	KeyRootCount   = "root_count"
	KeyDiscarded   = "discarded_count"
	KeyStoreFrom   = "store_from"

	// ========================================================================
	// Source adapters
	// ========================================================================
	KeyRollbackPoint = "rollback_point"
	KeyReconnect      = "reconnect_attempt"

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyPath       = "path"
)

// Component returns a slog.Attr identifying the subsystem emitting the log line.
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// SeqNo returns a slog.Attr for a record sequence number.
func SeqNo(seqno uint64) slog.Attr {
	return slog.Uint64(KeySeqNo, seqno)
}

// Offset returns a slog.Attr for a byte offset.
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// Length returns a slog.Attr for a byte length.
func Length(n uint64) slog.Attr {
	return slog.Uint64(KeyLength, n)
}

// RecordCount returns a slog.Attr for the number of records in a batch.
func RecordCount(n int) slog.Attr {
	return slog.Int(KeyRecordCount, n)
}

// Watermark returns a slog.Attr for the Appender's published size.
func Watermark(n uint64) slog.Attr {
	return slog.Uint64(KeyWatermark, n)
}

// ChunkCount returns a slog.Attr for the number of inactive mmap chunks.
func ChunkCount(n int) slog.Attr {
	return slog.Int(KeyChunkCount, n)
}

// Compacted returns a slog.Attr recording whether a compaction pass ran.
func Compacted(ran bool) slog.Attr {
	return slog.Bool(KeyCompacted, ran)
}

// BlockID returns a slog.Attr for a block identifier, formatted generically
// via fmt.Sprint since K is caller-defined.
func BlockID(id any) slog.Attr {
	return slog.String(KeyBlockID, fmt.Sprint(id))
}

// ParentID returns a slog.Attr for a parent block identifier.
func ParentID(id any) slog.Attr {
	return slog.String(KeyParentID, fmt.Sprint(id))
}

// BlockNumber returns a slog.Attr for a block number.
func BlockNumber(n uint64) slog.Attr {
	return slog.Uint64(KeyBlockNumber, n)
}

// Depth returns a slog.Attr for a confirmation depth.
func Depth(d int) slog.Attr {
	return slog.Int(KeyDepth, d)
}

// AgeGap returns a slog.Attr for an age-gap threshold.
func AgeGap(n uint64) slog.Attr {
	return slog.Uint64(KeyAgeGap, n)
}

// TipCount returns a slog.Attr for the current tip-set size.
func TipCount(n int) slog.Attr {
	return slog.Int(KeyTipCount, n)
}

// RootCount returns a slog.Attr for the current root-set size.
func RootCount(n int) slog.Attr {
	return slog.Int(KeyRootCount, n)
}

// Discarded returns a slog.Attr for the number of keys discarded by a
// selection rule.
func Discarded(n int) slog.Attr {
	return slog.Int(KeyDiscarded, n)
}

// StoreFrom returns a slog.Attr for the persistence threshold block number.
func StoreFrom(n uint64) slog.Attr {
	return slog.Uint64(KeyStoreFrom, n)
}

// RollbackPoint returns a slog.Attr for the ancestor point a rollback event
// resumes from.
func RollbackPoint(point any) slog.Attr {
	return slog.String(KeyRollbackPoint, fmt.Sprint(point))
}

// Reconnect returns a slog.Attr for a source reconnect attempt counter.
func Reconnect(n int) slog.Attr {
	return slog.Int(KeyReconnect, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Path returns a slog.Attr for a filesystem path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}
