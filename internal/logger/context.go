package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for one ingestion
// operation (a storage append/read, or a source pull).
type LogContext struct {
	Component   string    // "fraos", "multiverse", "source"
	SeqNo       uint64    // record sequence number, when applicable
	BlockID     string    // block identifier, when applicable
	BlockNumber uint64    // block number, when applicable
	StartTime   time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext scoped to the given component.
func NewLogContext(component string) *LogContext {
	return &LogContext{
		Component: component,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		Component:   lc.Component,
		SeqNo:       lc.SeqNo,
		BlockID:     lc.BlockID,
		BlockNumber: lc.BlockNumber,
		StartTime:   lc.StartTime,
	}
}

// WithSeqNo returns a copy with the sequence number set
func (lc *LogContext) WithSeqNo(seqno uint64) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SeqNo = seqno
	}
	return clone
}

// WithBlock returns a copy with the block identity set
func (lc *LogContext) WithBlock(blockID string, blockNumber uint64) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.BlockID = blockID
		clone.BlockNumber = blockNumber
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
