// Package metrics defines the nil-safe metrics interfaces fraos and
// multiverse accept. A nil StorageMetrics or MultiverseMetrics disables
// collection with zero overhead; pkg/metrics/prometheus supplies the live
// Prometheus-backed implementation, wired in through a registration
// indirection so this package imports the prometheus client only for its
// Registry type, never the collector implementations, and fraos/multiverse
// never need to know a concrete metrics backend exists.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	enabled  atomic.Bool
	regMu    sync.Mutex
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection and creates a fresh Prometheus
// registry. Must be called before NewStorageMetrics/NewMultiverseMetrics
// for them to return live collectors instead of nil.
func InitRegistry() *prometheus.Registry {
	regMu.Lock()
	defer regMu.Unlock()
	registry = prometheus.NewRegistry()
	enabled.Store(true)
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return enabled.Load()
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	regMu.Lock()
	defer regMu.Unlock()
	return registry
}

// StorageMetrics observes fraos Database/Appender operations. Pass nil to
// disable collection with zero overhead.
type StorageMetrics interface {
	ObserveAppend(records int, bytes int, durationSeconds float64)
	ObserveGet(durationSeconds float64)
	RecordWatermark(seqno uint64)
	RecordChunkCount(n int)
	RecordCompaction()
	RecordCorruption(kind string)
}

// MultiverseMetrics observes Multiverse/source adapter operations. Pass nil
// to disable collection with zero overhead.
type MultiverseMetrics interface {
	RecordInsert()
	RecordTipCount(n int)
	RecordRootCount(n int)
	RecordDiscarded(n int)
	RecordRollback()
	RecordConfirmed(blockNumber uint64)
}

// newStorageMetrics is supplied by pkg/metrics/prometheus's init().
var newStorageMetrics func() StorageMetrics

// newMultiverseMetrics is supplied by pkg/metrics/prometheus's init().
var newMultiverseMetrics func() MultiverseMetrics

// RegisterStorageMetricsConstructor is called by pkg/metrics/prometheus to
// install the live implementation.
func RegisterStorageMetricsConstructor(ctor func() StorageMetrics) {
	newStorageMetrics = ctor
}

// RegisterMultiverseMetricsConstructor is called by pkg/metrics/prometheus
// to install the live implementation.
func RegisterMultiverseMetricsConstructor(ctor func() MultiverseMetrics) {
	newMultiverseMetrics = ctor
}

// NewStorageMetrics returns a live StorageMetrics if metrics are enabled and
// the prometheus implementation has registered itself, else nil.
func NewStorageMetrics() StorageMetrics {
	if !IsEnabled() || newStorageMetrics == nil {
		return nil
	}
	return newStorageMetrics()
}

// NewMultiverseMetrics returns a live MultiverseMetrics if metrics are
// enabled and the prometheus implementation has registered itself, else nil.
func NewMultiverseMetrics() MultiverseMetrics {
	if !IsEnabled() || newMultiverseMetrics == nil {
		return nil
	}
	return newMultiverseMetrics()
}
