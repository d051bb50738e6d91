package prometheus

import (
	"testing"

	"github.com/dcspark/chainvault/pkg/metrics"
	"github.com/stretchr/testify/require"
)

func TestStorageMetrics_RegisteredAndNilSafe(t *testing.T) {
	metrics.InitRegistry()

	m := metrics.NewStorageMetrics()
	require.NotNil(t, m)

	// Nil-safe: a nil receiver must not panic on any method.
	var nilMetrics *storageMetrics
	require.NotPanics(t, func() {
		nilMetrics.ObserveAppend(1, 10, 0.001)
		nilMetrics.ObserveGet(0.001)
		nilMetrics.RecordWatermark(5)
		nilMetrics.RecordChunkCount(1)
		nilMetrics.RecordCompaction()
		nilMetrics.RecordCorruption("data_file")
	})

	require.NotPanics(t, func() {
		m.ObserveAppend(3, 30, 0.002)
		m.RecordWatermark(8)
	})
}

func TestMultiverseMetrics_RegisteredAndNilSafe(t *testing.T) {
	metrics.InitRegistry()

	m := metrics.NewMultiverseMetrics()
	require.NotNil(t, m)

	var nilMetrics *multiverseMetrics
	require.NotPanics(t, func() {
		nilMetrics.RecordInsert()
		nilMetrics.RecordTipCount(1)
		nilMetrics.RecordRootCount(1)
		nilMetrics.RecordDiscarded(2)
		nilMetrics.RecordRollback()
		nilMetrics.RecordConfirmed(10)
	})
}
