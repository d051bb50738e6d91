// Package prometheus implements pkg/metrics's StorageMetrics and
// MultiverseMetrics interfaces on top of client_golang, registering itself
// with pkg/metrics via an init-time constructor indirection so that package
// never needs to import this one.
package prometheus

import (
	"github.com/dcspark/chainvault/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterStorageMetricsConstructor(func() metrics.StorageMetrics {
		return newStorageMetrics()
	})
}

type storageMetrics struct {
	appendOps       prometheus.Counter
	appendRecords   prometheus.Counter
	appendBytes     prometheus.Counter
	appendDuration  prometheus.Histogram
	getDuration     prometheus.Histogram
	watermark       prometheus.Gauge
	chunkCount      prometheus.Gauge
	compactions     prometheus.Counter
	corruptionsByKind *prometheus.CounterVec
}

func newStorageMetrics() *storageMetrics {
	reg := metrics.GetRegistry()
	return &storageMetrics{
		appendOps: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chainvault_storage_append_operations_total",
			Help: "Total number of Database.Append calls.",
		}),
		appendRecords: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chainvault_storage_append_records_total",
			Help: "Total number of records appended across all Append calls.",
		}),
		appendBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chainvault_storage_append_bytes_total",
			Help: "Total number of record bytes appended.",
		}),
		appendDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "chainvault_storage_append_duration_seconds",
			Help:    "Duration of Database.Append calls.",
			Buckets: prometheus.DefBuckets,
		}),
		getDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "chainvault_storage_get_duration_seconds",
			Help:    "Duration of Database.GetBySeqno calls.",
			Buckets: prometheus.DefBuckets,
		}),
		watermark: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "chainvault_storage_watermark_seqno",
			Help: "Current Appender actual_size watermark, in records.",
		}),
		chunkCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "chainvault_storage_inactive_chunk_count",
			Help: "Current number of frozen inactive mmap chunks.",
		}),
		compactions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chainvault_storage_compactions_total",
			Help: "Total number of inactive-chunk compaction passes.",
		}),
		corruptionsByKind: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "chainvault_storage_corruption_total",
			Help: "Total corruption detections by kind (data_file, index_file).",
		}, []string{"kind"}),
	}
}

func (m *storageMetrics) ObserveAppend(records, bytes int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.appendOps.Inc()
	m.appendRecords.Add(float64(records))
	m.appendBytes.Add(float64(bytes))
	m.appendDuration.Observe(durationSeconds)
}

func (m *storageMetrics) ObserveGet(durationSeconds float64) {
	if m == nil {
		return
	}
	m.getDuration.Observe(durationSeconds)
}

func (m *storageMetrics) RecordWatermark(seqno uint64) {
	if m == nil {
		return
	}
	m.watermark.Set(float64(seqno))
}

func (m *storageMetrics) RecordChunkCount(n int) {
	if m == nil {
		return
	}
	m.chunkCount.Set(float64(n))
}

func (m *storageMetrics) RecordCompaction() {
	if m == nil {
		return
	}
	m.compactions.Inc()
}

func (m *storageMetrics) RecordCorruption(kind string) {
	if m == nil {
		return
	}
	m.corruptionsByKind.WithLabelValues(kind).Inc()
}
