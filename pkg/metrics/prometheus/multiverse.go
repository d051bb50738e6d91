package prometheus

import (
	"github.com/dcspark/chainvault/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterMultiverseMetricsConstructor(func() metrics.MultiverseMetrics {
		return newMultiverseMetrics()
	})
}

type multiverseMetrics struct {
	inserts        prometheus.Counter
	tipCount       prometheus.Gauge
	rootCount      prometheus.Gauge
	discardedTotal prometheus.Counter
	rollbacks      prometheus.Counter
	confirmedTip   prometheus.Gauge
}

func newMultiverseMetrics() *multiverseMetrics {
	reg := metrics.GetRegistry()
	return &multiverseMetrics{
		inserts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chainvault_multiverse_inserts_total",
			Help: "Total number of blocks inserted into the multiverse.",
		}),
		tipCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "chainvault_multiverse_tip_count",
			Help: "Current number of tips (entries with no children).",
		}),
		rootCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "chainvault_multiverse_root_count",
			Help: "Current number of roots (entries with no resolvable parent).",
		}),
		discardedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chainvault_multiverse_discarded_total",
			Help: "Total number of entries discarded by a selection rule.",
		}),
		rollbacks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chainvault_multiverse_rollbacks_total",
			Help: "Total number of rollback events emitted by ForkHandlingSource.",
		}),
		confirmedTip: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "chainvault_multiverse_confirmed_block_number",
			Help: "Block number of the most recently confirmed block.",
		}),
	}
}

func (m *multiverseMetrics) RecordInsert() {
	if m == nil {
		return
	}
	m.inserts.Inc()
}

func (m *multiverseMetrics) RecordTipCount(n int) {
	if m == nil {
		return
	}
	m.tipCount.Set(float64(n))
}

func (m *multiverseMetrics) RecordRootCount(n int) {
	if m == nil {
		return
	}
	m.rootCount.Set(float64(n))
}

func (m *multiverseMetrics) RecordDiscarded(n int) {
	if m == nil {
		return
	}
	m.discardedTotal.Add(float64(n))
}

func (m *multiverseMetrics) RecordRollback() {
	if m == nil {
		return
	}
	m.rollbacks.Inc()
}

func (m *multiverseMetrics) RecordConfirmed(blockNumber uint64) {
	if m == nil {
		return
	}
	m.confirmedTip.Set(float64(blockNumber))
}
