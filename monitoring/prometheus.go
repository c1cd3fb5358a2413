package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledgerd/logx"
)

type nodePromMetrics struct {
	nodeUpUnixSeconds prometheus.Gauge
	stateVisits       *prometheus.CounterVec
	blockHeight       prometheus.Gauge
	blockInterval     prometheus.Histogram
	executedTxCount   prometheus.Counter
	removedBlockCount prometheus.Counter
	mempoolSize       prometheus.Gauge
	panicCount        prometheus.Counter
}

func newNodePromMetrics() *nodePromMetrics {
	return &nodePromMetrics{
		nodeUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledgerd_node_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the node",
			},
		),
		stateVisits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerd_coordinator_state_visits_total",
				Help: "The total number of entries into each coordinator state",
			},
			[]string{"state"},
		),
		blockHeight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledgerd_node_block_height",
				Help: "The block number of the last executed block",
			},
		),
		blockInterval: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "ledgerd_node_block_interval_seconds",
				Help: "Duration in seconds between two consecutive block commits",
			},
		),
		executedTxCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ledgerd_node_executed_tx_total",
				Help: "The total number of transactions marked executed",
			},
		),
		removedBlockCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ledgerd_node_removed_block_total",
				Help: "The total number of blocks purged after failed validation",
			},
		),
		mempoolSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledgerd_node_mempool_size",
				Help: "The total number of transactions indexed in node's mempool",
			},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ledgerd_node_panic_total",
				Help: "The total number of recovered panics",
			},
		),
	}
}

var (
	nodeMetrics *nodePromMetrics
	initOnce    sync.Once
)

// InitMetrics registers the node metrics. Safe to call more than once; the
// package funcs are no-ops until it runs.
func InitMetrics() {
	initOnce.Do(func() {
		nodeMetrics = newNodePromMetrics()
		nodeMetrics.nodeUpUnixSeconds.SetToCurrentTime()
	})
}

// RegisterMetrics exposes the prometheus handler on the mux.
func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func IncStateVisit(state string) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.stateVisits.With(prometheus.Labels{"state": state}).Inc()
}

func SetBlockHeight(blockHeight uint64) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.blockHeight.Set(float64(blockHeight))
}

func RecordBlockInterval(duration time.Duration) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.blockInterval.Observe(duration.Seconds())
}

func AddExecutedTxCount(count int) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.executedTxCount.Add(float64(count))
}

func IncreaseRemovedBlockCount() {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.removedBlockCount.Inc()
}

func SetMempoolSize(size int) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.mempoolSize.Set(float64(size))
}

func IncreasePanicCount() {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.panicCount.Inc()
}
