package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the vault service.
type Metrics struct {
	// --- Vault operations ---
	VaultOpsTotal    *prometheus.CounterVec
	VaultOpsRejected *prometheus.CounterVec
	VaultOpDuration  *prometheus.HistogramVec
	TotalAssetValue  *prometheus.GaugeVec
	ShareSupply      *prometheus.GaugeVec
	HolderCount      *prometheus.GaugeVec
	ManagerBalance   *prometheus.GaugeVec
	InPosition       *prometheus.GaugeVec

	// --- Events & publishing ---
	EventsRecorded *prometheus.CounterVec
	PublishDrops   prometheus.Counter

	// --- Oracle ---
	OracleStaleRejections *prometheus.CounterVec
	OraclePriceUpdates    *prometheus.CounterVec

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistLastSequence  prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		VaultOpsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rangevault_ops_total",
			Help: "Vault operations completed",
		}, []string{"vault", "op"}),

		VaultOpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rangevault_ops_rejected_total",
			Help: "Vault operations rejected (validation, gating, slippage)",
		}, []string{"vault", "op", "reason"}),

		VaultOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rangevault_op_duration_seconds",
			Help:    "Time to run a single vault operation",
			Buckets: opBuckets,
		}, []string{"vault", "op"}),

		TotalAssetValue: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rangevault_total_asset_value",
			Help: "Last computed vault value in collateral terms",
		}, []string{"vault"}),

		ShareSupply: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rangevault_share_supply",
			Help: "Outstanding share supply",
		}, []string{"vault"}),

		HolderCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rangevault_holder_count",
			Help: "Current holder set size",
		}, []string{"vault"}),

		ManagerBalance: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rangevault_manager_balance",
			Help: "Accrued manager fee balance in collateral terms",
		}, []string{"vault"}),

		InPosition: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rangevault_in_position",
			Help: "1 while the vault holds a liquidity range",
		}, []string{"vault"}),

		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rangevault_events_recorded_total",
			Help: "Lifecycle events recorded",
		}, []string{"event_type"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rangevault_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		OracleStaleRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rangevault_oracle_stale_rejections_total",
			Help: "Operations refused on a stale price feed",
		}, []string{"vault"}),

		OraclePriceUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rangevault_oracle_price_updates_total",
			Help: "Price updates applied from the feed stream",
		}, []string{"symbol"}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rangevault_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rangevault_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rangevault_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rangevault_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rangevault_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rangevault_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rangevault_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rangevault_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),
	}
}
