package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "positions"

// Metrics holds the collectors of the scanner.
type Metrics struct {
	RPCRequests      *prometheus.CounterVec
	RPCDuration      *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	Enrichments      *prometheus.CounterVec
	ScanDuration     prometheus.Histogram
	ScansTotal       *prometheus.CounterVec
	PositionsTracked *prometheus.GaugeVec
	WalletTVLUSD     *prometheus.GaugeVec
}

// New registers every collector with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RPCRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "JSON-RPC attempts by endpoint, method and result.",
		}, []string{"endpoint", "method", "result"}),

		RPCDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_request_duration_seconds",
			Help:      "Latency of JSON-RPC attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),

		CacheLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Memo cache lookups by outcome (hit, join, miss).",
		}, []string{"outcome"}),

		Enrichments: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Position enrichments by outcome (enriched, partial, dropped).",
		}, []string{"outcome"}),

		ScanDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of one wallet scan.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		ScansTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Wallet scans by result.",
		}, []string{"result"}),

		PositionsTracked: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_positions",
			Help:      "Positions of a wallet by status after the last scan.",
		}, []string{"wallet", "status"}),

		WalletTVLUSD: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_tvl_usd",
			Help:      "USD value of a wallet's positions after the last scan.",
		}, []string{"wallet"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveRPC matches the chain client observer signature.
func (m *Metrics) ObserveRPC(endpoint, method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.RPCRequests.WithLabelValues(endpoint, method, result(err)).Inc()
	m.RPCDuration.WithLabelValues(endpoint, method).Observe(elapsed.Seconds())
}

// ObserveCache matches the cache observer signature.
func (m *Metrics) ObserveCache(outcome string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(outcome).Inc()
}

// ObserveEnrichment counts one enrichment outcome.
func (m *Metrics) ObserveEnrichment(outcome string) {
	if m == nil {
		return
	}
	m.Enrichments.WithLabelValues(outcome).Inc()
}

// ObserveScan records a finished wallet scan.
func (m *Metrics) ObserveScan(wallet string, elapsed time.Duration, active, inactive int, tvlUSD float64, err error) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(result(err)).Inc()
	if err != nil {
		return
	}
	m.ScanDuration.Observe(elapsed.Seconds())
	m.PositionsTracked.WithLabelValues(wallet, "active").Set(float64(active))
	m.PositionsTracked.WithLabelValues(wallet, "inactive").Set(float64(inactive))
	m.WalletTVLUSD.WithLabelValues(wallet).Set(tvlUSD)
}
