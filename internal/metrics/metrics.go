package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Exchange REST metrics
	ExchangeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_api_requests_total",
			Help: "Total number of exchange REST API requests",
		},
		[]string{"exchange", "endpoint", "status"},
	)
	ExchangeRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "exchange_api_request_duration_seconds",
			Help: "Duration of exchange REST API requests in seconds",
		},
		[]string{"exchange", "endpoint"},
	)
	RateLimitWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exchange_rate_limit_wait_seconds",
			Help:    "Time spent waiting for the minimum request interval",
			Buckets: []float64{0, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"exchange"},
	)
	RequestsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exchange_api_requests_in_flight",
			Help: "Current number of exchange requests past the concurrency gate",
		},
		[]string{"exchange"},
	)

	// Aggregation metrics
	OrderBookFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderbook_fetches_total",
			Help: "Order book fetches by outcome",
		},
		[]string{"exchange", "outcome"},
	)
	SnapshotPairs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orderbook_snapshot_pairs",
			Help: "Number of pairs in the latest cached snapshot",
		},
		[]string{"exchange"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(ExchangeRequestsTotal)
	prometheus.MustRegister(ExchangeRequestDuration)
	prometheus.MustRegister(RateLimitWait)
	prometheus.MustRegister(RequestsInFlight)

	prometheus.MustRegister(OrderBookFetchesTotal)
	prometheus.MustRegister(SnapshotPairs)
}
