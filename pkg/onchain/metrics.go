package onchain

import "github.com/prometheus/client_golang/prometheus"

// Metrics is C5's metrics surface (§9: "singleton via constructor
// injection for testability"): NewMetrics registers its counters against
// the given registerer once and hands back the instance every collaborator
// records through, rather than a package-level init()+MustRegister against
// the global default registry (which would panic on a second registration
// within the same process, e.g. two indexer instances in one test binary).
type Metrics struct {
	errors             *prometheus.CounterVec
	outsideMarketPrice prometheus.Counter
}

// NewMetrics registers onchain_order_errors{error_type} and
// onchain_orders_outside_market_price against reg. Pass a fresh
// prometheus.NewRegistry() per test to avoid cross-test registration
// collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onchain_order_errors",
			Help: "On-chain order indexing errors, partitioned by classified error type.",
		}, []string{"error_type"}),
		outsideMarketPrice: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onchain_orders_outside_market_price",
			Help: "On-chain placements whose limits disagree with their resolved quote.",
		}),
	}
	reg.MustRegister(m.errors, m.outsideMarketPrice)
	return m
}

// RecordError increments the error counter for the given classification
// (e.g. "bad_parsing", "no_metadata", or "placement_" followed by a
// PlacementErrorKind's String()).
func (m *Metrics) RecordError(errorType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errorType).Inc()
}

// RecordOutsideMarketPrice increments the outside-market-price observation.
func (m *Metrics) RecordOutsideMarketPrice() {
	if m == nil {
		return
	}
	m.outsideMarketPrice.Inc()
}
