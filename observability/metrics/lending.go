package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics exposes counters for the lending engine's committed
// operations and liquidation outcomes.
type LendingMetrics struct {
	operations *prometheus.CounterVec
	badDebt    prometheus.Counter
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the process-wide lending metrics registry, registering the
// collectors on first use.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_operations_total",
				Help: "Count of committed lending operations by kind.",
			}, []string{"op"}),
			badDebt: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lending_bad_debt_positions_total",
				Help: "Count of liquidations that exhausted collateral with principal remaining.",
			}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.badDebt,
		)
	})
	return lendingRegistry
}

// ObserveOperation records a committed operation of the supplied kind.
func (m *LendingMetrics) ObserveOperation(op string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(op).Inc()
}

// ObserveBadDebt records a liquidation that left residual bad debt.
func (m *LendingMetrics) ObserveBadDebt() {
	if m == nil || m.badDebt == nil {
		return
	}
	m.badDebt.Inc()
}
