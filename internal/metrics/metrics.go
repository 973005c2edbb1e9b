// Package metrics exposes prometheus collectors for the transaction
// core: ledger traffic and circuit breaker health.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/quayside/paycore/pkg/breaker"
	"github.com/quayside/paycore/pkg/ledger"
)

var (
	// LedgerOperations counts ledger mutations by operation and status.
	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paycore_ledger_operations_total",
			Help: "Total number of ledger operations",
		},
		[]string{"operation", "status"},
	)

	// BreakerTransitions counts circuit state transitions per dependency.
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paycore_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"dependency", "to"},
	)

	// BreakerOpen reports whether a dependency's circuit is currently open.
	BreakerOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "paycore_breaker_open",
			Help: "1 while the dependency's circuit is open",
		},
		[]string{"dependency"},
	)
)

// BreakerStateHook feeds breaker transitions into prometheus; wire it
// with breaker.WithStateChangeHook.
func BreakerStateHook() func(key string, from breaker.State, to breaker.State) {
	return func(key string, _ breaker.State, to breaker.State) {
		BreakerTransitions.WithLabelValues(key, to.String()).Inc()
		if to == breaker.StateOpen {
			BreakerOpen.WithLabelValues(key).Set(1)
			return
		}
		BreakerOpen.WithLabelValues(key).Set(0)
	}
}

// OperationCounter implements ledger.OperationLogger by incrementing
// the ledger operation counter.
type OperationCounter struct{}

// LogOperation records one ledger operation sample.
func (OperationCounter) LogOperation(_ context.Context, entry ledger.OperationLog) {
	LedgerOperations.WithLabelValues(entry.Operation, entry.Status).Inc()
}
