package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toolsearch_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	breakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolsearch_circuit_breaker_requests_total",
			Help: "Requests admitted through a circuit breaker",
		},
		[]string{"name", "result"},
	)

	breakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolsearch_circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

func recordRequest(name string, state State, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	breakerRequests.WithLabelValues(name, result).Inc()
	breakerState.WithLabelValues(name).Set(float64(state))
}

func recordStateChange(name string, from, to State) {
	breakerStateChanges.WithLabelValues(name, from.String(), to.String()).Inc()
	breakerState.WithLabelValues(name).Set(float64(to))
}
