// Package metrics instruments the simulator with Prometheus collectors and
// optionally exposes them over HTTP for long-running experiments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FormationTriggers counts coalition-formation activations.
	FormationTriggers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fogcoal",
		Name:      "formation_triggers_total",
		Help:      "Number of coalition formation trigger events processed.",
	})

	// SolverInvocations counts VM-placement solver calls by outcome.
	SolverInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fogcoal",
		Name:      "solver_invocations_total",
		Help:      "Number of VM placement solver invocations by outcome.",
	}, []string{"outcome"})

	// SolverDuration tracks wall-clock time spent inside the solver.
	SolverDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fogcoal",
		Name:      "solver_duration_seconds",
		Help:      "Wall-clock duration of VM placement solver invocations.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 12),
	})

	// Replications counts completed simulation replications.
	Replications = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fogcoal",
		Name:      "replications_total",
		Help:      "Number of completed simulation replications.",
	})

	// NashStablePartitions tracks how many Nash-stable partitions each
	// trigger produced.
	NashStablePartitions = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fogcoal",
		Name:      "nash_stable_partitions",
		Help:      "Number of Nash-stable partitions found per formation trigger.",
		Buckets:   prometheus.LinearBuckets(0, 1, 10),
	})
)

// Solver outcome labels.
const (
	OutcomeOptimal    = "optimal"
	OutcomeFeasible   = "feasible"
	OutcomeInfeasible = "infeasible"
)

// ObserveSolve records one solver invocation.
func ObserveSolve(outcome string, elapsed time.Duration) {
	SolverInvocations.WithLabelValues(outcome).Inc()
	SolverDuration.Observe(elapsed.Seconds())
}

// Serve exposes /metrics on addr in a background goroutine. The returned
// server can be shut down by the caller; listen errors are reported on the
// returned channel.
func Serve(addr string) (*http.Server, <-chan error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	return srv, errc
}
