package quantum

import "github.com/prometheus/client_golang/prometheus"

// Simulation paths reported in metrics and results.
const (
	PathStatevector = "statevector"
	PathFast        = "fast"
	PathTrajectory  = "trajectory"
)

var (
	simulations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qtermbloch_simulations_total",
			Help: "Total number of simulations by path",
		},
		[]string{"path"},
	)
	simulationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qtermbloch_simulation_duration_seconds",
			Help:    "Simulation latency by path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
	simulationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qtermbloch_simulation_failures_total",
			Help: "Total number of failed simulations by path",
		},
		[]string{"path"},
	)
	shotsSampled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qtermbloch_shots_total",
			Help: "Total number of shots sampled",
		},
	)
)

func init() {
	prometheus.MustRegister(simulations, simulationDuration, simulationFailures, shotsSampled)
}
