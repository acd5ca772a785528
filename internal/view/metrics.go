package view

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	viewsBuilt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qtermbloch_views_total",
			Help: "Total number of views built by kind",
		},
		[]string{"kind"},
	)
	invalidStates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qtermbloch_invalid_states_total",
			Help: "Total number of statevectors rejected for non-finite amplitudes",
		},
	)
	degenerateQubits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qtermbloch_degenerate_qubits_total",
			Help: "Total number of qubits flagged non-renderable",
		},
	)
)

func init() {
	prometheus.MustRegister(viewsBuilt, invalidStates, degenerateQubits)
}

func observe(v View, err error) {
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			invalidStates.Inc()
		}
		return
	}
	viewsBuilt.WithLabelValues(string(v.Kind())).Inc()
	if bv, ok := v.(*BlochView); ok {
		degenerateQubits.Add(float64(len(bv.Warnings())))
	}
}
