package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callwatch_call_events_total",
			Help: "Total correlated call events processed by the state machine.",
		},
		[]string{"kind"},
	)
	invalidNumberTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "callwatch_invalid_number_total",
			Help: "Ring events dropped because the phone number had too few digits.",
		},
	)
	callsEndedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callwatch_calls_ended_total",
			Help: "Completed call sessions by direction and whether they were answered.",
		},
		[]string{"direction", "answered"},
	)
)
