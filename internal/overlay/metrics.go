package overlay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var supervisorHeals = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "callwatch_overlay_supervisor_heals_total",
		Help: "Times the supervisor re-showed an indicator lost during an active call.",
	},
)
