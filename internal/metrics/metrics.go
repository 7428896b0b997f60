package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RefreshPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "countryapi_refresh_passes_total",
			Help: "Refresh passes by outcome",
		},
		[]string{"outcome"}, // ok|upstream_failed|failed
	)

	RefreshRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "countryapi_refresh_rows_total",
			Help: "Country rows handled during refresh passes",
		},
		[]string{"result"}, // inserted|updated|failed
	)

	UpstreamFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "countryapi_upstream_failures_total",
			Help: "Failed upstream fetches by source",
		},
		[]string{"source"}, // countries|rates
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		RefreshPasses,
		RefreshRows,
		UpstreamFailures,
	)
}
